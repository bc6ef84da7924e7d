package versionlog

import (
	"database/sql/driver"
	"fmt"

	"github.com/famledger/famledger/internal/shared"
)

// Entity identifies the kind of record a log entry describes.
type Entity uint8

const (
	EntityAccount Entity = iota + 1
	EntityOperation
	EntityState
)

var entityNames = map[Entity]string{
	EntityAccount:   "account",
	EntityOperation: "operation",
	EntityState:     "state",
}

// ParseEntity maps a stored entity name back to its variant.
func ParseEntity(s string) (Entity, error) {
	for e, name := range entityNames {
		if name == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("versionlog: unknown entity %q: %w", s, shared.ErrInvalidInput)
}

func (e Entity) String() string {
	if name, ok := entityNames[e]; ok {
		return name
	}
	return fmt.Sprintf("entity(%d)", uint8(e))
}

// Valid reports whether e is a known variant.
func (e Entity) Valid() bool {
	_, ok := entityNames[e]
	return ok
}

func (e Entity) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("versionlog: invalid entity %d: %w", uint8(e), shared.ErrInvalidInput)
	}
	return []byte(e.String()), nil
}

func (e *Entity) UnmarshalText(b []byte) error {
	v, err := ParseEntity(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

func (e Entity) Value() (driver.Value, error) {
	b, err := e.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *Entity) Scan(src any) error {
	return scanText(src, e.UnmarshalText)
}

// Action is the mutation a log entry records.
type Action uint8

const (
	ActionCreate Action = iota + 1
	ActionUpdate
	ActionDelete
)

var actionNames = map[Action]string{
	ActionCreate: "create",
	ActionUpdate: "update",
	ActionDelete: "delete",
}

// ParseAction maps a stored action name back to its variant.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("versionlog: unknown action %q: %w", s, shared.ErrInvalidInput)
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("versionlog: invalid action %d: %w", uint8(a), shared.ErrInvalidInput)
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Action) Value() (driver.Value, error) {
	b, err := a.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Action) Scan(src any) error {
	return scanText(src, a.UnmarshalText)
}

func scanText(src any, fn func([]byte) error) error {
	switch v := src.(type) {
	case string:
		return fn([]byte(v))
	case []byte:
		return fn(v)
	default:
		return fmt.Errorf("versionlog: cannot scan %T: %w", src, shared.ErrStorage)
	}
}
