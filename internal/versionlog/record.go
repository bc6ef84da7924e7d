// Package versionlog is the append-only audit trail of ledger mutations.
// Records are written inside the mutating transaction and signed with the
// store's Ed25519 key.
package versionlog

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/famledger/famledger/internal/shared"
)

var (
	// ErrRecordNotFound indicates a missing log record.
	ErrRecordNotFound = fmt.Errorf("versionlog: record not found: %w", shared.ErrNotFound)
	// ErrSignatureNotFound indicates a record without a signature row.
	ErrSignatureNotFound = fmt.Errorf("versionlog: signature not found: %w", shared.ErrNotFound)
	// ErrInvalidEntry indicates an entry that cannot be appended.
	ErrInvalidEntry = fmt.Errorf("versionlog: invalid entry: %w", shared.ErrInvalidInput)
)

// Record is one immutable log row.
type Record struct {
	ID       int64           `json:"id"`
	TS       int64           `json:"ts"`
	Action   Action          `json:"action"`
	Entity   Entity          `json:"entity"`
	EntityID int64           `json:"entity_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload snapshot into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("versionlog: decode record %d: %w", r.ID, err)
	}
	return nil
}

// signedMessage binds the signature to the record's identity as well as its
// payload.
func (r Record) signedMessage() []byte {
	msg := make([]byte, 0, len(r.Payload)+64)
	msg = strconv.AppendInt(msg, r.ID, 10)
	msg = append(msg, '|')
	msg = append(msg, r.Entity.String()...)
	msg = append(msg, '|')
	msg = strconv.AppendInt(msg, r.EntityID, 10)
	msg = append(msg, '|')
	msg = append(msg, r.Action.String()...)
	msg = append(msg, '|')
	msg = strconv.AppendInt(msg, r.TS, 10)
	msg = append(msg, '|')
	return append(msg, r.Payload...)
}

// Entry is what a mutation asks the log to record.
type Entry struct {
	Action   Action
	Entity   Entity
	EntityID int64
	TS       int64
	// Payload is the entity as persisted; it is stored as JSON.
	Payload any
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Entity   Entity
	EntityID *int64
}
