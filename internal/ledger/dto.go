package ledger

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/famledger/famledger/internal/shared"
)

var (
	ErrAccountNotFound  = fmt.Errorf("ledger: account not found: %w", shared.ErrNotFound)
	ErrEmptyName        = fmt.Errorf("ledger: account name required: %w", shared.ErrInvalidInput)
	ErrUnknownType      = fmt.Errorf("ledger: unknown account type: %w", shared.ErrInvalidInput)
	ErrEmptyDescription = fmt.Errorf("ledger: description required: %w", shared.ErrInvalidInput)
	ErrInvalidAmount    = fmt.Errorf("ledger: amount must be a finite number: %w", shared.ErrInvalidAmount)
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AccountInput is the payload for CreateAccount.
type AccountInput struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required"`
}

// normalize trims the name and lower-cases the type.
func (in AccountInput) normalize() AccountInput {
	return AccountInput{Name: strings.TrimSpace(in.Name), Type: normalizeType(in.Type)}
}

// Validate checks the input against the recognised types.
func (in AccountInput) Validate(types AccountTypes) error {
	in = in.normalize()
	if err := validate.Struct(in); err != nil {
		return fieldError(err, map[string]error{"Name": ErrEmptyName, "Type": ErrUnknownType})
	}
	if !types.Contains(in.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	return nil
}

// OperationInput is the payload for AddOperation.
type OperationInput struct {
	AccountID   int64   `json:"account_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description" validate:"required"`
}

func (in OperationInput) normalize() OperationInput {
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// Validate checks the amount and description. Account existence is checked
// inside the write transaction.
func (in OperationInput) Validate() error {
	in = in.normalize()
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return ErrInvalidAmount
	}
	if err := validate.Struct(in); err != nil {
		return fieldError(err, map[string]error{"Description": ErrEmptyDescription})
	}
	return nil
}

func fieldError(err error, byField map[string]error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if mapped, ok := byField[fe.Field()]; ok {
				return mapped
			}
		}
	}
	return fmt.Errorf("ledger: %w: %v", shared.ErrInvalidInput, err)
}
