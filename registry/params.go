// Package registry - the registry command dispatcher
package registry

import (
	"fmt"

	"github.com/alwitt/modelregistry/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Params operating parameters of the registry
type Params struct {
	// MaxContentRefLength byte cap of the model content reference
	MaxContentRefLength int `validate:"required,gt=0"`
	// MaxNameLength byte cap of the model name
	MaxNameLength int `validate:"required,gt=0"`
	// MaxDescriptionLength byte cap of the model description
	MaxDescriptionLength int `validate:"required,gt=0"`

	// MinimumStake balance an account must hold to register a model.
	//
	// A read-only admission threshold; nothing is reserved or locked.
	MinimumStake decimal.Decimal

	// RegistrationFee amount debited from the caller on successful registration
	RegistrationFee decimal.Decimal

	// ExistentialMinimum balance an account must retain after any debit
	ExistentialMinimum decimal.Decimal
}

// DefaultParams registry operating parameter defaults
func DefaultParams() Params {
	return Params{
		MaxContentRefLength:  models.MaxContentRefLength,
		MaxNameLength:        models.MaxNameLength,
		MaxDescriptionLength: models.MaxDescriptionLength,
		MinimumStake:         decimal.NewFromInt(1000),
		RegistrationFee:      decimal.NewFromInt(100),
		ExistentialMinimum:   decimal.NewFromInt(1),
	}
}

// validate verify the parameter set is usable
func (p Params) validate(v *validator.Validate) error {
	if err := v.Struct(&p); err != nil {
		return fmt.Errorf("registry params are not valid [%w]", err)
	}
	if p.MinimumStake.IsNegative() || p.RegistrationFee.IsNegative() || p.ExistentialMinimum.IsNegative() {
		return fmt.Errorf("registry params must not carry negative amounts")
	}
	return nil
}
