package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

/*
RegisterWithValidator register with the validator this custom validation support

	@param v *validator.Validate - the validator to register against
	@return whether successful
*/
func RegisterWithValidator(v *validator.Validate) error {
	if err := v.RegisterValidation(
		"model_category", validateModelCategoryType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"model_status", validateModelStatusType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"registry_event_type", validateRegistryEventType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"content_ref", validateContentReference,
	); err != nil {
		return err
	}

	return nil
}

func validateModelCategoryType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch ModelCategoryENUMType(fl.Field().String()) {
	case ModelCategoryClassification:
		fallthrough
	case ModelCategoryRegression:
		fallthrough
	case ModelCategoryGenerative:
		return true
	}
	return false
}

func validateModelStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch ModelStatusENUMType(fl.Field().String()) {
	case ModelStatusActive:
		fallthrough
	case ModelStatusPaused:
		fallthrough
	case ModelStatusDeactivated:
		fallthrough
	case ModelStatusDeprecated:
		return true
	}
	return false
}

func validateRegistryEventType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch RegistryEventTypeENUMType(fl.Field().String()) {
	case RegistryEventTypeModelRegistered:
		fallthrough
	case RegistryEventTypeModelUpdated:
		fallthrough
	case RegistryEventTypeModelDeactivated:
		fallthrough
	case RegistryEventTypeModelRated:
		return true
	}
	return false
}

func validateContentReference(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return validContentReference(fl.Field().String())
}
