package models

import "fmt"

// Byte caps of the length-bounded model fields
const (
	// MaxContentRefLength byte cap of the content reference
	MaxContentRefLength = 128
	// MaxNameLength byte cap of the model name
	MaxNameLength = 256
	// MaxDescriptionLength byte cap of the model description
	MaxDescriptionLength = 1024
)

// minContentRefLength a content reference shorter than this is invalid
// regardless of prefix
const minContentRefLength = 46

/*
CheckBoundedField verify a length-bounded field fits within its byte cap

	@param field string - field name, for error reporting
	@param value string - raw field value
	@param maxLen int - byte cap
	@return the value unchanged, or ErrFieldTooLong
*/
func CheckBoundedField(field string, value string, maxLen int) (string, error) {
	if len(value) > maxLen {
		return "", fmt.Errorf("'%s' is %d bytes, cap is %d [%w]", field, len(value), maxLen, ErrFieldTooLong)
	}
	return value, nil
}

/*
CheckContentReference verify the shape of a content reference.

Accepted forms:

  - fixed-length: exactly 46 bytes beginning with "Qm"
  - self-describing: at least 46 bytes beginning with "b" or "B"

	@param ref string - raw content reference
	@return ErrInvalidContentReference when the shape is not accepted
*/
func CheckContentReference(ref string) error {
	if validContentReference(ref) {
		return nil
	}
	return fmt.Errorf("'%s' [%w]", ref, ErrInvalidContentReference)
}

func validContentReference(ref string) bool {
	if len(ref) < minContentRefLength {
		return false
	}
	if len(ref) == minContentRefLength && ref[0] == 'Q' && ref[1] == 'm' {
		return true
	}
	return ref[0] == 'b' || ref[0] == 'B'
}
