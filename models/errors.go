package models

import "errors"

// The registry command error taxonomy. Every failing branch of a public
// command resolves to exactly one of these kinds; callers match with
// errors.Is after unwrapping.
var (
	// ErrFieldTooLong a length-bounded field exceeds its byte cap
	ErrFieldTooLong = errors.New("field exceeds maximum length")

	// ErrInvalidContentReference content reference failed shape validation
	ErrInvalidContentReference = errors.New("invalid content reference")

	// ErrInvalidRating rating value outside the accepted 1-5 range
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrUnauthorized caller is not the owner of the target model
	ErrUnauthorized = errors.New("caller not authorized for this operation")

	// ErrModelNotFound no model exists under the requested ID
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientStake caller balance below the minimum registration stake
	ErrInsufficientStake = errors.New("insufficient stake to register model")

	// ErrInsufficientBalance caller cannot sustain the requested withdrawal
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrCounterOverflow a counter increment would wrap its integer range
	ErrCounterOverflow = errors.New("counter overflow")
)
