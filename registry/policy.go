package registry

import (
	"context"

	"github.com/alwitt/modelregistry/db"
	"github.com/alwitt/modelregistry/models"
)

// SequenceSource supplies the host sequence counter used as a model creation
// timestamp. In a ledger runtime this is the block number.
type SequenceSource interface {
	/*
		CurrentSequence read the current host sequence number

			@param ctx context.Context - execution context
			@returns current sequence number
	*/
	CurrentSequence(ctx context.Context) (uint64, error)
}

// FixedSequenceSource a SequenceSource reporting a caller-controlled value
type FixedSequenceSource struct {
	// Sequence the sequence number to report
	Sequence uint64
}

// CurrentSequence read the current host sequence number
func (s *FixedSequenceSource) CurrentSequence(_ context.Context) (uint64, error) {
	return s.Sequence, nil
}

// RatingPolicy decides whether an account may rate a model.
//
// Whether rating should be restricted to accounts which actually consumed the
// model is a product decision; the dispatcher only enforces whatever policy
// it is given.
type RatingPolicy interface {
	/*
		AllowRating decide whether the rater may rate the model

			@param ctx context.Context - execution context
			@param rater string - the account submitting the rating
			@param model models.Model - the target model
			@param dbClient db.Database - the active database transaction
			@return nil when the rating is allowed
	*/
	AllowRating(ctx context.Context, rater string, model models.Model, dbClient db.Database) error
}

// AllowAllRatingPolicy a RatingPolicy accepting ratings from any account
type AllowAllRatingPolicy struct{}

// AllowRating decide whether the rater may rate the model
func (AllowAllRatingPolicy) AllowRating(
	_ context.Context, _ string, _ models.Model, _ db.Database,
) error {
	return nil
}
