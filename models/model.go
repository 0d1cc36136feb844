// Package models - data model of the registry
package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ModelID unique identifier of a registered model
type ModelID = uint64

// ModelCategoryENUMType model category ENUM value type
type ModelCategoryENUMType string

const (
	// ModelCategoryClassification classification model (e.g. image classification)
	ModelCategoryClassification ModelCategoryENUMType = "CLASSIFICATION"
	// ModelCategoryRegression regression model (e.g. price prediction)
	ModelCategoryRegression ModelCategoryENUMType = "REGRESSION"
	// ModelCategoryGenerative generative model (e.g. text generation)
	ModelCategoryGenerative ModelCategoryENUMType = "GENERATIVE"
)

// ModelStatusENUMType model lifecycle status ENUM value type
type ModelStatusENUMType string

const (
	// ModelStatusActive model is available for inference
	ModelStatusActive ModelStatusENUMType = "ACTIVE"
	// ModelStatusPaused model is temporarily paused by the owner
	ModelStatusPaused ModelStatusENUMType = "PAUSED"
	// ModelStatusDeactivated model is permanently deactivated
	ModelStatusDeactivated ModelStatusENUMType = "DEACTIVATED"
	// ModelStatusDeprecated model is superseded by a newer version
	ModelStatusDeprecated ModelStatusENUMType = "DEPRECATED"
)

// Model one registered AI model descriptor
//
// A model is never physically removed; deactivation is a status change. The
// owner, content reference, category, and creation sequence are fixed at
// registration time.
type Model struct {
	// ID unique model ID issued by the registry ID allocator
	ID ModelID `json:"id" gorm:"column:id;primaryKey;autoIncrement:false"`

	// Owner account which registered the model
	Owner string `json:"owner" gorm:"column:owner;not null;index" validate:"required"`

	// ContentRef content-addressed reference to the model artifact
	ContentRef string `json:"content_ref" gorm:"column:content_ref;not null" validate:"required,content_ref"`

	// Name human readable model name
	Name string `json:"name" gorm:"column:name;not null"`

	// Description model description
	Description string `json:"description" gorm:"column:description"`

	// Category model category
	Category ModelCategoryENUMType `json:"category" gorm:"column:category;not null" validate:"required,model_category"`

	// Price price per inference
	Price decimal.Decimal `json:"price" gorm:"column:price;type:string;not null"`

	// CreatedAtSeq host sequence number at registration time
	CreatedAtSeq uint64 `json:"created_at_seq" gorm:"column:created_at_seq;not null"`

	// TotalUsage number of inferences reported against this model
	TotalUsage uint64 `json:"total_usage" gorm:"column:total_usage;not null"`

	// RatingSum running sum of all submitted ratings
	RatingSum uint64 `json:"rating_sum" gorm:"column:rating_sum;not null"`
	// RatingCount number of submitted ratings
	RatingCount uint32 `json:"rating_count" gorm:"column:rating_count;not null"`

	// Status current lifecycle status
	Status ModelStatusENUMType `json:"status" gorm:"column:status;not null" validate:"required,model_status"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ModelOwnerIndex secondary lookup entry mapping an owner to one model it owns.
//
// Purely a lookup aid; one entry exists per live model, always matching
// Model.Owner.
type ModelOwnerIndex struct {
	// Owner account which owns the model
	Owner string `json:"owner" gorm:"column:owner;primaryKey" validate:"required"`
	// ModelID the owned model
	ModelID ModelID `json:"model_id" gorm:"column:model_id;primaryKey;autoIncrement:false"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
}

// AllocatorState singleton counter issuing model IDs.
//
// Issued IDs are dense and never reused, even after deactivation.
type AllocatorState struct {
	// ID entry ID. It must always be id-allocator
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,oneof=id-allocator"`

	// NextModelID the next model ID to issue
	NextModelID uint64 `json:"next_model_id" gorm:"column:next_model_id;not null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerAccount balance entry of one account
type LedgerAccount struct {
	// Account account identifier
	Account string `json:"account" gorm:"column:account;primaryKey;unique" validate:"required"`

	// Balance available balance
	Balance decimal.Decimal `json:"balance" gorm:"column:balance;type:string;not null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckedAddU64 add two uint64 values, erroring instead of wrapping
func CheckedAddU64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrCounterOverflow
	}
	return a + b, nil
}

// CheckedAddU32 add two uint32 values, erroring instead of wrapping
func CheckedAddU32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, ErrCounterOverflow
	}
	return a + b, nil
}

// ApplyRating fold one rating value into the running aggregate.
//
// Both counters use checked arithmetic; on overflow the model is left
// unchanged.
func (m *Model) ApplyRating(value uint8) error {
	newSum, err := CheckedAddU64(m.RatingSum, uint64(value))
	if err != nil {
		return err
	}
	newCount, err := CheckedAddU32(m.RatingCount, 1)
	if err != nil {
		return err
	}
	m.RatingSum = newSum
	m.RatingCount = newCount
	return nil
}

// RecordUsage increment the total usage counter with overflow detection
func (m *Model) RecordUsage() error {
	newTotal, err := CheckedAddU64(m.TotalUsage, 1)
	if err != nil {
		return err
	}
	m.TotalUsage = newTotal
	return nil
}

// AverageRating floored average of the submitted ratings.
//
// Returns false when no rating was ever submitted; the average is undefined
// in that case, not an error.
func (m *Model) AverageRating() (uint64, bool) {
	if m.RatingCount == 0 {
		return 0, false
	}
	return m.RatingSum / uint64(m.RatingCount), true
}
