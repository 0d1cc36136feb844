package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/modelregistry/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommonListEntryQueryFilter common query filter when listing data entries
type CommonListEntryQueryFilter struct {
	Limit  *int
	Offset *int
}

// RegistryEventQueryFilter registry event query filter conditions
type RegistryEventQueryFilter struct {
	CommonListEntryQueryFilter
	// EventTypes the specific event types to query for
	EventTypes []models.RegistryEventTypeENUMType
	// EventsAfter filter for events after this timestamp
	EventsAfter *time.Time
	// EventsBefore filter for events before this timestamp
	EventsBefore *time.Time
}

// ModelQueryFilter model query filter conditions
type ModelQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetStatus the specific model statuses to query for
	TargetStatus []models.ModelStatusENUMType
}

// Database the database handle for interacting with the database
type Database interface {
	// ------------------------------------------------------------------------------------
	// Model ID allocator

	/*
		AllocateModelID issue the next model ID and advance the allocator counter.

		The advance persists only if the surrounding transaction commits; a failed
		registration never consumes an ID.

			@param ctx context.Context - execution context
			@returns the issued model ID
	*/
	AllocateModelID(ctx context.Context) (models.ModelID, error)

	// ------------------------------------------------------------------------------------
	// Models

	/*
		CreateModel insert a new model together with its owner index entry

			@param ctx context.Context - execution context
			@param newModel models.Model - the model to insert
			@returns the inserted model
	*/
	CreateModel(ctx context.Context, newModel models.Model) (models.Model, error)

	/*
		GetModel fetch a model by ID

			@param ctx context.Context - execution context
			@param modelID models.ModelID - the model ID
			@returns the model
	*/
	GetModel(ctx context.Context, modelID models.ModelID) (models.Model, error)

	/*
		SaveModel persist changes to the mutable fields of an existing model

			@param ctx context.Context - execution context
			@param model models.Model - the model to persist
	*/
	SaveModel(ctx context.Context, model models.Model) error

	/*
		ListModels list registered models

			@param ctx context.Context - execution context
			@param filters ModelQueryFilter - entry listing filter
			@return list of models
	*/
	ListModels(ctx context.Context, filters ModelQueryFilter) ([]models.Model, error)

	/*
		ListModelsByOwner list the models of one owner, resolved through the owner index

			@param ctx context.Context - execution context
			@param owner string - the owner account
			@return list of models
	*/
	ListModelsByOwner(ctx context.Context, owner string) ([]models.Model, error)

	// ------------------------------------------------------------------------------------
	// Ledger accounts

	/*
		GetLedgerBalance fetch the available balance of an account.

		An account with no ledger entry reads as zero balance.

			@param ctx context.Context - execution context
			@param account string - the account
			@returns available balance
	*/
	GetLedgerBalance(ctx context.Context, account string) (decimal.Decimal, error)

	/*
		CreditAccount add funds to an account, creating the ledger entry if needed

			@param ctx context.Context - execution context
			@param account string - the account
			@param amount decimal.Decimal - amount to add
			@returns the account entry after the credit
	*/
	CreditAccount(
		ctx context.Context, account string, amount decimal.Decimal,
	) (models.LedgerAccount, error)

	/*
		DebitAccount remove funds from an account.

		The debit is refused when the remaining balance would fall below
		`keepAbove`, the ledger's minimum-existence threshold.

			@param ctx context.Context - execution context
			@param account string - the account
			@param amount decimal.Decimal - amount to remove
			@param keepAbove decimal.Decimal - minimum balance the account must retain
	*/
	DebitAccount(
		ctx context.Context, account string, amount decimal.Decimal, keepAbove decimal.Decimal,
	) error

	// ------------------------------------------------------------------------------------
	// Registry event log

	/*
		AppendRegistryEvent append an entry to the registry event log

			@param ctx context.Context - execution context
			@param eventType models.RegistryEventTypeENUMType - registry event type
			@param metadata interface{} - the event payload
			@returns the event entry
	*/
	AppendRegistryEvent(
		ctx context.Context, eventType models.RegistryEventTypeENUMType, metadata interface{},
	) (models.RegistryEvent, error)

	/*
		ListRegistryEvents list recorded registry events

			@param ctx context.Context - execution context
			@param filters RegistryEventQueryFilter - entry listing filter
			@return list of registry events
	*/
	ListRegistryEvents(
		ctx context.Context, filters RegistryEventQueryFilter,
	) ([]models.RegistryEvent, error)
}

// databaseImpl implements Database
type databaseImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

// newDatabase define a new database client
func newDatabase(_ context.Context, sqlClient *gorm.DB) (Database, error) {
	logTags := log.Fields{"package": "modelregistry", "module": "db", "component": "db-client"}

	instance := &databaseImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        sqlClient,
		validator: validator.New(),
	}

	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	return instance, nil
}
