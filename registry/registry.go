package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/alwitt/goutils"
	"github.com/alwitt/modelregistry/db"
	"github.com/alwitt/modelregistry/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RegisterModelRequest inputs of the model registration command
type RegisterModelRequest struct {
	// ContentRef content-addressed reference to the model artifact
	ContentRef string
	// Name human readable model name
	Name string
	// Description model description
	Description string
	// Category model category
	Category models.ModelCategoryENUMType
	// Price price per inference
	Price decimal.Decimal
}

// ModelMetadataUpdate optional field changes of the model update command.
//
// Nil fields are left untouched. If any provided field fails validation the
// whole update is discarded.
type ModelMetadataUpdate struct {
	// NewPrice replacement price, if set
	NewPrice *decimal.Decimal
	// NewDescription replacement description, if set
	NewDescription *string
	// NewStatus replacement status, if set
	NewStatus *models.ModelStatusENUMType
}

// EventCallback invoked with each registry event once its command's
// transaction scope returns successfully. When commands are nested in a
// caller-supplied transaction, the final commit is the caller's.
type EventCallback func(event models.RegistryEvent)

// ModelRegistry the registry command surface.
//
// Every mutating command is atomic: either all of its writes commit, or the
// store is left untouched and the command reports one error kind from the
// models package taxonomy.
type ModelRegistry interface {
	/*
		RegisterModel register a new model

			@param ctx context.Context - execution context
			@param caller string - the account registering the model
			@param request RegisterModelRequest - registration inputs
			@param activeDBClient db.Database - existing database transaction
			@returns the new model
	*/
	RegisterModel(
		ctx context.Context, caller string, request RegisterModelRequest, activeDBClient db.Database,
	) (models.Model, error)

	/*
		UpdateModelMetadata update the mutable metadata of a model

			@param ctx context.Context - execution context
			@param caller string - must be the model owner
			@param modelID models.ModelID - the model to update
			@param update ModelMetadataUpdate - the field changes
			@param activeDBClient db.Database - existing database transaction
	*/
	UpdateModelMetadata(
		ctx context.Context,
		caller string,
		modelID models.ModelID,
		update ModelMetadataUpdate,
		activeDBClient db.Database,
	) error

	/*
		DeactivateModel deactivate a model.

		Idempotent; deactivating an already deactivated model succeeds silently.

			@param ctx context.Context - execution context
			@param caller string - must be the model owner
			@param modelID models.ModelID - the model to deactivate
			@param activeDBClient db.Database - existing database transaction
	*/
	DeactivateModel(
		ctx context.Context, caller string, modelID models.ModelID, activeDBClient db.Database,
	) error

	/*
		RateModel submit a rating for a model

			@param ctx context.Context - execution context
			@param caller string - the account submitting the rating
			@param modelID models.ModelID - the model to rate
			@param rating uint8 - rating value, 1 to 5
			@param activeDBClient db.Database - existing database transaction
	*/
	RateModel(
		ctx context.Context,
		caller string,
		modelID models.ModelID,
		rating uint8,
		activeDBClient db.Database,
	) error

	/*
		ReportModelUsage record one completed inference against a model.

		Entry point for the inference fulfillment collaborator.

			@param ctx context.Context - execution context
			@param modelID models.ModelID - the model used
			@param activeDBClient db.Database - existing database transaction
	*/
	ReportModelUsage(
		ctx context.Context, modelID models.ModelID, activeDBClient db.Database,
	) error

	/*
		GetModel fetch a model by ID

			@param ctx context.Context - execution context
			@param modelID models.ModelID - the model ID
			@param activeDBClient db.Database - existing database transaction
			@returns the model
	*/
	GetModel(
		ctx context.Context, modelID models.ModelID, activeDBClient db.Database,
	) (models.Model, error)

	/*
		ListModelsByOwner list the models of one owner

			@param ctx context.Context - execution context
			@param owner string - the owner account
			@param activeDBClient db.Database - existing database transaction
			@returns the owner's models
	*/
	ListModelsByOwner(
		ctx context.Context, owner string, activeDBClient db.Database,
	) ([]models.Model, error)

	/*
		AverageRating floored average rating of a model.

		Total read: reports undefined (ok == false) both for an unrated model
		and for an unknown ID, never an error.

			@param ctx context.Context - execution context
			@param modelID models.ModelID - the model ID
			@param activeDBClient db.Database - existing database transaction
			@returns the average and whether it is defined
	*/
	AverageRating(
		ctx context.Context, modelID models.ModelID, activeDBClient db.Database,
	) (uint64, bool, error)

	/*
		ListEvents list recorded registry events

			@param ctx context.Context - execution context
			@param filters db.RegistryEventQueryFilter - entry listing filter
			@param activeDBClient db.Database - existing database transaction
			@returns matching registry events
	*/
	ListEvents(
		ctx context.Context, filters db.RegistryEventQueryFilter, activeDBClient db.Database,
	) ([]models.RegistryEvent, error)
}

// modelRegistryImpl implements ModelRegistry
type modelRegistryImpl struct {
	goutils.Component

	persistence db.Client

	params Params

	sequence SequenceSource

	ratingPolicy RatingPolicy

	onEvent EventCallback
}

/*
NewModelRegistry define a new model registry dispatcher

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@param params Params - registry operating parameters
	@param sequence SequenceSource - host sequence counter
	@param ratingPolicy RatingPolicy - rating admission policy; nil accepts all raters
	@param onEvent EventCallback - invoked per event after commit; optional
	@returns dispatcher instance
*/
func NewModelRegistry(
	_ context.Context,
	persistence db.Client,
	params Params,
	sequence SequenceSource,
	ratingPolicy RatingPolicy,
	onEvent EventCallback,
) (ModelRegistry, error) {
	logTags := log.Fields{"module": "registry", "component": "model-registry"}

	validate := validator.New()
	if err := models.RegisterWithValidator(validate); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}
	if err := params.validate(validate); err != nil {
		return nil, err
	}

	if sequence == nil {
		return nil, fmt.Errorf("a sequence source is required")
	}

	if ratingPolicy == nil {
		ratingPolicy = AllowAllRatingPolicy{}
	}

	return &modelRegistryImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence:  persistence,
		params:       params,
		sequence:     sequence,
		ratingPolicy: ratingPolicy,
		onEvent:      onEvent,
	}, nil
}

// emit deliver a committed event to the subscriber, if one is installed
func (r *modelRegistryImpl) emit(event models.RegistryEvent) {
	if r.onEvent != nil {
		r.onEvent(event)
	}
}

/*
RegisterModel register a new model

	@param ctx context.Context - execution context
	@param caller string - the account registering the model
	@param request RegisterModelRequest - registration inputs
	@param activeDBClient db.Database - existing database transaction
	@returns the new model
*/
func (r *modelRegistryImpl) RegisterModel(
	ctx context.Context, caller string, request RegisterModelRequest, activeDBClient db.Database,
) (models.Model, error) {
	var newModel models.Model
	var event models.RegistryEvent

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			// Bounded field validation comes first; nothing is charged or
			// allocated for a malformed request.
			contentRef, err := models.CheckBoundedField(
				"content_ref", request.ContentRef, r.params.MaxContentRefLength,
			)
			if err != nil {
				return err
			}
			if err := models.CheckContentReference(contentRef); err != nil {
				return err
			}
			name, err := models.CheckBoundedField("name", request.Name, r.params.MaxNameLength)
			if err != nil {
				return err
			}
			description, err := models.CheckBoundedField(
				"description", request.Description, r.params.MaxDescriptionLength,
			)
			if err != nil {
				return err
			}

			// Admission control against the ledger
			balance, err := dbClient.GetLedgerBalance(dbCtx, caller)
			if err != nil {
				return fmt.Errorf("failed to read balance of '%s' [%w]", caller, err)
			}
			if balance.LessThan(r.params.MinimumStake) {
				return fmt.Errorf("account '%s' [%w]", caller, models.ErrInsufficientStake)
			}

			if err := dbClient.DebitAccount(
				dbCtx, caller, r.params.RegistrationFee, r.params.ExistentialMinimum,
			); err != nil {
				return fmt.Errorf("registration fee [%w]", err)
			}

			currentSeq, err := r.sequence.CurrentSequence(dbCtx)
			if err != nil {
				return fmt.Errorf("failed to read host sequence [%w]", err)
			}

			// All checks passed; only now does the allocator advance
			modelID, err := dbClient.AllocateModelID(dbCtx)
			if err != nil {
				return err
			}

			newModel, err = dbClient.CreateModel(dbCtx, models.Model{
				ID:           modelID,
				Owner:        caller,
				ContentRef:   contentRef,
				Name:         name,
				Description:  description,
				Category:     request.Category,
				Price:        request.Price,
				CreatedAtSeq: currentSeq,
				Status:       models.ModelStatusActive,
			})
			if err != nil {
				return fmt.Errorf("failed to insert new model [%w]", err)
			}

			event, err = dbClient.AppendRegistryEvent(
				dbCtx,
				models.RegistryEventTypeModelRegistered,
				models.RegistryEventModelRegistered{
					ModelID: newModel.ID, Owner: caller, ContentRef: contentRef,
				},
			)
			return err
		},
	); dbErr != nil {
		return models.Model{}, fmt.Errorf("model registration by '%s' failed [%w]", caller, dbErr)
	}

	r.emit(event)
	return newModel, nil
}

/*
UpdateModelMetadata update the mutable metadata of a model

	@param ctx context.Context - execution context
	@param caller string - must be the model owner
	@param modelID models.ModelID - the model to update
	@param update ModelMetadataUpdate - the field changes
	@param activeDBClient db.Database - existing database transaction
*/
func (r *modelRegistryImpl) UpdateModelMetadata(
	ctx context.Context,
	caller string,
	modelID models.ModelID,
	update ModelMetadataUpdate,
	activeDBClient db.Database,
) error {
	var event models.RegistryEvent

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			model, err := dbClient.GetModel(dbCtx, modelID)
			if err != nil {
				return err
			}
			if model.Owner != caller {
				return fmt.Errorf("'%s' does not own model %d [%w]", caller, modelID, models.ErrUnauthorized)
			}

			if update.NewPrice != nil {
				model.Price = *update.NewPrice
			}

			if update.NewDescription != nil {
				description, err := models.CheckBoundedField(
					"description", *update.NewDescription, r.params.MaxDescriptionLength,
				)
				if err != nil {
					return err
				}
				model.Description = description
			}

			if update.NewStatus != nil {
				model.Status = *update.NewStatus
			}

			if err := dbClient.SaveModel(dbCtx, model); err != nil {
				return err
			}

			event, err = dbClient.AppendRegistryEvent(
				dbCtx,
				models.RegistryEventTypeModelUpdated,
				models.RegistryEventModelChanged{ModelID: modelID, Owner: model.Owner},
			)
			return err
		},
	); dbErr != nil {
		return fmt.Errorf("update of model %d failed [%w]", modelID, dbErr)
	}

	r.emit(event)
	return nil
}

/*
DeactivateModel deactivate a model.

Idempotent; deactivating an already deactivated model succeeds silently.

	@param ctx context.Context - execution context
	@param caller string - must be the model owner
	@param modelID models.ModelID - the model to deactivate
	@param activeDBClient db.Database - existing database transaction
*/
func (r *modelRegistryImpl) DeactivateModel(
	ctx context.Context, caller string, modelID models.ModelID, activeDBClient db.Database,
) error {
	var event models.RegistryEvent

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			model, err := dbClient.GetModel(dbCtx, modelID)
			if err != nil {
				return err
			}
			if model.Owner != caller {
				return fmt.Errorf("'%s' does not own model %d [%w]", caller, modelID, models.ErrUnauthorized)
			}

			model.Status = models.ModelStatusDeactivated
			if err := dbClient.SaveModel(dbCtx, model); err != nil {
				return err
			}

			event, err = dbClient.AppendRegistryEvent(
				dbCtx,
				models.RegistryEventTypeModelDeactivated,
				models.RegistryEventModelChanged{ModelID: modelID, Owner: model.Owner},
			)
			return err
		},
	); dbErr != nil {
		return fmt.Errorf("deactivation of model %d failed [%w]", modelID, dbErr)
	}

	r.emit(event)
	return nil
}

/*
RateModel submit a rating for a model

	@param ctx context.Context - execution context
	@param caller string - the account submitting the rating
	@param modelID models.ModelID - the model to rate
	@param rating uint8 - rating value, 1 to 5
	@param activeDBClient db.Database - existing database transaction
*/
func (r *modelRegistryImpl) RateModel(
	ctx context.Context,
	caller string,
	modelID models.ModelID,
	rating uint8,
	activeDBClient db.Database,
) error {
	var event models.RegistryEvent

	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating %d [%w]", rating, models.ErrInvalidRating)
	}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			model, err := dbClient.GetModel(dbCtx, modelID)
			if err != nil {
				return err
			}

			if err := r.ratingPolicy.AllowRating(dbCtx, caller, model, dbClient); err != nil {
				return fmt.Errorf("rating of model %d by '%s' refused [%w]", modelID, caller, err)
			}

			if err := model.ApplyRating(rating); err != nil {
				return err
			}
			if err := dbClient.SaveModel(dbCtx, model); err != nil {
				return err
			}

			event, err = dbClient.AppendRegistryEvent(
				dbCtx,
				models.RegistryEventTypeModelRated,
				models.RegistryEventModelRated{ModelID: modelID, Rater: caller, Rating: rating},
			)
			return err
		},
	); dbErr != nil {
		return fmt.Errorf("rating of model %d failed [%w]", modelID, dbErr)
	}

	r.emit(event)
	return nil
}

/*
ReportModelUsage record one completed inference against a model.

Entry point for the inference fulfillment collaborator.

	@param ctx context.Context - execution context
	@param modelID models.ModelID - the model used
	@param activeDBClient db.Database - existing database transaction
*/
func (r *modelRegistryImpl) ReportModelUsage(
	ctx context.Context, modelID models.ModelID, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			model, err := dbClient.GetModel(dbCtx, modelID)
			if err != nil {
				return err
			}
			if err := model.RecordUsage(); err != nil {
				return err
			}
			return dbClient.SaveModel(dbCtx, model)
		},
	); dbErr != nil {
		return fmt.Errorf("usage report for model %d failed [%w]", modelID, dbErr)
	}

	return nil
}

/*
GetModel fetch a model by ID

	@param ctx context.Context - execution context
	@param modelID models.ModelID - the model ID
	@param activeDBClient db.Database - existing database transaction
	@returns the model
*/
func (r *modelRegistryImpl) GetModel(
	ctx context.Context, modelID models.ModelID, activeDBClient db.Database,
) (models.Model, error) {
	var model models.Model

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			model, err = dbClient.GetModel(dbCtx, modelID)
			return err
		},
	); dbErr != nil {
		return models.Model{}, dbErr
	}

	return model, nil
}

/*
ListModelsByOwner list the models of one owner

	@param ctx context.Context - execution context
	@param owner string - the owner account
	@param activeDBClient db.Database - existing database transaction
	@returns the owner's models
*/
func (r *modelRegistryImpl) ListModelsByOwner(
	ctx context.Context, owner string, activeDBClient db.Database,
) ([]models.Model, error) {
	var result []models.Model

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			result, err = dbClient.ListModelsByOwner(dbCtx, owner)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list models of '%s' [%w]", owner, dbErr)
	}

	return result, nil
}

/*
AverageRating floored average rating of a model.

Total read: reports undefined (ok == false) both for an unrated model and for
an unknown ID, never an error.

	@param ctx context.Context - execution context
	@param modelID models.ModelID - the model ID
	@param activeDBClient db.Database - existing database transaction
	@returns the average and whether it is defined
*/
func (r *modelRegistryImpl) AverageRating(
	ctx context.Context, modelID models.ModelID, activeDBClient db.Database,
) (uint64, bool, error) {
	var average uint64
	var defined bool

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			model, err := dbClient.GetModel(dbCtx, modelID)
			if err != nil {
				if errors.Is(err, models.ErrModelNotFound) {
					// Same "undefined" as a never-rated model
					return nil
				}
				return err
			}
			average, defined = model.AverageRating()
			return nil
		},
	); dbErr != nil {
		return 0, false, fmt.Errorf("average rating of model %d unavailable [%w]", modelID, dbErr)
	}

	return average, defined, nil
}

/*
ListEvents list recorded registry events

	@param ctx context.Context - execution context
	@param filters db.RegistryEventQueryFilter - entry listing filter
	@param activeDBClient db.Database - existing database transaction
	@returns matching registry events
*/
func (r *modelRegistryImpl) ListEvents(
	ctx context.Context, filters db.RegistryEventQueryFilter, activeDBClient db.Database,
) ([]models.RegistryEvent, error) {
	var result []models.RegistryEvent

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			result, err = dbClient.ListRegistryEvents(dbCtx, filters)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list registry events [%w]", dbErr)
	}

	return result, nil
}
