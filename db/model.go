// Package db - persistence layer
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/alwitt/modelregistry/models"
	"gorm.io/gorm"
)

// ======================================================================================
// Models

/*
CreateModel insert a new model together with its owner index entry

	@param ctx context.Context - execution context
	@param newModel models.Model - the model to insert
	@returns the inserted model
*/
func (d *databaseImpl) CreateModel(
	_ context.Context, newModel models.Model,
) (models.Model, error) {
	newEntry := ModelDBEntry{Model: newModel}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Model{}, fmt.Errorf("new model %d is not valid [%w]", newModel.ID, err)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Model{}, fmt.Errorf("new model %d failed insert [%w]", newModel.ID, tmp.Error)
	}

	// The owner index entry lives and dies with the model row
	indexEntry := ModelOwnerIndexDBEntry{
		ModelOwnerIndex: models.ModelOwnerIndex{Owner: newModel.Owner, ModelID: newModel.ID},
	}
	if err := d.validator.Struct(&indexEntry); err != nil {
		return models.Model{}, fmt.Errorf(
			"owner index entry for model %d is not valid [%w]", newModel.ID, err,
		)
	}
	if tmp := d.db.Create(&indexEntry); tmp.Error != nil {
		return models.Model{}, fmt.Errorf(
			"owner index entry for model %d failed insert [%w]", newModel.ID, tmp.Error,
		)
	}

	return newEntry.Model, nil
}

// getModelEntry find a model by ID
func (d *databaseImpl) getModelEntry(modelID models.ModelID) (ModelDBEntry, error) {
	var entry ModelDBEntry
	if tmp := d.db.Where("id = ?", modelID).First(&entry); tmp.Error != nil {
		if errors.Is(tmp.Error, gorm.ErrRecordNotFound) {
			return ModelDBEntry{}, fmt.Errorf("model %d [%w]", modelID, models.ErrModelNotFound)
		}
		return ModelDBEntry{}, fmt.Errorf("failed to fetch model %d [%w]", modelID, tmp.Error)
	}
	return entry, nil
}

/*
GetModel fetch a model by ID

	@param ctx context.Context - execution context
	@param modelID models.ModelID - the model ID
	@returns the model
*/
func (d *databaseImpl) GetModel(
	_ context.Context, modelID models.ModelID,
) (models.Model, error) {
	entry, err := d.getModelEntry(modelID)
	if err != nil {
		return models.Model{}, err
	}
	return entry.Model, nil
}

/*
SaveModel persist changes to the mutable fields of an existing model

	@param ctx context.Context - execution context
	@param model models.Model - the model to persist
*/
func (d *databaseImpl) SaveModel(_ context.Context, model models.Model) error {
	entry := ModelDBEntry{Model: model}

	if err := d.validator.Struct(&entry); err != nil {
		return fmt.Errorf("updated model %d is not valid [%w]", model.ID, err)
	}

	tmp := d.db.Model(&ModelDBEntry{}).Where("id = ?", model.ID).Updates(map[string]interface{}{
		"description":  model.Description,
		"price":        model.Price,
		"status":       model.Status,
		"total_usage":  model.TotalUsage,
		"rating_sum":   model.RatingSum,
		"rating_count": model.RatingCount,
	})
	if tmp.Error != nil {
		return fmt.Errorf("failed to persist model %d [%w]", model.ID, tmp.Error)
	}
	if tmp.RowsAffected == 0 {
		return fmt.Errorf("model %d [%w]", model.ID, models.ErrModelNotFound)
	}

	return nil
}

/*
ListModels list registered models

	@param ctx context.Context - execution context
	@param filters ModelQueryFilter - entry listing filter
	@return list of models
*/
func (d *databaseImpl) ListModels(
	_ context.Context, filters ModelQueryFilter,
) ([]models.Model, error) {
	query := d.db.Model(&ModelDBEntry{})

	if len(filters.TargetStatus) > 0 {
		query = query.Where("status in ?", filters.TargetStatus)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("id asc")

	var entries []ModelDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list models [%w]", tmp.Error)
	}

	result := []models.Model{}
	for _, entry := range entries {
		result = append(result, entry.Model)
	}

	return result, nil
}

/*
ListModelsByOwner list the models of one owner, resolved through the owner index

	@param ctx context.Context - execution context
	@param owner string - the owner account
	@return list of models
*/
func (d *databaseImpl) ListModelsByOwner(
	_ context.Context, owner string,
) ([]models.Model, error) {
	var indexEntries []ModelOwnerIndexDBEntry
	if tmp := d.db.Where(
		"owner = ?", owner,
	).Order("model_id asc").Find(&indexEntries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to read owner index for '%s' [%w]", owner, tmp.Error)
	}

	result := []models.Model{}
	for _, indexEntry := range indexEntries {
		modelEntry, err := d.getModelEntry(indexEntry.ModelID)
		if err != nil {
			return nil, fmt.Errorf(
				"owner index of '%s' references model %d [%w]", owner, indexEntry.ModelID, err,
			)
		}
		result = append(result, modelEntry.Model)
	}

	return result, nil
}
