package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alwitt/modelregistry/models"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

// ======================================================================================
// Registry event log

/*
AppendRegistryEvent append an entry to the registry event log

	@param ctx context.Context - execution context
	@param eventType models.RegistryEventTypeENUMType - registry event type
	@param metadata interface{} - the event payload
	@returns the event entry
*/
func (d *databaseImpl) AppendRegistryEvent(
	_ context.Context, eventType models.RegistryEventTypeENUMType, metadata interface{},
) (models.RegistryEvent, error) {
	newEntry := RegistryEventDBEntry{
		RegistryEvent: models.RegistryEvent{ID: ulid.Make().String(), EventType: eventType},
	}

	if metadata != nil {
		if err := d.validator.Struct(metadata); err != nil {
			return models.RegistryEvent{}, fmt.Errorf(
				"new registry event '%s' metadata entry is not valid [%w]", eventType, err,
			)
		}

		metadataStr, _ := json.Marshal(&metadata)
		newEntry.Metadata = datatypes.JSON(metadataStr)
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.RegistryEvent{}, fmt.Errorf(
			"new registry event '%s' entry is not valid [%w]", eventType, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.RegistryEvent{}, fmt.Errorf(
			"new registry event '%s' insert failed [%w]", eventType, tmp.Error,
		)
	}

	return newEntry.RegistryEvent, nil
}

/*
ListRegistryEvents list recorded registry events

	@param ctx context.Context - execution context
	@param filters RegistryEventQueryFilter - entry listing filter
	@return list of registry events
*/
func (d *databaseImpl) ListRegistryEvents(
	_ context.Context, filters RegistryEventQueryFilter,
) ([]models.RegistryEvent, error) {
	query := d.db.Model(&RegistryEventDBEntry{})

	if len(filters.EventTypes) > 0 {
		query = query.Where("type in ?", filters.EventTypes)
	}

	if filters.EventsAfter != nil {
		query = query.Where("created_at >= ?", *filters.EventsAfter)
	}
	if filters.EventsBefore != nil {
		query = query.Where("created_at <= ?", *filters.EventsBefore)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	// The log is append-only; ULID ordering matches insertion order
	query = query.Order("id asc")

	var entries []RegistryEventDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list registry events [%w]", tmp.Error)
	}

	result := []models.RegistryEvent{}
	for _, entry := range entries {
		result = append(result, entry.RegistryEvent)
	}

	return result, nil
}
