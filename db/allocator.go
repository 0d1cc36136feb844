package db

import (
	"context"
	"fmt"
	"math"

	"github.com/alwitt/modelregistry/models"
)

// AllocatorStateEntryID ID of the singleton ID allocator entry
const AllocatorStateEntryID = "id-allocator"

// getAllocatorStateEntry fetch the allocator singleton entry
//
// If the entry does not exist, initialize a new one starting from zero.
func (d *databaseImpl) getAllocatorStateEntry() (AllocatorStateDBEntry, error) {
	var entries []AllocatorStateDBEntry
	dbErr := d.db.Where("id = ?", AllocatorStateEntryID).Find(&entries).Error
	if dbErr != nil {
		return AllocatorStateDBEntry{}, fmt.Errorf("failed to read ID allocator table [%w]", dbErr)
	}
	if len(entries) == 0 {
		// Make a new one
		newEntry := AllocatorStateDBEntry{
			AllocatorState: models.AllocatorState{
				ID:          AllocatorStateEntryID,
				NextModelID: 0,
			},
		}
		if dbErr = d.db.Create(&newEntry).Error; dbErr != nil {
			return AllocatorStateDBEntry{}, fmt.Errorf(
				"failed to setup singleton ID allocator entry [%w]", dbErr,
			)
		}
		return newEntry, nil
	}
	return entries[0], nil
}

// nextModelID compute the ID to issue and the advanced counter value
func nextModelID(current uint64) (uint64, uint64, error) {
	if current == math.MaxUint64 {
		return 0, 0, fmt.Errorf("ID allocator exhausted [%w]", models.ErrCounterOverflow)
	}
	return current, current + 1, nil
}

/*
AllocateModelID issue the next model ID and advance the allocator counter.

The advance persists only if the surrounding transaction commits; a failed
registration never consumes an ID.

	@param ctx context.Context - execution context
	@returns the issued model ID
*/
func (d *databaseImpl) AllocateModelID(_ context.Context) (models.ModelID, error) {
	entry, err := d.getAllocatorStateEntry()
	if err != nil {
		return 0, fmt.Errorf("unable to fetch ID allocator entry [%w]", err)
	}

	issued, advanced, err := nextModelID(entry.NextModelID)
	if err != nil {
		return 0, err
	}

	if tmp := d.db.Model(&AllocatorStateDBEntry{}).Where(
		"id = ?", AllocatorStateEntryID,
	).Update("next_model_id", advanced); tmp.Error != nil {
		return 0, fmt.Errorf("failed to advance ID allocator [%w]", tmp.Error)
	}

	return issued, nil
}
