// Package modelregistry - deterministic, transaction-ordered registry of AI model descriptors
package modelregistry

import (
	"context"
	"fmt"

	"github.com/alwitt/modelregistry/db"
	"github.com/alwitt/modelregistry/registry"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

/*
NewModelRegistry initialize a model registry instance.

Each instance is backed by a SQL database; every registry command applies as
one database transaction, so a failed command leaves no partial writes behind.

	@param ctx context.Context - execution context
	@param dbDialector gorm.Dialector - GORM dialector
	@param dbLogLevel logger.LogLevel - SQL log level
	@param params registry.Params - registry operating parameters
	@param sequence registry.SequenceSource - host sequence counter
	@param ratingPolicy registry.RatingPolicy - rating admission policy; nil accepts all raters
	@param onEvent registry.EventCallback - invoked per event after commit; optional
	@returns new registry instance
*/
func NewModelRegistry(
	ctx context.Context,
	dbDialector gorm.Dialector,
	dbLogLevel logger.LogLevel,
	params registry.Params,
	sequence registry.SequenceSource,
	ratingPolicy registry.RatingPolicy,
	onEvent registry.EventCallback,
) (registry.ModelRegistry, error) {
	// Prepare persistence
	persistence, err := db.NewConnection(dbDialector, dbLogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized persistence client [%w]", err)
	}

	dispatcher, err := registry.NewModelRegistry(
		ctx, persistence, params, sequence, ratingPolicy, onEvent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized model registry [%w]", err)
	}

	return dispatcher, nil
}
