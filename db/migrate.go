package db

import (
	"context"

	"gorm.io/gorm"
)

/*
DefineTables prepare a database with the registry tables

Embedders call this once against a fresh database before building a registry
on top of it. Safe to rerun; existing tables are left as is.

	@param db *gorm.DB - the database handle
	@return whether successful
*/
func DefineTables(_ context.Context, db *gorm.DB) error {
	return db.AutoMigrate(
		RegistryEventDBEntry{},
		AllocatorStateDBEntry{},
		ModelDBEntry{},
		ModelOwnerIndexDBEntry{},
		LedgerAccountDBEntry{},
	)
}
