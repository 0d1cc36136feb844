package db

import "github.com/alwitt/modelregistry/models"

// --------------------------------------------------------------------------------------
// Registry event log

// RegistryEventDBEntry registry event DB entry
type RegistryEventDBEntry struct {
	models.RegistryEvent
}

// TableName hard code table name
func (RegistryEventDBEntry) TableName() string {
	return "registry_events"
}

// --------------------------------------------------------------------------------------
// Model ID allocator

// AllocatorStateDBEntry ID allocator singleton DB entry
type AllocatorStateDBEntry struct {
	models.AllocatorState
}

// TableName hard code table name
func (AllocatorStateDBEntry) TableName() string {
	return "id_allocator"
}

// --------------------------------------------------------------------------------------
// Models

// ModelDBEntry registered model DB entry
type ModelDBEntry struct {
	models.Model
}

// TableName hard code table name
func (ModelDBEntry) TableName() string {
	return "models"
}

// ModelOwnerIndexDBEntry owner index DB entry
type ModelOwnerIndexDBEntry struct {
	models.ModelOwnerIndex
}

// TableName hard code table name
func (ModelOwnerIndexDBEntry) TableName() string {
	return "model_owner_index"
}

// --------------------------------------------------------------------------------------
// Ledger accounts

// LedgerAccountDBEntry account balance DB entry
type LedgerAccountDBEntry struct {
	models.LedgerAccount
}

// TableName hard code table name
func (LedgerAccountDBEntry) TableName() string {
	return "ledger_accounts"
}
