// Package main - Atlas GORM migration support binary
package main

import (
	"fmt"

	"ariga.io/atlas-provider-gorm/gormschema"
	"github.com/alwitt/modelregistry/db"
	"github.com/apex/log"
)

func main() {
	stmts, err := gormschema.New("postgres").Load(
		&db.RegistryEventDBEntry{},
		&db.AllocatorStateDBEntry{},
		&db.ModelDBEntry{},
		&db.ModelOwnerIndexDBEntry{},
		&db.LedgerAccountDBEntry{},
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to load GORM models")
	}
	fmt.Printf("%s\n", stmts)
}
