package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Models to lista tabel zarządzanych przez AutoMigrate.
func Models() []any {
	return []any{
		&Product{},
		&Variation{},
		&Category{},
		&Media{},
		&KV{},
		&ImportIssue{},
		&ImportFile{},
		&ProgressRecord{},
	}
}

// Migrate tworzy/aktualizuje schemat bazy.
func (h *Handle) Migrate() error {
	return Migrate(h.DB)
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}
	return nil
}
