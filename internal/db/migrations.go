package db

import (
	"errors"

	"gorm.io/gorm"
)

// SyncSchema creates/updates tables and indexes from models. Table
// structure changes do not use versioned migrations.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(
		&User{},
		&Operator{},
		&BlockedUser{},
		&LastCommandTime{},
		&ConfigKV{},
	); err != nil {
		return err
	}
	return nil
}

// MigrateUp syncs schema. Kept as its own entry point so the CLI's
// `migrate up` subcommand and OpenSQLiteWithMigrations share one path.
func MigrateUp(db *gorm.DB) error {
	return SyncSchema(db)
}
