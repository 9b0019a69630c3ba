package database

import (
	"context"
	"fmt"
	"log/slog"

	"project0/internal/config"
	"project0/internal/middleware"

	"gorm.io/gorm"
)

// TableStatus reports whether a managed table exists.
type TableStatus struct {
	Table  string
	Exists bool
}

// SchemaStatus summarises the managed schema for the migrate command.
type SchemaStatus struct {
	Driver      string
	Environment string
	Tables      []TableStatus
	Missing     int
}

// ApplySchema creates or updates every table in PersistentModels.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	middleware.Logger.Info("Running GORM AutoMigrate",
		slog.String("driver", db.Dialector.Name()),
		slog.String("env", cfg.Env),
	)
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus lists the managed tables and whether each one exists yet.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	status := &SchemaStatus{
		Driver:      db.Dialector.Name(),
		Environment: cfg.Env,
	}

	migrator := db.WithContext(ctx).Migrator()
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}
		exists := migrator.HasTable(model)
		if !exists {
			status.Missing++
		}
		status.Tables = append(status.Tables, TableStatus{Table: stmt.Schema.Table, Exists: exists})
	}
	return status, nil
}
