package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	"project0/internal/config"
	"project0/internal/middleware"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for the maintenance connection
)

var dbNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// maintenanceDSN points at the server's "postgres" database so the target
// database can be created before anything connects to it.
func maintenanceDSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     cfg.DBHost + ":" + cfg.DBPort,
		Path:     "/postgres",
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// EnsureDatabase creates the configured Postgres database when it does not
// exist. It reports whether the database was created. SQLite creates its
// file on open, so nothing happens there.
func EnsureDatabase(ctx context.Context, cfg *config.Config) (bool, error) {
	if cfg.DBDriver != "postgres" {
		return false, nil
	}
	if !dbNamePattern.MatchString(cfg.DBName) {
		return false, fmt.Errorf("invalid DB_NAME %q", cfg.DBName)
	}

	sqlDB, err := sql.Open("pgx", maintenanceDSN(cfg))
	if err != nil {
		return false, fmt.Errorf("open maintenance db: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var exists bool
	if err := sqlDB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, cfg.DBName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check database: %w", err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE cannot take a bind parameter; the name is validated above.
	if _, err := sqlDB.ExecContext(ctx, `CREATE DATABASE "`+cfg.DBName+`"`); err != nil {
		return false, fmt.Errorf("create database %s: %w", cfg.DBName, err)
	}
	middleware.Logger.Info("database created", slog.String("name", cfg.DBName))
	return true, nil
}
