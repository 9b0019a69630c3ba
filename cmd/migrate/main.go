// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"project0/internal/config"
	"project0/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <create-db|auto|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	if cmd == "create-db" {
		created, err := database.EnsureDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		log.Printf("driver=%s database=%s created=%t", cfg.DBDriver, cfg.DBName, created)
		return nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch cmd {
	case "auto":
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		log.Printf("driver=%s env=%s tables=%d missing=%d", status.Driver, status.Environment, len(status.Tables), status.Missing)
		for _, t := range status.Tables {
			if !t.Exists {
				log.Printf("missing: %s", t.Table)
			}
		}
	default:
		return usage()
	}

	return nil
}
