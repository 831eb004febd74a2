package database

import (
	"context"
	"embed"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations applies the schema if it has not been applied yet
func RunMigrations(ctx context.Context, db *pgxpool.Pool) error {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'users'
		)
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}

	if exists {
		log.Println("[OK] Database schema already present, skipping migrations")
		return nil
	}

	schema, err := migrationFiles.ReadFile("migrations/001_init_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("[OK] Database migrations applied")
	return nil
}
