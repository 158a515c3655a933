// Package db owns the embedded goose migrations for the history database.
package db

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"

	_ "github.com/navidrome/renderd/db/migrations"
)

//go:embed migrations/*.go
var embedMigrations embed.FS

const migrationsFolder = "migrations"

// Migrate runs all pending migrations. The migration sources are embedded
// so the binary migrates itself regardless of working directory.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, migrationsFolder)
}
