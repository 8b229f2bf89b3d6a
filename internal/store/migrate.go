package store

import (
	"database/sql"
	"embed"
	"fmt"
	"path"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var embedMigrations embed.FS

// RunMigrations creates or upgrades the snapshot and change-log tables.
func RunMigrations(db *sql.DB, flavor Flavor) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(flavor)); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, path.Join("migrations", string(flavor))); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
