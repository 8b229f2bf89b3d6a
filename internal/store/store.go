// Package store persists schema snapshots and the append-only change log.
package store

import (
	"context"
	"database/sql"

	"schema-drift-monitor/internal/models"
)

// SnapshotStore keeps the captured schemas of each table.
type SnapshotStore interface {
	// Latest returns the most recent snapshot, or nil when none exists.
	Latest(ctx context.Context, tableName string) (*models.TableSchema, error)
	Put(ctx context.Context, tableName string, schema *models.TableSchema) error
}

// ChangeLog is append-only. Append fills in LogID and LoggedAt.
type ChangeLog interface {
	Append(ctx context.Context, entry *models.ChangeLogEntry) (int64, error)
}

// TxChangeLog is a ChangeLog that can also append inside a caller's
// transaction on the database it writes to.
type TxChangeLog interface {
	ChangeLog
	AppendTx(ctx context.Context, tx *sql.Tx, entry *models.ChangeLogEntry) (int64, error)
	Shares(db *sql.DB) bool
}

// Store bundles both accessors with a shared lifecycle.
type Store interface {
	SnapshotStore
	ChangeLog
	Close() error
}
