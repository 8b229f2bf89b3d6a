package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"schema-drift-monitor/internal/models"
)

// Flavor selects the SQL syntax and migrations used by SQLStore. Its value
// doubles as the goose dialect name.
type Flavor string

const (
	FlavorPostgres Flavor = "postgres"
	FlavorMySQL    Flavor = "mysql"
	FlavorSQLite   Flavor = "sqlite3"
)

func ParseFlavor(name string) (Flavor, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return FlavorPostgres, nil
	case "mysql":
		return FlavorMySQL, nil
	case "sqlite", "sqlite3":
		return FlavorSQLite, nil
	default:
		return "", fmt.Errorf("unsupported store flavor: %s", name)
	}
}

func (f Flavor) placeholder(n int) string {
	if f == FlavorPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (f Flavor) supportsReturning() bool {
	return f != FlavorMySQL
}

// SQLStore keeps snapshots in table_snapshots and the change log in
// schema_change_log.
type SQLStore struct {
	db     *sql.DB
	flavor Flavor
	owned  bool
	now    func() time.Time
}

// NewSQLStore uses db without taking ownership of it.
func NewSQLStore(db *sql.DB, flavor Flavor) *SQLStore {
	return &SQLStore{db: db, flavor: flavor, now: time.Now}
}

// OpenSQLiteStore opens (and migrates) a SQLite file owned by the store.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if err := RunMigrations(db, FlavorSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := NewSQLStore(db, FlavorSQLite)
	s.owned = true
	return s, nil
}

func (s *SQLStore) Latest(ctx context.Context, tableName string) (*models.TableSchema, error) {
	query := fmt.Sprintf(`SELECT snapshot_data
	          FROM table_snapshots
	          WHERE table_name = %s
	          ORDER BY snapshot_id DESC
	          LIMIT 1`, s.flavor.placeholder(1))

	var data []byte
	err := s.db.QueryRowContext(ctx, query, tableName).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", tableName, err)
	}

	var schema models.TableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", tableName, err)
	}
	return &schema, nil
}

func (s *SQLStore) Put(ctx context.Context, tableName string, schema *models.TableSchema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", tableName, err)
	}

	query := fmt.Sprintf(`INSERT INTO table_snapshots (table_name, snapshot_data, created_at)
	          VALUES (%s, %s, %s)`,
		s.flavor.placeholder(1), s.flavor.placeholder(2), s.flavor.placeholder(3))

	if _, err := s.db.ExecContext(ctx, query, tableName, string(data), s.now().UTC()); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", tableName, err)
	}
	return nil
}

func (s *SQLStore) Append(ctx context.Context, entry *models.ChangeLogEntry) (int64, error) {
	return s.append(ctx, s.db, entry)
}

// AppendTx writes the entry inside tx, so it commits or rolls back with the
// statements of that transaction.
func (s *SQLStore) AppendTx(ctx context.Context, tx *sql.Tx, entry *models.ChangeLogEntry) (int64, error) {
	return s.append(ctx, tx, entry)
}

// Shares reports whether the store writes through db.
func (s *SQLStore) Shares(db *sql.DB) bool {
	return s.db == db
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) append(ctx context.Context, q queryer, entry *models.ChangeLogEntry) (int64, error) {
	entry.LoggedAt = s.now().UTC()

	query := fmt.Sprintf(`INSERT INTO schema_change_log
	          (table_name, change_type, phase, change_details, logged_at)
	          VALUES (%s, %s, %s, %s, %s)`,
		s.flavor.placeholder(1), s.flavor.placeholder(2), s.flavor.placeholder(3),
		s.flavor.placeholder(4), s.flavor.placeholder(5))
	args := []any{entry.TableName, string(entry.ChangeType), string(entry.Phase), string(entry.ChangeDetails), entry.LoggedAt}

	if s.flavor.supportsReturning() {
		if err := q.QueryRowContext(ctx, query+" RETURNING log_id", args...).Scan(&entry.LogID); err != nil {
			return 0, fmt.Errorf("failed to log change for %s: %w", entry.TableName, err)
		}
		return entry.LogID, nil
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to log change for %s: %w", entry.TableName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read log id for %s: %w", entry.TableName, err)
	}
	entry.LogID = id
	return id, nil
}

// Entries returns the change log of a table in append order.
func (s *SQLStore) Entries(ctx context.Context, tableName string) ([]models.ChangeLogEntry, error) {
	query := fmt.Sprintf(`SELECT log_id, table_name, change_type, phase, change_details
	          FROM schema_change_log
	          WHERE table_name = %s
	          ORDER BY log_id`, s.flavor.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read change log for %s: %w", tableName, err)
	}
	defer rows.Close()

	var entries []models.ChangeLogEntry
	for rows.Next() {
		var (
			e       models.ChangeLogEntry
			details []byte
		)
		if err := rows.Scan(&e.LogID, &e.TableName, &e.ChangeType, &e.Phase, &details); err != nil {
			return nil, err
		}
		e.ChangeDetails = json.RawMessage(details)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database only when the store opened it.
func (s *SQLStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
