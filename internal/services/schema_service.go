package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"schema-drift-monitor/internal/dialect"
	"schema-drift-monitor/internal/models"
)

const defaultQueryTimeout = 10 * time.Second

// SchemaService reads live table structure from the database catalog.
type SchemaService struct {
	db           *sql.DB
	dialect      dialect.Dialect
	logger       *slog.Logger
	queryTimeout time.Duration
	now          func() time.Time
}

func NewSchemaService(db *sql.DB, d dialect.Dialect, logger *slog.Logger) *SchemaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaService{
		db:           db,
		dialect:      d,
		logger:       logger,
		queryTimeout: defaultQueryTimeout,
		now:          time.Now,
	}
}

// Describe returns the live structure of tableName. A table without columns
// is reported as *models.NotFoundError.
func (s *SchemaService) Describe(ctx context.Context, tableName string) (*models.TableSchema, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	columns, err := s.getColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, &models.NotFoundError{Table: tableName}
	}

	primaryKeys, err := s.getPrimaryKeys(ctx, tableName)
	if err != nil {
		return nil, err
	}

	foreignKeys, err := s.GetForeignKeys(ctx, tableName)
	if err != nil {
		return nil, err
	}

	return &models.TableSchema{
		TableName:   tableName,
		Columns:     columns,
		PrimaryKeys: primaryKeys,
		ForeignKeys: foreignKeys,
		CapturedAt:  s.now().UTC(),
	}, nil
}

func (s *SchemaService) getColumns(ctx context.Context, tableName string) ([]models.ColumnDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.ColumnsQuery(), tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []models.ColumnDescriptor
	for rows.Next() {
		var (
			col                         models.ColumnDescriptor
			isNullable                  string
			columnDefault               sql.NullString
			maxLength, precision, scale sql.NullInt64
		)
		err := rows.Scan(
			&col.Name,
			&col.DataType,
			&isNullable,
			&columnDefault,
			&maxLength,
			&precision,
			&scale,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", tableName, err)
		}

		col.IsNullable = isNullable == "YES"
		if columnDefault.Valid {
			normalized := s.dialect.NormalizeDefault(columnDefault.String)
			col.Default = &normalized
		}
		col.MaxLength = nullableInt(maxLength)
		col.NumericPrecision = nullableInt(precision)
		col.NumericScale = nullableInt(scale)

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (s *SchemaService) getPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.PrimaryKeysQuery(), tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary keys for %s: %w", tableName, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, err
		}
		keys = append(keys, column)
	}

	return keys, rows.Err()
}

// GetForeignKeys returns one record per column participating in a foreign key.
func (s *SchemaService) GetForeignKeys(ctx context.Context, tableName string) ([]models.ForeignKey, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.ForeignKeysQuery(), tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys for %s: %w", tableName, err)
	}
	defer rows.Close()

	var fks []models.ForeignKey
	for rows.Next() {
		var fk models.ForeignKey
		err := rows.Scan(
			&fk.ColumnName,
			&fk.ForeignTableName,
			&fk.ForeignColumnName,
		)
		if err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}

	return fks, rows.Err()
}

// Probe reports whether tableName exists. Lookup failures yield
// PresenceUnknown together with the error.
func (s *SchemaService) Probe(ctx context.Context, tableName string) (models.Presence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var exists bool
	if err := s.db.QueryRowContext(ctx, s.dialect.TableExistsQuery(), tableName).Scan(&exists); err != nil {
		return models.PresenceUnknown, fmt.Errorf("failed to check table %s: %w", tableName, err)
	}
	if exists {
		return models.PresencePresent, nil
	}
	return models.PresenceAbsent, nil
}

// Exists never fails: an unknown result counts as absent.
func (s *SchemaService) Exists(ctx context.Context, tableName string) bool {
	presence, err := s.Probe(ctx, tableName)
	if err != nil {
		s.logger.Error("error checking table existence", "table", tableName, "error", err)
	}
	return presence == models.PresencePresent
}

// ListTables returns the base tables of the connection's current schema.
func (s *SchemaService) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.dialect.ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
