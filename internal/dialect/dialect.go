// Package dialect holds the catalog queries and DDL templates that differ
// between the supported database engines.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect describes one SQL engine. Catalog queries take the table name as
// their first argument and, where noted, the column name as the second.
type Dialect interface {
	Name() string
	DriverName() string
	Placeholder(n int) string
	QuoteIdentifier(name string) string

	// ColumnsQuery selects name, data_type, is_nullable, default,
	// max length, numeric precision and numeric scale in ordinal order.
	ColumnsQuery() string
	PrimaryKeysQuery() string
	// ForeignKeysQuery selects column, referenced table and referenced column,
	// one row per participating column.
	ForeignKeysQuery() string
	TableExistsQuery() string
	ListTablesQuery() string
	// ColumnTypeQuery takes table and column and selects data_type.
	ColumnTypeQuery() string

	// NormalizeDefault turns a raw catalog default into a SQL fragment.
	NormalizeDefault(raw string) string
	QuoteLiteral(value string) string
	// IsStringLiteral reports whether fragment is exactly one string literal
	// under this engine's escaping rules.
	IsStringLiteral(fragment string) bool
	// TransactionalDDL reports whether ALTER TABLE takes part in the
	// surrounding transaction.
	TransactionalDDL() bool

	AddColumn(table, column, columnDef string) string
	DropColumn(table, column string) string
	AlterColumnType(table, column, dataType string) string
}

var registry = map[string]Dialect{
	"postgres": Postgres{},
	"mysql":    MySQL{},
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", name)
	}
	return d, nil
}
