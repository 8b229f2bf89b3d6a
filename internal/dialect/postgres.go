package dialect

import (
	"fmt"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres targets PostgreSQL through the pgx database/sql driver.
type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Postgres) ColumnsQuery() string {
	return `SELECT
	            column_name,
	            data_type,
	            is_nullable,
	            column_default,
	            character_maximum_length,
	            numeric_precision,
	            numeric_scale
	          FROM information_schema.columns
	          WHERE table_schema = current_schema()
	          AND table_name = $1
	          ORDER BY ordinal_position`
}

func (Postgres) PrimaryKeysQuery() string {
	return `SELECT kcu.column_name
	          FROM information_schema.table_constraints tc
	          JOIN information_schema.key_column_usage kcu
	            ON tc.constraint_name = kcu.constraint_name
	            AND tc.table_schema = kcu.table_schema
	          WHERE tc.table_schema = current_schema()
	          AND tc.table_name = $1
	          AND tc.constraint_type = 'PRIMARY KEY'
	          ORDER BY kcu.ordinal_position`
}

// ForeignKeysQuery pairs referencing and referenced columns by position, so a
// composite key yields exactly one row per column.
func (Postgres) ForeignKeysQuery() string {
	return `SELECT
	            kcu.column_name,
	            ref.table_name AS foreign_table_name,
	            ref.column_name AS foreign_column_name
	          FROM information_schema.table_constraints tc
	          JOIN information_schema.key_column_usage kcu
	            ON tc.constraint_name = kcu.constraint_name
	            AND tc.table_schema = kcu.table_schema
	          JOIN information_schema.referential_constraints rc
	            ON rc.constraint_name = tc.constraint_name
	            AND rc.constraint_schema = tc.table_schema
	          JOIN information_schema.key_column_usage ref
	            ON ref.constraint_name = rc.unique_constraint_name
	            AND ref.constraint_schema = rc.unique_constraint_schema
	            AND ref.ordinal_position = kcu.position_in_unique_constraint
	          WHERE tc.table_schema = current_schema()
	          AND tc.table_name = $1
	          AND tc.constraint_type = 'FOREIGN KEY'
	          ORDER BY tc.constraint_name, kcu.ordinal_position`
}

func (Postgres) TableExistsQuery() string {
	return `SELECT EXISTS (
	            SELECT 1 FROM information_schema.tables
	            WHERE table_schema = current_schema()
	            AND table_name = $1
	          )`
}

func (Postgres) ListTablesQuery() string {
	return `SELECT table_name
	          FROM information_schema.tables
	          WHERE table_schema = current_schema()
	          AND table_type = 'BASE TABLE'
	          ORDER BY table_name`
}

func (Postgres) ColumnTypeQuery() string {
	return `SELECT data_type
	          FROM information_schema.columns
	          WHERE table_schema = current_schema()
	          AND table_name = $1
	          AND column_name = $2`
}

// pgStringLiteralRe assumes standard_conforming_strings, the default since 9.1.
var pgStringLiteralRe = regexp.MustCompile(`^'(?:[^']|'')*'$`)

// QuoteLiteral wraps value in single quotes, doubling embedded quotes.
func (Postgres) QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (Postgres) IsStringLiteral(fragment string) bool {
	return pgStringLiteralRe.MatchString(fragment)
}

func (Postgres) TransactionalDDL() bool { return true }

// NormalizeDefault is the identity: Postgres already reports defaults as
// expressions such as 'x'::text.
func (Postgres) NormalizeDefault(raw string) string { return raw }

func (p Postgres) AddColumn(table, column, columnDef string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		p.QuoteIdentifier(table), p.QuoteIdentifier(column), columnDef)
}

func (p Postgres) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		p.QuoteIdentifier(table), p.QuoteIdentifier(column))
}

func (p Postgres) AlterColumnType(table, column, dataType string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
		p.QuoteIdentifier(table), p.QuoteIdentifier(column), dataType)
}
