package dialect

import (
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL targets MySQL 8 through go-sql-driver/mysql.
type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ColumnsQuery reports COLUMN_TYPE as data_type so lengths, precision and
// attributes such as unsigned survive into the corrective DDL.
func (MySQL) ColumnsQuery() string {
	return `SELECT
	            COLUMN_NAME,
	            COLUMN_TYPE AS DATA_TYPE,
	            IS_NULLABLE,
	            COLUMN_DEFAULT,
	            CHARACTER_MAXIMUM_LENGTH,
	            NUMERIC_PRECISION,
	            NUMERIC_SCALE
	          FROM information_schema.COLUMNS
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?
	          ORDER BY ORDINAL_POSITION`
}

func (MySQL) PrimaryKeysQuery() string {
	return `SELECT COLUMN_NAME
	          FROM information_schema.KEY_COLUMN_USAGE
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?
	          AND CONSTRAINT_NAME = 'PRIMARY'
	          ORDER BY ORDINAL_POSITION`
}

func (MySQL) ForeignKeysQuery() string {
	return `SELECT
	            COLUMN_NAME,
	            REFERENCED_TABLE_NAME,
	            REFERENCED_COLUMN_NAME
	          FROM information_schema.KEY_COLUMN_USAGE
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?
	          AND REFERENCED_TABLE_NAME IS NOT NULL
	          ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`
}

func (MySQL) TableExistsQuery() string {
	return `SELECT COUNT(*) > 0
	          FROM information_schema.TABLES
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?`
}

func (MySQL) ListTablesQuery() string {
	return `SELECT TABLE_NAME
	          FROM information_schema.TABLES
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_TYPE = 'BASE TABLE'
	          ORDER BY TABLE_NAME`
}

func (MySQL) ColumnTypeQuery() string {
	return `SELECT COLUMN_TYPE
	          FROM information_schema.COLUMNS
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?
	          AND COLUMN_NAME = ?`
}

var (
	mysqlNumericRe  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	mysqlKeywordRe  = regexp.MustCompile(`(?i)^(NULL|TRUE|FALSE|CURRENT_TIMESTAMP(\(\d*\))?|CURRENT_DATE|CURRENT_TIME|LOCALTIMESTAMP|LOCALTIME|NOW\(\))$`)
	mysqlExprPrefix = "("

	// Backslashes only appear doubled, so the literal lexes as one token
	// with or without NO_BACKSLASH_ESCAPES.
	mysqlStringLiteralRe = regexp.MustCompile(`^'(?:[^'\\]|''|\\\\)*'$`)
)

// QuoteLiteral doubles quotes and escapes backslashes.
func (MySQL) QuoteLiteral(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (MySQL) IsStringLiteral(fragment string) bool {
	return mysqlStringLiteralRe.MatchString(fragment)
}

// TransactionalDDL is false: every ALTER commits implicitly.
func (MySQL) TransactionalDDL() bool { return false }

// NormalizeDefault quotes plain string defaults, which MySQL 8 reports
// without quotes. Numbers, keywords and parenthesised expressions pass through.
func (m MySQL) NormalizeDefault(raw string) string {
	switch {
	case mysqlNumericRe.MatchString(raw),
		mysqlKeywordRe.MatchString(raw),
		strings.HasPrefix(raw, mysqlExprPrefix):
		return raw
	default:
		return m.QuoteLiteral(raw)
	}
}

func (m MySQL) AddColumn(table, column, columnDef string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		m.QuoteIdentifier(table), m.QuoteIdentifier(column), columnDef)
}

func (m MySQL) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		m.QuoteIdentifier(table), m.QuoteIdentifier(column))
}

// AlterColumnType uses MODIFY COLUMN, which restates the whole definition:
// nullability and default not repeated here fall back to MySQL's defaults.
func (m MySQL) AlterColumnType(table, column, dataType string) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s",
		m.QuoteIdentifier(table), m.QuoteIdentifier(column), dataType)
}
