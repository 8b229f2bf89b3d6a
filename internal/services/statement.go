package services

import (
	"fmt"
	"regexp"
	"strings"

	"schema-drift-monitor/internal/dialect"
	"schema-drift-monitor/internal/models"
)

// Statement is one corrective DDL statement ready to execute.
type Statement struct {
	SQL    string
	Table  string
	Column string
	Kind   models.ChangeKind
}

// StatementBuilder turns a change into a single ALTER TABLE statement.
// Identifiers are quoted; type and default fragments are inserted verbatim
// after passing the allow-list below.
type StatementBuilder struct {
	dialect dialect.Dialect
}

func NewStatementBuilder(d dialect.Dialect) *StatementBuilder {
	return &StatementBuilder{dialect: d}
}

func (b *StatementBuilder) Build(tableName string, change models.Change) (Statement, error) {
	if change == nil {
		return Statement{}, &models.UnsupportedChangeError{Reason: "nil change"}
	}
	if tableName == "" || change.Column() == "" {
		return Statement{}, &models.UnsupportedChangeError{Kind: change.Kind(), Reason: "table and column names are required"}
	}

	stmt := Statement{Table: tableName, Column: change.Column(), Kind: change.Kind()}

	switch c := change.(type) {
	case models.ColumnAdded:
		if err := ValidateColumnType(c.DataType); err != nil {
			return Statement{}, &models.UnsupportedChangeError{Kind: c.Kind(), Reason: err.Error()}
		}
		parts := []string{c.DataType}
		if !c.IsNullable {
			parts = append(parts, "NOT NULL")
		}
		if c.Default != nil && *c.Default != "" {
			if err := ValidateDefault(b.dialect, *c.Default); err != nil {
				return Statement{}, &models.UnsupportedChangeError{Kind: c.Kind(), Reason: err.Error()}
			}
			parts = append(parts, "DEFAULT "+*c.Default)
		}
		stmt.SQL = b.dialect.AddColumn(tableName, c.ColumnName, strings.Join(parts, " "))

	case models.ColumnRemoved:
		stmt.SQL = b.dialect.DropColumn(tableName, c.ColumnName)

	case models.ColumnModified:
		if err := ValidateColumnType(c.NewType); err != nil {
			return Statement{}, &models.UnsupportedChangeError{Kind: c.Kind(), Reason: err.Error()}
		}
		stmt.SQL = b.dialect.AlterColumnType(tableName, c.ColumnName, c.NewType)

	default:
		return Statement{}, &models.UnsupportedChangeError{Kind: change.Kind(), Reason: fmt.Sprintf("no statement template for %T", change)}
	}

	return stmt, nil
}

// knownTypes lists the base type names reported by information_schema on
// Postgres and MySQL that can be restated in DDL as-is.
var knownTypes = map[string]bool{
	"smallint": true, "integer": true, "int": true, "bigint": true,
	"tinyint": true, "mediumint": true,
	"numeric": true, "decimal": true, "real": true, "double precision": true,
	"double": true, "float": true,
	"boolean": true, "bool": true, "bit": true, "bit varying": true,
	"character varying": true, "varchar": true, "character": true, "char": true,
	"text": true, "tinytext": true, "mediumtext": true, "longtext": true,
	"bytea": true, "blob": true, "tinyblob": true, "mediumblob": true, "longblob": true,
	"binary": true, "varbinary": true,
	"date": true, "time": true, "timestamp": true, "datetime": true, "year": true,
	"interval": true, "timestamptz": true, "timetz": true,
	"timestamp without time zone": true, "timestamp with time zone": true,
	"time without time zone": true, "time with time zone": true,
	"uuid": true, "json": true, "jsonb": true, "xml": true,
	"inet": true, "cidr": true, "macaddr": true, "money": true,
	"tsvector": true, "tsquery": true, "point": true,
}

// numericTypes may carry MySQL's integer attributes.
var numericTypes = map[string]bool{
	"tinyint": true, "smallint": true, "mediumint": true, "int": true, "integer": true, "bigint": true,
	"decimal": true, "numeric": true, "float": true, "double": true, "real": true,
}

const maxTypeLen = 255

var (
	// typeRe splits a type into base name, optional (p[,s]) and optional [].
	typeRe        = regexp.MustCompile(`^([a-z][a-z ]*[a-z]|[a-z])\s*(\(\s*\d+\s*(?:,\s*\d+\s*)?\))?(\[\])?$`)
	// numericAttrRe matches trailing unsigned, signed and zerofill attributes.
	numericAttrRe = regexp.MustCompile(`(?:\s+(?:unsigned|signed|zerofill))+$`)
	// enumTypeRe matches MySQL enum and set members written the way
	// COLUMN_TYPE reports them.
	enumTypeRe    = regexp.MustCompile(`^(?i:enum|set)\('(?:[^'\\]|''|\\\\)*'(?:,'(?:[^'\\]|''|\\\\)*')*\)$`)
)

// ValidateColumnType accepts known type names with optional precision/scale
// and an optional array suffix. Numeric types may carry unsigned, signed or
// zerofill; enum and set take a list of quoted members.
func ValidateColumnType(dataType string) error {
	if dataType == "" {
		return fmt.Errorf("column type is required")
	}
	if len(dataType) > maxTypeLen {
		return fmt.Errorf("column type must be at most %d characters", maxTypeLen)
	}

	if enumTypeRe.MatchString(strings.TrimSpace(dataType)) {
		return nil
	}

	normalized := strings.ToLower(strings.TrimSpace(dataType))
	attrs := numericAttrRe.FindString(normalized)
	normalized = strings.TrimSuffix(normalized, attrs)

	m := typeRe.FindStringSubmatch(normalized)
	if m == nil {
		return fmt.Errorf("column type %q is not a recognized type pattern", dataType)
	}
	base := strings.Join(strings.Fields(m[1]), " ")
	if !knownTypes[base] {
		return fmt.Errorf("column type %q is not an allowed type", dataType)
	}
	if attrs != "" && (!numericTypes[base] || m[3] != "") {
		return fmt.Errorf("column type %q carries attributes on a non-numeric type", dataType)
	}
	return nil
}

var (
	nullOrBoolRe  = regexp.MustCompile(`(?i)^(NULL|TRUE|FALSE)$`)
	numberRe      = regexp.MustCompile(`^\(?-?\d+(\.\d+)?\)?$`)
	timeKeywordRe = regexp.MustCompile(`(?i)^(CURRENT_TIMESTAMP(\(\d*\))?|CURRENT_DATE|CURRENT_TIME|LOCALTIMESTAMP|LOCALTIME|now\(\))$`)
	castSuffixRe  = regexp.MustCompile(`^(.*?)::([a-zA-Z][a-zA-Z0-9 ()\[\],]*)$`)
)

// ValidateDefault accepts literal-only defaults: NULL, booleans, numbers,
// single-quoted strings (optionally cast with ::type) and niladic time
// keywords. String literals are checked against the escaping rules of d.
func ValidateDefault(d dialect.Dialect, def string) error {
	def = strings.TrimSpace(def)
	if def == "" {
		return fmt.Errorf("default is empty")
	}

	if isLiteral(d, def) {
		return nil
	}
	if m := castSuffixRe.FindStringSubmatch(def); m != nil {
		if err := ValidateColumnType(m[2]); err != nil {
			return fmt.Errorf("default cast: %w", err)
		}
		if isLiteral(d, m[1]) {
			return nil
		}
	}
	return fmt.Errorf("default %q is not a literal", def)
}

func isLiteral(d dialect.Dialect, value string) bool {
	return nullOrBoolRe.MatchString(value) ||
		numberRe.MatchString(value) ||
		timeKeywordRe.MatchString(value) ||
		d.IsStringLiteral(value)
}
