package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	d, err := Lookup("Postgres")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.DriverName())

	d, err = Lookup("mysql")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.DriverName())

	_, err = Lookup("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		input   string
		want    string
	}{
		{name: "pg_simple", dialect: Postgres{}, input: "users", want: `"users"`},
		{name: "pg_embedded_quote", dialect: Postgres{}, input: `my"table`, want: `"my""table"`},
		{name: "pg_injection", dialect: Postgres{}, input: `x"; DROP TABLE t; --`, want: `"x""; DROP TABLE t; --"`},
		{name: "mysql_simple", dialect: MySQL{}, input: "users", want: "`users`"},
		{name: "mysql_embedded_backtick", dialect: MySQL{}, input: "my`table", want: "`my``table`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.QuoteIdentifier(tt.input))
		})
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$2", Postgres{}.Placeholder(2))
	assert.Equal(t, "?", MySQL{}.Placeholder(2))
}

func TestAlterTemplates(t *testing.T) {
	pg := Postgres{}
	assert.Equal(t, `ALTER TABLE "orders" ADD COLUMN "note" text NOT NULL`, pg.AddColumn("orders", "note", "text NOT NULL"))
	assert.Equal(t, `ALTER TABLE "orders" DROP COLUMN "note"`, pg.DropColumn("orders", "note"))
	assert.Equal(t, `ALTER TABLE "orders" ALTER COLUMN "amount" TYPE numeric`, pg.AlterColumnType("orders", "amount", "numeric"))

	my := MySQL{}
	assert.Equal(t, "ALTER TABLE `orders` ADD COLUMN `note` text", my.AddColumn("orders", "note", "text"))
	assert.Equal(t, "ALTER TABLE `orders` DROP COLUMN `note`", my.DropColumn("orders", "note"))
	assert.Equal(t, "ALTER TABLE `orders` MODIFY COLUMN `amount` decimal", my.AlterColumnType("orders", "amount", "decimal"))
}

func TestMySQLNormalizeDefault(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "0", want: "0"},
		{raw: "-1.50", want: "-1.50"},
		{raw: "CURRENT_TIMESTAMP", want: "CURRENT_TIMESTAMP"},
		{raw: "current_timestamp(6)", want: "current_timestamp(6)"},
		{raw: "active", want: "'active'"},
		{raw: "it's", want: "'it''s'"},
		{raw: `C:\`, want: `'C:\\'`},
		{raw: `a\'b`, want: `'a\\''b'`},
		{raw: "(rand())", want: "(rand())"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, MySQL{}.NormalizeDefault(tt.raw))
		})
	}
}

func TestPostgresNormalizeDefaultIsIdentity(t *testing.T) {
	assert.Equal(t, "'x'::text", Postgres{}.NormalizeDefault("'x'::text"))
}

func TestMySQLReportsFullColumnType(t *testing.T) {
	assert.Contains(t, MySQL{}.ColumnsQuery(), "COLUMN_TYPE AS DATA_TYPE")
	assert.Contains(t, MySQL{}.ColumnTypeQuery(), "SELECT COLUMN_TYPE")
}

func TestIsStringLiteral(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		input   string
		want    bool
	}{
		{name: "pg_plain", dialect: Postgres{}, input: "'abc'", want: true},
		{name: "pg_doubled_quote", dialect: Postgres{}, input: "'it''s'", want: true},
		{name: "pg_backslash_is_literal", dialect: Postgres{}, input: `'C:\'`, want: true},
		{name: "pg_two_literals", dialect: Postgres{}, input: "'a', 'b'", want: false},
		{name: "mysql_plain", dialect: MySQL{}, input: "'abc'", want: true},
		{name: "mysql_escaped_backslash", dialect: MySQL{}, input: `'C:\\'`, want: true},
		{name: "mysql_lone_backslash", dialect: MySQL{}, input: `'C:\'`, want: false},
		{name: "mysql_escaped_quote", dialect: MySQL{}, input: `'a\''`, want: false},
		{name: "mysql_smuggled_clause", dialect: MySQL{}, input: `'a\'', DROP COLUMN id -- '`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.IsStringLiteral(tt.input))
		})
	}
}

func TestQuoteLiteralRoundTripsThroughIsStringLiteral(t *testing.T) {
	for _, d := range []Dialect{Postgres{}, MySQL{}} {
		for _, v := range []string{"plain", "it's", `C:\`, `a\'', DROP COLUMN id -- `} {
			assert.True(t, d.IsStringLiteral(d.QuoteLiteral(v)), "%s %q", d.Name(), v)
		}
	}
}

func TestTransactionalDDL(t *testing.T) {
	assert.True(t, Postgres{}.TransactionalDDL())
	assert.False(t, MySQL{}.TransactionalDDL())
}
