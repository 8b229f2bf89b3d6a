package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schema-drift-monitor/internal/models"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func table(cols ...models.ColumnDescriptor) *models.TableSchema {
	return &models.TableSchema{TableName: "orders", Columns: cols}
}

func TestDiffSchemasIdenticalSchemasYieldNothing(t *testing.T) {
	s := table(
		models.ColumnDescriptor{Name: "id", DataType: "integer"},
		models.ColumnDescriptor{Name: "note", DataType: "text", IsNullable: true, Default: strPtr("'n/a'::text")},
	)
	assert.Empty(t, DiffSchemas(s, s))
}

func TestDiffSchemasWithoutPreviousSnapshot(t *testing.T) {
	assert.Nil(t, DiffSchemas(nil, table(models.ColumnDescriptor{Name: "id", DataType: "integer"})))
}

func TestDiffSchemasAddedColumn(t *testing.T) {
	oldSchema := table(models.ColumnDescriptor{Name: "id", DataType: "integer"})
	newSchema := table(
		models.ColumnDescriptor{Name: "id", DataType: "integer"},
		models.ColumnDescriptor{Name: "name", DataType: "character varying", IsNullable: true, MaxLength: intPtr(100)},
	)

	changes := DiffSchemas(oldSchema, newSchema)

	require.Len(t, changes, 1)
	assert.Equal(t, models.ColumnAdded{ColumnName: "name", DataType: "character varying", IsNullable: true}, changes[0])
}

func TestDiffSchemasRemovedColumn(t *testing.T) {
	oldSchema := table(
		models.ColumnDescriptor{Name: "id", DataType: "integer"},
		models.ColumnDescriptor{Name: "legacy_flag", DataType: "boolean", IsNullable: true},
	)
	newSchema := table(models.ColumnDescriptor{Name: "id", DataType: "integer"})

	changes := DiffSchemas(oldSchema, newSchema)

	require.Len(t, changes, 1)
	assert.Equal(t, models.ColumnRemoved{ColumnName: "legacy_flag"}, changes[0])
}

func TestDiffSchemasAddRemoveSymmetry(t *testing.T) {
	a := table(
		models.ColumnDescriptor{Name: "id", DataType: "integer"},
		models.ColumnDescriptor{Name: "fax", DataType: "text", IsNullable: true},
	)
	b := table(
		models.ColumnDescriptor{Name: "id", DataType: "integer"},
		models.ColumnDescriptor{Name: "email", DataType: "text"},
	)

	forward := DiffSchemas(a, b)
	backward := DiffSchemas(b, a)

	require.Len(t, forward, 2)
	require.Len(t, backward, 2)
	assert.Equal(t, models.ColumnAdded{ColumnName: "email", DataType: "text"}, forward[0])
	assert.Equal(t, models.ColumnRemoved{ColumnName: "fax"}, forward[1])
	assert.Equal(t, models.ColumnAdded{ColumnName: "fax", DataType: "text", IsNullable: true}, backward[0])
	assert.Equal(t, models.ColumnRemoved{ColumnName: "email"}, backward[1])
}

func TestDiffSchemasPrecisionOnlyChangeIsModified(t *testing.T) {
	oldSchema := table(models.ColumnDescriptor{Name: "amount", DataType: "numeric", NumericPrecision: intPtr(10), NumericScale: intPtr(2)})
	newSchema := table(models.ColumnDescriptor{Name: "amount", DataType: "numeric", NumericPrecision: intPtr(12), NumericScale: intPtr(2)})

	changes := DiffSchemas(oldSchema, newSchema)

	require.Len(t, changes, 1)
	assert.Equal(t, models.ColumnModified{ColumnName: "amount", OldType: "numeric", NewType: "numeric"}, changes[0])
}

func TestDiffSchemasDefaultChangeIsModified(t *testing.T) {
	oldSchema := table(models.ColumnDescriptor{Name: "status", DataType: "text", Default: strPtr("'new'::text")})
	newSchema := table(models.ColumnDescriptor{Name: "status", DataType: "text", Default: strPtr("'pending'::text")})

	changes := DiffSchemas(oldSchema, newSchema)

	require.Len(t, changes, 1)
	assert.Equal(t, models.KindColumnModified, changes[0].Kind())
}

func TestDiffSchemasOrdering(t *testing.T) {
	oldSchema := table(
		models.ColumnDescriptor{Name: "id", DataType: "integer"},
		models.ColumnDescriptor{Name: "b_old", DataType: "text"},
		models.ColumnDescriptor{Name: "qty", DataType: "integer"},
		models.ColumnDescriptor{Name: "a_old", DataType: "text"},
		models.ColumnDescriptor{Name: "price", DataType: "integer"},
	)
	newSchema := table(
		models.ColumnDescriptor{Name: "id", DataType: "integer"},
		models.ColumnDescriptor{Name: "z_new", DataType: "text"},
		models.ColumnDescriptor{Name: "price", DataType: "numeric"},
		models.ColumnDescriptor{Name: "qty", DataType: "bigint"},
		models.ColumnDescriptor{Name: "a_new", DataType: "text"},
	)

	var got []string
	for _, c := range DiffSchemas(oldSchema, newSchema) {
		got = append(got, string(c.Kind())+":"+c.Column())
	}

	assert.Equal(t, []string{
		"column_added:z_new",
		"column_added:a_new",
		"column_removed:b_old",
		"column_removed:a_old",
		"column_modified:price",
		"column_modified:qty",
	}, got)
}
