package services

import "schema-drift-monitor/internal/models"

// DiffSchemas classifies the column-level differences from oldSchema to
// newSchema. Results are grouped as added, removed, then modified; within a
// group they follow ordinal order, so repeated runs produce identical logs.
// A nil oldSchema means there is nothing to compare against and yields no
// changes.
func DiffSchemas(oldSchema, newSchema *models.TableSchema) []models.Change {
	if oldSchema == nil || newSchema == nil {
		return nil
	}

	oldCols := make(map[string]models.ColumnDescriptor, len(oldSchema.Columns))
	for _, col := range oldSchema.Columns {
		oldCols[col.Name] = col
	}
	newCols := make(map[string]models.ColumnDescriptor, len(newSchema.Columns))
	for _, col := range newSchema.Columns {
		newCols[col.Name] = col
	}

	var changes []models.Change

	for _, col := range newSchema.Columns {
		if _, ok := oldCols[col.Name]; !ok {
			changes = append(changes, models.ColumnAdded{
				ColumnName: col.Name,
				DataType:   col.DataType,
				IsNullable: col.IsNullable,
				Default:    col.Default,
			})
		}
	}

	for _, col := range oldSchema.Columns {
		if _, ok := newCols[col.Name]; !ok {
			changes = append(changes, models.ColumnRemoved{ColumnName: col.Name})
		}
	}

	for _, col := range newSchema.Columns {
		old, ok := oldCols[col.Name]
		if !ok || old.Equal(col) {
			continue
		}
		changes = append(changes, models.ColumnModified{
			ColumnName: col.Name,
			OldType:    old.DataType,
			NewType:    col.DataType,
		})
	}

	return changes
}
