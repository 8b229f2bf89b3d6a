package models

import "time"

// ColumnDescriptor describes one column as read from the catalog.
type ColumnDescriptor struct {
	Name             string  `json:"name"`
	DataType         string  `json:"data_type"`
	IsNullable       bool    `json:"is_nullable"`
	Default          *string `json:"default"`
	MaxLength        *int    `json:"max_length"`
	NumericPrecision *int    `json:"numeric_precision"`
	NumericScale     *int    `json:"numeric_scale"`
}

// Equal reports whether every field of c and o matches.
func (c ColumnDescriptor) Equal(o ColumnDescriptor) bool {
	return c.Name == o.Name &&
		c.DataType == o.DataType &&
		c.IsNullable == o.IsNullable &&
		equalPtr(c.Default, o.Default) &&
		equalPtr(c.MaxLength, o.MaxLength) &&
		equalPtr(c.NumericPrecision, o.NumericPrecision) &&
		equalPtr(c.NumericScale, o.NumericScale)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type ForeignKey struct {
	ColumnName        string `json:"column_name"`
	ForeignTableName  string `json:"foreign_table_name"`
	ForeignColumnName string `json:"foreign_column_name"`
}

// TableSchema is a point-in-time snapshot of a table's structure.
// Columns keep ordinal order.
type TableSchema struct {
	TableName   string             `json:"table_name"`
	Columns     []ColumnDescriptor `json:"columns"`
	PrimaryKeys []string           `json:"primary_keys"`
	ForeignKeys []ForeignKey       `json:"foreign_keys"`
	CapturedAt  time.Time          `json:"captured_at"`
}

// Column returns the descriptor with the given name.
func (s *TableSchema) Column(name string) (ColumnDescriptor, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnDescriptor{}, false
}

// Presence is the result of a table existence probe.
type Presence string

const (
	PresencePresent Presence = "present"
	PresenceAbsent  Presence = "absent"
	PresenceUnknown Presence = "unknown"
)
