package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type ChangeKind string

const (
	KindColumnAdded    ChangeKind = "column_added"
	KindColumnRemoved  ChangeKind = "column_removed"
	KindColumnModified ChangeKind = "column_modified"
)

// Change is one classified structural delta between two snapshots.
// The set of implementations is closed: ColumnAdded, ColumnRemoved and
// ColumnModified.
type Change interface {
	Kind() ChangeKind
	Column() string
}

type ColumnAdded struct {
	ColumnName string  `json:"column_name"`
	DataType   string  `json:"data_type"`
	IsNullable bool    `json:"is_nullable"`
	Default    *string `json:"default"`
}

func (c ColumnAdded) Kind() ChangeKind { return KindColumnAdded }
func (c ColumnAdded) Column() string   { return c.ColumnName }

type ColumnRemoved struct {
	ColumnName string `json:"column_name"`
}

func (c ColumnRemoved) Kind() ChangeKind { return KindColumnRemoved }
func (c ColumnRemoved) Column() string   { return c.ColumnName }

// ColumnModified carries only the type pair. Nullability and default
// differences are detected but not carried.
type ColumnModified struct {
	ColumnName string `json:"column_name"`
	OldType    string `json:"old_type"`
	NewType    string `json:"new_type"`
}

func (c ColumnModified) Kind() ChangeKind { return KindColumnModified }
func (c ColumnModified) Column() string   { return c.ColumnName }

// changeDocument is the persisted shape of a Change.
type changeDocument struct {
	ChangeType ChangeKind `json:"change_type"`
	ColumnName string     `json:"column_name"`
	DataType   string     `json:"data_type,omitempty"`
	IsNullable *bool      `json:"is_nullable,omitempty"`
	Default    *string    `json:"default,omitempty"`
	OldType    string     `json:"old_type,omitempty"`
	NewType    string     `json:"new_type,omitempty"`
}

// MarshalChange serializes a change with its change_type discriminator.
func MarshalChange(c Change) ([]byte, error) {
	var doc changeDocument
	switch v := c.(type) {
	case ColumnAdded:
		nullable := v.IsNullable
		doc = changeDocument{
			ChangeType: KindColumnAdded,
			ColumnName: v.ColumnName,
			DataType:   v.DataType,
			IsNullable: &nullable,
			Default:    v.Default,
		}
	case ColumnRemoved:
		doc = changeDocument{ChangeType: KindColumnRemoved, ColumnName: v.ColumnName}
	case ColumnModified:
		doc = changeDocument{
			ChangeType: KindColumnModified,
			ColumnName: v.ColumnName,
			OldType:    v.OldType,
			NewType:    v.NewType,
		}
	default:
		return nil, &UnsupportedChangeError{Kind: kindOf(c), Reason: fmt.Sprintf("cannot serialize %T", c)}
	}
	return json.Marshal(doc)
}

// UnmarshalChange is the inverse of MarshalChange.
func UnmarshalChange(data []byte) (Change, error) {
	var doc changeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}

	switch doc.ChangeType {
	case KindColumnAdded:
		c := ColumnAdded{ColumnName: doc.ColumnName, DataType: doc.DataType, Default: doc.Default}
		if doc.IsNullable != nil {
			c.IsNullable = *doc.IsNullable
		}
		return c, nil
	case KindColumnRemoved:
		return ColumnRemoved{ColumnName: doc.ColumnName}, nil
	case KindColumnModified:
		return ColumnModified{ColumnName: doc.ColumnName, OldType: doc.OldType, NewType: doc.NewType}, nil
	default:
		return nil, &UnsupportedChangeError{Kind: doc.ChangeType, Reason: "unknown change_type"}
	}
}

func kindOf(c Change) ChangeKind {
	if c == nil {
		return ""
	}
	return c.Kind()
}

// Phase tags a change-log entry with the observer that wrote it.
type Phase string

const (
	PhaseDetected Phase = "detected"
	PhaseApplied  Phase = "applied"
)

// ChangeLogEntry is one append-only audit record.
type ChangeLogEntry struct {
	LogID         int64           `json:"log_id"`
	TableName     string          `json:"table_name"`
	ChangeType    ChangeKind      `json:"change_type"`
	Phase         Phase           `json:"phase"`
	ChangeDetails json.RawMessage `json:"change_details"`
	LoggedAt      time.Time       `json:"logged_at"`
}

// NewChangeLogEntry builds an unsaved entry for change. LogID and LoggedAt are
// filled in by the change log on append.
func NewChangeLogEntry(table string, phase Phase, change Change) (*ChangeLogEntry, error) {
	details, err := MarshalChange(change)
	if err != nil {
		return nil, err
	}
	return &ChangeLogEntry{
		TableName:     table,
		ChangeType:    change.Kind(),
		Phase:         phase,
		ChangeDetails: details,
	}, nil
}

// Change decodes the entry's details.
func (e *ChangeLogEntry) Change() (Change, error) {
	return UnmarshalChange(e.ChangeDetails)
}
