package models

import "fmt"

// NotFoundError means the table is absent or has no introspectable columns.
// The two cases are not distinguished.
type NotFoundError struct {
	Table string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("table %s not found or has no columns", e.Table)
}

// ConnectivityError is returned by the connection layer once its retries are spent.
type ConnectivityError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connect to %s failed after %d attempts: %v", e.Target, e.Attempts, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ApplyError wraps the failure that aborted a reconciliation batch.
type ApplyError struct {
	Table     string
	Column    string
	Kind      ChangeKind
	Statement string
	Err       error
}

func (e *ApplyError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("apply %s on %s.%s (%s): %v", e.Kind, e.Table, e.Column, e.Statement, e.Err)
	}
	return fmt.Sprintf("apply %s on %s.%s: %v", e.Kind, e.Table, e.Column, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// UnsupportedChangeError means a change cannot be turned into a statement:
// either its kind is outside the closed variant set or one of its SQL
// fragments failed validation.
type UnsupportedChangeError struct {
	Kind   ChangeKind
	Reason string
}

func (e *UnsupportedChangeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("unsupported change: %s", e.Reason)
	}
	return fmt.Sprintf("unsupported change %s: %s", e.Kind, e.Reason)
}
