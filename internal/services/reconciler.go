package services

import (
	"context"
	"fmt"
	"log/slog"

	"schema-drift-monitor/internal/metrics"
	"schema-drift-monitor/internal/models"
	"schema-drift-monitor/internal/store"
)

type ReconcileResult struct {
	Applied int
	Skipped int
}

// Reconciler applies changes to the live schema of one table at a time.
type Reconciler struct {
	sessions  SessionProvider
	builder   *StatementBuilder
	changeLog store.ChangeLog
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func NewReconciler(sessions SessionProvider, builder *StatementBuilder, changeLog store.ChangeLog, m *metrics.Collector, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		sessions:  sessions,
		builder:   builder,
		changeLog: changeLog,
		metrics:   m,
		logger:    logger,
	}
}

// Reconcile applies changes in order inside one session. Changes already in
// effect are skipped without a log entry. The first failure rolls the session
// back and is returned; later changes are not attempted. A later run re-drives
// the batch safely because applied changes are skipped.
func (r *Reconciler) Reconcile(ctx context.Context, tableName string, changes []models.Change) (ReconcileResult, error) {
	var result ReconcileResult
	if len(changes) == 0 {
		return result, nil
	}

	sess, err := r.sessions.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("reconcile %s: %w", tableName, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sess.Rollback(); rbErr != nil {
			r.logger.Warn("rollback failed", "table", tableName, "error", rbErr)
		}
	}()

	for _, change := range changes {
		applied, err := r.applyChange(ctx, sess, tableName, change)
		if err != nil {
			r.logger.Error("failed to apply change",
				"table", tableName,
				"change_type", kindLabel(change),
				"column", columnLabel(change),
				"error", err)
			r.metrics.RecordChange(tableName, kindLabel(change), "failed")
			return result, err
		}
		if applied {
			result.Applied++
		} else {
			result.Skipped++
		}
	}

	if err := sess.Commit(); err != nil {
		return result, fmt.Errorf("commit reconciliation of %s: %w", tableName, err)
	}
	committed = true

	r.logger.Info("reconciliation committed",
		"table", tableName, "applied", result.Applied, "skipped", result.Skipped)
	return result, nil
}

// applyChange returns false when the change was already in effect.
func (r *Reconciler) applyChange(ctx context.Context, sess Session, tableName string, change models.Change) (bool, error) {
	stmt, err := r.builder.Build(tableName, change)
	if err != nil {
		return false, err
	}

	done, err := r.isChangeAlreadyApplied(ctx, sess, tableName, change)
	if err != nil {
		return false, &models.ApplyError{Table: tableName, Column: change.Column(), Kind: change.Kind(), Err: err}
	}
	if done {
		r.logger.Info("change already applied, skipping",
			"table", tableName, "change_type", change.Kind(), "column", change.Column())
		r.metrics.RecordChange(tableName, string(change.Kind()), "skipped")
		return false, nil
	}

	entry, err := models.NewChangeLogEntry(tableName, models.PhaseApplied, change)
	if err != nil {
		return false, err
	}
	logID, inSession, err := r.logApplied(ctx, sess, entry)
	if err != nil {
		return false, &models.ApplyError{Table: tableName, Column: change.Column(), Kind: change.Kind(), Err: fmt.Errorf("log change: %w", err)}
	}

	if err := sess.Exec(ctx, stmt); err != nil {
		if !inSession {
			r.logger.Warn("change log entry kept for a statement that failed",
				"table", tableName, "change_type", change.Kind(), "column", change.Column(), "log_id", logID)
		}
		return false, &models.ApplyError{
			Table:     tableName,
			Column:    change.Column(),
			Kind:      change.Kind(),
			Statement: stmt.SQL,
			Err:       err,
		}
	}

	r.logger.Info("applied change",
		"table", tableName, "change_type", change.Kind(), "column", change.Column(), "log_id", logID)
	r.metrics.RecordChange(tableName, string(change.Kind()), "applied")
	return true, nil
}

// logApplied writes the applied entry through the session when it can, so
// the entry is discarded if the session rolls back.
func (r *Reconciler) logApplied(ctx context.Context, sess Session, entry *models.ChangeLogEntry) (int64, bool, error) {
	if ls, ok := sess.(LoggingSession); ok {
		id, err := ls.AppendChange(ctx, entry)
		return id, true, err
	}
	id, err := r.changeLog.Append(ctx, entry)
	return id, false, err
}

func (r *Reconciler) isChangeAlreadyApplied(ctx context.Context, sess Session, tableName string, change models.Change) (bool, error) {
	liveType, exists, err := sess.ColumnType(ctx, tableName, change.Column())
	if err != nil {
		return false, err
	}

	switch c := change.(type) {
	case models.ColumnAdded:
		return exists, nil
	case models.ColumnRemoved:
		return !exists, nil
	case models.ColumnModified:
		return exists && liveType == c.NewType, nil
	default:
		return false, &models.UnsupportedChangeError{Kind: change.Kind(), Reason: "no idempotence check"}
	}
}

func kindLabel(c models.Change) string {
	if c == nil {
		return ""
	}
	return string(c.Kind())
}

func columnLabel(c models.Change) string {
	if c == nil {
		return ""
	}
	return c.Column()
}
