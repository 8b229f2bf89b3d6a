package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"schema-drift-monitor/internal/metrics"
	"schema-drift-monitor/internal/models"
	"schema-drift-monitor/internal/store"
)

// Introspector is the part of SchemaService the monitor depends on.
type Introspector interface {
	Probe(ctx context.Context, tableName string) (models.Presence, error)
	Describe(ctx context.Context, tableName string) (*models.TableSchema, error)
	ListTables(ctx context.Context) ([]string, error)
}

type SchemaReconciler interface {
	Reconcile(ctx context.Context, tableName string, changes []models.Change) (ReconcileResult, error)
}

type MonitorOptions struct {
	Schedule      string
	Tables        []string
	AutoReconcile bool
	CheckTimeout  time.Duration
}

// MonitorService runs table checks on a cron schedule and keeps the last
// outcome of every table.
type MonitorService struct {
	introspector Introspector
	snapshots    store.SnapshotStore
	changeLog    store.ChangeLog
	reconciler   SchemaReconciler
	metrics      *metrics.Collector
	logger       *slog.Logger

	mutex         sync.RWMutex
	isRunning     bool
	cron          *cron.Cron
	cronSchedule  string
	tables        []string
	autoReconcile bool
	checkTimeout  time.Duration
	tableStatus   map[string]*models.TableStatus
	lastRunTime   time.Time
	nextRunTime   time.Time
	initialRun    sync.WaitGroup

	newRunID func() string
}

func NewMonitorService(introspector Introspector, snapshots store.SnapshotStore, changeLog store.ChangeLog, reconciler SchemaReconciler, m *metrics.Collector, logger *slog.Logger, opts MonitorOptions) *MonitorService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Minute
	}
	return &MonitorService{
		introspector:  introspector,
		snapshots:     snapshots,
		changeLog:     changeLog,
		reconciler:    reconciler,
		metrics:       m,
		logger:        logger,
		cronSchedule:  opts.Schedule,
		tables:        append([]string(nil), opts.Tables...),
		autoReconcile: opts.AutoReconcile,
		checkTimeout:  opts.CheckTimeout,
		tableStatus:   make(map[string]*models.TableStatus),
		newRunID:      uuid.NewString,
	}
}

// Start schedules CheckAll and runs it once immediately.
func (s *MonitorService) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isRunning {
		return fmt.Errorf("monitor already running")
	}

	c := cron.New()
	entryID, err := c.AddFunc(s.cronSchedule, func() {
		s.mutex.Lock()
		s.lastRunTime = time.Now()
		s.mutex.Unlock()

		s.logger.Info("cron triggered")
		s.CheckAll(context.Background())
		s.refreshNextRun()
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	c.Start()
	s.cron = c
	s.isRunning = true

	if entries := c.Entries(); len(entries) > 0 {
		s.nextRunTime = entries[0].Next
	}
	s.logger.Info("monitor started", "schedule", s.cronSchedule, "entry_id", entryID, "next_run", s.nextRunTime)

	s.initialRun.Add(1)
	go func() {
		defer s.initialRun.Done()
		s.logger.Info("running initial check")
		s.CheckAll(context.Background())
		s.refreshNextRun()
	}()

	return nil
}

// Stop halts the schedule and waits for running checks, including the one
// Start launched, to finish.
func (s *MonitorService) Stop() error {
	s.mutex.Lock()
	if !s.isRunning {
		s.mutex.Unlock()
		return fmt.Errorf("monitor is not running")
	}
	c := s.cron
	s.isRunning = false
	s.mutex.Unlock()

	<-c.Stop().Done()
	s.initialRun.Wait()
	s.logger.Info("monitor stopped")
	return nil
}

func (s *MonitorService) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isRunning
}

func (s *MonitorService) refreshNextRun() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.cron == nil {
		return
	}
	if entries := s.cron.Entries(); len(entries) > 0 {
		s.nextRunTime = entries[0].Next
	}
}

// Tables returns the configured tables, or every base table when none are configured.
func (s *MonitorService) Tables(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	tables := append([]string(nil), s.tables...)
	s.mutex.RUnlock()

	if len(tables) > 0 {
		return tables, nil
	}
	return s.introspector.ListTables(ctx)
}

// CheckAll checks every table in turn. A failing table does not stop the others.
func (s *MonitorService) CheckAll(ctx context.Context) []models.CheckResult {
	tables, err := s.Tables(ctx)
	if err != nil {
		s.logger.Error("failed to list tables", "error", err)
		return nil
	}

	s.logger.Info("checking tables", "count", len(tables))

	results := make([]models.CheckResult, 0, len(tables))
	for _, table := range tables {
		result, err := s.CheckTable(ctx, table)
		if err != nil {
			s.logger.Error("table check failed", "table", table, "run_id", result.RunID, "error", err)
		}
		results = append(results, result)
	}
	return results
}

// CheckTable compares the live schema of one table with its latest snapshot,
// logs the detected changes, reconciles them when enabled and advances the
// snapshot. A table without a prior snapshot gets a baseline and no changes.
func (s *MonitorService) CheckTable(ctx context.Context, tableName string) (models.CheckResult, error) {
	started := time.Now()
	result := models.CheckResult{TableName: tableName, RunID: s.newRunID()}
	logger := s.logger.With("table", tableName, "run_id", result.RunID)

	s.setChecking(tableName)

	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	err := s.checkTable(ctx, logger, &result)
	if err != nil {
		result.Outcome = models.OutcomeFailed
		result.Reason = err.Error()
	}

	s.updateTableStatus(result)
	s.metrics.RecordCheck(tableName, string(result.Outcome), time.Since(started))
	logger.Info("table check finished",
		"outcome", result.Outcome, "reason", result.Reason,
		"detected", result.Detected, "applied", result.Applied, "skipped", result.Skipped)

	return result, err
}

func (s *MonitorService) checkTable(ctx context.Context, logger *slog.Logger, result *models.CheckResult) error {
	tableName := result.TableName

	presence, err := s.introspector.Probe(ctx, tableName)
	switch {
	case err != nil:
		return fmt.Errorf("probe %s: %w", tableName, err)
	case presence == models.PresenceAbsent:
		result.Outcome = models.OutcomeSkipped
		result.Reason = "table does not exist"
		return nil
	}

	current, err := s.introspector.Describe(ctx, tableName)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			result.Outcome = models.OutcomeSkipped
			result.Reason = notFound.Error()
			return nil
		}
		return err
	}

	last, err := s.snapshots.Latest(ctx, tableName)
	if err != nil {
		return err
	}
	if last == nil {
		logger.Info("no previous snapshot found, saving baseline")
		if err := s.snapshots.Put(ctx, tableName, current); err != nil {
			return err
		}
		result.Outcome = models.OutcomeSkipped
		result.Reason = "no prior snapshot"
		return nil
	}

	changes := DiffSchemas(last, current)
	if len(changes) == 0 {
		result.Outcome = models.OutcomeSkipped
		result.Reason = "no changes detected"
		return nil
	}

	result.Detected = len(changes)
	logger.Info("detected changes", "count", len(changes))
	for _, change := range changes {
		entry, err := models.NewChangeLogEntry(tableName, models.PhaseDetected, change)
		if err != nil {
			return err
		}
		if _, err := s.changeLog.Append(ctx, entry); err != nil {
			return err
		}
		s.metrics.RecordChange(tableName, string(change.Kind()), "detected")
		logger.Info("change detected", "change_type", change.Kind(), "column", change.Column())
	}

	s.mutex.RLock()
	autoReconcile := s.autoReconcile
	s.mutex.RUnlock()

	if autoReconcile {
		rr, err := s.reconciler.Reconcile(ctx, tableName, changes)
		result.Applied = rr.Applied
		result.Skipped = rr.Skipped
		if err != nil {
			return err
		}
	}

	if err := s.snapshots.Put(ctx, tableName, current); err != nil {
		return err
	}
	result.Outcome = models.OutcomeApplied
	return nil
}

// TakeSnapshot captures the live schema of tableName as its newest snapshot.
func (s *MonitorService) TakeSnapshot(ctx context.Context, tableName string) (*models.TableSchema, error) {
	schema, err := s.introspector.Describe(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if err := s.snapshots.Put(ctx, tableName, schema); err != nil {
		return nil, err
	}
	s.logger.Info("snapshot taken", "table", tableName, "columns", len(schema.Columns))
	return schema, nil
}

func (s *MonitorService) LatestSnapshot(ctx context.Context, tableName string) (*models.TableSchema, error) {
	return s.snapshots.Latest(ctx, tableName)
}

// PendingChanges diffs the live schema against the latest snapshot without
// logging or applying anything.
func (s *MonitorService) PendingChanges(ctx context.Context, tableName string) ([]models.Change, error) {
	current, err := s.introspector.Describe(ctx, tableName)
	if err != nil {
		return nil, err
	}
	last, err := s.snapshots.Latest(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return DiffSchemas(last, current), nil
}

func (s *MonitorService) setChecking(tableName string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.tableStatus[tableName] == nil {
		s.tableStatus[tableName] = &models.TableStatus{TableName: tableName}
	}
	s.tableStatus[tableName].Status = "checking"
}

func (s *MonitorService) updateTableStatus(result models.CheckResult) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	status := s.tableStatus[result.TableName]
	if status == nil {
		status = &models.TableStatus{TableName: result.TableName}
		s.tableStatus[result.TableName] = status
	}

	status.Status = "idle"
	status.Outcome = result.Outcome
	status.Detected = result.Detected
	status.Applied = result.Applied
	status.Skipped = result.Skipped
	status.LastCheckTime = time.Now()
	status.ErrorMessage = ""
	if result.Outcome == models.OutcomeFailed {
		status.ErrorMessage = result.Reason
	}
}

func (s *MonitorService) GetStatus() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tableStatusCopy := make(map[string]models.TableStatus)
	for k, v := range s.tableStatus {
		if v != nil {
			tableStatusCopy[k] = *v
		}
	}

	var lastRun, nextRun string
	if !s.lastRunTime.IsZero() {
		lastRun = s.lastRunTime.Format(time.RFC3339)
	}
	if !s.nextRunTime.IsZero() {
		nextRun = s.nextRunTime.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"isRunning":     s.isRunning,
		"cronSchedule":  s.cronSchedule,
		"tables":        append([]string(nil), s.tables...),
		"autoReconcile": s.autoReconcile,
		"lastRun":       lastRun,
		"nextRun":       nextRun,
		"tableStatus":   tableStatusCopy,
	}
}

// UpdateConfig changes the schedule, table list and auto-reconcile flag.
// A new schedule takes effect immediately when the monitor is running.
func (s *MonitorService) UpdateConfig(cronSchedule string, tables []string, autoReconcile *bool) error {
	if cronSchedule != "" {
		if _, err := cron.ParseStandard(cronSchedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", cronSchedule, err)
		}
	}

	s.mutex.Lock()
	needsRestart := false
	if cronSchedule != "" && cronSchedule != s.cronSchedule {
		s.cronSchedule = cronSchedule
		needsRestart = s.isRunning
	}
	if tables != nil {
		s.tables = append([]string(nil), tables...)
	}
	if autoReconcile != nil {
		s.autoReconcile = *autoReconcile
	}
	s.logger.Info("configuration updated",
		"schedule", s.cronSchedule, "tables", s.tables, "auto_reconcile", s.autoReconcile)
	s.mutex.Unlock()

	if needsRestart {
		s.logger.Info("schedule changed, restarting monitor")
		if err := s.Stop(); err != nil {
			return err
		}
		return s.Start()
	}
	return nil
}
