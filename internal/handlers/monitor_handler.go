package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"schema-drift-monitor/internal/models"
)

// Monitor is the part of MonitorService the HTTP API drives.
type Monitor interface {
	Start() error
	Stop() error
	GetStatus() map[string]interface{}
	UpdateConfig(cronSchedule string, tables []string, autoReconcile *bool) error
	CheckTable(ctx context.Context, tableName string) (models.CheckResult, error)
	TakeSnapshot(ctx context.Context, tableName string) (*models.TableSchema, error)
	LatestSnapshot(ctx context.Context, tableName string) (*models.TableSchema, error)
	PendingChanges(ctx context.Context, tableName string) ([]models.Change, error)
}

// Handler holds service dependencies
type Handler struct {
	monitor Monitor
	logger  *slog.Logger
}

func NewHandler(monitor Monitor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		monitor: monitor,
		logger:  logger,
	}
}

type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type ConfigRequest struct {
	CronSchedule  string   `json:"cronSchedule,omitempty"`
	Tables        []string `json:"tables,omitempty"`
	AutoReconcile *bool    `json:"autoReconcile,omitempty"`
}

func (h *Handler) StartMonitorHandler(w http.ResponseWriter, r *http.Request) {
	err := h.monitor.Start()
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Monitor started", nil)
}

func (h *Handler) StopMonitorHandler(w http.ResponseWriter, r *http.Request) {
	err := h.monitor.Stop()
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Monitor stopped", nil)
}

func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.monitor.GetStatus()
	sendSuccessResponse(w, "", status)
}

func (h *Handler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	var configReq ConfigRequest
	err := json.NewDecoder(r.Body).Decode(&configReq)
	if err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err = h.monitor.UpdateConfig(configReq.CronSchedule, configReq.Tables, configReq.AutoReconcile)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := h.monitor.GetStatus()
	sendSuccessResponse(w, "Configuration updated", status)
}

func (h *Handler) CheckTableHandler(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	result, err := h.monitor.CheckTable(r.Context(), tableName)
	if err != nil {
		h.logger.Error("check request failed", "table", tableName, "run_id", result.RunID, "error", err)
		sendErrorResponse(w, err.Error(), statusFor(err))
		return
	}

	sendSuccessResponse(w, "Table check completed", result)
}

func (h *Handler) TakeSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	schema, err := h.monitor.TakeSnapshot(r.Context(), tableName)
	if err != nil {
		sendErrorResponse(w, err.Error(), statusFor(err))
		return
	}

	sendSuccessResponse(w, "Snapshot saved", schema)
}

func (h *Handler) LatestSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	schema, err := h.monitor.LatestSnapshot(r.Context(), tableName)
	if err != nil {
		sendErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	if schema == nil {
		sendErrorResponse(w, "no snapshot for table "+tableName, http.StatusNotFound)
		return
	}

	sendSuccessResponse(w, "", schema)
}

func (h *Handler) PendingChangesHandler(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "table")

	changes, err := h.monitor.PendingChanges(r.Context(), tableName)
	if err != nil {
		sendErrorResponse(w, err.Error(), statusFor(err))
		return
	}

	docs := make([]json.RawMessage, 0, len(changes))
	for _, c := range changes {
		data, err := models.MarshalChange(c)
		if err != nil {
			sendErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		docs = append(docs, data)
	}

	sendSuccessResponse(w, "", map[string]interface{}{"table": tableName, "changes": docs})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, "Service is running", nil)
}

func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"health":         "GET /health",
		"metrics":        "GET /metrics",
		"status":         "GET /api/monitor/status",
		"startMonitor":   "POST /api/monitor/start",
		"stopMonitor":    "POST /api/monitor/stop",
		"updateConfig":   "PUT /api/monitor/config",
		"checkTable":     "POST /api/tables/{table}/check",
		"takeSnapshot":   "POST /api/tables/{table}/snapshot",
		"latestSnapshot": "GET /api/tables/{table}/snapshot",
		"pendingChanges": "GET /api/tables/{table}/changes",
	}

	response := Response{
		Success: true,
		Message: "Schema Drift Monitor",
		Data:    map[string]interface{}{"endpoints": endpoints},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func statusFor(err error) int {
	var (
		notFound    *models.NotFoundError
		unsupported *models.UnsupportedChangeError
		applyErr    *models.ApplyError
		connErr     *models.ConnectivityError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unsupported), errors.As(err, &applyErr):
		return http.StatusConflict
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	response := Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	response := Response{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
