package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schema-drift-monitor/internal/config"
	"schema-drift-monitor/internal/models"
	"schema-drift-monitor/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storeRoundTrip(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	schema := &models.TableSchema{
		TableName:  "orders",
		Columns:    []models.ColumnDescriptor{{Name: "id", DataType: "integer"}},
		CapturedAt: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Put(ctx, "orders", schema))

	got, err := s.Latest(ctx, "orders")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "orders", got.TableName)

	entry, err := models.NewChangeLogEntry("orders", models.PhaseDetected, models.ColumnRemoved{ColumnName: "fax"})
	require.NoError(t, err)
	id, err := s.Append(ctx, entry)
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := &config.AppConfig{Store: config.StoreConfig{
		Backend:    config.BackendSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "drift.db"),
	}}

	s, err := OpenStore(context.Background(), cfg, nil, nil, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	storeRoundTrip(t, s)
}

func TestOpenStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.AppConfig{Store: config.StoreConfig{
		Backend:      config.BackendRedis,
		RedisAddr:    mr.Addr(),
		RedisPrefix:  "drift:",
		HistoryLimit: 5,
	}}

	s, err := OpenStore(context.Background(), cfg, nil, nil, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	storeRoundTrip(t, s)
	assert.True(t, mr.Exists("drift:snapshot:orders"))
}

func TestOpenStoreWrapsWithKafkaPublisher(t *testing.T) {
	cfg := &config.AppConfig{
		Store: config.StoreConfig{
			Backend:    config.BackendSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "drift.db"),
		},
		Kafka: config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "schema-changes"},
	}

	s, err := OpenStore(context.Background(), cfg, nil, nil, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*store.PublishingStore)
	assert.True(t, ok)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	cfg := &config.AppConfig{Store: config.StoreConfig{Backend: "dynamo"}}

	_, err := OpenStore(context.Background(), cfg, nil, nil, discardLogger())
	assert.Error(t, err)
}

func TestCloseWithoutConnections(t *testing.T) {
	app := &Application{}
	assert.NoError(t, app.Close())
}
