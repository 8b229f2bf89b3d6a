package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"schema-drift-monitor/internal/models"
)

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Prefix       string
	HistoryLimit int
	DialTimeout  time.Duration
}

// RedisStore keeps the latest snapshot of each table under a string key, a
// bounded snapshot history in a list, and the change log in a per-table list
// with ids drawn from a global counter.
type RedisStore struct {
	client       *redis.Client
	prefix       string
	historyLimit int
	now          func() time.Time
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.Prefix, cfg.HistoryLimit), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string, historyLimit int) *RedisStore {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &RedisStore{client: client, prefix: prefix, historyLimit: historyLimit, now: time.Now}
}

func (r *RedisStore) latestKey(table string) string  { return r.prefix + "snapshot:" + table }
func (r *RedisStore) historyKey(table string) string { return r.prefix + "snapshots:" + table }
func (r *RedisStore) logKey(table string) string     { return r.prefix + "changelog:" + table }
func (r *RedisStore) seqKey() string                 { return r.prefix + "changelog:seq" }

func (r *RedisStore) Latest(ctx context.Context, tableName string) (*models.TableSchema, error) {
	data, err := r.client.Get(ctx, r.latestKey(tableName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", tableName, err)
	}

	var schema models.TableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", tableName, err)
	}
	return &schema, nil
}

func (r *RedisStore) Put(ctx context.Context, tableName string, schema *models.TableSchema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", tableName, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.latestKey(tableName), data, 0)
		pipe.LPush(ctx, r.historyKey(tableName), data)
		pipe.LTrim(ctx, r.historyKey(tableName), 0, int64(r.historyLimit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", tableName, err)
	}
	return nil
}

func (r *RedisStore) Append(ctx context.Context, entry *models.ChangeLogEntry) (int64, error) {
	id, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate log id: %w", err)
	}
	entry.LogID = id
	entry.LoggedAt = r.now().UTC()

	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("failed to encode log entry: %w", err)
	}
	if err := r.client.RPush(ctx, r.logKey(entry.TableName), data).Err(); err != nil {
		return 0, fmt.Errorf("failed to log change for %s: %w", entry.TableName, err)
	}
	return id, nil
}

// Entries returns the change log of a table in append order.
func (r *RedisStore) Entries(ctx context.Context, tableName string) ([]models.ChangeLogEntry, error) {
	raw, err := r.client.LRange(ctx, r.logKey(tableName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read change log for %s: %w", tableName, err)
	}

	entries := make([]models.ChangeLogEntry, 0, len(raw))
	for _, item := range raw {
		var e models.ChangeLogEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to decode log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
