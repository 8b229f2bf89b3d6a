package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"schema-drift-monitor/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublishingStore forwards every appended change-log entry to a Kafka topic
// after the wrapped store has persisted it. The wrapped store stays the
// source of record; publish failures are logged and not returned.
type PublishingStore struct {
	Store
	writer messageWriter
	logger *slog.Logger
}

func NewPublishingStore(inner Store, brokers []string, topic string, logger *slog.Logger) *PublishingStore {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
	}
	return newPublishingStore(inner, w, logger)
}

func newPublishingStore(inner Store, w messageWriter, logger *slog.Logger) *PublishingStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishingStore{Store: inner, writer: w, logger: logger}
}

func (p *PublishingStore) Append(ctx context.Context, entry *models.ChangeLogEntry) (int64, error) {
	id, err := p.Store.Append(ctx, entry)
	if err != nil {
		return 0, err
	}
	p.publish(ctx, entry)
	return id, nil
}

// AppendTx appends through the wrapped store's transaction and publishes
// right away. The event is sent before the transaction settles.
func (p *PublishingStore) AppendTx(ctx context.Context, tx *sql.Tx, entry *models.ChangeLogEntry) (int64, error) {
	inner, ok := p.Store.(TxChangeLog)
	if !ok {
		return 0, fmt.Errorf("store %T cannot append inside a transaction", p.Store)
	}
	id, err := inner.AppendTx(ctx, tx, entry)
	if err != nil {
		return 0, err
	}
	p.publish(ctx, entry)
	return id, nil
}

func (p *PublishingStore) Shares(db *sql.DB) bool {
	inner, ok := p.Store.(TxChangeLog)
	return ok && inner.Shares(db)
}

func (p *PublishingStore) publish(ctx context.Context, entry *models.ChangeLogEntry) {
	value, err := json.Marshal(entry)
	if err != nil {
		p.logger.Warn("failed to encode change event", "table", entry.TableName, "log_id", entry.LogID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(entry.TableName),
		Value: value,
		Headers: []kafka.Header{
			{Key: "change_type", Value: []byte(entry.ChangeType)},
			{Key: "phase", Value: []byte(entry.Phase)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish change event", "table", entry.TableName, "log_id", entry.LogID, "error", err)
	}
}

func (p *PublishingStore) Close() error {
	return errors.Join(p.writer.Close(), p.Store.Close())
}
