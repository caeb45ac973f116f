// Package kafka publishes pipeline audit events.  Auditing is optional: a
// nil *Producer is a valid no-op publisher, so deployments without a broker
// run unchanged.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/pkg/errors"
)

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes audit events to a single topic.
type Producer struct {
	writer writerInterface
	topic  string
	logger logging.Logger
	closed atomic.Bool
}

// NewProducer creates a Producer.  Returns nil when auditing is disabled in
// the config; callers publish through the nil-safe methods regardless.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) (*Producer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers are required when auditing is enabled")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{
		writer: writer,
		topic:  cfg.Topic,
		logger: logger.Named("kafka"),
	}, nil
}

// Publish writes one JSON-encoded event keyed by key.  A nil or closed
// producer drops the event silently.
func (p *Producer) Publish(ctx context.Context, key string, event interface{}) error {
	if p == nil || p.closed.Load() {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode audit event")
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeAuditPublishFail, "publish audit event")
	}

	p.logger.Debug("audit event published",
		logging.String("topic", p.topic),
		logging.String("key", key),
		logging.Int("bytes", len(payload)),
	)
	return nil
}

// Close flushes and closes the writer.  Nil-safe and idempotent.
func (p *Producer) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
