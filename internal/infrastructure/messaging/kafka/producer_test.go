package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/scribemed/clinsight/pkg/errors"
)

type mockWriter struct {
	writeFn  func(ctx context.Context, msgs ...kafka.Message) error
	messages []kafka.Message
	closed   bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.messages = append(m.messages, msgs...)
	if m.writeFn != nil {
		return m.writeFn(ctx, msgs...)
	}
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func newTestProducer(w writerInterface) *Producer {
	return &Producer{writer: w, topic: "clinsight.triage.audit", logger: logging.NewNopLogger()}
}

func TestNewProducer_DisabledReturnsNil(t *testing.T) {
	p, err := NewProducer(config.KafkaConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNewProducer_EnabledWithoutBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Enabled: true}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestPublish(t *testing.T) {
	w := &mockWriter{}
	p := newTestProducer(w)

	event := map[string]interface{}{"run_id": "r-1", "phrases": 2}
	err := p.Publish(context.Background(), "r-1", event)
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	assert.Equal(t, []byte("r-1"), w.messages[0].Key)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, "r-1", decoded["run_id"])
}

func TestPublish_NilProducerIsNoop(t *testing.T) {
	var p *Producer
	assert.NoError(t, p.Publish(context.Background(), "k", map[string]string{"a": "b"}))
	assert.NoError(t, p.Close())
}

func TestPublish_WriteFailure(t *testing.T) {
	w := &mockWriter{writeFn: func(_ context.Context, _ ...kafka.Message) error {
		return errors.New("broker unreachable")
	}}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), "k", map[string]string{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeAuditPublishFail))
}

func TestPublish_AfterCloseIsDropped(t *testing.T) {
	w := &mockWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	assert.NoError(t, p.Publish(context.Background(), "k", map[string]string{}))
	assert.Empty(t, w.messages)

	// Close is idempotent.
	assert.NoError(t, p.Close())
}

func TestPublish_UnencodableEvent(t *testing.T) {
	p := newTestProducer(&mockWriter{})
	err := p.Publish(context.Background(), "k", func() {})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}
