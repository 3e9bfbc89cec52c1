package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyWriter struct {
	failures int
	written  []kafka.Message
}

func (w *flakyWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.failures > 0 {
		w.failures--
		return errors.New("leader not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

var fast = RetryPolicy{Retries: 2, Backoff: time.Millisecond}

func TestWriteWithRetry_RecoversWithinRetries(t *testing.T) {
	w := &flakyWriter{failures: 2}
	dlq := &flakyWriter{}
	require.NoError(t, WriteWithRetry(context.Background(), w, dlq, "win", []byte(`{}`), fast))
	require.Len(t, w.written, 1)
	assert.Equal(t, "win", string(w.written[0].Key))
	assert.Empty(t, dlq.written)
}

func TestWriteWithRetry_FallsBackToDLQ(t *testing.T) {
	w := &flakyWriter{failures: 10}
	dlq := &flakyWriter{}
	err := WriteWithRetry(context.Background(), w, dlq, "prop", []byte(`{"a":1}`), fast)
	assert.Error(t, err)
	require.Len(t, dlq.written, 1)
	assert.Equal(t, `{"a":1}`, string(dlq.written[0].Value))
}

func TestWriteWithRetry_NoDLQ(t *testing.T) {
	err := WriteWithRetry(context.Background(), &flakyWriter{failures: 10}, nil, "k", nil, fast)
	assert.ErrorContains(t, err, "leader not available")
}
