package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Writer = kafka.Writer

// MessageWriter é o subconjunto de *kafka.Writer usado pelos publishers.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewWriter(brokers string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // mesma chave (mercado) -> mesma partição
		AllowAutoTopicCreation: true,
	}
}

func NewReader(brokers string, topic string, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        strings.Split(brokers, ","),
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

// helper pra enviar mensagem simples
func WriteJSON(ctx context.Context, w MessageWriter, key string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}

	return w.WriteMessages(ctx, msg)
}

// RetryPolicy controla WriteWithRetry: tentativas extras com backoff linear.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

var DefaultRetry = RetryPolicy{Retries: 3, Backoff: 300 * time.Millisecond}

// WriteWithRetry tenta publicar; esgotadas as tentativas envia para a DLQ
// (se houver) e devolve o último erro.
func WriteWithRetry(ctx context.Context, w, dlq MessageWriter, key string, payload []byte, p RetryPolicy) error {
	err := WriteJSON(ctx, w, key, payload)
	for i := 0; err != nil && i < p.Retries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff * time.Duration(i+1)):
		}
		err = WriteJSON(ctx, w, key, payload)
	}
	if err == nil {
		return nil
	}
	if dlq != nil {
		if derr := WriteJSON(ctx, dlq, key, payload); derr != nil {
			return fmt.Errorf("publish failed (%v) and dlq failed: %w", err, derr)
		}
	}
	return fmt.Errorf("publish failed after %d retries: %w", p.Retries, err)
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// ReadNext lê a próxima mensagem (com commit automático do consumer group).
func ReadNext(ctx context.Context, r MessageReader) (key []byte, value []byte, err error) {
	m, err := r.ReadMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read kafka message: %w", err)
	}
	return m.Key, m.Value, nil
}
