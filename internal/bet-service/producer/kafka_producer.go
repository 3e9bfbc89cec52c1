package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/parimutuel-pools/internal/shared/kafka"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

// KafkaPublisher publica bet_placed; a chave é o mercado para manter a ordem
// por mercado numa partição
type KafkaPublisher struct {
	Writer kafka.MessageWriter
	DLQ    kafka.MessageWriter
	Retry  kafka.RetryPolicy
}

func NewKafkaPublisher(w, dlq kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, DLQ: dlq, Retry: kafka.RetryPolicy{Retries: 1, Backoff: 100 * time.Millisecond}}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kafka.WriteWithRetry(ctx, p.Writer, p.DLQ, e.Market, b, p.Retry)
}
