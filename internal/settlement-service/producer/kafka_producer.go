package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/internal/shared/kafka"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

// KafkaPublisher publica market_settled; depois das tentativas vai para a DLQ
type KafkaPublisher struct {
	Writer kafka.MessageWriter
	DLQ    kafka.MessageWriter
	Retry  kafka.RetryPolicy
}

func NewKafkaPublisher(w, dlq kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, DLQ: dlq, Retry: kafka.DefaultRetry}
}

func (p *KafkaPublisher) PublishMarketSettled(ctx context.Context, s parimutuel.Settlement) error {
	b, err := json.Marshal(ToEvent(s))
	if err != nil {
		return err
	}
	return kafka.WriteWithRetry(ctx, p.Writer, p.DLQ, string(s.Market), b, p.Retry)
}

// ToEvent converte a liquidação no contrato publicado
func ToEvent(s parimutuel.Settlement) events.MarketSettled {
	ev := events.MarketSettled{
		Market:         string(s.Market),
		Status:         string(s.Status),
		Winners:        make([]string, 0, len(s.Winners)),
		Rake:           s.Rake.Fraction(),
		RakeVersion:    s.Rake.Version(),
		Gross:          s.Gross(),
		Distributable:  s.Distributable(),
		TotalPaid:      s.TotalPaid(),
		WinningBettors: s.WinningBettors(),
		Payouts:        s.Payouts,
		SettledAt:      s.SettledAt,
	}
	for _, w := range s.Winners {
		ev.Winners = append(ev.Winners, w.String())
	}
	if ev.SettledAt.IsZero() {
		ev.SettledAt = time.Now().UTC()
	}
	return ev
}
