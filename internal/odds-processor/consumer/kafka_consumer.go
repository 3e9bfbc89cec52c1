package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Refresher recalcula as odds de um mercado a partir do livro (e aquece o cache)
type Refresher interface {
	Refresh(ctx context.Context, kind parimutuel.MarketKind) (events.OddsUpdate, error)
}

type Broadcaster interface {
	Publish(ctx context.Context, upd events.OddsUpdate) error
}

// Processor consome bet_placed do Kafka, recalcula as odds do mercado e
// publica o snapshot no Redis Pub/Sub
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Odds        Refresher
	Broadcaster Broadcaster

	OnConsumed  func()       // métricas (counter++)
	OnRefreshed func()       // métricas
	OnPublished func()       // métricas
	OnError     func(string) // métricas por fase

	mu   sync.Mutex
	last map[parimutuel.MarketKind]int64 // última versão publicada por mercado
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}
		p.Handle(ctx, m.Value)
	}
}

// Handle processa uma mensagem; erros são logados e contados, nunca interrompem o loop
func (p *Processor) Handle(ctx context.Context, value []byte) {
	var ev events.BetPlaced
	if err := json.Unmarshal(value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return
	}
	kind, err := parimutuel.ParseMarketKind(ev.Market)
	if err != nil {
		p.Log.Warn("unknown market in event", zap.String("bet_id", ev.BetID), zap.String("market", ev.Market))
		p.fail("decode")
		return
	}

	upd, err := p.Odds.Refresh(ctx, kind)
	if err != nil {
		p.Log.Warn("odds refresh failed", zap.String("market", ev.Market), zap.Error(err))
		p.fail("refresh")
		return
	}
	if p.OnRefreshed != nil {
		p.OnRefreshed()
	}

	// várias apostas em rajada geram o mesmo snapshot; publica só versões novas
	if !p.advance(kind, upd.Version) {
		return
	}
	if err := p.Broadcaster.Publish(ctx, upd); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.String("market", ev.Market), zap.Error(err))
		p.fail("publish")
		return
	}
	if p.OnPublished != nil {
		p.OnPublished()
	}
}

func (p *Processor) advance(kind parimutuel.MarketKind, version int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		p.last = map[parimutuel.MarketKind]int64{}
	}
	if prev, ok := p.last[kind]; ok && version <= prev {
		return false
	}
	p.last[kind] = version
	return true
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
