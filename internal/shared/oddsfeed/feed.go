// Package oddsfeed monta snapshots de odds prontos para exibição a partir do livro.
package oddsfeed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

// Source é o que o feed precisa do livro.
type Source interface {
	parimutuel.BetReader
	Version(ctx context.Context, kind parimutuel.MarketKind) (int64, error)
}

// Cache é opcional; sem ele todo pedido recalcula.
type Cache interface {
	Get(ctx context.Context, market string, version int64) (events.OddsUpdate, bool, error)
	Set(ctx context.Context, upd events.OddsUpdate) error
}

// Build agrega as apostas e arredonda só aqui, na fronteira de apresentação.
// Version é o número de apostas usadas, do mesmo snapshot.
func Build(kind parimutuel.MarketKind, bets []parimutuel.Bet, now time.Time) (events.OddsUpdate, error) {
	pool, err := parimutuel.Aggregate(kind, bets)
	if err != nil {
		return events.OddsUpdate{}, err
	}
	upd := events.OddsUpdate{
		Market:    string(kind),
		Version:   int64(len(bets)),
		Gross:     parimutuel.RoundCurrency(pool.Gross),
		Outcomes:  map[string]events.OutcomeOdds{},
		UpdatedAt: now.UTC(),
	}
	for o, q := range parimutuel.ImpliedProbabilities(pool) {
		upd.Outcomes[o.Key()] = events.OutcomeOdds{
			Prob:  parimutuel.RoundProbability(q.Probability),
			Stake: parimutuel.RoundCurrency(q.Stake),
		}
	}
	return upd, nil
}

type Feed struct {
	Log    *zap.Logger
	Source Source
	Cache  Cache
	Now    func() time.Time
}

func New(log *zap.Logger, src Source, cache Cache) *Feed {
	return &Feed{Log: log, Source: src, Cache: cache, Now: time.Now}
}

// Current devolve as odds do estado atual do livro, do cache quando a versão bate.
func (f *Feed) Current(ctx context.Context, kind parimutuel.MarketKind) (events.OddsUpdate, error) {
	if f.Cache != nil {
		v, err := f.Source.Version(ctx, kind)
		if err != nil {
			return events.OddsUpdate{}, fmt.Errorf("ledger version %s: %w", kind, err)
		}
		upd, ok, err := f.Cache.Get(ctx, string(kind), v)
		if err != nil {
			f.Log.Warn("odds cache get failed", zap.String("market", string(kind)), zap.Error(err))
		} else if ok {
			return upd, nil
		}
	}
	return f.Refresh(ctx, kind)
}

// Refresh recalcula a partir do livro e aquece o cache.
func (f *Feed) Refresh(ctx context.Context, kind parimutuel.MarketKind) (events.OddsUpdate, error) {
	bets, err := f.Source.ListBets(ctx, kind)
	if err != nil {
		return events.OddsUpdate{}, fmt.Errorf("list bets %s: %w", kind, err)
	}
	upd, err := Build(kind, bets, f.Now())
	if err != nil {
		return events.OddsUpdate{}, err
	}
	if f.Cache != nil {
		if err := f.Cache.Set(ctx, upd); err != nil {
			// cache é otimização: falha não impede a resposta
			f.Log.Warn("odds cache set failed", zap.String("market", string(kind)), zap.Error(err))
		}
	}
	return upd, nil
}
