package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/shopspring/decimal"
)

type memMarket struct {
	market     parimutuel.Market
	bets       []parimutuel.Bet
	settlement *parimutuel.Settlement
}

// Memory é o livro em memória (testes e execução local sem banco).
type Memory struct {
	mu      sync.RWMutex
	markets map[parimutuel.MarketKind]*memMarket
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{markets: map[parimutuel.MarketKind]*memMarket{}, now: time.Now}
}

func (m *Memory) ListBets(_ context.Context, kind parimutuel.MarketKind) ([]parimutuel.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.markets[kind]
	if !ok {
		return nil, nil
	}
	out := make([]parimutuel.Bet, len(mk.bets))
	copy(out, mk.bets)
	return out, nil
}

func (m *Memory) ListBetsByOutcome(_ context.Context, kind parimutuel.MarketKind, outcome parimutuel.OutcomeID) ([]parimutuel.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.markets[kind]
	if !ok {
		return nil, nil
	}
	var out []parimutuel.Bet
	for _, b := range mk.bets {
		if b.Outcome == outcome {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) Market(_ context.Context, kind parimutuel.MarketKind) (parimutuel.Market, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.markets[kind]
	if !ok {
		return parimutuel.Market{}, fmt.Errorf("%w: %s", ErrMarketNotFound, kind)
	}
	return copyMarket(mk.market), nil
}

func (m *Memory) Markets(_ context.Context) ([]parimutuel.Market, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []parimutuel.Market
	for _, k := range parimutuel.Kinds {
		if mk, ok := m.markets[k]; ok {
			out = append(out, copyMarket(mk.market))
		}
	}
	return out, nil
}

func (m *Memory) Version(_ context.Context, kind parimutuel.MarketKind) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mk, ok := m.markets[kind]; ok {
		return int64(len(mk.bets)), nil
	}
	return 0, nil
}

func (m *Memory) AppendBet(_ context.Context, nb NewBet) (string, error) {
	if err := validateNewBet(nb); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mk, ok := m.markets[nb.Outcome.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMarketNotFound, nb.Outcome.Kind)
	}
	if mk.market.Status != parimutuel.StatusOpen {
		return "", fmt.Errorf("%w: %s", ErrMarketClosed, nb.Outcome.Kind)
	}
	if !mk.market.Has(nb.Outcome) {
		return "", fmt.Errorf("%w: %s", ErrUnknownOutcome, nb.Outcome)
	}

	b := parimutuel.Bet{
		ID:       uuid.NewString(),
		Market:   nb.Outcome.Kind,
		Outcome:  nb.Outcome,
		Amount:   nb.Amount,
		BettorID: nb.BettorID,
		PlacedAt: m.now().UTC(),
	}
	mk.bets = append(mk.bets, b)
	return b.ID, nil
}

func (m *Memory) IsOpen(_ context.Context, kind parimutuel.MarketKind) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.markets[kind]
	return ok && mk.market.Status == parimutuel.StatusOpen, nil
}

func (m *Memory) OpenMarket(_ context.Context, kind parimutuel.MarketKind, outcomes []parimutuel.OutcomeID, rake parimutuel.Rake) (parimutuel.Market, error) {
	if err := validateOpen(kind, outcomes, rake); err != nil {
		return parimutuel.Market{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mk, ok := m.markets[kind]
	if !ok {
		mk = &memMarket{market: parimutuel.Market{
			Kind:     kind,
			Status:   parimutuel.StatusOpen,
			Rake:     rake,
			OpenedAt: m.now().UTC(),
		}}
		m.markets[kind] = mk
	}
	if mk.market.Status != parimutuel.StatusOpen {
		return parimutuel.Market{}, fmt.Errorf("%w: %s", ErrMarketClosed, kind)
	}
	for _, o := range outcomes {
		if !mk.market.Has(o) {
			mk.market.Outcomes = append(mk.market.Outcomes, o)
		}
	}
	return copyMarket(mk.market), nil
}

func (m *Memory) CloseMarket(_ context.Context, kind parimutuel.MarketKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markets[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, kind)
	}
	switch mk.market.Status {
	case parimutuel.StatusOpen:
		mk.market.Status = parimutuel.StatusClosed
	case parimutuel.StatusSettled:
		return fmt.Errorf("%w: %s", ErrAlreadySettled, kind)
	}
	return nil
}

func (m *Memory) RecordSettlement(_ context.Context, s parimutuel.Settlement) error {
	if err := validateSettlement(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markets[s.Market]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, s.Market)
	}
	switch mk.market.Status {
	case parimutuel.StatusOpen:
		return fmt.Errorf("%w: %s", parimutuel.ErrMarketOpen, s.Market)
	case parimutuel.StatusSettled:
		return fmt.Errorf("%w: %s", ErrAlreadySettled, s.Market)
	}

	stored := copySettlement(s)
	mk.settlement = &stored
	mk.market.Status = parimutuel.StatusSettled
	return nil
}

func (m *Memory) Settlement(_ context.Context, kind parimutuel.MarketKind) (parimutuel.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.markets[kind]
	if !ok {
		return parimutuel.Settlement{}, fmt.Errorf("%w: %s", ErrMarketNotFound, kind)
	}
	if mk.settlement == nil {
		return parimutuel.Settlement{}, fmt.Errorf("%w: %s", ErrNotSettled, kind)
	}
	return copySettlement(*mk.settlement), nil
}

// copySettlement desacopla payouts, pools e vencedores do registro guardado
func copySettlement(s parimutuel.Settlement) parimutuel.Settlement {
	out := s
	out.Winners = append([]parimutuel.OutcomeID(nil), s.Winners...)
	out.Payouts = make(map[string]decimal.Decimal, len(s.Payouts))
	for k, v := range s.Payouts {
		out.Payouts[k] = v
	}
	out.Pools = nil
	for _, p := range s.Pools {
		p.Winners = append([]parimutuel.OutcomeID(nil), p.Winners...)
		out.Pools = append(out.Pools, p)
	}
	return out
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func copyMarket(mk parimutuel.Market) parimutuel.Market {
	mk.Outcomes = append([]parimutuel.OutcomeID(nil), mk.Outcomes...)
	return mk
}
