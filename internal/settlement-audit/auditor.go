// Package audit confere cada market_settled publicado: conservação do pool,
// centavos inteiros e concordância com a liquidação gravada no livro.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/internal/shared/kafka"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

var cent = decimal.New(1, -2)

// Check devolve as violações encontradas no evento (vazio = ok)
func Check(ev events.MarketSettled) []string {
	var out []string
	add := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	if _, err := parimutuel.ParseMarketKind(ev.Market); err != nil {
		add("unknown market %q", ev.Market)
	}
	switch parimutuel.SettlementStatus(ev.Status) {
	case parimutuel.SettlementPaid:
	case parimutuel.SettlementEmptyPool, parimutuel.SettlementUnbackedWinner:
		if len(ev.Payouts) > 0 {
			add("status %s with %d payouts", ev.Status, len(ev.Payouts))
		}
	default:
		add("unknown status %q", ev.Status)
	}

	sum := decimal.Zero
	for bettor, p := range ev.Payouts {
		if !p.IsPositive() {
			add("payout for %s is not positive: %s", bettor, p)
		}
		if !p.Equal(p.RoundFloor(parimutuel.CurrencyPlaces)) {
			add("payout for %s has fractional cents: %s", bettor, p)
		}
		sum = sum.Add(p)
	}
	if !sum.Equal(ev.TotalPaid) {
		add("total_paid %s != sum of payouts %s", ev.TotalPaid, sum)
	}
	if ev.TotalPaid.GreaterThan(ev.Distributable) {
		add("total_paid %s exceeds distributable %s", ev.TotalPaid, ev.Distributable)
	}
	if ev.Distributable.GreaterThan(ev.Gross) {
		add("distributable %s exceeds gross %s", ev.Distributable, ev.Gross)
	}
	// cada apostador vencedor perde menos de um centavo no truncamento,
	// inclusive quem ficou fora de Payouts por ter direito a menos de um centavo
	if n := max(len(ev.Payouts), ev.WinningBettors); n > 0 {
		limit := cent.Mul(decimal.NewFromInt(int64(n)))
		if b := ev.Distributable.Sub(ev.TotalPaid); b.GreaterThanOrEqual(limit) {
			add("breakage %s not below %s", b, limit)
		}
	}
	return out
}

// SettlementReader é a parte do livro usada na conferência cruzada
type SettlementReader interface {
	Settlement(ctx context.Context, kind parimutuel.MarketKind) (parimutuel.Settlement, error)
}

// Violation é publicada no tópico de violações
type Violation struct {
	Event     events.MarketSettled `json:"event"`
	Problems  []string             `json:"problems"`
	AuditedAt time.Time            `json:"audited_at"`
}

// Worker consome market_settled e confere cada evento
type Worker struct {
	Log        *zap.Logger
	Reader     kafka.MessageReader
	Ledger     SettlementReader    // opcional
	Violations kafka.MessageWriter // opcional

	OnAudited   func(market, status string) // métricas
	OnViolation func(market string)
	OnError     func(stage string)
}

// Run lê até o contexto terminar; erro de leitura só gera backoff
func (w *Worker) Run(ctx context.Context) error {
	for {
		key, value, err := kafka.ReadNext(ctx, w.Reader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read", zap.Error(err))
			w.fail("read")
			time.Sleep(time.Second)
			continue
		}
		w.Handle(ctx, key, value)
	}
}

// Handle confere um evento; devolve os problemas encontrados
func (w *Worker) Handle(ctx context.Context, key, value []byte) []string {
	var ev events.MarketSettled
	if err := json.Unmarshal(value, &ev); err != nil {
		w.Log.Error("unmarshal market_settled", zap.ByteString("key", key), zap.Error(err))
		w.fail("decode")
		return nil
	}

	problems := Check(ev)
	problems = append(problems, w.crossCheck(ctx, ev)...)
	if w.OnAudited != nil {
		w.OnAudited(ev.Market, ev.Status)
	}
	if len(problems) == 0 {
		w.Log.Info("settlement audited", zap.String("market", ev.Market), zap.String("status", ev.Status),
			zap.String("total_paid", ev.TotalPaid.StringFixed(2)))
		return nil
	}

	w.Log.Error("settlement audit failed", zap.String("market", ev.Market), zap.Strings("problems", problems))
	if w.OnViolation != nil {
		w.OnViolation(ev.Market)
	}
	if w.Violations != nil {
		b, _ := json.Marshal(Violation{Event: ev, Problems: problems, AuditedAt: time.Now().UTC()})
		if err := kafka.WriteJSON(ctx, w.Violations, ev.Market, b); err != nil {
			w.Log.Warn("publish violation failed", zap.Error(err))
			w.fail("publish")
		}
	}
	return problems
}

func (w *Worker) crossCheck(ctx context.Context, ev events.MarketSettled) []string {
	if w.Ledger == nil {
		return nil
	}
	kind, err := parimutuel.ParseMarketKind(ev.Market)
	if err != nil {
		return nil
	}
	s, err := w.Ledger.Settlement(ctx, kind)
	if errors.Is(err, ledger.ErrNotSettled) || errors.Is(err, ledger.ErrMarketNotFound) {
		return []string{"event published but no settlement recorded in the ledger"}
	}
	if err != nil {
		w.Log.Warn("ledger settlement read failed", zap.String("market", ev.Market), zap.Error(err))
		w.fail("ledger")
		return nil
	}

	var out []string
	if !s.TotalPaid().Equal(ev.TotalPaid) {
		out = append(out, fmt.Sprintf("ledger total_paid %s != event %s", s.TotalPaid(), ev.TotalPaid))
	}
	if string(s.Status) != ev.Status {
		out = append(out, fmt.Sprintf("ledger status %s != event %s", s.Status, ev.Status))
	}
	if len(s.Payouts) != len(ev.Payouts) {
		out = append(out, fmt.Sprintf("ledger pays %d bettors, event %d", len(s.Payouts), len(ev.Payouts)))
	}
	for bettor, p := range ev.Payouts {
		if !s.Payouts[bettor].Equal(p) {
			out = append(out, fmt.Sprintf("payout for %s: ledger %s != event %s", bettor, s.Payouts[bettor], p))
		}
	}
	return out
}

func (w *Worker) fail(stage string) {
	if w.OnError != nil {
		w.OnError(stage)
	}
}
