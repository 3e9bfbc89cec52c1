package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/internal/settlement-service/producer"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func goodEvent() events.MarketSettled {
	return events.MarketSettled{
		Market:        "advance",
		Status:        "paid",
		Winners:       []string{"advance:P1", "advance:P2"},
		Rake:          d("0.03"),
		RakeVersion:   "v1",
		Gross:         d("100"),
		Distributable: d("97"),
		TotalPaid:     d("96.99"),
		Payouts:       map[string]decimal.Decimal{"X": d("60.62"), "Y": d("36.37")},
	}
}

func TestCheck_Clean(t *testing.T) {
	assert.Empty(t, Check(goodEvent()))

	empty := events.MarketSettled{Market: "win", Status: "empty_pool"}
	assert.Empty(t, Check(empty))
}

func TestCheck_Violations(t *testing.T) {
	cases := map[string]func(*events.MarketSettled){
		"fractional cents":   func(e *events.MarketSettled) { e.Payouts["X"] = d("60.625"); e.TotalPaid = d("96.995") },
		"sum mismatch":       func(e *events.MarketSettled) { e.TotalPaid = d("97") },
		"overpaid":           func(e *events.MarketSettled) { e.Payouts["X"] = d("61.63"); e.TotalPaid = d("98") },
		"too much breakage":  func(e *events.MarketSettled) { e.Payouts["X"] = d("60.00"); e.TotalPaid = d("96.37") },
		"payouts when empty": func(e *events.MarketSettled) { e.Status = "empty_pool" },
		"unknown status":     func(e *events.MarketSettled) { e.Status = "void" },
		"unknown market":     func(e *events.MarketSettled) { e.Market = "exacta" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			ev := goodEvent()
			ev.Payouts = map[string]decimal.Decimal{"X": d("60.62"), "Y": d("36.37")}
			mutate(&ev)
			assert.NotEmpty(t, Check(ev))
		})
	}
}

func TestCheck_SubCentWinnersAreNotViolations(t *testing.T) {
	a, err := parimutuel.PlayerOutcome(parimutuel.KindWin, "A")
	require.NoError(t, err)
	b, err := parimutuel.PlayerOutcome(parimutuel.KindWin, "B")
	require.NoError(t, err)
	m := parimutuel.Market{Kind: parimutuel.KindWin, Status: parimutuel.StatusClosed, Outcomes: []parimutuel.OutcomeID{a, b}, Rake: parimutuel.DefaultRake}
	bets := []parimutuel.Bet{
		{ID: "1", Market: parimutuel.KindWin, Outcome: a, BettorID: "alice", Amount: d("0.01")},
		{ID: "2", Market: parimutuel.KindWin, Outcome: a, BettorID: "carol", Amount: d("0.01")},
		{ID: "3", Market: parimutuel.KindWin, Outcome: a, BettorID: "bob", Amount: d("100")},
		{ID: "4", Market: parimutuel.KindWin, Outcome: b, BettorID: "dave", Amount: d("0.01")},
	}
	s, err := parimutuel.Compute(m, bets, []parimutuel.OutcomeID{a})
	require.NoError(t, err)

	ev := producer.ToEvent(s)
	assert.Equal(t, 3, ev.WinningBettors)
	assert.Len(t, ev.Payouts, 1)
	assert.Empty(t, Check(ev))

	// sem a contagem de vencedores a quebra de 0.0291 passaria do limite de um pagamento
	ev.WinningBettors = 0
	assert.NotEmpty(t, Check(ev))
}

type captureWriter struct{ msgs []kafka.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

// settledBook grava no livro a mesma liquidação do goodEvent
func settledBook(t *testing.T) *ledger.Memory {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemory()
	var outcomes []parimutuel.OutcomeID
	for _, p := range []string{"P1", "P2", "P3"} {
		o, err := parimutuel.PlayerOutcome(parimutuel.KindAdvance, p)
		require.NoError(t, err)
		outcomes = append(outcomes, o)
	}
	_, err := store.OpenMarket(ctx, parimutuel.KindAdvance, outcomes, parimutuel.DefaultRake)
	require.NoError(t, err)
	for i, nb := range []ledger.NewBet{
		{Outcome: outcomes[0], BettorID: "X", Amount: d("50")},
		{Outcome: outcomes[1], BettorID: "Y", Amount: d("30")},
		{Outcome: outcomes[2], BettorID: "Z", Amount: d("20")},
	} {
		_, err := store.AppendBet(ctx, nb)
		require.NoError(t, err, i)
	}
	require.NoError(t, store.CloseMarket(ctx, parimutuel.KindAdvance))
	s, err := parimutuel.NewEngine(store, store).Settle(ctx, parimutuel.KindAdvance, outcomes[:2])
	require.NoError(t, err)
	require.NoError(t, store.RecordSettlement(ctx, s))
	return store
}

func TestWorker_Handle(t *testing.T) {
	store := settledBook(t)
	viol := &captureWriter{}
	audited, violations := 0, 0
	w := &Worker{
		Log:         zap.NewNop(),
		Ledger:      store,
		Violations:  viol,
		OnAudited:   func(string, string) { audited++ },
		OnViolation: func(string) { violations++ },
	}

	good, err := json.Marshal(goodEvent())
	require.NoError(t, err)
	assert.Empty(t, w.Handle(context.Background(), []byte("advance"), good))

	tampered := goodEvent()
	tampered.Payouts["Y"] = d("36.36")
	tampered.TotalPaid = d("96.98")
	b, err := json.Marshal(tampered)
	require.NoError(t, err)
	problems := w.Handle(context.Background(), []byte("advance"), b)
	assert.NotEmpty(t, problems)

	assert.Equal(t, 2, audited)
	assert.Equal(t, 1, violations)
	require.Len(t, viol.msgs, 1)
	var v Violation
	require.NoError(t, json.Unmarshal(viol.msgs[0].Value, &v))
	assert.Equal(t, "advance", v.Event.Market)
}

func TestWorker_EventWithoutLedgerRecord(t *testing.T) {
	w := &Worker{Log: zap.NewNop(), Ledger: ledger.NewMemory()}
	b, err := json.Marshal(goodEvent())
	require.NoError(t, err)
	assert.Contains(t, w.Handle(context.Background(), nil, b), "event published but no settlement recorded in the ledger")
}

func TestWorker_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	good, err := json.Marshal(goodEvent())
	require.NoError(t, err)

	audited := 0
	w := &Worker{
		Log:       zap.NewNop(),
		Reader:    &sliceReader{msgs: []kafka.Message{{Value: good}, {Value: []byte("{")}}, stop: cancel},
		OnAudited: func(string, string) { audited++ },
	}
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
	assert.Equal(t, 1, audited)
}

type sliceReader struct {
	msgs []kafka.Message
	stop context.CancelFunc
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.stop()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}
