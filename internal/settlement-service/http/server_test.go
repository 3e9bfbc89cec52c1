package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/internal/settlement-service/dto"
	"github.com/radieske/parimutuel-pools/internal/settlement-service/lock"
)

type memLock struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func (l *memLock) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, lock.ErrHeld
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released++
		return nil
	}, nil
}

type recordingPublisher struct{ settled []parimutuel.Settlement }

func (p *recordingPublisher) PublishMarketSettled(_ context.Context, s parimutuel.Settlement) error {
	p.settled = append(p.settled, s)
	return nil
}

type fixture struct {
	srv     http.Handler
	store   *ledger.Memory
	lock    *memLock
	publ    *recordingPublisher
	metrics *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   ledger.NewMemory(),
		lock:    &memLock{held: map[string]bool{}},
		publ:    &recordingPublisher{},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	f.srv = NewServer(zap.NewNop(), f.store, f.lock, f.publ, f.metrics).Router()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

// seedWin abre o mercado win com p1/p2, aposta 60/40 e fecha se pedido
func (f *fixture) seedWin(t *testing.T, closed bool) {
	t.Helper()
	ctx := context.Background()
	p1, _ := parimutuel.PlayerOutcome(parimutuel.KindWin, "p1")
	p2, _ := parimutuel.PlayerOutcome(parimutuel.KindWin, "p2")
	_, err := f.store.OpenMarket(ctx, parimutuel.KindWin, []parimutuel.OutcomeID{p1, p2}, parimutuel.DefaultRake)
	require.NoError(t, err)
	for _, nb := range []ledger.NewBet{
		{Outcome: p1, BettorID: "alice", Amount: decimal.NewFromInt(60)},
		{Outcome: p2, BettorID: "bob", Amount: decimal.NewFromInt(40)},
	} {
		_, err := f.store.AppendBet(ctx, nb)
		require.NoError(t, err)
	}
	if closed {
		require.NoError(t, f.store.CloseMarket(ctx, parimutuel.KindWin))
	}
}

func TestSettle_RecordsOnceAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.seedWin(t, true)

	rec := f.do(http.MethodPost, "/v1/markets/win/settle", `{"winners":["p1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v dto.SettlementView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, "paid", v.Status)
	assert.Equal(t, "97.00", v.Payouts["alice"].String())
	assert.Equal(t, "100.00", v.Gross.String())
	assert.Equal(t, []string{"p1"}, v.Winners)

	require.Len(t, f.publ.settled, 1)
	assert.Equal(t, 1, f.lock.released)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Settled.WithLabelValues("win", "paid")))

	rec = f.do(http.MethodPost, "/v1/markets/win/settle", `{"winners":["p2"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, f.publ.settled, 1)

	rec = f.do(http.MethodGet, "/v1/markets/win/settlement", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, "97.00", v.Payouts["alice"].String())
}

func TestSettle_OpenMarket(t *testing.T) {
	f := newFixture(t)
	f.seedWin(t, false)

	rec := f.do(http.MethodPost, "/v1/markets/win/settle", `{"winners":["p1"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/v1/markets/win/settle", `{"winners":["p1"],"close":true}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSettle_Errors(t *testing.T) {
	f := newFixture(t)
	f.seedWin(t, true)

	cases := []struct {
		name, path, body string
		status           int
	}{
		{"bad json", "/v1/markets/win/settle", `{`, http.StatusBadRequest},
		{"no winners", "/v1/markets/win/settle", `{}`, http.StatusUnprocessableEntity},
		{"not offered", "/v1/markets/win/settle", `{"winners":["p9"]}`, http.StatusUnprocessableEntity},
		{"two winners in win", "/v1/markets/win/settle", `{"winners":["p1","p2"]}`, http.StatusUnprocessableEntity},
		{"results outside prop", "/v1/markets/win/settle", `{"results":{"goal":true}}`, http.StatusUnprocessableEntity},
		{"unknown market", "/v1/markets/exacta/settle", `{"winners":["p1"]}`, http.StatusNotFound},
		{"not opened", "/v1/markets/advance/settle", `{"winners":["p1"]}`, http.StatusNotFound},
		{"not settled", "/v1/markets/win/settlement", ``, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			method := http.MethodPost
			if strings.HasSuffix(c.path, "/settlement") {
				method = http.MethodGet
			}
			rec := f.do(method, c.path, c.body)
			assert.Equal(t, c.status, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, f.publ.settled)
}

func TestSettle_LockHeld(t *testing.T) {
	f := newFixture(t)
	f.seedWin(t, true)
	f.lock.held["settle:win"] = true

	rec := f.do(http.MethodPost, "/v1/markets/win/settle", `{"winners":["p1"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Failed.WithLabelValues("lock_held")))
}

func TestSettle_PropResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var outcomes []parimutuel.OutcomeID
	for _, p := range []string{"goal", "card"} {
		for _, side := range []parimutuel.Side{parimutuel.SideYes, parimutuel.SideNo} {
			o, err := parimutuel.PropOutcome(p, side)
			require.NoError(t, err)
			outcomes = append(outcomes, o)
		}
	}
	_, err := f.store.OpenMarket(ctx, parimutuel.KindProp, outcomes, parimutuel.MustRake("0", "v0"))
	require.NoError(t, err)
	// goal:yes 10 (ana), goal:no 10 (bia), card:no 5 (ana)
	for _, nb := range []ledger.NewBet{
		{Outcome: outcomes[0], BettorID: "ana", Amount: decimal.NewFromInt(10)},
		{Outcome: outcomes[1], BettorID: "bia", Amount: decimal.NewFromInt(10)},
		{Outcome: outcomes[3], BettorID: "ana", Amount: decimal.NewFromInt(5)},
	} {
		_, err := f.store.AppendBet(ctx, nb)
		require.NoError(t, err)
	}

	rec := f.do(http.MethodPost, "/v1/markets/prop/settle", `{"results":{"goal":true,"card":false},"close":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v dto.SettlementView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, "25.00", v.Payouts["ana"].String())
	assert.NotContains(t, v.Payouts, "bia")
	assert.Len(t, v.Pools, 2)
	assert.Equal(t, []string{"card:no", "goal:yes"}, v.Winners)
}

func TestPreview_DoesNotRecord(t *testing.T) {
	f := newFixture(t)
	f.seedWin(t, false)

	rec := f.do(http.MethodPost, "/v1/markets/win/preview", `{"winners":["p2"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v dto.SettlementView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, "97.00", v.Payouts["bob"].String())

	m, err := f.store.Market(context.Background(), parimutuel.KindWin)
	require.NoError(t, err)
	assert.Equal(t, parimutuel.StatusOpen, m.Status)
	assert.Empty(t, f.publ.settled)
}

func TestWinners(t *testing.T) {
	got, err := Winners(parimutuel.KindAdvance, dto.SettleRequest{Winners: []string{"p1", "p2"}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = Winners(parimutuel.KindProp, dto.SettleRequest{Results: map[string]bool{"goal": false}, Winners: []string{"card:yes"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, parimutuel.SideNo, got[0].Side)

	_, err = Winners(parimutuel.KindProp, dto.SettleRequest{Winners: []string{"goal"}})
	assert.ErrorIs(t, err, parimutuel.ErrInvalidOutcome)
}
