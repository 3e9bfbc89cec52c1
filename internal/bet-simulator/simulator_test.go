package simulator

import (
	"context"
	"math/rand"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/bet-service/dto"
	bhttp "github.com/radieske/parimutuel-pools/internal/bet-service/http"
	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

type nopPublisher struct{}

func (nopPublisher) PublishBetPlaced(context.Context, events.BetPlaced) error { return nil }

func betService(t *testing.T, store ledger.Store) *Client {
	t.Helper()
	api := bhttp.NewServer(zap.NewNop(), store, nopPublisher{}, bhttp.NewMetrics(prometheus.NewRegistry()),
		bhttp.Options{Rake: parimutuel.DefaultRake, BettorDomain: "example.org"})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Len(t, c.Runners, 45)
	assert.Equal(t, "Runner_Open_1_1", c.Runners[0])
	assert.Len(t, c.Props, 4)
}

func TestSeedAndSend(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	sim := New(zap.NewNop(), betService(t, store), DefaultCatalog(), 5, "example.org")
	sim.Rand = rand.New(rand.NewSource(42))

	sent, failed := 0, 0
	sim.OnSent = func(string) { sent++ }
	sim.OnFailed = func(string) { failed++ }

	require.NoError(t, sim.Seed(ctx))
	markets, err := store.Markets(ctx)
	require.NoError(t, err)
	assert.Len(t, markets, 3)

	for i := 0; i < 30; i++ {
		sim.Send(ctx)
	}
	assert.Equal(t, 30, sent)
	assert.Zero(t, failed)

	total := 0
	for _, kind := range parimutuel.Kinds {
		bets, err := store.ListBets(ctx, kind)
		require.NoError(t, err)
		for _, b := range bets {
			assert.True(t, b.Amount.GreaterThanOrEqual(decimal.NewFromInt(1)), b.Amount.String())
			assert.True(t, b.Amount.LessThanOrEqual(decimal.NewFromInt(50)), b.Amount.String())
			assert.Contains(t, b.BettorID, "@example.org")
		}
		total += len(bets)
	}
	assert.Equal(t, 30, total)
}

func TestSeed_ToleratesClosedMarket(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	client := betService(t, store)
	sim := New(zap.NewNop(), client, DefaultCatalog(), 1, "example.org")

	require.NoError(t, sim.Seed(ctx))
	require.NoError(t, store.CloseMarket(ctx, parimutuel.KindWin))
	require.NoError(t, sim.Seed(ctx))

	_, err := client.PlaceBet(ctx, "win", dto.PlaceBetRequest{
		BettorID: sim.Bettors[0],
		Target:   "Runner_Open_1_1",
		Amount:   decimal.NewFromInt(5),
	})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 409, se.Status)
}
