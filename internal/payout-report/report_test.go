package report

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
)

const resultsYAML = `
advance_winners: [P1, P2]
win_winner: P1
prop_results:
  photo_finish: true
`

func seed(t *testing.T) *ledger.Memory {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemory()

	open := func(kind parimutuel.MarketKind, outcomes ...parimutuel.OutcomeID) {
		_, err := store.OpenMarket(ctx, kind, outcomes, parimutuel.DefaultRake)
		require.NoError(t, err)
	}
	place := func(o parimutuel.OutcomeID, bettor, amount string) {
		_, err := store.AppendBet(ctx, ledger.NewBet{Outcome: o, BettorID: bettor, Amount: decimal.RequireFromString(amount)})
		require.NoError(t, err)
	}
	player := func(kind parimutuel.MarketKind, p string) parimutuel.OutcomeID {
		o, err := parimutuel.PlayerOutcome(kind, p)
		require.NoError(t, err)
		return o
	}

	a1, a2, a3 := player(parimutuel.KindAdvance, "P1"), player(parimutuel.KindAdvance, "P2"), player(parimutuel.KindAdvance, "P3")
	open(parimutuel.KindAdvance, a1, a2, a3)
	place(a1, "X", "50")
	place(a2, "Y", "30")
	place(a3, "Z", "20")

	w1, w2 := player(parimutuel.KindWin, "P1"), player(parimutuel.KindWin, "P2")
	open(parimutuel.KindWin, w1, w2)
	place(w1, "X", "10")
	place(w2, "Z", "10")
	return store
}

func TestParseResults(t *testing.T) {
	r, err := ParseResults([]byte(resultsYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, r.AdvanceWinners)
	assert.Equal(t, "P1", r.WinWinner)
	assert.True(t, r.PropResults["photo_finish"])

	prop, err := r.Winners(parimutuel.KindProp)
	require.NoError(t, err)
	require.Len(t, prop, 1)
	assert.Equal(t, "photo_finish:yes", prop[0].Key())

	_, err = ParseResults([]byte("advance_winners: {"))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	r, err := ParseResults([]byte(resultsYAML))
	require.NoError(t, err)

	rep, err := Build(context.Background(), seed(t), r, parimutuel.Rake{})
	require.NoError(t, err)
	require.Len(t, rep.Markets, 3)

	adv := rep.Markets[0]
	assert.Empty(t, adv.Skipped)
	assert.Equal(t, "60.62", adv.Settlement.Payouts["X"].StringFixed(2))
	assert.Equal(t, "36.37", adv.Settlement.Payouts["Y"].StringFixed(2))
	assert.Len(t, adv.Odds, 3)

	// prop não foi aberto: fica de fora sem derrubar o relatório
	assert.Equal(t, "market not opened", rep.Markets[2].Skipped)

	// X: 60.62 no advance + 19.40 no win
	assert.Equal(t, "80.02", rep.Totals["X"].StringFixed(2))
	assert.NotContains(t, rep.Totals, "Z")
	assert.Equal(t, "v1", rep.Rake.Version())
}

func TestBuild_SkipsMarketsWithoutResult(t *testing.T) {
	rep, err := Build(context.Background(), seed(t), Results{WinWinner: "P2"}, parimutuel.DefaultRake)
	require.NoError(t, err)
	assert.Equal(t, "no result declared", rep.Markets[0].Skipped)
	assert.Equal(t, "19.40", rep.Totals["Z"].StringFixed(2))
}

func TestBuild_InvalidWinner(t *testing.T) {
	_, err := Build(context.Background(), seed(t), Results{WinWinner: "P9"}, parimutuel.DefaultRake)
	assert.ErrorIs(t, err, parimutuel.ErrInvalidSettlementInput)
}

func TestPrint(t *testing.T) {
	r, err := ParseResults([]byte(resultsYAML))
	require.NoError(t, err)
	rep, err := Build(context.Background(), seed(t), r, parimutuel.DefaultRake)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "$60.62")
	assert.Contains(t, out, "$80.02")
	assert.Contains(t, out, "market not opened")
	assert.Contains(t, out, "House take: 3.0% (v1)")
	assert.Contains(t, out, "0.5000")
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }

func TestPrint_WriteErrorIsReturned(t *testing.T) {
	r, err := ParseResults([]byte(resultsYAML))
	require.NoError(t, err)
	rep, err := Build(context.Background(), seed(t), r, parimutuel.DefaultRake)
	require.NoError(t, err)

	assert.EqualError(t, Print(brokenWriter{}, rep), "stdout closed")
}
