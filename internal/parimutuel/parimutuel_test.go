package parimutuel

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeBook struct {
	market Market
	bets   []Bet
	reads  int
}

func (f *fakeBook) ListBets(_ context.Context, kind MarketKind) ([]Bet, error) {
	f.reads++
	var out []Bet
	for _, b := range f.bets {
		if b.Market == kind {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBook) Market(_ context.Context, kind MarketKind) (Market, error) {
	if f.market.Kind != kind {
		return Market{}, fmt.Errorf("%w: %s", ErrUnknownMarket, kind)
	}
	return f.market, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func player(t *testing.T, kind MarketKind, name string) OutcomeID {
	t.Helper()
	o, err := PlayerOutcome(kind, name)
	require.NoError(t, err)
	return o
}

func prop(t *testing.T, name string, side Side) OutcomeID {
	t.Helper()
	o, err := PropOutcome(name, side)
	require.NoError(t, err)
	return o
}

func bet(id string, o OutcomeID, bettor, amount string) Bet {
	return Bet{ID: id, Market: o.Kind, Outcome: o, BettorID: bettor, Amount: dec(amount)}
}

func closedMarket(kind MarketKind, outcomes ...OutcomeID) Market {
	return Market{Kind: kind, Status: StatusClosed, Outcomes: outcomes, Rake: DefaultRake}
}
