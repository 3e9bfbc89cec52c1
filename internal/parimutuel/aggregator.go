package parimutuel

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Pool é o agregado derivado do livro: stake por resultado e total bruto.
// Nunca é persistido; sempre recalculado a partir das apostas.
type Pool struct {
	Market MarketKind
	Stakes map[OutcomeID]decimal.Decimal
	Gross  decimal.Decimal
	Bets   int
}

// Stake devolve o total apostado no resultado (zero se ninguém apostou).
func (p Pool) Stake(o OutcomeID) decimal.Decimal {
	return p.Stakes[o]
}

// SideTotal soma todos os stakes de um lado, em todas as proposições.
func (p Pool) SideTotal(side Side) decimal.Decimal {
	total := decimal.Zero
	for o, s := range p.Stakes {
		if o.Side == side {
			total = total.Add(s)
		}
	}
	return total
}

// Proposition isola o sub-pool de uma proposição (os dois lados).
func (p Pool) Proposition(prop string) Pool {
	sub := Pool{Market: p.Market, Stakes: map[OutcomeID]decimal.Decimal{}, Gross: decimal.Zero}
	for o, s := range p.Stakes {
		if o.Target == prop {
			sub.Stakes[o] = s
			sub.Gross = sub.Gross.Add(s)
		}
	}
	return sub
}

// Propositions lista as proposições que têm stake.
func (p Pool) Propositions() []string {
	seen := map[string]bool{}
	var out []string
	for o := range p.Stakes {
		if !seen[o.Target] {
			seen[o.Target] = true
			out = append(out, o.Target)
		}
	}
	return out
}

// Aggregate soma as apostas por resultado. Mercado vazio gera pool vazio.
// Stakes não positivos ou de outro mercado são rejeitados em vez de somados.
func Aggregate(kind MarketKind, bets []Bet) (Pool, error) {
	p := Pool{Market: kind, Stakes: make(map[OutcomeID]decimal.Decimal), Gross: decimal.Zero}
	for _, b := range bets {
		if !b.Amount.IsPositive() {
			return Pool{}, fmt.Errorf("%w: bet %s amount %s", ErrNonPositiveAmount, b.ID, b.Amount.String())
		}
		if b.Market != kind || b.Outcome.Kind != kind {
			return Pool{}, fmt.Errorf("%w: bet %s outcome %s in %s market", ErrInvalidOutcome, b.ID, b.Outcome, kind)
		}
		p.Stakes[b.Outcome] = p.Stakes[b.Outcome].Add(b.Amount)
		p.Gross = p.Gross.Add(b.Amount)
		p.Bets++
	}
	return p, nil
}

// Aggregator lê o snapshot do livro e agrega.
type Aggregator struct {
	bets BetReader
}

func NewAggregator(bets BetReader) *Aggregator {
	return &Aggregator{bets: bets}
}

func (a *Aggregator) Aggregate(ctx context.Context, kind MarketKind) (Pool, error) {
	bets, err := a.bets.ListBets(ctx, kind)
	if err != nil {
		return Pool{}, fmt.Errorf("list bets %s: %w", kind, err)
	}
	return Aggregate(kind, bets)
}
