package parimutuel

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote é a probabilidade implícita de um resultado e o stake que a gerou.
// Valores em precisão cheia; arredondar só na apresentação.
type Quote struct {
	Probability decimal.Decimal
	Stake       decimal.Decimal
}

// Odds mapeia resultado -> cotação.
type Odds map[OutcomeID]Quote

// ImpliedProbabilities converte o pool em probabilidades implícitas.
//
// A comissão não entra no cálculo: aplicada no numerador e no denominador ela
// se cancela, então p_i = S_i / T. Em prop cada lado é normalizado contra o
// próprio sub-pool (total de "yes" e total de "no"), então os lados não somam 1
// entre si.
func ImpliedProbabilities(p Pool) Odds {
	odds := Odds{}
	if !p.Gross.IsPositive() {
		return odds
	}

	var yesTotal, noTotal decimal.Decimal
	if p.Market == KindProp {
		yesTotal = p.SideTotal(SideYes)
		noTotal = p.SideTotal(SideNo)
	}

	for o, stake := range p.Stakes {
		if !stake.IsPositive() {
			continue
		}
		den := p.Gross
		if p.Market == KindProp {
			den = yesTotal
			if o.Side == SideNo {
				den = noTotal
			}
		}
		odds[o] = Quote{Probability: div(stake, den), Stake: stake}
	}
	return odds
}

// Calculator produz odds a partir do estado atual do livro.
type Calculator struct {
	agg *Aggregator
}

func NewCalculator(agg *Aggregator) *Calculator {
	return &Calculator{agg: agg}
}

func (c *Calculator) ImpliedProbabilities(ctx context.Context, kind MarketKind) (Odds, error) {
	p, err := c.agg.Aggregate(ctx, kind)
	if err != nil {
		return nil, err
	}
	return ImpliedProbabilities(p), nil
}
