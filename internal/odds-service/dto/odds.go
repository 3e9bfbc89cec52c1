package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

// Money formata um valor em 2 casas como número JSON (sem aspas)
func Money(d decimal.Decimal) json.Number {
	return json.Number(parimutuel.RoundCurrency(d).StringFixed(parimutuel.CurrencyPlaces))
}

func Prob(d decimal.Decimal) json.Number {
	return json.Number(parimutuel.RoundProbability(d).StringFixed(parimutuel.ProbabilityPlaces))
}

type OutcomeOdds struct {
	Prob  json.Number `json:"prob"`
	Stake json.Number `json:"stake"`
}

// Odds representa as probabilidades implícitas de um mercado
type Odds struct {
	Market    string                 `json:"market"`
	Version   int64                  `json:"version"`
	Gross     json.Number            `json:"gross"`
	Outcomes  map[string]OutcomeOdds `json:"outcomes"`
	UpdatedAt string                 `json:"updatedAt"`
}

func FromUpdate(upd events.OddsUpdate) Odds {
	o := Odds{
		Market:    upd.Market,
		Version:   upd.Version,
		Gross:     Money(upd.Gross),
		Outcomes:  make(map[string]OutcomeOdds, len(upd.Outcomes)),
		UpdatedAt: upd.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range upd.Outcomes {
		o.Outcomes[k] = OutcomeOdds{Prob: Prob(v.Prob), Stake: Money(v.Stake)}
	}
	return o
}

// Pool é o agregado bruto do mercado; Net já desconta a comissão
type Pool struct {
	Market      string                 `json:"market"`
	Status      string                 `json:"status"`
	Rake        string                 `json:"rake"`
	RakeVersion string                 `json:"rakeVersion"`
	Bets        int                    `json:"bets"`
	Gross       json.Number            `json:"gross"`
	Net         json.Number            `json:"net"`
	Stakes      map[string]json.Number `json:"stakes"`
}

// Summary é o volume acumulado de todos os mercados
type Summary struct {
	Total   json.Number            `json:"total"`
	Markets map[string]json.Number `json:"markets"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
