package dto

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
)

type PoolView struct {
	Proposition   string      `json:"proposition,omitempty"`
	Winners       []string    `json:"winners"`
	Status        string      `json:"status"`
	Gross         json.Number `json:"gross"`
	Distributable json.Number `json:"distributable"`
	WinningStake  json.Number `json:"winning_stake"`
}

type SettlementView struct {
	Market        string                 `json:"market"`
	Status        string                 `json:"status"`
	Winners       []string               `json:"winners"`
	Rake          string                 `json:"rake"`
	RakeVersion   string                 `json:"rake_version"`
	Gross         json.Number            `json:"gross"`
	Distributable json.Number            `json:"distributable"`
	TotalPaid     json.Number            `json:"total_paid"`
	Breakage      json.Number            `json:"breakage"`
	Payouts       map[string]json.Number `json:"payouts"`
	Pools         []PoolView             `json:"pools"`
	SettledAt     string                 `json:"settled_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(parimutuel.RoundCurrency(d).StringFixed(parimutuel.CurrencyPlaces))
}

func keys(outcomes []parimutuel.OutcomeID) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Key())
	}
	sort.Strings(out)
	return out
}

// FromSettlement monta a visão HTTP; pagamentos já vêm truncados em centavos
func FromSettlement(s parimutuel.Settlement) SettlementView {
	v := SettlementView{
		Market:        string(s.Market),
		Status:        string(s.Status),
		Winners:       keys(s.Winners),
		Rake:          s.Rake.Fraction().String(),
		RakeVersion:   s.Rake.Version(),
		Gross:         money(s.Gross()),
		Distributable: money(s.Distributable()),
		TotalPaid:     money(s.TotalPaid()),
		Breakage:      money(s.Breakage()),
		Payouts:       make(map[string]json.Number, len(s.Payouts)),
		Pools:         make([]PoolView, 0, len(s.Pools)),
		SettledAt:     s.SettledAt.Format(time.RFC3339),
	}
	for bettor, amount := range s.Payouts {
		v.Payouts[bettor] = money(amount)
	}
	for _, p := range s.Pools {
		v.Pools = append(v.Pools, PoolView{
			Proposition:   p.Proposition,
			Winners:       keys(p.Winners),
			Status:        string(p.Status),
			Gross:         money(p.Gross),
			Distributable: money(p.Distributable),
			WinningStake:  money(p.WinningStake),
		})
	}
	return v
}
