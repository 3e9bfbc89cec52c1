package dto

import "github.com/shopspring/decimal"

type PlaceBetRequest struct {
	BettorID string          `json:"bettorId"`
	Target   string          `json:"target"` // jogador (advance/win) ou proposição (prop)
	Side     string          `json:"side,omitempty"`
	Amount   decimal.Decimal `json:"amount"` // aceita 10.5 ou "10.50"
}

// OpenMarketRequest lista os resultados ofertados. Em prop, "goal" abre os
// dois lados e "goal:yes" só um.
type OpenMarketRequest struct {
	Outcomes []string `json:"outcomes"`
}
