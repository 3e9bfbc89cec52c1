package dto

import "github.com/shopspring/decimal"

type PlaceBetResponse struct {
	BetID   string `json:"betId"`
	Market  string `json:"market"`
	Outcome string `json:"outcome"`
}

type BetView struct {
	BetID    string          `json:"betId"`
	BettorID string          `json:"bettorId"`
	Outcome  string          `json:"outcome"`
	Amount   decimal.Decimal `json:"amount"`
	PlacedAt string          `json:"placedAt"`
}

type MarketView struct {
	Market      string   `json:"market"`
	Status      string   `json:"status"`
	Rake        string   `json:"rake"`
	RakeVersion string   `json:"rakeVersion"`
	Outcomes    []string `json:"outcomes"`
	OpenedAt    string   `json:"openedAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
