package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evento publicado no tópico "market_settled" depois que a liquidação é gravada.
// Consumidores de pagamento usam Payouts; valores já truncados em centavos.
type MarketSettled struct {
	Market         string                     `json:"market"`
	Status         string                     `json:"status"` // "paid" | "empty_pool" | "unbacked_winner"
	Winners        []string                   `json:"winners"`
	Rake           decimal.Decimal            `json:"rake"`
	RakeVersion    string                     `json:"rake_version"`
	Gross          decimal.Decimal            `json:"gross"`
	Distributable  decimal.Decimal            `json:"distributable"`
	TotalPaid      decimal.Decimal            `json:"total_paid"`
	WinningBettors int                        `json:"winning_bettors"` // pode exceder len(Payouts)
	Payouts        map[string]decimal.Decimal `json:"payouts"`
	SettledAt      time.Time                  `json:"settled_at"`
}
