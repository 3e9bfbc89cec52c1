package events

import "github.com/shopspring/decimal"

// Evento emitido pelo bet-service quando uma aposta entra no livro.
type BetPlaced struct {
	BetID    string          `json:"bet_id"`
	BettorID string          `json:"bettor_id"`
	Market   string          `json:"market"`  // "advance" | "win" | "prop"
	Outcome  string          `json:"outcome"` // ex: "win:p1", "prop:goal:yes"
	Amount   decimal.Decimal `json:"amount"`
	TsUnixMs int64           `json:"ts_unix_ms"`
}
