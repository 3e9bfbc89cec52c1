package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type OutcomeOdds struct {
	Prob  decimal.Decimal `json:"prob"`
	Stake decimal.Decimal `json:"stake"`
}

// Evento publicado no canal Redis de broadcast a cada recálculo de odds
type OddsUpdate struct {
	Market    string                 `json:"market"`
	Version   int64                  `json:"version"` // número de apostas do livro no cálculo
	Gross     decimal.Decimal        `json:"gross"`
	Outcomes  map[string]OutcomeOdds `json:"outcomes"`
	UpdatedAt time.Time              `json:"updated_at"`
}
