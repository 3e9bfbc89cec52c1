package topics

const (
	// Bets
	BetPlaced = "bet_placed"

	// Settlement
	MarketSettled = "market_settled"

	// Auditoria: eventos market_settled que violaram alguma checagem
	SettlementViolations = "settlement_violations"

	// DLQs
	BetPlacedDLQ     = "bet_placed_dlq"
	MarketSettledDLQ = "market_settled_dlq"
)
