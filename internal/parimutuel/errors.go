package parimutuel

import "errors"

var (
	// ErrInvalidSettlementInput: liquidação chamada sem vencedores ou com
	// vencedores que não pertencem ao mercado. Erro do chamador.
	ErrInvalidSettlementInput = errors.New("invalid settlement input")

	// ErrInvalidRake: comissão fora de [0,1). Fatal na inicialização.
	ErrInvalidRake = errors.New("invalid rake")

	ErrNonPositiveAmount = errors.New("non-positive amount")
	ErrInvalidOutcome    = errors.New("invalid outcome")
	ErrUnknownMarket     = errors.New("unknown market")
	ErrMarketOpen        = errors.New("market still open")
)
