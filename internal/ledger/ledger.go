// Package ledger é o livro de apostas append-only e o ciclo de vida dos mercados.
//
// Toda leitura devolve um snapshot consistente; AppendBet e CloseMarket são
// mutuamente exclusivos por mercado, então depois do fechamento as apostas
// usadas na liquidação não mudam mais.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/shopspring/decimal"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrMarketClosed   = errors.New("market closed")
	ErrAlreadySettled = errors.New("market already settled")
	ErrNotSettled     = errors.New("market not settled")
	ErrUnknownOutcome = errors.New("outcome not offered in market")
	ErrMissingBettor  = errors.New("missing bettor id")
	ErrNoOutcomes     = errors.New("market needs at least one outcome")
)

// NewBet é o pedido de inclusão no livro; ID e horário são atribuídos pelo store.
type NewBet struct {
	Outcome  parimutuel.OutcomeID
	BettorID string
	Amount   decimal.Decimal
}

// Store é o contrato do livro consumido pelos serviços.
type Store interface {
	parimutuel.BetReader
	parimutuel.MarketReader

	ListBetsByOutcome(ctx context.Context, kind parimutuel.MarketKind, outcome parimutuel.OutcomeID) ([]parimutuel.Bet, error)
	Markets(ctx context.Context) ([]parimutuel.Market, error)
	// Version é o número de apostas do mercado; muda a cada AppendBet aceito.
	Version(ctx context.Context, kind parimutuel.MarketKind) (int64, error)

	AppendBet(ctx context.Context, nb NewBet) (string, error)
	IsOpen(ctx context.Context, kind parimutuel.MarketKind) (bool, error)
	// OpenMarket cria o mercado carimbando a comissão, ou acrescenta resultados
	// a um mercado ainda aberto (a comissão original é mantida).
	OpenMarket(ctx context.Context, kind parimutuel.MarketKind, outcomes []parimutuel.OutcomeID, rake parimutuel.Rake) (parimutuel.Market, error)
	CloseMarket(ctx context.Context, kind parimutuel.MarketKind) error

	// RecordSettlement grava a liquidação uma única vez (closed -> settled).
	RecordSettlement(ctx context.Context, s parimutuel.Settlement) error
	Settlement(ctx context.Context, kind parimutuel.MarketKind) (parimutuel.Settlement, error)

	Ping(ctx context.Context) error
	Close() error
}

func validateNewBet(nb NewBet) error {
	if strings.TrimSpace(nb.BettorID) == "" {
		return ErrMissingBettor
	}
	if !nb.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", parimutuel.ErrNonPositiveAmount, nb.Amount.String())
	}
	return nb.Outcome.Validate()
}

func validateOpen(kind parimutuel.MarketKind, outcomes []parimutuel.OutcomeID, rake parimutuel.Rake) error {
	if _, err := parimutuel.ParseMarketKind(string(kind)); err != nil {
		return err
	}
	if len(outcomes) == 0 {
		return ErrNoOutcomes
	}
	if rake.IsZero() {
		return fmt.Errorf("%w: market %s opened without a rake", parimutuel.ErrInvalidRake, kind)
	}
	for _, o := range outcomes {
		if o.Kind != kind {
			return fmt.Errorf("%w: %s in %s market", parimutuel.ErrInvalidOutcome, o, kind)
		}
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateSettlement(s parimutuel.Settlement) error {
	if len(s.Winners) == 0 {
		return fmt.Errorf("%w: settlement without winners", parimutuel.ErrInvalidSettlementInput)
	}
	if s.Rake.IsZero() {
		return fmt.Errorf("%w: settlement without rake", parimutuel.ErrInvalidRake)
	}
	return nil
}

// winnersOf reconstrói o conjunto de vencedores a partir dos pools gravados.
func winnersOf(pools []parimutuel.PoolResult) []parimutuel.OutcomeID {
	var out []parimutuel.OutcomeID
	for _, p := range pools {
		out = append(out, p.Winners...)
	}
	return out
}
