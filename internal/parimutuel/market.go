package parimutuel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MarketKind identifica um dos mercados de aposta do evento.
type MarketKind string

const (
	KindAdvance MarketKind = "advance" // quem avança (vários vencedores)
	KindWin     MarketKind = "win"     // vencedor geral (exatamente um)
	KindProp    MarketKind = "prop"    // proposições sim/não
)

// Kinds lista os mercados na ordem usada em relatórios.
var Kinds = []MarketKind{KindAdvance, KindWin, KindProp}

func ParseMarketKind(s string) (MarketKind, error) {
	switch k := MarketKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAdvance, KindWin, KindProp:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMarket, s)
}

// Side é o lado de uma proposição.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

func SideFromBool(yes bool) Side {
	if yes {
		return SideYes
	}
	return SideNo
}

// MarketStatus segue o ciclo open -> closed -> settled.
type MarketStatus string

const (
	StatusOpen    MarketStatus = "open"
	StatusClosed  MarketStatus = "closed"
	StatusSettled MarketStatus = "settled"
)

// Market é a definição de um mercado: conjunto fechado de resultados válidos
// e a comissão carimbada quando as apostas abriram.
type Market struct {
	Kind     MarketKind
	Status   MarketStatus
	Outcomes []OutcomeID
	Rake     Rake
	OpenedAt time.Time
}

// Has informa se o resultado pertence ao conjunto do mercado.
func (m Market) Has(o OutcomeID) bool {
	for _, x := range m.Outcomes {
		if x == o {
			return true
		}
	}
	return false
}

// Bet é um registro imutável do livro de apostas.
type Bet struct {
	ID       string
	Market   MarketKind
	Outcome  OutcomeID
	Amount   decimal.Decimal
	BettorID string
	PlacedAt time.Time
}

// BetReader é a interface de leitura do livro usada pelo núcleo.
// Cada chamada deve devolver um snapshot consistente.
type BetReader interface {
	ListBets(ctx context.Context, kind MarketKind) ([]Bet, error)
}

// MarketReader expõe a definição e o estado do mercado.
type MarketReader interface {
	Market(ctx context.Context, kind MarketKind) (Market, error)
}
