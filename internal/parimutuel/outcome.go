package parimutuel

import (
	"fmt"
	"strings"
)

// OutcomeID é um identificador de resultado vinculado ao tipo de mercado.
// Target é o jogador (advance/win) ou a proposição (prop); Side só existe em prop.
// Formato textual: "win:p1", "advance:p1", "prop:prop-1:yes".
type OutcomeID struct {
	Kind   MarketKind
	Target string
	Side   Side
}

// PlayerOutcome monta o identificador de um jogador em advance ou win.
func PlayerOutcome(kind MarketKind, player string) (OutcomeID, error) {
	o := OutcomeID{Kind: kind, Target: strings.TrimSpace(player)}
	return o, o.Validate()
}

// PropOutcome monta o identificador de um lado de uma proposição.
func PropOutcome(prop string, side Side) (OutcomeID, error) {
	o := OutcomeID{Kind: KindProp, Target: strings.TrimSpace(prop), Side: side}
	return o, o.Validate()
}

// NewOutcome monta o identificador a partir dos campos da API (side só em prop).
func NewOutcome(kind MarketKind, target, side string) (OutcomeID, error) {
	if kind == KindProp {
		return PropOutcome(target, Side(strings.ToLower(strings.TrimSpace(side))))
	}
	if side != "" {
		return OutcomeID{}, fmt.Errorf("%w: side is only valid for prop markets", ErrInvalidOutcome)
	}
	return PlayerOutcome(kind, target)
}

func (o OutcomeID) Validate() error {
	if o.Target == "" || strings.Contains(o.Target, ":") {
		return fmt.Errorf("%w: bad target %q", ErrInvalidOutcome, o.Target)
	}
	switch o.Kind {
	case KindAdvance, KindWin:
		if o.Side != "" {
			return fmt.Errorf("%w: %s outcome cannot have a side", ErrInvalidOutcome, o.Kind)
		}
	case KindProp:
		if o.Side != SideYes && o.Side != SideNo {
			return fmt.Errorf("%w: prop side must be yes or no, got %q", ErrInvalidOutcome, o.Side)
		}
	default:
		return fmt.Errorf("%w: unknown market %q", ErrInvalidOutcome, o.Kind)
	}
	return nil
}

func (o OutcomeID) String() string {
	if o.Kind == KindProp {
		return string(o.Kind) + ":" + o.Target + ":" + string(o.Side)
	}
	return string(o.Kind) + ":" + o.Target
}

// Key é a forma curta usada como chave nos mapas da API (sem o mercado).
func (o OutcomeID) Key() string {
	if o.Kind == KindProp {
		return o.Target + ":" + string(o.Side)
	}
	return o.Target
}

// ParseOutcomeID faz o caminho inverso de String.
func ParseOutcomeID(s string) (OutcomeID, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return OutcomeID{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
	kind, err := ParseMarketKind(parts[0])
	if err != nil {
		return OutcomeID{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
	return ParseOutcomeKey(kind, strings.Join(parts[1:], ":"))
}

// ParseOutcomeKey interpreta uma chave curta dentro de um mercado conhecido.
func ParseOutcomeKey(kind MarketKind, key string) (OutcomeID, error) {
	if kind == KindProp {
		i := strings.LastIndex(key, ":")
		if i < 0 {
			return OutcomeID{}, fmt.Errorf("%w: prop outcome %q needs a side", ErrInvalidOutcome, key)
		}
		return PropOutcome(key[:i], Side(key[i+1:]))
	}
	return PlayerOutcome(kind, key)
}

func (o OutcomeID) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *OutcomeID) UnmarshalText(b []byte) error {
	parsed, err := ParseOutcomeID(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
