package parimutuel

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultRake é a comissão da casa quando nada é configurado (3%).
var DefaultRake = MustRake("0.03", "v1")

// Rake é a comissão fixa da casa. Imutável depois de criada; Version identifica
// qual configuração estava em vigor quando o mercado abriu.
type Rake struct {
	fraction decimal.Decimal
	version  string
}

// NewRake valida a fração em [0,1).
func NewRake(fraction decimal.Decimal, version string) (Rake, error) {
	if fraction.IsNegative() || fraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Rake{}, fmt.Errorf("%w: %s not in [0,1)", ErrInvalidRake, fraction.String())
	}
	if version == "" {
		version = "v1"
	}
	return Rake{fraction: fraction, version: version}, nil
}

func ParseRake(s, version string) (Rake, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rake{}, fmt.Errorf("%w: %q: %v", ErrInvalidRake, s, err)
	}
	return NewRake(d, version)
}

func MustRake(s, version string) Rake {
	r, err := ParseRake(s, version)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rake) Fraction() decimal.Decimal { return r.fraction }
func (r Rake) Version() string           { return r.version }
func (r Rake) IsZero() bool              { return r.version == "" }

// Distributable devolve o pool líquido: gross * (1 - rake).
func (r Rake) Distributable(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(decimal.NewFromInt(1).Sub(r.fraction))
}

func (r Rake) String() string {
	return r.fraction.String() + "@" + r.version
}
