package parimutuel

import "github.com/shopspring/decimal"

const (
	// casas decimais usadas apenas na fronteira de apresentação
	CurrencyPlaces    int32 = 2
	ProbabilityPlaces int32 = 4

	// precisão das divisões internas (muito acima de qualquer casa exibida)
	internalPrecision int32 = 28
)

// RoundCurrency arredonda um valor monetário para exibição (half-up).
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// RoundProbability arredonda uma probabilidade para exibição (half-up).
func RoundProbability(d decimal.Decimal) decimal.Decimal {
	return d.Round(ProbabilityPlaces)
}

// FloorCents trunca um pagamento para centavos. Usado só no pagamento final:
// a fração descartada fica com a casa, nunca é criada.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(CurrencyPlaces)
}

// ParseAmount converte uma string monetária e exige valor positivo.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return d, nil
}

func div(num, den decimal.Decimal) decimal.Decimal {
	return num.DivRound(den, internalPrecision)
}

func sum(values map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
