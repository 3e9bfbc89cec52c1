// Package report calcula e imprime a prévia de pagamentos de todos os mercados
// a partir de um arquivo de resultados, sem gravar nada no livro.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
)

// Book é o que o relatório lê do livro
type Book interface {
	parimutuel.BetReader
	parimutuel.MarketReader
}

type MarketReport struct {
	Market     parimutuel.MarketKind
	Skipped    string // motivo quando o mercado ficou fora
	Settlement parimutuel.Settlement
	Odds       parimutuel.Odds // cotação final, antes do resultado
}

type Report struct {
	Markets []MarketReport
	Totals  map[string]decimal.Decimal // por apostador, somando os mercados
	Rake    parimutuel.Rake
}

// TotalPaid soma os totais por apostador
func (r Report) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.Totals {
		total = total.Add(v)
	}
	return total
}

// Build faz a prévia de cada mercado com resultado declarado
// Mercado não aberto ou sem resultado entra como Skipped; erro de entrada aborta
// A comissão exibida é a carimbada nos mercados; rake só vale se nenhum liquidou
func Build(ctx context.Context, book Book, results Results, rake parimutuel.Rake) (Report, error) {
	engine := parimutuel.NewEngine(book, book)
	calc := parimutuel.NewCalculator(parimutuel.NewAggregator(book))

	var rep Report
	var settled []parimutuel.Settlement
	for _, kind := range parimutuel.Kinds {
		mr := MarketReport{Market: kind}

		winners, err := results.Winners(kind)
		if err != nil {
			return Report{}, fmt.Errorf("%s results: %w", kind, err)
		}
		if len(winners) == 0 {
			mr.Skipped = "no result declared"
			rep.Markets = append(rep.Markets, mr)
			continue
		}

		s, err := engine.Preview(ctx, kind, winners)
		if errors.Is(err, ledger.ErrMarketNotFound) {
			mr.Skipped = "market not opened"
			rep.Markets = append(rep.Markets, mr)
			continue
		}
		if err != nil {
			return Report{}, fmt.Errorf("%s: %w", kind, err)
		}
		if mr.Odds, err = calc.ImpliedProbabilities(ctx, kind); err != nil {
			return Report{}, fmt.Errorf("%s odds: %w", kind, err)
		}
		if rep.Rake.IsZero() {
			rep.Rake = s.Rake
		}

		mr.Settlement = s
		settled = append(settled, s)
		rep.Markets = append(rep.Markets, mr)
	}
	if rep.Rake.IsZero() {
		rep.Rake = rake
	}
	rep.Totals = parimutuel.Combine(settled...)
	return rep, nil
}
