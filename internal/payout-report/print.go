package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
)

func money(d decimal.Decimal) string {
	return "$" + parimutuel.RoundCurrency(d).StringFixed(parimutuel.CurrencyPlaces)
}

// Print imprime o resumo por mercado, os pagamentos e o total por apostador.
// Para no primeiro erro de escrita.
func Print(w io.Writer, r Report) error {
	if _, err := fmt.Fprintln(w, "PAYOUT CALCULATION RESULTS"); err != nil {
		return err
	}
	if err := printMarkets(w, r); err != nil {
		return fmt.Errorf("markets table: %w", err)
	}

	for _, m := range r.Markets {
		if m.Skipped != "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n%s market\n", m.Market); err != nil {
			return err
		}
		if err := printOdds(w, m.Odds); err != nil {
			return fmt.Errorf("%s odds table: %w", m.Market, err)
		}
		if err := printPayouts(w, m.Settlement.Payouts); err != nil {
			return fmt.Errorf("%s payouts table: %w", m.Market, err)
		}
	}

	if _, err := fmt.Fprintln(w, "\nTotal payouts by bettor"); err != nil {
		return err
	}
	if err := printPayouts(w, r.Totals); err != nil {
		return fmt.Errorf("totals table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\nHouse take: %s%% (%s)\nTotal payouts: %s\n",
		r.Rake.Fraction().Shift(2).StringFixed(1), r.Rake.Version(), money(r.TotalPaid()))
	return err
}

func printMarkets(w io.Writer, r Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Market", "Status", "Total pool", "Payout pool", "Winners", "Paid", "Breakage")
	for _, m := range r.Markets {
		if m.Skipped != "" {
			if err := table.Append(string(m.Market), "skipped: "+m.Skipped, "-", "-", "-", "-", "-"); err != nil {
				return err
			}
			continue
		}
		s := m.Settlement
		winners := make([]string, 0, len(s.Winners))
		for _, o := range s.Winners {
			winners = append(winners, o.Key())
		}
		if err := table.Append(
			string(m.Market),
			string(s.Status),
			money(s.Gross()),
			money(s.Distributable()),
			strings.Join(winners, ", "),
			money(s.TotalPaid()),
			money(s.Breakage()),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func printOdds(w io.Writer, odds parimutuel.Odds) error {
	keys := make([]string, 0, len(odds))
	byKey := make(map[string]parimutuel.Quote, len(odds))
	for o, q := range odds {
		keys = append(keys, o.Key())
		byKey[o.Key()] = q
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.Header("Outcome", "Stake", "Implied prob")
	for _, k := range keys {
		q := byKey[k]
		if err := table.Append(k, money(q.Stake), parimutuel.RoundProbability(q.Probability).StringFixed(parimutuel.ProbabilityPlaces)); err != nil {
			return err
		}
	}
	return table.Render()
}

func printPayouts(w io.Writer, payouts map[string]decimal.Decimal) error {
	bettors := make([]string, 0, len(payouts))
	for b := range payouts {
		bettors = append(bettors, b)
	}
	sort.Strings(bettors)

	table := tablewriter.NewWriter(w)
	table.Header("Bettor", "Payout")
	for _, b := range bettors {
		if err := table.Append(b, money(payouts[b])); err != nil {
			return err
		}
	}
	return table.Render()
}
