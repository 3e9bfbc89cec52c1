package report

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
)

// Results é o arquivo de resultados oficiais do evento
//
//	advance_winners: [Runner_Open_1_1, Runner_Open_1_2]
//	win_winner: Runner_Open_1_1
//	prop_results:
//	  photo_finish: true
//	  record_broken: false
type Results struct {
	AdvanceWinners []string        `yaml:"advance_winners"`
	WinWinner      string          `yaml:"win_winner"`
	PropResults    map[string]bool `yaml:"prop_results"`
}

func LoadResults(path string) (Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Results{}, fmt.Errorf("results: read %q: %w", path, err)
	}
	return ParseResults(data)
}

func ParseResults(data []byte) (Results, error) {
	var r Results
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Results{}, fmt.Errorf("results: parse YAML: %w", err)
	}
	return r, nil
}

// Winners devolve os vencedores declarados para o mercado; vazio quando o
// arquivo não traz resultado para ele
func (r Results) Winners(kind parimutuel.MarketKind) ([]parimutuel.OutcomeID, error) {
	var out []parimutuel.OutcomeID
	switch kind {
	case parimutuel.KindAdvance:
		for _, p := range r.AdvanceWinners {
			o, err := parimutuel.PlayerOutcome(kind, p)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	case parimutuel.KindWin:
		if r.WinWinner != "" {
			o, err := parimutuel.PlayerOutcome(kind, r.WinWinner)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	case parimutuel.KindProp:
		props := make([]string, 0, len(r.PropResults))
		for p := range r.PropResults {
			props = append(props, p)
		}
		sort.Strings(props)
		for _, p := range props {
			o, err := parimutuel.PropOutcome(p, parimutuel.SideFromBool(r.PropResults[p]))
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	default:
		return nil, fmt.Errorf("%w: %q", parimutuel.ErrUnknownMarket, kind)
	}
	return out, nil
}
