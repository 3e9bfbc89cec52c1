package parimutuel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus distingue pagamento normal dos estados vazios que não são erro.
type SettlementStatus string

const (
	SettlementPaid           SettlementStatus = "paid"
	SettlementEmptyPool      SettlementStatus = "empty_pool"      // ninguém apostou
	SettlementUnbackedWinner SettlementStatus = "unbacked_winner" // ninguém apostou no vencedor; a casa retém
)

// PoolResult é a liquidação de um pool: o mercado inteiro em advance/win,
// ou uma proposição em prop.
type PoolResult struct {
	Proposition    string
	Winners        []OutcomeID
	Gross          decimal.Decimal
	Distributable  decimal.Decimal
	WinningStake   decimal.Decimal
	WinningBettors int // inclusive os que truncam para zero
	Status         SettlementStatus
}

// Settlement é o resultado autoritativo de um mercado.
type Settlement struct {
	Market    MarketKind
	Winners   []OutcomeID
	Rake      Rake
	Pools     []PoolResult
	Payouts   map[string]decimal.Decimal
	Status    SettlementStatus
	SettledAt time.Time
}

func (s Settlement) Gross() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Pools {
		total = total.Add(p.Gross)
	}
	return total
}

// Distributable soma o pool líquido dos pools que efetivamente pagaram.
func (s Settlement) Distributable() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Pools {
		if p.Status == SettlementPaid {
			total = total.Add(p.Distributable)
		}
	}
	return total
}

func (s Settlement) TotalPaid() decimal.Decimal {
	return sum(s.Payouts)
}

// Breakage é a fração de centavos retida pelo truncamento final.
func (s Settlement) Breakage() decimal.Decimal {
	return s.Distributable().Sub(s.TotalPaid())
}

// WinningBettors soma os apostadores vencedores de cada pool pago.
// Limita a quebra: cada um perde menos de um centavo no truncamento.
func (s Settlement) WinningBettors() int {
	n := 0
	for _, p := range s.Pools {
		if p.Status == SettlementPaid {
			n += p.WinningBettors
		}
	}
	return n
}

// Bettors devolve os apostadores pagos em ordem estável.
func (s Settlement) Bettors() []string {
	out := make([]string, 0, len(s.Payouts))
	for b := range s.Payouts {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// ValidateWinners normaliza (remove duplicados) e valida o conjunto de vencedores.
func ValidateWinners(m Market, winners []OutcomeID) ([]OutcomeID, error) {
	if len(winners) == 0 {
		return nil, fmt.Errorf("%w: no winning outcomes for %s", ErrInvalidSettlementInput, m.Kind)
	}

	seen := map[OutcomeID]bool{}
	sides := map[string]Side{}
	var out []OutcomeID
	for _, w := range winners {
		if w.Kind != m.Kind {
			return nil, fmt.Errorf("%w: outcome %s does not belong to %s market", ErrInvalidSettlementInput, w, m.Kind)
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSettlementInput, err)
		}
		if !m.Has(w) {
			return nil, fmt.Errorf("%w: outcome %s is not offered in %s market", ErrInvalidSettlementInput, w, m.Kind)
		}
		if seen[w] {
			continue
		}
		if m.Kind == KindProp {
			if prev, ok := sides[w.Target]; ok && prev != w.Side {
				return nil, fmt.Errorf("%w: both sides of proposition %s declared winners", ErrInvalidSettlementInput, w.Target)
			}
			sides[w.Target] = w.Side
		}
		seen[w] = true
		out = append(out, w)
	}

	if m.Kind == KindWin && len(out) != 1 {
		return nil, fmt.Errorf("%w: win market takes exactly one winner, got %d", ErrInvalidSettlementInput, len(out))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Compute liquida o mercado a partir das apostas e dos vencedores.
//
// Para cada pool: P = T * (1 - rake); cada aposta vencedora recebe
// amount / W * P, somado por apostador em precisão cheia, e cada total é
// truncado para centavos só no final. Assim sum(payouts) <= P sempre.
func Compute(m Market, bets []Bet, winners []OutcomeID) (Settlement, error) {
	winners, err := ValidateWinners(m, winners)
	if err != nil {
		return Settlement{}, err
	}
	pool, err := Aggregate(m.Kind, bets)
	if err != nil {
		return Settlement{}, err
	}

	s := Settlement{
		Market:  m.Kind,
		Winners: winners,
		Rake:    m.Rake,
		Payouts: map[string]decimal.Decimal{},
	}

	raw := map[string]decimal.Decimal{}
	if m.Kind == KindProp {
		for _, w := range winners {
			s.Pools = append(s.Pools, settlePool(m.Rake, pool.Proposition(w.Target), w.Target, []OutcomeID{w}, bets, raw))
		}
	} else {
		s.Pools = append(s.Pools, settlePool(m.Rake, pool, "", winners, bets, raw))
	}

	// quem tem direito a menos de um centavo fica fora; a fração vai para a quebra
	for bettor, amount := range raw {
		if paid := FloorCents(amount); paid.IsPositive() {
			s.Payouts[bettor] = paid
		}
	}
	s.Status = overallStatus(s.Pools)
	return s, nil
}

func settlePool(rake Rake, p Pool, prop string, winners []OutcomeID, bets []Bet, raw map[string]decimal.Decimal) PoolResult {
	res := PoolResult{
		Proposition:   prop,
		Winners:       winners,
		Gross:         p.Gross,
		Distributable: decimal.Zero,
		WinningStake:  decimal.Zero,
	}
	if !p.Gross.IsPositive() {
		res.Status = SettlementEmptyPool
		return res
	}
	res.Distributable = rake.Distributable(p.Gross)

	isWinner := make(map[OutcomeID]bool, len(winners))
	for _, w := range winners {
		isWinner[w] = true
		res.WinningStake = res.WinningStake.Add(p.Stake(w))
	}
	if !res.WinningStake.IsPositive() {
		res.Status = SettlementUnbackedWinner
		return res
	}

	// stake vencedor por apostador primeiro: uma única divisão por apostador
	staked := map[string]decimal.Decimal{}
	for _, b := range bets {
		if isWinner[b.Outcome] {
			staked[b.BettorID] = staked[b.BettorID].Add(b.Amount)
		}
	}
	for bettor, amount := range staked {
		raw[bettor] = raw[bettor].Add(div(amount.Mul(res.Distributable), res.WinningStake))
	}
	res.WinningBettors = len(staked)
	res.Status = SettlementPaid
	return res
}

func overallStatus(pools []PoolResult) SettlementStatus {
	status := SettlementEmptyPool
	for _, p := range pools {
		switch p.Status {
		case SettlementPaid:
			return SettlementPaid
		case SettlementUnbackedWinner:
			status = SettlementUnbackedWinner
		}
	}
	return status
}

// Engine liquida mercados lendo o livro.
type Engine struct {
	bets    BetReader
	markets MarketReader
	now     func() time.Time
}

func NewEngine(bets BetReader, markets MarketReader) *Engine {
	return &Engine{bets: bets, markets: markets, now: time.Now}
}

// Settle exige o mercado fechado: as apostas usadas não podem mudar durante o cálculo.
func (e *Engine) Settle(ctx context.Context, kind MarketKind, winners []OutcomeID) (Settlement, error) {
	return e.settle(ctx, kind, winners, true)
}

// Preview calcula sem olhar o ciclo de vida (relatórios e simulações).
func (e *Engine) Preview(ctx context.Context, kind MarketKind, winners []OutcomeID) (Settlement, error) {
	return e.settle(ctx, kind, winners, false)
}

func (e *Engine) settle(ctx context.Context, kind MarketKind, winners []OutcomeID, requireClosed bool) (Settlement, error) {
	m, err := e.markets.Market(ctx, kind)
	if err != nil {
		return Settlement{}, err
	}
	if requireClosed && m.Status == StatusOpen {
		return Settlement{}, fmt.Errorf("%w: close %s before settling", ErrMarketOpen, kind)
	}
	// valida antes de ler as apostas: entrada ruim não deve custar uma leitura
	if _, err := ValidateWinners(m, winners); err != nil {
		return Settlement{}, err
	}
	bets, err := e.bets.ListBets(ctx, kind)
	if err != nil {
		return Settlement{}, fmt.Errorf("list bets %s: %w", kind, err)
	}
	s, err := Compute(m, bets, winners)
	if err != nil {
		return Settlement{}, err
	}
	s.SettledAt = e.now().UTC()
	return s, nil
}

// Combine soma os pagamentos já arredondados de mercados liquidados
// independentemente.
func Combine(settlements ...Settlement) map[string]decimal.Decimal {
	totals := map[string]decimal.Decimal{}
	for _, s := range settlements {
		for bettor, amount := range s.Payouts {
			totals[bettor] = totals[bettor].Add(amount)
		}
	}
	return totals
}
