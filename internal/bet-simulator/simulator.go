// Package simulator gera tráfego de apostas contra o bet-service para demos
// e testes de carga.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/bet-service/dto"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
)

// Catalog é o conjunto de corredores e proposições de demonstração
type Catalog struct {
	Runners []string
	Props   []string
}

// DefaultCatalog: 3 divisões x 3 baterias x 5 corredores e quatro proposições
func DefaultCatalog() Catalog {
	var c Catalog
	for _, div := range []string{"Open", "Women", "Silver"} {
		for heat := 1; heat <= 3; heat++ {
			for i := 1; i <= 5; i++ {
				c.Runners = append(c.Runners, fmt.Sprintf("Runner_%s_%d_%d", div, heat, i))
			}
		}
	}
	c.Props = []string{"under_18_min", "photo_finish", "baton_drop", "record_broken"}
	return c
}

type Simulator struct {
	Log     *zap.Logger
	Client  *Client
	Catalog Catalog
	Bettors []string
	Rand    *rand.Rand

	OnSent   func(market string) // métricas
	OnFailed func(market string)
}

// New monta o simulador; com domain, os apostadores viram "bettorNN@domain"
func New(log *zap.Logger, c *Client, catalog Catalog, bettors int, domain string) *Simulator {
	s := &Simulator{Log: log, Client: c, Catalog: catalog, Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for i := 1; i <= bettors; i++ {
		id := fmt.Sprintf("bettor%02d", i)
		if domain != "" {
			id += "@" + domain
		}
		s.Bettors = append(s.Bettors, id)
	}
	return s
}

// Seed abre os três mercados; mercado já fechado é só registrado no log
func (s *Simulator) Seed(ctx context.Context) error {
	for _, m := range []struct {
		kind     parimutuel.MarketKind
		outcomes []string
	}{
		{parimutuel.KindAdvance, s.Catalog.Runners},
		{parimutuel.KindWin, s.Catalog.Runners},
		{parimutuel.KindProp, s.Catalog.Props},
	} {
		view, err := s.Client.OpenMarket(ctx, string(m.kind), m.outcomes)
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusConflict {
			s.Log.Warn("market not open for seeding", zap.String("market", string(m.kind)), zap.String("reason", se.Body))
			continue
		}
		if err != nil {
			return fmt.Errorf("open %s: %w", m.kind, err)
		}
		s.Log.Info("market seeded", zap.String("market", view.Market), zap.Int("outcomes", len(view.Outcomes)))
	}
	return nil
}

// Next sorteia mercado, resultado, apostador e valor (1.00 a 50.00)
func (s *Simulator) Next() (parimutuel.MarketKind, dto.PlaceBetRequest) {
	kind := parimutuel.Kinds[s.Rand.Intn(len(parimutuel.Kinds))]
	req := dto.PlaceBetRequest{
		BettorID: s.Bettors[s.Rand.Intn(len(s.Bettors))],
		Amount:   decimal.New(s.Rand.Int63n(4901)+100, -2),
	}
	if kind == parimutuel.KindProp {
		req.Target = s.Catalog.Props[s.Rand.Intn(len(s.Catalog.Props))]
		req.Side = string(parimutuel.SideFromBool(s.Rand.Intn(2) == 0))
	} else {
		req.Target = s.Catalog.Runners[s.Rand.Intn(len(s.Catalog.Runners))]
	}
	return kind, req
}

// Send envia uma aposta sorteada; falhas são contadas e não param o loop
func (s *Simulator) Send(ctx context.Context) {
	kind, req := s.Next()
	resp, err := s.Client.PlaceBet(ctx, string(kind), req)
	if err != nil {
		s.Log.Warn("bet failed", zap.String("market", string(kind)), zap.String("target", req.Target), zap.Error(err))
		if s.OnFailed != nil {
			s.OnFailed(string(kind))
		}
		return
	}
	s.Log.Debug("bet sent", zap.String("bet_id", resp.BetID), zap.String("outcome", resp.Outcome), zap.String("amount", req.Amount.String()))
	if s.OnSent != nil {
		s.OnSent(string(kind))
	}
}

// Run envia uma aposta por tick até o contexto terminar
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Send(ctx)
		}
	}
}
