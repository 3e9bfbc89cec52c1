package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/parimutuel-pools/internal/bet-service/dto"
	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

type Publisher interface {
	PublishBetPlaced(context.Context, events.BetPlaced) error
}

// Metrics agrupa os contadores do bet-service
type Metrics struct {
	Placed   prometheus.Counter
	Rejected *prometheus.CounterVec
	Stake    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Placed:   prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_placed_total", Help: "apostas aceitas no livro"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_rejected_total", Help: "apostas rejeitadas por motivo"}, []string{"reason"}),
		Stake:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_stake_total", Help: "volume apostado por mercado"}, []string{"market"}),
	}
	reg.MustRegister(m.Placed, m.Rejected, m.Stake)
	return m
}

type Options struct {
	Rake         parimutuel.Rake // carimbada em mercados novos
	BettorDomain string
	RateLimit    float64 // req/s; 0 desliga
	RateBurst    int
}

type Server struct {
	log     *zap.Logger
	store   ledger.Store
	publ    Publisher
	metrics *Metrics
	opts    Options
	limiter *rate.Limiter
}

func NewServer(log *zap.Logger, store ledger.Store, p Publisher, m *Metrics, opts Options) *Server {
	s := &Server{log: log, store: store, publ: p, metrics: m, opts: opts}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/v1/markets", s.listMarkets)
	r.Route("/v1/markets/{kind}", func(r chi.Router) {
		r.With(s.rateLimit).Post("/bets", s.placeBet)
		r.Get("/bets", s.listBets)
		r.Post("/open", s.openMarket)
		r.Post("/close", s.closeMarket)
	})
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.reject("rate_limited")
			writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{Error: "too many bets, slow down"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject("bad_json")
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	req.BettorID = strings.TrimSpace(req.BettorID)
	if !s.bettorAllowed(req.BettorID) {
		s.reject("bettor_domain")
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "bettor must use an @" + s.opts.BettorDomain + " address"})
		return
	}

	outcome, err := parimutuel.NewOutcome(kind, req.Target, req.Side)
	if err != nil {
		s.fail(w, err)
		return
	}

	betID, err := s.store.AppendBet(r.Context(), ledger.NewBet{Outcome: outcome, BettorID: req.BettorID, Amount: req.Amount})
	if err != nil {
		s.fail(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Placed.Inc()
		s.metrics.Stake.WithLabelValues(string(kind)).Add(req.Amount.InexactFloat64())
	}

	// o livro já tem a aposta; falha no Kafka só atrasa o recálculo das odds
	if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
		BetID:    betID,
		BettorID: req.BettorID,
		Market:   string(kind),
		Outcome:  outcome.String(),
		Amount:   req.Amount,
		TsUnixMs: time.Now().UnixMilli(),
	}); err != nil {
		s.log.Warn("publish bet_placed failed", zap.String("bet_id", betID), zap.Error(err))
	}

	s.log.Info("bet placed",
		zap.String("bet_id", betID),
		zap.String("market", string(kind)),
		zap.String("outcome", outcome.String()),
		zap.String("amount", req.Amount.String()),
	)
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{BetID: betID, Market: string(kind), Outcome: outcome.String()})
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}

	var (
		bets []parimutuel.Bet
		err  error
	)
	if key := r.URL.Query().Get("outcome"); key != "" {
		o, perr := parimutuel.ParseOutcomeKey(kind, key)
		if perr != nil {
			s.fail(w, perr)
			return
		}
		bets, err = s.store.ListBetsByOutcome(r.Context(), kind, o)
	} else {
		bets, err = s.store.ListBets(r.Context(), kind)
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	out := make([]dto.BetView, 0, len(bets))
	for _, b := range bets {
		out = append(out, dto.BetView{
			BetID:    b.ID,
			BettorID: b.BettorID,
			Outcome:  b.Outcome.Key(),
			Amount:   b.Amount,
			PlacedAt: b.PlacedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.Markets(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]dto.MarketView, 0, len(markets))
	for _, m := range markets {
		out = append(out, marketView(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) openMarket(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	var req dto.OpenMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	outcomes, err := expandOutcomes(kind, req.Outcomes)
	if err != nil {
		s.fail(w, err)
		return
	}

	m, err := s.store.OpenMarket(r.Context(), kind, outcomes, s.opts.Rake)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("market open",
		zap.String("market", string(kind)),
		zap.Int("outcomes", len(m.Outcomes)),
		zap.String("rake", m.Rake.String()),
	)
	writeJSON(w, http.StatusOK, marketView(m))
}

func (s *Server) closeMarket(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	if err := s.store.CloseMarket(r.Context(), kind); err != nil {
		s.fail(w, err)
		return
	}
	m, err := s.store.Market(r.Context(), kind)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("market closed", zap.String("market", string(kind)))
	writeJSON(w, http.StatusOK, marketView(m))
}

// expandOutcomes aceita chaves curtas; em prop uma proposição sem lado vira os dois lados
func expandOutcomes(kind parimutuel.MarketKind, keys []string) ([]parimutuel.OutcomeID, error) {
	var out []parimutuel.OutcomeID
	for _, k := range keys {
		if kind == parimutuel.KindProp && !strings.Contains(k, ":") {
			for _, side := range []parimutuel.Side{parimutuel.SideYes, parimutuel.SideNo} {
				o, err := parimutuel.PropOutcome(k, side)
				if err != nil {
					return nil, err
				}
				out = append(out, o)
			}
			continue
		}
		o, err := parimutuel.ParseOutcomeKey(kind, k)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Server) bettorAllowed(id string) bool {
	if s.opts.BettorDomain == "" {
		return true
	}
	at := strings.LastIndex(id, "@")
	return at > 0 && strings.EqualFold(id[at+1:], s.opts.BettorDomain)
}

func (s *Server) kindParam(w http.ResponseWriter, r *http.Request) (parimutuel.MarketKind, bool) {
	kind, err := parimutuel.ParseMarketKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		return "", false
	}
	return kind, true
}

// fail traduz os erros do livro e do núcleo em status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	status, reason := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, parimutuel.ErrNonPositiveAmount):
		status, reason = http.StatusBadRequest, "non_positive_amount"
	case errors.Is(err, parimutuel.ErrInvalidOutcome),
		errors.Is(err, ledger.ErrMissingBettor),
		errors.Is(err, ledger.ErrNoOutcomes):
		status, reason = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ledger.ErrUnknownOutcome):
		status, reason = http.StatusUnprocessableEntity, "unknown_outcome"
	case errors.Is(err, ledger.ErrMarketNotFound), errors.Is(err, parimutuel.ErrUnknownMarket):
		status, reason = http.StatusNotFound, "market_not_found"
	case errors.Is(err, ledger.ErrMarketClosed), errors.Is(err, ledger.ErrAlreadySettled):
		status, reason = http.StatusConflict, "market_closed"
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		writeJSON(w, status, dto.ErrorResponse{Error: "internal error"})
		return
	}
	s.reject(reason)
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}

func (s *Server) reject(reason string) {
	if s.metrics != nil {
		s.metrics.Rejected.WithLabelValues(reason).Inc()
	}
}

func marketView(m parimutuel.Market) dto.MarketView {
	v := dto.MarketView{
		Market:      string(m.Kind),
		Status:      string(m.Status),
		Rake:        m.Rake.Fraction().String(),
		RakeVersion: m.Rake.Version(),
		Outcomes:    make([]string, 0, len(m.Outcomes)),
		OpenedAt:    m.OpenedAt.Format(time.RFC3339),
	}
	for _, o := range m.Outcomes {
		v.Outcomes = append(v.Outcomes, o.Key())
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
