package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/internal/settlement-service/dto"
	"github.com/radieske/parimutuel-pools/internal/settlement-service/lock"
)

// Locker serializa liquidações do mesmo mercado entre instâncias
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type Publisher interface {
	PublishMarketSettled(ctx context.Context, s parimutuel.Settlement) error
}

// Metrics agrupa os contadores do settlement-service
type Metrics struct {
	Settled  *prometheus.CounterVec
	Paid     *prometheus.CounterVec
	Breakage *prometheus.CounterVec
	Failed   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Settled:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlements_total", Help: "mercados liquidados por status"}, []string{"market", "status"}),
		Paid:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_payouts_total", Help: "valor pago por mercado"}, []string{"market"}),
		Breakage: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_breakage_total", Help: "centavos retidos pelo truncamento"}, []string{"market"}),
		Failed:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_failures_total", Help: "pedidos de liquidação recusados por motivo"}, []string{"reason"}),
	}
	reg.MustRegister(m.Settled, m.Paid, m.Breakage, m.Failed)
	return m
}

// Server expõe a liquidação de mercados
type Server struct {
	log     *zap.Logger
	store   ledger.Store
	engine  *parimutuel.Engine
	lock    Locker
	publ    Publisher
	metrics *Metrics
}

// NewServer instancia o servidor HTTP de liquidação
func NewServer(log *zap.Logger, store ledger.Store, l Locker, p Publisher, m *Metrics) *Server {
	return &Server{
		log:     log,
		store:   store,
		engine:  parimutuel.NewEngine(store, store),
		lock:    l,
		publ:    p,
		metrics: m,
	}
}

// Router retorna o roteador HTTP com as rotas de liquidação
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Route("/v1/markets/{kind}", func(r chi.Router) {
		r.Post("/settle", s.settle)   // liquida e grava (uma vez)
		r.Post("/preview", s.preview) // calcula sem gravar
		r.Get("/settlement", s.getSettlement)
	})
	return r
}

// settle: lock -> (close) -> Engine.Settle -> RecordSettlement -> market_settled
func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	kind, winners, req, ok := s.decode(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	release, err := s.lock.Acquire(ctx, "settle:"+string(kind))
	if err != nil {
		s.fail(w, err)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("settlement lock release failed", zap.String("market", string(kind)), zap.Error(err))
		}
	}()

	if req.Close {
		if err := s.store.CloseMarket(ctx, kind); err != nil {
			s.fail(w, err)
			return
		}
	}

	st, err := s.engine.Settle(ctx, kind, winners)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.RecordSettlement(ctx, st); err != nil {
		s.fail(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.Settled.WithLabelValues(string(kind), string(st.Status)).Inc()
		s.metrics.Paid.WithLabelValues(string(kind)).Add(st.TotalPaid().InexactFloat64())
		s.metrics.Breakage.WithLabelValues(string(kind)).Add(st.Breakage().InexactFloat64())
	}

	// a liquidação já está gravada; o evento vai para a DLQ se o Kafka falhar
	if err := s.publ.PublishMarketSettled(ctx, st); err != nil {
		s.log.Error("publish market_settled failed", zap.String("market", string(kind)), zap.Error(err))
	}

	s.log.Info("market settled",
		zap.String("market", string(kind)),
		zap.String("status", string(st.Status)),
		zap.Int("bettors", len(st.Payouts)),
		zap.String("total_paid", st.TotalPaid().StringFixed(2)),
		zap.String("rake_version", st.Rake.Version()),
	)
	writeJSON(w, http.StatusOK, dto.FromSettlement(st))
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	kind, winners, _, ok := s.decode(w, r)
	if !ok {
		return
	}
	st, err := s.engine.Preview(r.Context(), kind, winners)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSettlement(st))
}

func (s *Server) getSettlement(w http.ResponseWriter, r *http.Request) {
	kind, err := parimutuel.ParseMarketKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.fail(w, err)
		return
	}
	st, err := s.store.Settlement(r.Context(), kind)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSettlement(st))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (parimutuel.MarketKind, []parimutuel.OutcomeID, dto.SettleRequest, bool) {
	var req dto.SettleRequest
	kind, err := parimutuel.ParseMarketKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.fail(w, err)
		return "", nil, req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.count("bad_json")
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return "", nil, req, false
	}
	winners, err := Winners(kind, req)
	if err != nil {
		s.fail(w, err)
		return "", nil, req, false
	}
	return kind, winners, req, true
}

// Winners converte o pedido em resultados vencedores do mercado
// Em prop, cada proposição informada vira o lado que aconteceu
func Winners(kind parimutuel.MarketKind, req dto.SettleRequest) ([]parimutuel.OutcomeID, error) {
	var out []parimutuel.OutcomeID
	if len(req.Results) > 0 {
		if kind != parimutuel.KindProp {
			return nil, fmt.Errorf("%w: results are only valid for prop markets", parimutuel.ErrInvalidSettlementInput)
		}
		props := make([]string, 0, len(req.Results))
		for p := range req.Results {
			props = append(props, p)
		}
		sort.Strings(props)
		for _, p := range props {
			o, err := parimutuel.PropOutcome(p, parimutuel.SideFromBool(req.Results[p]))
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	}
	for _, k := range req.Winners {
		o, err := parimutuel.ParseOutcomeKey(kind, k)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no winners given", parimutuel.ErrInvalidSettlementInput)
	}
	return out, nil
}

// fail traduz os erros do núcleo, do livro e do lock em status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	status, reason := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, parimutuel.ErrInvalidSettlementInput), errors.Is(err, parimutuel.ErrInvalidOutcome):
		status, reason = http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, parimutuel.ErrMarketOpen):
		status, reason = http.StatusConflict, "market_open"
	case errors.Is(err, ledger.ErrAlreadySettled):
		status, reason = http.StatusConflict, "already_settled"
	case errors.Is(err, lock.ErrHeld):
		status, reason = http.StatusConflict, "lock_held"
	case errors.Is(err, parimutuel.ErrUnknownMarket), errors.Is(err, ledger.ErrMarketNotFound):
		status, reason = http.StatusNotFound, "market_not_found"
	case errors.Is(err, ledger.ErrNotSettled):
		status, reason = http.StatusNotFound, "not_settled"
	}
	s.count(reason)
	if status == http.StatusInternalServerError {
		s.log.Error("settlement failed", zap.Error(err))
		writeJSON(w, status, dto.ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}

func (s *Server) count(reason string) {
	if s.metrics != nil {
		s.metrics.Failed.WithLabelValues(reason).Inc()
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
