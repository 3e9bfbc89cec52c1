package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/ledger"
	"github.com/radieske/parimutuel-pools/internal/odds-service/dto"
	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

// OddsFeed é a parte do oddsfeed usada pela API
type OddsFeed interface {
	Current(ctx context.Context, kind parimutuel.MarketKind) (events.OddsUpdate, error)
}

// API expõe os endpoints REST de consulta de pools e odds
// Lê sempre do livro; as odds passam pelo cache versionado do feed
type API struct {
	Log     *zap.Logger
	Markets parimutuel.MarketReader
	Agg     *parimutuel.Aggregator
	Feed    OddsFeed
	WS      http.HandlerFunc // opcional
}

func New(log *zap.Logger, store ledger.Store, feed OddsFeed) *API {
	return &API{Log: log, Markets: store, Agg: parimutuel.NewAggregator(store), Feed: feed}
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/v1/markets/{kind}/pool", a.getPool) // Agregado bruto e líquido do mercado
	r.Get("/v1/markets/{kind}/odds", a.getOdds) // Probabilidades implícitas
	r.Get("/v1/summary", a.summary)             // Volume acumulado de todos os mercados
	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

// Snapshot é usado pelo hub para mandar o estado atual a quem se inscreve
func (a *API) Snapshot(ctx context.Context, market string) (any, error) {
	kind, err := parimutuel.ParseMarketKind(market)
	if err != nil {
		return nil, err
	}
	upd, err := a.Feed.Current(ctx, kind)
	if err != nil {
		return nil, err
	}
	return dto.FromUpdate(upd), nil
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, parimutuel.ErrUnknownMarket), errors.Is(err, ledger.ErrMarketNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	default:
		a.Log.Error("odds request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}

func (a *API) getPool(w http.ResponseWriter, r *http.Request) {
	kind, err := parimutuel.ParseMarketKind(chi.URLParam(r, "kind"))
	if err != nil {
		a.fail(w, err)
		return
	}
	m, err := a.Markets.Market(r.Context(), kind)
	if err != nil {
		a.fail(w, err)
		return
	}
	pool, err := a.Agg.Aggregate(r.Context(), kind)
	if err != nil {
		a.fail(w, err)
		return
	}

	resp := dto.Pool{
		Market:      string(kind),
		Status:      string(m.Status),
		Rake:        m.Rake.Fraction().String(),
		RakeVersion: m.Rake.Version(),
		Bets:        pool.Bets,
		Gross:       dto.Money(pool.Gross),
		Net:         dto.Money(m.Rake.Distributable(pool.Gross)),
		Stakes:      make(map[string]json.Number, len(pool.Stakes)),
	}
	for o, s := range pool.Stakes {
		resp.Stakes[o.Key()] = dto.Money(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// getOdds nunca falha para mercado sem apostas: devolve outcomes vazio
func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	kind, err := parimutuel.ParseMarketKind(chi.URLParam(r, "kind"))
	if err != nil {
		a.fail(w, err)
		return
	}
	upd, err := a.Feed.Current(r.Context(), kind)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromUpdate(upd))
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	total := decimal.Zero
	resp := dto.Summary{Markets: make(map[string]json.Number, len(parimutuel.Kinds))}
	for _, kind := range parimutuel.Kinds {
		pool, err := a.Agg.Aggregate(r.Context(), kind)
		if err != nil {
			a.fail(w, err)
			return
		}
		total = total.Add(pool.Gross)
		resp.Markets[string(kind)] = dto.Money(pool.Gross)
	}
	resp.Total = dto.Money(total)
	writeJSON(w, http.StatusOK, resp)
}
