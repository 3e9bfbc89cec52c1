// Package gateway expõe os serviços internos atrás de um único host, com CORS.
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Targets são as URLs base dos serviços roteados
type Targets struct {
	Bets       string
	Odds       string
	Settlement string
}

func proxy(log *zap.Logger, name, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: bad %s url %q", name, to)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("upstream", name), zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return rp, nil
}

// Router monta /api/bets/*, /api/odds/* e /api/settlement/*
// O prefixo é removido antes de repassar (ex.: /api/odds/v1/summary -> /v1/summary)
// Sem timeout de rota: /api/odds/ws fica aberto enquanto o cliente quiser
func Router(log *zap.Logger, t Targets, allowedOrigins []string) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	for _, route := range []struct{ prefix, name, to string }{
		{"/api/bets", "bet-service", t.Bets},
		{"/api/odds", "odds-service", t.Odds},
		{"/api/settlement", "settlement-service", t.Settlement},
	} {
		rp, err := proxy(log, route.name, route.to)
		if err != nil {
			return nil, err
		}
		r.Mount(route.prefix, http.StripPrefix(route.prefix, rp))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r, nil
}
