package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func upstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.Method+" "+r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_StripsPrefixPerService(t *testing.T) {
	h, err := Router(zap.NewNop(), Targets{
		Bets:       upstream(t, "bets").URL,
		Odds:       upstream(t, "odds").URL,
		Settlement: upstream(t, "settlement").URL,
	}, []string{"*"})
	require.NoError(t, err)

	cases := []struct{ method, path, want string }{
		{http.MethodPost, "/api/bets/v1/markets/win/bets", "bets POST /v1/markets/win/bets"},
		{http.MethodGet, "/api/odds/v1/summary", "odds GET /v1/summary"},
		{http.MethodPost, "/api/settlement/v1/markets/prop/settle", "settlement POST /v1/markets/prop/settle"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(c.method, c.path, nil))
		require.Equal(t, http.StatusOK, rec.Code, c.path)
		assert.Equal(t, c.want, rec.Body.String())
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, err := Router(zap.NewNop(), Targets{Bets: "http://a", Odds: "http://b", Settlement: "http://c"}, []string{"https://pools.example.org"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/api/bets/v1/markets", nil)
	req.Header.Set("Origin", "https://pools.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://pools.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_BadTarget(t *testing.T) {
	_, err := Router(zap.NewNop(), Targets{Bets: "not a url", Odds: "http://b", Settlement: "http://c"}, nil)
	assert.Error(t, err)
}

func TestRouter_UpstreamDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	h, err := Router(zap.NewNop(), Targets{Bets: down.URL, Odds: down.URL, Settlement: down.URL}, []string{"*"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/odds/v1/summary", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
