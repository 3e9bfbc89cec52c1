package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/radieske/parimutuel-pools/internal/bet-service/dto"
)

// StatusError carrega o status HTTP devolvido pelo bet-service
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bet-service: %d %s", e.Status, strings.TrimSpace(e.Body))
}

// Client fala com a API pública do bet-service
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 5 * time.Second}}
}

func (c *Client) OpenMarket(ctx context.Context, market string, outcomes []string) (dto.MarketView, error) {
	var out dto.MarketView
	err := c.post(ctx, "/v1/markets/"+market+"/open", dto.OpenMarketRequest{Outcomes: outcomes}, &out)
	return out, err
}

func (c *Client) PlaceBet(ctx context.Context, market string, req dto.PlaceBetRequest) (dto.PlaceBetResponse, error) {
	var out dto.PlaceBetResponse
	err := c.post(ctx, "/v1/markets/"+market+"/bets", req, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Status: resp.StatusCode, Body: e.Error}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
