package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// SnapshotFunc devolve o estado atual de um mercado para quem acabou de se inscrever
type SnapshotFunc func(ctx context.Context, market string) (any, error)

// client serializa as escritas: gorilla/websocket aceita um único escritor por conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas de mercados
// subs: mapeia mercado para o conjunto de clientes inscritos
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool, snapshot SnapshotFunc) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		snapshot: snapshot,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Permite subscribe/unsubscribe em mercados e responde a pings
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.Market]; !ok {
				h.subs[msg.Market] = make(map[*client]struct{})
			}
			h.subs[msg.Market][c] = struct{}{}
			h.mu.Unlock()
			h.sendSnapshot(r.Context(), c, msg.Market)
		case "unsubscribe":
			h.mu.Lock()
			h.remove(msg.Market, c)
			h.mu.Unlock()
		case "ping":
			_ = c.write(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for market := range h.subs {
		h.remove(market, c)
	}
	h.mu.Unlock()
}

// remove exige h.mu travado
func (h *Hub) remove(market string, c *client) {
	if set, ok := h.subs[market]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, market)
		}
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, c *client, market string) {
	if h.snapshot == nil {
		return
	}
	payload, err := h.snapshot(ctx, market)
	if err != nil {
		_ = c.write(map[string]string{"type": "error", "market": market, "error": err.Error()})
		return
	}
	_ = c.write(OddsUpdate{Type: "snapshot", Market: market, Payload: payload})
}

// Broadcast envia uma atualização para todos os clientes inscritos no mercado
func (h *Hub) Broadcast(market string, payload any) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.subs[market]))
	for c := range h.subs[market] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	msg := OddsUpdate{Type: "update", Market: market, Payload: payload}
	for _, c := range clients {
		if err := c.write(msg); err != nil {
			h.log.Debug("ws write failed", zap.String("market", market), zap.Error(err))
		}
	}
}

// Subscribers conta clientes inscritos num mercado
func (h *Hub) Subscribers(market string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[market])
}
