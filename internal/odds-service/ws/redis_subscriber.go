package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/odds-service/dto"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// e repassa as atualizações recebidas para os clientes WebSocket via Hub
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				Relay(log, hub, []byte(msg.Payload))
			}
		}
	}()
}

// Relay decodifica um snapshot publicado e o repassa aos inscritos do mercado
func Relay(log *zap.Logger, hub *Hub, payload []byte) {
	var upd events.OddsUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		log.Warn("ws subscriber unmarshal error", zap.Error(err))
		return
	}
	hub.Broadcast(upd.Market, dto.FromUpdate(upd))
}
