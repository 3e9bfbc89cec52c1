package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

const ChannelOddsBroadcast = "odds_updates_broadcast"

// RedisBroadcaster publica snapshots de odds no canal lido pelo odds-service/ws
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = ChannelOddsBroadcast
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, upd events.OddsUpdate) error {
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
