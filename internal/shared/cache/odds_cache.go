package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

// OddsCache guarda snapshots de odds no Redis.
// A chave inclui a versão do livro: uma entrada só é servida para o estado
// exato de onde foi calculada, então não existe invalidação.
type OddsCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewOddsCache(c *redis.Client, ttl time.Duration) *OddsCache {
	return &OddsCache{Client: c, TTL: ttl}
}

// key gera a chave Redis para um mercado numa versão do livro
func key(market string, version int64) string {
	return "odds:" + market + ":v" + strconv.FormatInt(version, 10)
}

func (c *OddsCache) Get(ctx context.Context, market string, version int64) (events.OddsUpdate, bool, error) {
	var upd events.OddsUpdate
	b, err := c.Client.Get(ctx, key(market, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return upd, false, nil
	}
	if err != nil {
		return upd, false, err
	}
	return upd, true, json.Unmarshal(b, &upd)
}

func (c *OddsCache) Set(ctx context.Context, upd events.OddsUpdate) error {
	b, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(upd.Market, upd.Version), b, c.TTL).Err()
}
