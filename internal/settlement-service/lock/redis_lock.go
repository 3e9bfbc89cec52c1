package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld indica que outra instância está liquidando o mesmo mercado
var ErrHeld = errors.New("settlement lock held")

// só apaga se o token ainda for nosso (o TTL pode ter expirado e outro pegou)
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock é um lock simples com SETNX + TTL
type RedisLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisLock(c *redis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{Client: c, TTL: ttl}
}

// Acquire tenta pegar o lock; devolve ErrHeld se já estiver com outro
func (l *RedisLock) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, "lock:"+key, token, l.TTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.Client, []string{"lock:" + key}, token).Err()
	}, nil
}
