package redisstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
)

// releaseScript deletes the key only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func NewClient(conf core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

type (
	locker struct {
		client *redis.Client
	}

	lock struct {
		client *redis.Client
		key    string
		token  string
	}
)

var _ core.Locker = (*locker)(nil) // interface compliance check

// NewLocker returns a core.Locker shared by every instance connected to the same Redis.
func NewLocker(client *redis.Client) core.Locker {
	return &locker{client: client}
}

func (l *locker) Obtain(ctx context.Context, key string, ttl time.Duration) (core.Lock, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "obtaining lock %q", key)
	}
	if !ok {
		return nil, core.ErrNotObtained
	}
	return &lock{client: l.client, key: key, token: token}, nil
}

func (lk *lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Err(); err != nil && err != redis.Nil {
		return errors.Wrapf(err, "releasing lock %q", lk.key)
	}
	return nil
}
