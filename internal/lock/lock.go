// Package lock serializes work on a single key: one writer per waybill and
// one upsert per invoice key at a time.
package lock

import (
	"context"
	"errors"
	"fmt"

	"github.com/railzwaylabs/cargoledger/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrRedisUnavailable = errors.New("lock_redis_unavailable")

// Release gives the key back. It is safe to call more than once.
type Release func()

type Locker interface {
	// Acquire blocks until the key is held or ctx is done.
	Acquire(ctx context.Context, key string) (Release, error)
}

var Module = fx.Module("lock",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  *redis.Client `optional:"true"`
}

func New(p Params) (Locker, error) {
	log := p.Log.Named("lock")
	switch p.Config.Lock.Backend {
	case config.LockBackendRedis:
		if p.Redis == nil {
			return nil, fmt.Errorf("%w: redis.addr is required for lock.backend=redis", ErrRedisUnavailable)
		}
		log.Info("using redis locks", zap.Duration("ttl", p.Config.Lock.TTL))
		return NewRedisLocker(p.Redis, p.Config.Lock.TTL), nil
	default:
		log.Info("using in-process locks")
		return NewLocalLocker(), nil
	}
}

// WaybillKey and InvoiceKey namespace the lock keys.
func WaybillKey(id fmt.Stringer) string {
	return "cargoledger:lock:waybill:" + id.String()
}

func InvoiceKey(parts ...string) string {
	key := "cargoledger:lock:invoice"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
