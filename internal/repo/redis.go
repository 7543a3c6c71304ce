package repo

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct{ C *redis.Client }

func NewRedis(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.C.Close() }

// Allow is a fixed-window rate check: at most limit hits per window for
// key. Redis being down never blocks traffic; the limiter allows on error.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if r == nil || limit <= 0 {
		return true
	}
	n, err := r.C.Incr(ctx, "rl:"+key).Result()
	if err != nil {
		return true
	}
	if n == 1 {
		r.C.Expire(ctx, "rl:"+key, window)
	}
	return n <= int64(limit)
}

// GetStat returns the cached solved-count for platform+handle, if any.
func (r *Redis) GetStat(ctx context.Context, platform, handle string) (int, bool) {
	if r == nil {
		return 0, false
	}
	v, err := r.C.Get(ctx, "stats:"+platform+":"+handle).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetStat caches a fetched solved-count. Best-effort; errors are dropped.
func (r *Redis) SetStat(ctx context.Context, platform, handle string, solved int, ttl time.Duration) {
	if r == nil {
		return
	}
	r.C.Set(ctx, "stats:"+platform+":"+handle, strconv.Itoa(solved), ttl)
}
