package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// putScript writes a value and its index entry, then trims the oldest
// index members past the bound, all in one atomic step. It returns the
// evicted keys. Evicted value keys are derived from ARGV[5], so the script
// needs a single-node or hash-tagged deployment.
var putScript = redis.NewScript(`
local seq = redis.call('INCR', KEYS[3])
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
redis.call('ZADD', KEYS[2], seq, ARGV[1])
local max = tonumber(ARGV[4])
if max <= 0 then
	return {}
end
local excess = redis.call('ZCARD', KEYS[2]) - max
if excess <= 0 then
	return {}
end
local evicted = redis.call('ZRANGE', KEYS[2], 0, excess - 1)
redis.call('ZREMRANGEBYRANK', KEYS[2], 0, excess - 1)
for _, k in ipairs(evicted) do
	redis.call('DEL', ARGV[5] .. k)
end
return evicted
`)

// forgetScript drops an index member only while its value is absent, so
// a value rewritten after a miss keeps its place in the order.
var forgetScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
return redis.call('ZREM', KEYS[2], ARGV[1])
`)

// RedisBackend is a networked Backend. Values live under
// <prefix>v:<key> with a native Redis TTL; a sorted set at <prefix>fifo
// scored by a sequence counter records store order for FIFO eviction.
type RedisBackend struct {
	client   redis.UniversalClient
	prefix   string
	opts     BackendOptions
	ownsConn bool
	logger   *slog.Logger
}

// RedisBackendConfig configures the Redis backend.
type RedisBackendConfig struct {
	Address     string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg RedisBackendConfig, opts BackendOptions) (*RedisBackend, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	b := NewRedisBackendWithClient(client, cfg.KeyPrefix, opts)
	b.ownsConn = true
	return b, nil
}

// NewRedisBackendWithClient wraps an existing client. The caller keeps
// ownership of the client and Close leaves it open.
func NewRedisBackendWithClient(client redis.UniversalClient, keyPrefix string, opts BackendOptions) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "marquee:cache:"
	}
	return &RedisBackend{
		client: client,
		prefix: keyPrefix,
		opts:   opts.withDefaults(),
		logger: slog.Default().With("component", "cache.redis"),
	}
}

func (r *RedisBackend) valueKey(key string) string { return r.prefix + "v:" + key }
func (r *RedisBackend) indexKey() string          { return r.prefix + "fifo" }
func (r *RedisBackend) seqKey() string            { return r.prefix + "seq" }

// Get returns the value for key. Redis expires values itself, so a miss
// also drops the key from the order index.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		removed, ferr := r.forget(ctx, key)
		if ferr != nil {
			r.logger.Warn("failed to trim expired index entry", "key", key, "error", ferr)
		} else if removed {
			r.opts.OnEvict(key, EvictExpired)
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entry: %w", err)
	}
	return value, true, nil
}

// Put writes the value and its index entry and trims the oldest entries
// past MaxEntries in a single script, so concurrent writers never evict
// more than the excess.
//
// Parameters:
//   - ctx: Context for the Redis round trip
//   - key: Cache key, stored verbatim as the index member
//   - value: Encoded snapshot
//   - ttl: Native Redis expiry; non-positive values skip the write
//
// Example usage:
//
//	err := backend.Put(ctx, "GET https://image.tmdb.org/t/p/w92/a.jpg", data, 24*time.Hour)
func (r *RedisBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return nil
	}

	ttlMillis := ttl.Milliseconds()
	if ttlMillis < 1 {
		ttlMillis = 1
	}

	evicted, err := putScript.Run(ctx, r.client,
		[]string{r.valueKey(key), r.indexKey(), r.seqKey()},
		key, value, ttlMillis, r.opts.MaxEntries, r.valueKey(""),
	).StringSlice()
	if err != nil {
		return fmt.Errorf("failed to put entry: %w", err)
	}

	if len(evicted) > 0 {
		r.logger.Debug("evicted oldest entries", "count", len(evicted), "max_entries", r.opts.MaxEntries)
	}
	for _, k := range evicted {
		r.opts.OnEvict(k, EvictCapacity)
	}
	return nil
}

// forget drops key from the order index if its value is gone.
func (r *RedisBackend) forget(ctx context.Context, key string) (bool, error) {
	n, err := forgetScript.Run(ctx, r.client, []string{r.valueKey(key), r.indexKey()}, key).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns live keys with the given prefix in store order.
func (r *RedisBackend) List(ctx context.Context, prefix string) ([]string, error) {
	members, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	candidates := make([]string, 0, len(members))
	for _, m := range members {
		if strings.HasPrefix(m, prefix) {
			candidates = append(candidates, m)
		}
	}

	live, _, err := r.partitionLive(ctx, candidates)
	if err != nil {
		return nil, err
	}
	return live, nil
}

// Delete removes key and its index entry.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.valueKey(key))
		pipe.ZRem(ctx, r.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Len returns the size of the order index.
func (r *RedisBackend) Len(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(n), nil
}

// Sweep drops index members whose values Redis has already expired.
func (r *RedisBackend) Sweep(ctx context.Context) (int, error) {
	members, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read index: %w", err)
	}

	_, expired, err := r.partitionLive(ctx, members)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, k := range expired {
		ok, err := r.forget(ctx, k)
		if err != nil {
			return removed, fmt.Errorf("failed to trim index: %w", err)
		}
		if ok {
			removed++
			r.opts.OnEvict(k, EvictExpired)
		}
	}
	return removed, nil
}

// partitionLive splits keys by whether their value still exists.
func (r *RedisBackend) partitionLive(ctx context.Context, keys []string) (live, expired []string, err error) {
	live = []string{}
	if len(keys) == 0 {
		return live, nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Exists(ctx, r.valueKey(k))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to check entries: %w", err)
	}

	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			live = append(live, keys[i])
		} else {
			expired = append(expired, keys[i])
		}
	}
	return live, expired, nil
}

// Ping checks connectivity to Redis.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client if the backend created it.
func (r *RedisBackend) Close() error {
	if !r.ownsConn {
		return nil
	}
	return r.client.Close()
}
