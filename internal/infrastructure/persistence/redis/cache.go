// Package redis implements the read caches of the credit ledger on Redis:
// the transcript cache used by getTranscript and a course-facts cache in
// front of the catalog. Redis is never a source of truth here; every value
// can be dropped and rebuilt from the store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when the requested key is not found in cache.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when serialization/deserialization fails.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheInvalidTTL is returned when an invalid TTL is provided.
	ErrCacheInvalidTTL = errors.New("cache: invalid TTL")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")

	// ErrCacheNilValue is returned when attempting to cache a nil value.
	ErrCacheNilValue = errors.New("cache: value cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYS AND TTLs
// ══════════════════════════════════════════════════════════════════════════════

const (
	PrefixTranscript    = "ledger:transcript:"
	PrefixTranscriptGen = "ledger:transcript-gen:"
	PrefixCourse        = "ledger:course:"
)

const (
	TTLTranscript = 10 * time.Minute
	TTLCourse     = 30 * time.Minute
	// TTLGeneration outlives any cached value it fences.
	TTLGeneration = 24 * time.Hour
)

// TranscriptKey is the key of a student's cached academic record.
func TranscriptKey(studentID string) string {
	return PrefixTranscript + studentID
}

// TranscriptGenKey counts invalidations of a student's cached record.
func TranscriptGenKey(studentID string) string {
	return PrefixTranscriptGen + studentID
}

// CourseKey is the key of cached course facts.
func CourseKey(courseID string) string {
	return PrefixCourse + courseID
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// KV is the subset of Cache the typed caches need.
type KV interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// FencedKV adds generation-fenced writes to KV. A reader takes the
// generation before loading from the store; a writer bumps it after commit.
// A fenced write made with an outdated generation is dropped, so a slow
// reader cannot put back a value the writer has just evicted.
type FencedKV interface {
	KV
	// Generation returns the counter under genKey, 0 when absent.
	Generation(ctx context.Context, genKey string) (int64, error)
	// SetFenced writes value only if f still holds. It reports whether the
	// value was written.
	SetFenced(ctx context.Context, key string, value any, ttl time.Duration, f Fence) (bool, error)
	// Bump increments genKey and deletes keys in one transaction.
	Bump(ctx context.Context, genKey string, keys ...string) error
}

// Fence is the precondition of a SetFenced call.
type Fence struct {
	GenKey     string
	Generation int64
	// Version loses to a cached value whose JSON "version" field is higher.
	Version int
}

// Cache stores JSON values in Redis.
type Cache struct {
	client *redis.Client
}

var _ FencedKV = (*Cache)(nil)

// KEYS[1] value, KEYS[2] generation; ARGV generation, payload, ttl ms, version.
var setFencedScript = redis.NewScript(`
local gen = tonumber(redis.call('GET', KEYS[2]) or '0')
if gen ~= tonumber(ARGV[1]) then
	return 0
end
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, doc = pcall(cjson.decode, cur)
	if ok and type(doc) == 'table' and tonumber(doc.version) and tonumber(doc.version) > tonumber(ARGV[4]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// NewCache connects to Redis and pings it.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return &Cache{client: client}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Set stores value as JSON under key.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	if value == nil {
		return ErrCacheNilValue
	}
	if ttl < 0 {
		return ErrCacheInvalidTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get decodes the value under key into dest. Returns ErrCacheMiss if the key doesn't exist.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// Delete removes keys from the cache.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Generation implements FencedKV.
func (c *Cache) Generation(ctx context.Context, genKey string) (int64, error) {
	if genKey == "" {
		return 0, ErrCacheKeyEmpty
	}
	n, err := c.client.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// SetFenced implements FencedKV with a Lua script so the check and the write
// are atomic.
func (c *Cache) SetFenced(ctx context.Context, key string, value any, ttl time.Duration, f Fence) (bool, error) {
	if key == "" || f.GenKey == "" {
		return false, ErrCacheKeyEmpty
	}
	if value == nil {
		return false, ErrCacheNilValue
	}
	if ttl < 0 {
		return false, ErrCacheInvalidTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	n, err := setFencedScript.Run(ctx, c.client, []string{key, f.GenKey},
		f.Generation, data, ttl.Milliseconds(), f.Version).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Bump implements FencedKV.
func (c *Cache) Bump(ctx context.Context, genKey string, keys ...string) error {
	if genKey == "" {
		return ErrCacheKeyEmpty
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, TTLGeneration)
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	return err
}
