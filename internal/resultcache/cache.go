// Package resultcache is a read-through cache for tool-call results. The
// primary store is Redis; a local JSON-file store takes over as a fallback
// reader/writer when Redis is unreachable or unconfigured. Cache errors never
// fail a tool call, the caller simply calls through.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "toolbridge:result:"

// Config captures the cache construction options.
type Config struct {
	// RedisAddr enables the Redis primary when non-empty, e.g. "127.0.0.1:6379".
	RedisAddr string `env:"TOOLBRIDGE_REDIS_ADDR"`
	// Dir holds the file fallback store. Defaults to the user cache dir.
	Dir string `env:"TOOLBRIDGE_CACHE_DIR"`
	TTL time.Duration `env:"TOOLBRIDGE_CACHE_TTL" envDefault:"15m"`
}

// ConfigFromEnv builds a Config from TOOLBRIDGE_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse resultcache env config: %w", err)
	}
	return cfg, nil
}

// Cache layers a Redis primary over a file fallback store.
type Cache struct {
	rdb   *redis.Client
	files *FileStore
	ttl   time.Duration
}

// New constructs a Cache. Redis is only dialled lazily on first use, so a
// configured-but-down Redis degrades to the file store instead of failing
// construction.
func New(cfg Config) (*Cache, error) {
	dir := cfg.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		dir = filepath.Join(base, "toolbridge")
	}
	files, err := NewFileStore(dir)
	if err != nil {
		return nil, err
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	cache := &Cache{files: files, ttl: ttl}
	if cfg.RedisAddr != "" {
		cache.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	return cache, nil
}

// Key derives a stable cache key from the tool name and argument payload.
func Key(tool string, args any) string {
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", args))
	}
	h := sha256.New()
	h.Write([]byte(tool))
	h.Write([]byte{'\n'})
	h.Write(encoded)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached payload for the key, consulting Redis first and the
// file store on a miss or a Redis error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb != nil {
		value, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			return value, true
		}
		if err != redis.Nil {
			slog.DebugContext(ctx, "resultcache.redis_get_failed", slog.String("error", err.Error()))
		}
	}
	return c.files.Get(key)
}

// Set stores the payload under the key. Redis failures fall back to the file
// store; storage errors are logged, never surfaced.
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	if c.rdb != nil {
		err := c.rdb.Set(ctx, key, value, c.ttl).Err()
		if err == nil {
			return
		}
		slog.DebugContext(ctx, "resultcache.redis_set_failed", slog.String("error", err.Error()))
	}
	if err := c.files.Set(key, value, c.ttl); err != nil {
		slog.WarnContext(ctx, "resultcache.file_set_failed", slog.String("error", err.Error()))
	}
}

// Purge removes every cached result from both stores.
func (c *Cache) Purge(ctx context.Context) error {
	if c.rdb != nil {
		iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("purge redis key: %w", err)
			}
		}
		if err := iter.Err(); err != nil {
			slog.WarnContext(ctx, "resultcache.redis_purge_failed", slog.String("error", err.Error()))
		}
	}
	return c.files.Purge()
}

// Entry describes one cached result for maintenance listings.
type Entry struct {
	Key       string    `json:"key"`
	Source    string    `json:"source"`
	ExpiresAt time.Time `json:"expires_at"`
	Bytes     int       `json:"bytes"`
}

// Entries lists cached results. Redis entries are included when the primary
// is reachable; file entries are always listed.
func (c *Cache) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if c.rdb != nil {
		iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			entry := Entry{Key: key, Source: "redis"}
			if ttl, err := c.rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				entry.ExpiresAt = time.Now().Add(ttl)
			}
			if size, err := c.rdb.StrLen(ctx, key).Result(); err == nil {
				entry.Bytes = int(size)
			}
			entries = append(entries, entry)
		}
		if err := iter.Err(); err != nil {
			slog.DebugContext(ctx, "resultcache.redis_list_failed", slog.String("error", err.Error()))
		}
	}

	fileEntries, err := c.files.Entries()
	if err != nil {
		return entries, err
	}
	return append(entries, fileEntries...), nil
}
