package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"

	"github.com/medsafe-server/internal/domain"
)

const (
	defaultCacheMemorySize = 512
	defaultCacheTTL        = 6 * time.Hour
)

// CorroborationCache caches adverse-event corroboration results per drug
// pair. Two tiers: an in-process LRU checked first, and an optional Redis
// tier shared across instances. Only corroboration findings are cached;
// drug resolutions are deliberately never stored so every analysis sees
// live terminology data.
type CorroborationCache struct {
	memory     *lru.Cache
	redis      *redis.Client
	defaultTTL time.Duration
}

type cachedCorroboration struct {
	Findings  []domain.DrugInteraction `json:"findings"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// NewCorroborationCache creates the cache. The Redis tier is enabled only
// when the config carries a Redis URL; a connection failure there is an
// error rather than a silent downgrade.
func NewCorroborationCache(config domain.CacheConfig) (*CorroborationCache, error) {
	size := config.MemorySize
	if size == 0 {
		size = defaultCacheMemorySize
	}
	memory, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	cache := &CorroborationCache{
		memory:     memory,
		defaultTTL: ttl,
	}

	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		if config.PoolSize > 0 {
			opts.PoolSize = config.PoolSize
		}
		if config.PoolTimeout > 0 {
			opts.PoolTimeout = config.PoolTimeout
		}
		if config.MaxRetries > 0 {
			opts.MaxRetries = config.MaxRetries
		}

		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		cache.redis = client
	}

	return cache, nil
}

// Get returns the cached findings for a drug pair. The pair key is
// order-insensitive, so warfarin+aspirin and aspirin+warfarin share an
// entry.
func (c *CorroborationCache) Get(ctx context.Context, drug1, drug2 string) ([]domain.DrugInteraction, bool) {
	key := pairKey(drug1, drug2)

	if entry, ok := c.memory.Get(key); ok {
		cached := entry.(cachedCorroboration)
		if time.Now().Before(cached.ExpiresAt) {
			return cached.Findings, true
		}
		c.memory.Remove(key)
	}

	if c.redis == nil {
		return nil, false
	}

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		return nil, false
	}

	var cached cachedCorroboration
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false
	}

	// Promote to the memory tier.
	c.memory.Add(key, cached)
	return cached.Findings, true
}

// Set stores findings for a drug pair in both tiers. An empty findings
// slice is cached too: a pair known to have no reports should not be
// re-queried on every analysis.
func (c *CorroborationCache) Set(ctx context.Context, drug1, drug2 string, findings []domain.DrugInteraction) error {
	key := pairKey(drug1, drug2)
	cached := cachedCorroboration{
		Findings:  findings,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.defaultTTL),
	}

	c.memory.Add(key, cached)

	if c.redis == nil {
		return nil
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.defaultTTL).Err()
}

// Purge drops every cached entry from both tiers.
func (c *CorroborationCache) Purge(ctx context.Context) error {
	c.memory.Purge()
	if c.redis == nil {
		return nil
	}
	keys, err := c.redis.Keys(ctx, "corroboration:pair:*").Result()
	if err != nil {
		return fmt.Errorf("failed to list cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

// Close releases the Redis connection if one is open.
func (c *CorroborationCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// pairKey builds an order-insensitive cache key for a drug pair.
func pairKey(drug1, drug2 string) string {
	names := []string{strings.ToLower(strings.TrimSpace(drug1)), strings.ToLower(strings.TrimSpace(drug2))}
	sort.Strings(names)
	hash := sha256.Sum256([]byte(names[0] + "|" + names[1]))
	return fmt.Sprintf("corroboration:pair:%x", hash[:8])
}
