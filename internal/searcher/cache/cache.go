// Package cache stores ranked lists in Redis so repeated runs over the same
// corpus skip ranking. Keys are namespaced by corpus fingerprint; values are
// compressed CBOR frames.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/codec"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/resilience"
)

const keyPrefix = "rank:"

// Store is the subset of *pkgredis.Client the cache needs. Get must return
// an error satisfying pkgredis.IsNilError for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one ranked list: the corpus, the model with its
// parameters, the depth, and the normalized query.
type Key struct {
	Fingerprint string
	Model       ranker.Model
	Params      ranker.Params
	Tokens      []string
}

type QueryCache struct {
	store       Store
	ttl         time.Duration
	compression codec.Compression
	group       singleflight.Group
	breaker     *resilience.CircuitBreaker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	hits        atomic.Int64
	misses      atomic.Int64
}

func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) (*QueryCache, error) {
	compression, err := codec.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("configuring cache: %w", err)
	}
	m.BreakerState("redis-cache", int(resilience.StateClosed))
	return &QueryCache{
		store:       store,
		ttl:         cfg.CacheTTL,
		compression: compression,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, _, to resilience.State) {
				m.BreakerState(name, int(to))
			},
		}),
		metrics: m,
		logger:  slog.Default().With("component", "rank-cache"),
	}, nil
}

// Get returns the cached list for key. Store failures and undecodable
// entries are reported as misses.
func (c *QueryCache) Get(ctx context.Context, key Key) ([]ranker.ScoredDoc, bool) {
	k := c.buildKey(key)
	var data []byte
	found := false
	err := c.execute(func() error {
		v, err := c.store.Get(ctx, k)
		if err != nil {
			if pkgredis.IsNilError(err) {
				return nil
			}
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", k, "error", err)
	}
	if !found {
		c.recordMiss()
		return nil, false
	}
	var results []ranker.ScoredDoc
	if err := codec.Decode(data, &results); err != nil {
		c.logger.Error("cache decode failed", "key", k, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	c.logger.Debug("cache hit", "key", k, "results", len(results))
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, results []ranker.ScoredDoc) {
	k := c.buildKey(key)
	data, err := codec.Encode(results, c.compression)
	if err != nil {
		c.logger.Error("cache encode failed", "key", k, "error", err)
		return
	}
	if err := c.execute(func() error {
		return c.store.Set(ctx, k, data, c.ttl)
	}); err != nil {
		c.logger.Warn("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached list for key or computes and stores it.
// Concurrent callers with the same key share one computation. The boolean
// reports whether the value came from the cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() ([]ranker.ScoredDoc, error),
) ([]ranker.ScoredDoc, bool, error) {
	if results, ok := c.Get(ctx, key); ok {
		return results, true, nil
	}
	k := c.buildKey(key)
	val, err, _ := c.group.Do(k, func() (interface{}, error) {
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.ScoredDoc), false, nil
}

// Invalidate deletes every entry of one corpus, or of all corpora when
// fingerprint is empty.
func (c *QueryCache) Invalidate(ctx context.Context, fingerprint string) error {
	pattern := keyPrefix + "*"
	if fingerprint != "" {
		pattern = keyPrefix + namespace(fingerprint) + ":*"
	}
	deleted, err := c.store.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "pattern", pattern, "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) execute(fn func() error) error {
	return c.breaker.Execute(fn)
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

// buildKey hashes every field of key with length prefixes so that distinct
// token lists can never collide by concatenation.
func (c *QueryCache) buildKey(key Key) string {
	h := blake3.New()
	var buf [binary.MaxVarintLen64]byte
	writeString := func(s string) {
		n := binary.PutUvarint(buf[:], uint64(len(s)))
		h.Write(buf[:n])
		h.Write([]byte(s))
	}
	writeUint := func(v uint64) {
		n := binary.PutUvarint(buf[:], v)
		h.Write(buf[:n])
	}

	writeString(string(key.Model))
	writeUint(uint64(key.Params.TopK))
	writeUint(math.Float64bits(key.Params.K1))
	writeUint(math.Float64bits(key.Params.B))
	writeUint(math.Float64bits(key.Params.Mu))
	writeUint(uint64(len(key.Tokens)))
	for _, tok := range key.Tokens {
		writeString(tok)
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("%s%s:%s", keyPrefix, namespace(key.Fingerprint), hex.EncodeToString(sum[:16]))
}

func namespace(fingerprint string) string {
	if len(fingerprint) > 16 {
		return fingerprint[:16]
	}
	return fingerprint
}
