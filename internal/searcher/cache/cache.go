// Package cache memoizes query results. An in-process LRU answers repeated
// queries; an optional shared backend (Redis) lets replicas reuse each
// other's work. Keys include the index version, so a reload never serves
// results computed against an older index.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/resilience"
)

const keyPrefix = "search:"

// Backend is a shared key-value store. *redis.Client satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushPrefix(ctx context.Context, prefix string) (int64, error)
}

// Options tunes a QueryCache.
type Options struct {
	// Size is the number of entries kept in process.
	Size int
	// TTL bounds entries in the shared backend.
	TTL time.Duration
	// Timeout bounds each backend call.
	Timeout time.Duration
	// ComputeTimeout bounds a shared computation. It runs detached from the
	// request that started it, so it outlives that caller's cancellation.
	ComputeTimeout time.Duration
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hitRate"`
	Entries int     `json:"entries"`
	Backend string  `json:"backend"`
}

// QueryCache is safe for concurrent use.
type QueryCache struct {
	local   *lru.Cache[string, []executor.Hit]
	backend Backend
	breaker *resilience.CircuitBreaker
	opts    Options
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. backend and m may be nil.
func New(backend Backend, opts Options, m *metrics.Metrics) (*QueryCache, error) {
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = 10 * time.Second
	}
	local, err := lru.New[string, []executor.Hit](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	c := &QueryCache{
		local:   local,
		backend: backend,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	if backend != nil {
		c.breaker = resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, to resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		})
		if m != nil {
			m.CircuitBreakerState.WithLabelValues("redis").Set(float64(resilience.StateClosed))
		}
	}
	return c, nil
}

// Key identifies the result of a query: the index version, the normalized
// tokens in order and the limit.
func Key(version string, tokens []string, limit int) string {
	raw := version + "|" + strings.Join(tokens, "\x1f") + "|" + strconv.Itoa(limit)
	sum := sha256.Sum256([]byte(raw))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// GetOrCompute returns the cached hits for key, or calls compute once per key
// across concurrent callers and caches its result. The boolean reports a
// cache hit. Backend failures degrade to computing locally.
func (c *QueryCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]executor.Hit, error)) ([]executor.Hit, bool, error) {
	if hits, ok := c.lookup(ctx, key); ok {
		c.recordHit()
		return hits, true, nil
	}
	c.recordMiss()
	ch := c.group.DoChan(key, func() (any, error) {
		if hits, ok := c.local.Get(key); ok {
			return hits, nil
		}
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ComputeTimeout)
		defer cancel()
		hits, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		c.local.Add(key, hits)
		c.store(computeCtx, key, hits)
		return hits, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%w: %v", apperrors.ErrTimeout, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]executor.Hit), false, nil
	}
}

func (c *QueryCache) lookup(ctx context.Context, key string) ([]executor.Hit, bool) {
	if hits, ok := c.local.Get(key); ok {
		return hits, true
	}
	if c.backend == nil {
		return nil, false
	}
	var data []byte
	var found bool
	err := c.breaker.Execute(func() error {
		var err error
		data, err = resilience.Call(ctx, c.opts.Timeout, "redis get", func(ctx context.Context) ([]byte, error) {
			b, ok, err := c.backend.Get(ctx, key)
			found = ok
			return b, err
		})
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var hits []executor.Hit
	if err := json.Unmarshal(data, &hits); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.local.Add(key, hits)
	return hits, true
}

func (c *QueryCache) store(ctx context.Context, key string, hits []executor.Hit) {
	if c.backend == nil {
		return
	}
	data, err := json.Marshal(hits)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		_, err := resilience.Call(ctx, c.opts.Timeout, "redis set", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.backend.Set(ctx, key, data, c.opts.TTL)
		})
		return err
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Purge drops the in-process entries.
func (c *QueryCache) Purge() {
	c.local.Purge()
}

// Invalidate drops every entry, local and shared, and returns the number of
// shared keys removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	c.local.Purge()
	if c.backend == nil {
		return 0, nil
	}
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushPrefix(ctx, keyPrefix)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns usage counters.
func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.local.Len(),
		Backend: "none",
	}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	if c.breaker != nil {
		s.Backend = c.breaker.State().String()
	}
	return s
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
