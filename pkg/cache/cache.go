// Package cache provides the content-addressed artifact store shared by the
// install-script LLM layer and the reputation scorer. It holds two classes
// of expensive-to-recompute data behind one TTL+LRU store: LLM verdicts and
// registry reputation payloads.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	stackerrors "github.com/matzehuels/stacktower/pkg/errors"
)

// Key returns the lowercase hex SHA-256 digest of content, with "prefix:"
// prepended when prefix is non-empty. Deterministic across instances and
// backends.
func Key(content, prefix string) string {
	sum := sha256.Sum256([]byte(content))
	h := hex.EncodeToString(sum[:])
	if prefix == "" {
		return h
	}
	return prefix + ":" + h
}

// Entry is a single stored artifact, mirroring the on-disk schema.
type Entry struct {
	Key          string
	Value        []byte
	CreatedAt    int64
	ExpiresAt    int64
	HitCount     int64
	LastAccessed int64 // Unix nanoseconds, so LRU order separates accesses within one second
	SizeBytes    int64
}

// Stats summarizes cache occupancy, echoed into audit reports.
type Stats struct {
	Backend            string
	TotalEntries        int
	ExpiredEntries       int
	TotalHits            int64
	SizeBytes            int64
	MaxSizeBytes         int64
	UtilizationPercent   float64
}

// store is the minimal durability contract a backend must provide. Both
// backends are safe for concurrent use.
type store interface {
	get(key string) (*Entry, error)
	put(e Entry) error
	delete(key string) error
	clearAll() error
	deleteExpired(now int64) (int, error)
	totalSize() (int64, error)
	counts(now int64) (total, expired int, hits int64, err error)
	oldestByLastAccessed(limit int) ([]Entry, error)
	close() error
}

// Default config values, matching the original Python service's constants.
const (
	DefaultMaxSizeBytes = int64(100 * 1024 * 1024) // 100MB
	DefaultLLMTTLHours  = 168.0                     // 7 days
	DefaultRepTTLHours  = 24.0
)

// Config controls Cache construction.
type Config struct {
	// Dir is the directory holding the durable sqlite file. Empty disables
	// the durable backend and forces memory-only operation.
	Dir string
	// MaxSizeBytes is the eviction ceiling. Zero uses DefaultMaxSizeBytes.
	MaxSizeBytes int64
	// Logger receives fallback/eviction diagnostics. Nil discards them.
	Logger *log.Logger
}

// Cache is the single store for high-cost artifacts. All methods are
// best-effort: storage or retrieval failures are logged and degrade to a
// miss/no-op rather than propagating, per the component's failure model.
type Cache struct {
	mu           sync.Mutex
	backend      store
	backendName  string
	maxSizeBytes int64
	logger       *log.Logger
}

// New constructs a Cache, preferring the durable sqlite backend and falling
// back to memory if durable initialization fails. The fallback is recorded
// in Stats().Backend and logged once.
func New(cfg Config) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeBytes
	}

	c := &Cache{maxSizeBytes: maxSize, logger: logger}

	if cfg.Dir != "" {
		db, err := newSQLiteStore(cfg.Dir)
		if err == nil {
			c.backend = db
			c.backendName = "durable"
			return c
		}
		logger.Warn("cache: durable backend init failed, falling back to memory",
			"err", stackerrors.Wrap(stackerrors.ErrCodeCacheUnavailable, err, "opening durable cache at %s", cfg.Dir))
	}

	c.backend = newMemoryStore()
	c.backendName = "memory"
	return c
}

// Get returns the stored value iff present and unexpired. On a hit it
// atomically increments hit_count and refreshes last_accessed.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.backend.get(key)
	if err != nil {
		c.logger.Warn("cache: get failed", "key", key, "err", err)
		return nil, false
	}
	if e == nil {
		return nil, false
	}
	now := time.Now().Unix()
	if now >= e.ExpiresAt {
		return nil, false
	}
	e.HitCount++
	e.LastAccessed = time.Now().UnixNano()
	if err := c.backend.put(*e); err != nil {
		c.logger.Warn("cache: hit-count update failed", "key", key, "err", err)
	}
	return e.Value, true
}

// Store inserts or replaces the entry for key with the given TTL in hours,
// resetting hit_count to 0. If the addition would exceed the configured
// size ceiling, entries are evicted by ascending last_accessed until enough
// room exists.
func (c *Cache) Store(ctx context.Context, key string, value []byte, ttlHours float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().Unix()
	e := Entry{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		ExpiresAt:    now + int64(ttlHours*3600),
		HitCount:     0,
		LastAccessed: time.Now().UnixNano(),
		SizeBytes:    int64(len(value)),
	}

	if err := c.evictIfNeeded(e.SizeBytes); err != nil {
		c.logger.Warn("cache: eviction failed", "err", err)
	}
	if err := c.backend.put(e); err != nil {
		c.logger.Warn("cache: store failed", "key", key, "err", err)
	}
}

// evictIfNeeded frees enough space for an incoming entry of size incoming by
// deleting the least-recently-accessed entries first. Caller holds c.mu.
func (c *Cache) evictIfNeeded(incoming int64) error {
	total, err := c.backend.totalSize()
	if err != nil {
		return err
	}
	if total+incoming <= c.maxSizeBytes {
		return nil
	}

	const batch = 50
	for total+incoming > c.maxSizeBytes {
		victims, err := c.backend.oldestByLastAccessed(batch)
		if err != nil {
			return err
		}
		if len(victims) == 0 {
			break // nothing left to evict; accept over-capacity rather than fail
		}
		for _, v := range victims {
			if err := c.backend.delete(v.Key); err != nil {
				return err
			}
			total -= v.SizeBytes
			if total+incoming <= c.maxSizeBytes {
				break
			}
		}
	}
	return nil
}

// Invalidate deletes a single entry, if present.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.delete(key); err != nil {
		c.logger.Warn("cache: invalidate failed", "key", key, "err", err)
	}
}

// ClearAll removes every entry.
func (c *Cache) ClearAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.clearAll(); err != nil {
		c.logger.Warn("cache: clear failed", "err", err)
	}
}

// CleanupExpired deletes all entries past their expiry and returns the
// count removed.
func (c *Cache) CleanupExpired(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.backend.deleteExpired(time.Now().Unix())
	if err != nil {
		c.logger.Warn("cache: cleanup_expired failed", "err", err)
		return 0
	}
	return n
}

// Stats reports current occupancy for the audit report's cache_statistics
// block.
func (c *Cache) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total, expired, hits, err := c.backend.counts(time.Now().Unix())
	if err != nil {
		c.logger.Warn("cache: stats failed", "err", err)
	}
	size, err := c.backend.totalSize()
	if err != nil {
		c.logger.Warn("cache: stats size failed", "err", err)
	}

	util := 0.0
	if c.maxSizeBytes > 0 {
		util = float64(size) / float64(c.maxSizeBytes) * 100
	}

	return Stats{
		Backend:            c.backendName,
		TotalEntries:       total,
		ExpiredEntries:     expired,
		TotalHits:          hits,
		SizeBytes:          size,
		MaxSizeBytes:       c.maxSizeBytes,
		UtilizationPercent: util,
	}
}

// Close releases backend resources.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.close()
}
