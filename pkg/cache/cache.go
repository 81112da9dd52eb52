package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSweepInterval is how often the janitor collects expired entries
// when no interval is configured.
const DefaultSweepInterval = 1 * time.Minute

// Cache stores values with per-entry TTLs.
type Cache[T any] interface {
	// Store saves a value under the key for the given TTL.
	Store(key string, value T, ttl time.Duration)
	// Fetch returns the value for the key if present and unexpired.
	Fetch(key string) (T, bool)
	// Invalidate removes the key.
	Invalidate(key string)
}

// Config configures the in-memory cache.
type Config struct {
	Logger        *slog.Logger
	Clock         clockwork.Clock
	SweepInterval time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return nil
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Memory is an in-memory Cache with TTL expiry. Fetch checks expiry
// lazily; a janitor loop sweeps expired entries so abandoned keys do not
// accumulate between fetches.
type Memory[T any] struct {
	log    *slog.Logger
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	entries map[string]entry[T]
}

// NewMemory creates the cache and starts its janitor loop. Call Stop to
// tear it down.
func NewMemory[T any](cfg Config) (*Memory[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Memory[T]{
		log:     cfg.Logger,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]entry[T]),
	}

	c.wg.Add(1)
	go c.janitor()

	return c, nil
}

func (c *Memory[T]) janitor() {
	defer c.wg.Done()

	ticker := c.cfg.Clock.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.Chan():
			c.sweep()
		}
	}
}

func (c *Memory[T]) sweep() {
	now := c.cfg.Clock.Now()

	c.mu.Lock()
	var removed int
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.log.Debug("cache: swept expired entries", "removed", removed, "remaining", remaining)
	}
}

// Store saves a value under the key for the given TTL.
func (c *Memory[T]) Store(key string, value T, ttl time.Duration) {
	expiresAt := c.cfg.Clock.Now().Add(ttl)

	c.mu.Lock()
	c.entries[key] = entry[T]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Fetch returns the value for the key if present and unexpired.
func (c *Memory[T]) Fetch(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.cfg.Clock.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Invalidate removes the key.
func (c *Memory[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included until the
// next sweep.
func (c *Memory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop terminates the janitor loop, waiting up to 5 seconds for it to
// exit.
func (c *Memory[T]) Stop() {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.log.Debug("cache: stopped")
	case <-time.After(5 * time.Second):
		c.log.Warn("cache: timeout waiting for janitor to stop")
	}
}
