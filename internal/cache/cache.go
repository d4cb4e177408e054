// Package cache stores rendered charts by upload checksum so the same exam
// is not drawn twice.
package cache

import (
	"context"
	"fmt"
	"time"

	"ecgview/internal/config"
)

// Cache holds rendered PNG bytes.
type Cache interface {
	// Get returns the value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the cache named by cfg.Driver. The "none" driver returns Nop.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisURL, cfg.TTL)
	}
	return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
func (Nop) Ping(context.Context) error                        { return nil }
func (Nop) Close() error                                      { return nil }

func expired(at time.Time, now time.Time) bool {
	return !at.IsZero() && now.After(at)
}
