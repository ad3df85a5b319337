// Package store provides the key-value backends the gatekeeping pipeline
// persists its state in. Values are opaque strings with an optional TTL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"msggate/pkg/config"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is an asynchronous key-value service with per-key TTL. There are no
// ordering or atomicity guarantees across Get and Put.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Put writes value under key. A ttl of zero keeps the key until overwritten.
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Purger is implemented by backends that keep expired entries until swept.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Closer is implemented by backends holding connections.
type Closer interface {
	Close() error
}

// Open builds the backend selected by cfg.Driver. The "none" driver returns a
// nil Store, which the pipeline answers with a configuration error reply.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.DriverRedis:
		s, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// Close releases backend resources when the store holds any.
func Close(s Store) error {
	if closer, ok := s.(Closer); ok {
		return closer.Close()
	}
	return nil
}

// Ping checks backend health when the store supports it.
func Ping(ctx context.Context, s Store) error {
	if s == nil {
		return errors.New("storage backend is not configured")
	}
	if pinger, ok := s.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
