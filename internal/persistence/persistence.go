package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures an EventStore backend.
type Options struct {
	Backend     string
	SQLiteDSN   string
	RedisAddr   string
	RedisPrefix string
}

// Open builds the EventStore named by opts.Backend. The returned close
// function releases the underlying connection and is never nil.
func Open(ctx context.Context, opts Options) (EventStore, func() error, error) {
	noClose := func() error { return nil }

	switch opts.Backend {
	case "", BackendNone:
		return NoopEventStore{}, noClose, nil

	case BackendMemory:
		return NewInMemoryEventStore(), noClose, nil

	case BackendSQLite:
		dsn := opts.SQLiteDSN
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
		}
		// A pooled :memory: database would give each connection its own data.
		db.SetMaxOpenConns(1)
		store, err := NewSQLiteEventStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("init sqlite schema: %w", err)
		}
		return store, db.Close, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", opts.RedisAddr, err)
		}
		return NewRedisEventStore(client, opts.RedisPrefix), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
