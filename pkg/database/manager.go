package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/pystore/catalog/pkg/errors"
)

// ConnectTimeout bounds the initial connect-and-ping handshake. Operations
// that exceed it surface as ErrUnavailable rather than hanging the caller.
const ConnectTimeout = 5 * time.Second

// DBTX is the subset of pgxpool.Pool the repositories depend on. pgxmock
// satisfies it, which keeps repository tests free of a real database.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Manager owns the lifetime of the database handle. Connect performs a
// liveness check before declaring success; on failure the manager reports
// unavailable instead of crashing, and Handle retries the connection once
// per call so the service degrades gracefully while the store is down.
//
// The cached handle is written once per successful connect and read
// concurrently by every request; an RWMutex keeps that safe without
// serializing readers.
type Manager struct {
	cfg    PostgresConfig
	logger *slog.Logger

	mu     sync.RWMutex
	handle DBTX
	pool   *pgxpool.Pool
}

// NewManager creates a manager for the given PostgreSQL configuration. It
// does not connect; call Connect or let Handle connect lazily.
func NewManager(cfg PostgresConfig, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// NewManagerWithHandle creates a manager around an existing handle. Used by
// tests (pgxmock) and by callers that already own a pool.
func NewManagerWithHandle(h DBTX) *Manager {
	return &Manager{handle: h}
}

// Connect establishes the connection pool and verifies liveness with a ping.
// It is idempotent: a second call on a connected manager is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	if m.handle != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(m.cfg.DSN())
	if err != nil {
		return fmt.Errorf("parse postgres config: %w", err)
	}
	poolConfig.MaxConns = m.cfg.MaxConns
	poolConfig.MinConns = m.cfg.MinConns
	poolConfig.MaxConnLifetime = m.cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = m.cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	m.pool = pool
	m.handle = pool
	if m.logger != nil {
		m.logger.Info("connected to PostgreSQL",
			slog.String("host", m.cfg.Host),
			slog.Int("port", m.cfg.Port),
			slog.String("database", m.cfg.DBName),
		)
	}
	return nil
}

// Handle returns the cached database handle. If no handle is cached it
// attempts exactly one lazy reconnect; when that fails it returns
// ErrUnavailable. No retry loop or backoff beyond the single attempt.
func (m *Manager) Handle(ctx context.Context) (DBTX, error) {
	m.mu.RLock()
	h := m.handle
	m.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil {
		return m.handle, nil
	}
	if err := m.connectLocked(ctx); err != nil {
		if m.logger != nil {
			m.logger.Warn("lazy reconnect failed", slog.String("error", err.Error()))
		}
		return nil, apperrors.Unavailable(err)
	}
	return m.handle, nil
}

// Ping reports store liveness for health checks. An unconnected manager is
// unhealthy without triggering a reconnect.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	h := m.handle
	m.mu.RUnlock()
	if h == nil {
		return apperrors.ErrUnavailable
	}
	return h.Ping(ctx)
}

// Pool returns the underlying pgxpool.Pool when the manager owns one, for
// metrics collectors that need pool statistics. Nil for injected handles.
func (m *Manager) Pool() *pgxpool.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool
}

// Close releases the connection pool. Safe to call on a never-connected or
// already-closed manager.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
	m.handle = nil
}
