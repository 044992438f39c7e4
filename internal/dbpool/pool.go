// Package dbpool keeps a small, bounded set of database sessions that are
// destroyed shortly after they go idle. Acquisition failures are retried once.
package dbpool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	DefaultMaxOpen     = 10
	DefaultIdleTimeout = 5 * time.Second
	DefaultRetryDelay  = 1 * time.Second
)

// ErrPoolClosed is returned by Acquire after Shutdown has started.
var ErrPoolClosed = errors.New("connection pool is shut down")

// ConnectionError reports that a session could not be obtained, even after the retry.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection unavailable: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Config controls pool sizing and timing.
type Config struct {
	MaxOpen     int
	IdleTimeout time.Duration
	RetryDelay  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxOpen <= 0 {
		c.MaxOpen = DefaultMaxOpen
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	MaxOpen int
	Live    int
	Idle    int
	InUse   int
	Evicted int64
	Retries int64
}

// Pool hands out exclusive sessions on top of a *sql.DB.
type Pool struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	free   []*Conn
	live   int
	inUse  int
	closed bool
	wake   chan struct{}

	inflight sync.WaitGroup

	evicted atomic.Int64
	retries atomic.Int64
}

// New wraps db. The pool owns db from now on and closes it in Shutdown.
// database/sql keeps no idle sessions of its own after this; sessions opened
// before New, such as a startup ping, are closed here.
func New(db *sql.DB, cfg Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(0)
	return &Pool{
		db:     db,
		cfg:    cfg,
		logger: logger,
		wake:   make(chan struct{}),
	}
}

// Conn is a checked-out session. It must be handed back with Release.
type Conn struct {
	conn   *sql.Conn
	pool   *Pool
	idle   *time.Timer
	broken bool
}

// QueryContext runs a statement on this session.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// PingContext checks that the session is still usable.
func (c *Conn) PingContext(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

// MarkBroken makes Release destroy the session instead of keeping it.
func (c *Conn) MarkBroken() {
	c.broken = true
}

// Acquire returns a free session, opening one when the pool is below its bound
// and waiting for a release otherwise. A failed attempt is retried exactly once
// after the configured delay.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	conn, err := p.take(ctx)
	if err == nil {
		return conn, nil
	}
	if errors.Is(err, ErrPoolClosed) || ctx.Err() != nil {
		return nil, &ConnectionError{Err: err}
	}

	p.retries.Add(1)
	p.logger.Warn("database connection failed, retrying",
		slog.String("error", err.Error()),
		slog.Duration("retry_in", p.cfg.RetryDelay),
	)

	timer := time.NewTimer(p.cfg.RetryDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return nil, &ConnectionError{Err: ctx.Err()}
	}

	conn, err = p.take(ctx)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return conn, nil
}

func (p *Pool) take(ctx context.Context) (*Conn, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		if n := len(p.free); n > 0 {
			conn := p.free[n-1]
			p.free = p.free[:n-1]
			if conn.idle != nil {
				conn.idle.Stop()
				conn.idle = nil
			}
			p.inUse++
			p.inflight.Add(1)
			p.mu.Unlock()
			return conn, nil
		}

		if p.live < p.cfg.MaxOpen {
			p.live++
			p.inUse++
			p.inflight.Add(1)
			p.mu.Unlock()

			raw, err := p.db.Conn(ctx)
			if err != nil {
				p.mu.Lock()
				p.live--
				p.inUse--
				p.broadcastLocked()
				p.mu.Unlock()
				p.inflight.Done()
				return nil, err
			}
			return &Conn{conn: raw, pool: p}, nil
		}

		wait := p.wake
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release hands a session back. It stays open for the idle timeout and is
// destroyed if nobody acquires it in that window.
func (p *Pool) Release(conn *Conn) {
	if conn == nil || conn.pool != p {
		return
	}

	p.mu.Lock()
	p.inUse--
	if conn.broken || p.closed {
		p.live--
		p.broadcastLocked()
		p.mu.Unlock()
		conn.destroy()
		p.inflight.Done()
		return
	}

	conn.idle = time.AfterFunc(p.cfg.IdleTimeout, func() {
		p.evict(conn)
	})
	p.free = append(p.free, conn)
	p.broadcastLocked()
	p.mu.Unlock()
	p.inflight.Done()
}

func (p *Pool) evict(conn *Conn) {
	p.mu.Lock()
	idx := -1
	for i, c := range p.free {
		if c == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Re-acquired or already closed.
		p.mu.Unlock()
		return
	}
	p.free = append(p.free[:idx], p.free[idx+1:]...)
	conn.idle = nil
	p.live--
	p.broadcastLocked()
	p.mu.Unlock()

	conn.destroy()
	p.evicted.Add(1)
	p.logger.Debug("evicted idle database connection", slog.Duration("idle_timeout", p.cfg.IdleTimeout))
}

func (p *Pool) broadcastLocked() {
	close(p.wake)
	p.wake = make(chan struct{})
}

// destroy closes the physical session instead of parking it in database/sql's
// own idle list.
func (c *Conn) destroy() {
	_ = c.conn.Raw(func(any) error {
		return driver.ErrBadConn
	})
	_ = c.conn.Close()
}

// Ping acquires a session, pings it and releases it.
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	if err := conn.PingContext(ctx); err != nil {
		conn.MarkBroken()
		return err
	}
	return nil
}

// Stats reports current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		MaxOpen: p.cfg.MaxOpen,
		Live:    p.live,
		Idle:    len(p.free),
		InUse:   p.inUse,
		Evicted: p.evicted.Load(),
		Retries: p.retries.Load(),
	}
}

// Shutdown refuses new acquisitions, waits for checked-out sessions to come
// back (or ctx to end), then closes every session and the database handle.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.broadcastLocked()
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(drained)
	}()

	var result *multierror.Error
	select {
	case <-drained:
	case <-ctx.Done():
		result = multierror.Append(result, fmt.Errorf("timed out draining database connections: %w", ctx.Err()))
	}

	p.mu.Lock()
	free := p.free
	p.free = nil
	p.live -= len(free)
	p.mu.Unlock()

	for _, conn := range free {
		if conn.idle != nil {
			conn.idle.Stop()
		}
		conn.destroy()
	}

	if err := p.db.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close database: %w", err))
	}
	return result.ErrorOrNil()
}
