package pool

import (
	"context"
	"database/sql/driver"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/internal/observability"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrPoolExhausted is returned when no connection could be obtained within
	// the wait budget or the bad connection tolerance.
	ErrPoolExhausted = errors.New("pool: could not obtain a connection")
	// ErrConnectionInvalid is returned when a released or reclaimed handle is used.
	ErrConnectionInvalid = errors.New("pool: connection handle is no longer valid")
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("pool: closed")
)

// Option configures a Pool.
type Option func(*Pool)

// WithClock sets the clock used for checkout and wait timing.
func WithClock(c clockwork.Clock) Option { return func(p *Pool) { p.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pool) { p.logger = l } }

// WithTracer sets the tracer used for acquire spans.
func WithTracer(t trace.Tracer) Option { return func(p *Pool) { p.tracer = t } }

// Pool is a bounded set of real connections shared by every session.
// All pool state is guarded by one mutex; waiters park on a channel that is
// closed and replaced whenever a connection is released.
type Pool struct {
	ds     *UnpooledDataSource
	clock  clockwork.Clock
	logger *slog.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	cfg      Config
	typeCode uint64
	idle     []*PooledConn
	active   []*PooledConn
	notify   chan struct{}
	closed   bool
	state    state
}

// New creates a pool over ds.
func New(cfg Config, ds *UnpooledDataSource, opts ...Option) (*Pool, error) {
	if ds == nil {
		return nil, &ConfigError{Field: "DataSource", Message: "is required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		ds:     ds,
		cfg:    cfg,
		notify: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "pool")
	if p.tracer == nil {
		p.tracer = observability.Tracer("pool")
	}
	if cfg.URL != "" || cfg.Username != "" {
		ds.SetURL(cfg.URL)
		ds.SetCredentials(cfg.Username, cfg.Password)
	}
	p.typeCode = ds.TypeCode()
	return p, nil
}

// Open creates a pool that opens connections through the registered driver cfg.Driver.
func Open(cfg Config, opts ...Option) (*Pool, error) {
	if cfg.Driver == "" {
		return nil, &ConfigError{Field: "Driver", Message: "is required"}
	}
	ds, err := NewUnpooledDataSource(cfg.Driver, cfg.URL, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}
	return New(cfg, ds, opts...)
}

// Config returns the current configuration.
func (p *Pool) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Acquire checks out a connection. It takes an idle connection, opens a new
// one while below MaxActive, reclaims the oldest active connection once it is
// overdue, and otherwise waits for a release and decides again.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	ctx, span := p.tracer.Start(ctx, "pool.Acquire")
	defer span.End()

	conn, err := p.popConnection(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("pool.connection_id", conn.id))
	return conn, nil
}

func (p *Pool) popConnection(ctx context.Context) (*PooledConn, error) {
	start := p.clock.Now()
	countedWait := false
	localBad := 0

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			return nil, errors.Wrap(err, "pool: acquire")
		}

		now := p.clock.Now()
		var conn *PooledConn
		switch {
		case len(p.idle) > 0:
			conn = p.idle[0]
			p.idle = p.idle[1:]
		case len(p.active) < p.cfg.MaxActive:
			raw, err := p.ds.Connect(ctx)
			if err != nil {
				p.mu.Unlock()
				return nil, err
			}
			conn = newPooledConn(p, raw, now)
			p.logger.Debug("opened connection", "connection_id", conn.id)
		default:
			oldest := p.active[0]
			checkedOut := now.Sub(oldest.CheckoutAt())
			if checkedOut >= p.cfg.MaxCheckoutTime {
				p.state.claimedOverdue++
				p.state.accumulatedCheckoutTimeOfOverdue += checkedOut
				p.state.accumulatedCheckoutTime += checkedOut
				p.active = p.active[1:]
				if err := oldest.rollbackOpenTx(); err != nil {
					p.logger.Debug("rollback on overdue connection failed", "connection_id", oldest.id, "error", err)
				}
				conn = oldest.rewrap()
				oldest.invalidate()
				p.logger.Debug("claimed overdue connection", "connection_id", oldest.id, "checked_out", checkedOut)
				break
			}
			if !countedWait {
				p.state.hadToWait++
				countedWait = true
			}
			if err := p.wait(ctx, start); err != nil {
				p.mu.Unlock()
				return nil, err
			}
			continue
		}

		if p.ping(ctx, conn) {
			conn.checkout(now, p.typeCode)
			p.active = append(p.active, conn)
			p.state.requests++
			p.state.accumulatedRequestTime += p.clock.Since(start)
			p.mu.Unlock()
			return conn, nil
		}

		p.logger.Debug("discarded bad connection", "connection_id", conn.id)
		p.state.badConnections++
		localBad++
		conn.invalidate()
		_ = conn.raw.Close()
		if localBad > p.cfg.MaxIdle+p.cfg.BadConnectionTolerance {
			p.mu.Unlock()
			p.logger.Warn("bad connection tolerance exceeded", "bad_connections", localBad)
			return nil, errors.Wrapf(ErrPoolExhausted, "%d bad connections", localBad)
		}
	}
}

// wait parks the caller until a release, TimeToWait or ctx. It is called and
// returns with p.mu held.
func (p *Pool) wait(ctx context.Context, start time.Time) error {
	if p.cfg.MaxWait > 0 && p.clock.Since(start) >= p.cfg.MaxWait {
		return errors.Wrapf(ErrPoolExhausted, "waited %s", p.clock.Since(start))
	}
	ch := p.notify
	d := p.cfg.TimeToWait
	if p.cfg.MaxWait > 0 {
		if left := p.cfg.MaxWait - p.clock.Since(start); left < d {
			d = left
		}
	}
	waitStart := p.clock.Now()
	timer := p.clock.NewTimer(d)
	p.mu.Unlock()

	var err error
	select {
	case <-ch:
	case <-timer.Chan():
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "pool: acquire")
	}
	timer.Stop()

	p.mu.Lock()
	p.state.accumulatedWaitTime += p.clock.Since(waitStart)
	return err
}

// ping validates a candidate connection. Called with p.mu held.
func (p *Pool) ping(ctx context.Context, c *PooledConn) bool {
	if !c.IsValid() {
		return false
	}
	if !p.cfg.PingEnabled {
		return true
	}
	if p.clock.Since(c.LastUsedAt()) <= p.cfg.PingNotUsedFor {
		return true
	}
	if err := pingConn(ctx, c.raw, p.cfg.PingQuery); err != nil {
		p.logger.Debug("ping failed", "connection_id", c.id, "error", err)
		return false
	}
	return true
}

func pingConn(ctx context.Context, raw driver.Conn, query string) error {
	if query == "" {
		if pinger, ok := raw.(driver.Pinger); ok {
			return pinger.Ping(ctx)
		}
		return nil
	}
	var (
		stmt driver.Stmt
		err  error
	)
	if pc, ok := raw.(driver.ConnPrepareContext); ok {
		stmt, err = pc.PrepareContext(ctx, query)
	} else {
		stmt, err = raw.Prepare(query)
	}
	if err != nil {
		return err
	}
	defer stmt.Close()

	var rows driver.Rows
	if sq, ok := stmt.(driver.StmtQueryContext); ok {
		rows, err = sq.QueryContext(ctx, nil)
	} else {
		rows, err = stmt.Query(nil)
	}
	if err != nil {
		return err
	}
	dest := make([]driver.Value, len(rows.Columns()))
	for {
		if err := rows.Next(dest); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			rows.Close()
			return err
		}
	}
	return rows.Close()
}

// Release returns a handle to the pool. A valid handle goes back to the idle
// list under a fresh handle while there is room and its fingerprint matches the
// current configuration; otherwise its real connection is closed. Releasing a
// superseded handle only counts a bad connection, and a handle the driver
// reports as broken is counted and closed.
func (p *Pool) Release(c *PooledConn) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	found := p.removeActive(c)
	if !found || !c.IsValid() {
		p.state.badConnections++
		p.logger.Debug("released invalid connection", "connection_id", c.id)
		if found {
			// the driver gave up on it; the handle still owns the real connection
			c.invalidate()
			if c.raw != nil {
				if err := c.raw.Close(); err != nil {
					p.logger.Debug("close failed", "connection_id", c.id, "error", err)
				}
			}
			p.signal()
		}
		return nil
	}

	p.state.accumulatedCheckoutTime += p.clock.Since(c.CheckoutAt())
	if err := c.rollbackOpenTx(); err != nil {
		p.logger.Debug("rollback on release failed", "connection_id", c.id, "error", err)
	}

	if !p.closed && len(p.idle) < p.cfg.MaxIdle && c.typeCode == p.typeCode {
		p.idle = append(p.idle, c.rewrap())
		c.invalidate()
	} else {
		c.invalidate()
		if err := c.raw.Close(); err != nil {
			p.logger.Debug("close failed", "connection_id", c.id, "error", err)
		}
	}
	p.signal()
	return nil
}

func (p *Pool) removeActive(c *PooledConn) bool {
	for i, a := range p.active {
		if a == c {
			p.active = append(p.active[:i], p.active[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Pool) signal() {
	close(p.notify)
	p.notify = make(chan struct{})
}

// ForceCloseAll closes every active and idle connection. Checked out handles
// become invalid.
func (p *Pool) ForceCloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forceCloseAll()
}

func (p *Pool) forceCloseAll() {
	p.typeCode = p.ds.TypeCode()
	conns := make([]*PooledConn, 0, len(p.active)+len(p.idle))
	conns = append(conns, p.active...)
	conns = append(conns, p.idle...)
	p.active, p.idle = nil, nil
	for _, c := range conns {
		c.invalidate()
		if err := c.rollbackOpenTx(); err != nil {
			p.logger.Debug("rollback on force close failed", "connection_id", c.id, "error", err)
		}
		if err := c.raw.Close(); err != nil {
			p.logger.Debug("close failed", "connection_id", c.id, "error", err)
		}
	}
	if len(conns) > 0 {
		p.logger.Debug("force closed connections", "count", len(conns))
	}
	p.signal()
}

// Close shuts the pool down. Later acquires fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.forceCloseAll()
	return nil
}

func (p *Pool) reconfigure(update func(cfg *Config)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.cfg
	update(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	p.cfg = next
	p.forceCloseAll()
	return nil
}

// SetMaxActive changes MaxActive and closes every connection.
func (p *Pool) SetMaxActive(n int) error {
	return p.reconfigure(func(c *Config) { c.MaxActive = n })
}

// SetMaxIdle changes MaxIdle and closes every connection.
func (p *Pool) SetMaxIdle(n int) error {
	return p.reconfigure(func(c *Config) { c.MaxIdle = n })
}

// SetMaxCheckoutTime changes MaxCheckoutTime and closes every connection.
func (p *Pool) SetMaxCheckoutTime(d time.Duration) error {
	return p.reconfigure(func(c *Config) { c.MaxCheckoutTime = d })
}

// SetTimeToWait changes TimeToWait and closes every connection.
func (p *Pool) SetTimeToWait(d time.Duration) error {
	return p.reconfigure(func(c *Config) { c.TimeToWait = d })
}

// SetPing changes the ping settings and closes every connection.
func (p *Pool) SetPing(enabled bool, query string, notUsedFor time.Duration) error {
	return p.reconfigure(func(c *Config) {
		c.PingEnabled = enabled
		c.PingQuery = query
		c.PingNotUsedFor = notUsedFor
	})
}

// SetURL changes the target URL and closes every connection.
func (p *Pool) SetURL(rawURL string) error {
	return p.reconfigure(func(c *Config) {
		c.URL = rawURL
		p.ds.SetURL(rawURL)
	})
}

// SetCredentials changes the credentials and closes every connection.
func (p *Pool) SetCredentials(username, password string) error {
	return p.reconfigure(func(c *Config) {
		c.Username, c.Password = username, password
		p.ds.SetCredentials(username, password)
	})
}
