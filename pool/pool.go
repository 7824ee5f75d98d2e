// Package pool implements a bounded pool of reusable bolt.Connections to a
// single endpoint, adapted from the teacher's generic net.Conn connection
// pool (core.ConnPool) to the Bolt acquire/release/viability-probe
// contract.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"boltgraph/bolt"
	"boltgraph/internal/errs"
)

// Config bounds one Pool.
type Config struct {
	MaxSize     int
	IdleTTL     time.Duration
	ConnConfig  bolt.Config
	Logger      *logrus.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 10
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

type idleConn struct {
	conn     *bolt.Connection
	lastUsed time.Time
}

type waiter struct {
	ready chan result
}

type result struct {
	conn *bolt.Connection
	err  error
}

// Pool is a bounded connection pool to a single Bolt endpoint. It
// maintains `|idle| + |in_use| <= max` at all times; acquisitions beyond
// capacity wait FIFO until a release or Close.
type Pool struct {
	endpoint bolt.Endpoint
	cfg      Config
	log      *logrus.Entry

	mu       sync.Mutex
	idle     []idleConn
	inUse    int
	waiters  []*waiter
	closing  bool
	closed   chan struct{}
	closeOnce sync.Once
}

// New constructs a Pool bound to ep. It does not eagerly dial; connections
// are created lazily on first Acquire, up to cfg.MaxSize.
func New(ep bolt.Endpoint, cfg Config) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		endpoint: ep,
		cfg:      cfg,
		log:      cfg.Logger.WithField("endpoint", ep.String()),
		closed:   make(chan struct{}),
	}
	go p.reaper()
	return p
}

// Acquire returns an idle viable connection, dials a new one if below
// capacity, or waits FIFO for a release until ctx is done, returning
// PoolTimeout on expiry.
func (p *Pool) Acquire(ctx context.Context) (*bolt.Connection, error) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return nil, errs.New(errs.PoolClosed, "pool: closed").WithContext(p.endpoint.String(), "")
	}

	for len(p.idle) > 0 {
		ic := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if time.Since(ic.lastUsed) > p.cfg.IdleTTL {
			// Exceeded idle TTL: probe before handing back, per the
			// viability-probe contract.
			p.mu.Unlock()
			if probeViable(ctx, ic.conn) {
				p.mu.Lock()
				p.inUse++
				p.mu.Unlock()
				return ic.conn, nil
			}
			_ = ic.conn.Close()
			p.mu.Lock()
			continue
		}
		if !ic.conn.Viable() {
			p.mu.Unlock()
			_ = ic.conn.Close()
			p.mu.Lock()
			continue
		}
		p.inUse++
		p.mu.Unlock()
		return ic.conn, nil
	}

	if p.inUse+len(p.idle) < p.cfg.MaxSize {
		p.inUse++
		p.mu.Unlock()
		conn, err := bolt.Dial(ctx, p.endpoint, p.cfg.ConnConfig)
		if err != nil {
			p.mu.Lock()
			p.inUse--
			p.wakeOneLocked()
			p.mu.Unlock()
			return nil, err
		}
		return conn, nil
	}

	w := &waiter{ready: make(chan result, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case r := <-w.ready:
		return r.conn, r.err
	case <-ctx.Done():
		p.mu.Lock()
		p.removeWaiterLocked(w)
		p.mu.Unlock()
		return nil, errs.New(errs.PoolTimeout, "pool: acquire timed out").WithContext(p.endpoint.String(), "")
	}
}

// Release returns conn to idle if it is Ready and viable; otherwise it
// schedules a reset and, failing that, drops the connection and wakes a
// waiter with a freshly dialed replacement slot.
func (p *Pool) Release(conn *bolt.Connection) {
	if conn.State() == bolt.Ready && conn.Viable() {
		p.returnToIdle(conn)
		return
	}
	go p.resetThenReturn(conn)
}

func (p *Pool) resetThenReturn(conn *bolt.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Reset(ctx); err != nil {
		p.log.WithError(err).Warn("pool: reset failed, dropping connection")
		_ = conn.Close()
		p.mu.Lock()
		p.inUse--
		p.wakeOneLocked()
		p.mu.Unlock()
		return
	}
	p.returnToIdle(conn)
}

func (p *Pool) returnToIdle(conn *bolt.Connection) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	p.inUse--
	if w := p.popWaiterLocked(); w != nil {
		p.inUse++
		p.mu.Unlock()
		w.ready <- result{conn: conn}
		return
	}
	p.idle = append(p.idle, idleConn{conn: conn, lastUsed: time.Now()})
	p.mu.Unlock()
}

func (p *Pool) popWaiterLocked() *waiter {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	return w
}

func (p *Pool) removeWaiterLocked(target *waiter) {
	for i, w := range p.waiters {
		if w == target {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

// wakeOneLocked wakes a single FIFO waiter by dialing it a fresh
// connection, used when a slot frees up due to a dead connection rather
// than a clean release. Caller must hold p.mu; it is dropped while dialing.
func (p *Pool) wakeOneLocked() {
	w := p.popWaiterLocked()
	if w == nil {
		return
	}
	p.inUse++
	ep, cfg := p.endpoint, p.cfg.ConnConfig
	p.mu.Unlock()
	go func() {
		conn, err := bolt.Dial(context.Background(), ep, cfg)
		w.ready <- result{conn: conn, err: err}
	}()
	p.mu.Lock()
}

// Stats reports the current idle and in-use counts.
func (p *Pool) Stats() (idle, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), p.inUse
}

// Close rejects new acquisitions, fails pending waiters, and closes every
// idle connection. In-use connections are closed as they are released.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closing = true
		for _, w := range p.waiters {
			w.ready <- result{err: errs.New(errs.PoolClosed, "pool: closed").WithContext(p.endpoint.String(), "")}
		}
		p.waiters = nil
		idle := p.idle
		p.idle = nil
		p.mu.Unlock()
		for _, ic := range idle {
			_ = ic.conn.Close()
		}
		close(p.closed)
	})
}

func (p *Pool) reaper() {
	ticker := time.NewTicker(p.cfg.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapExpired()
		case <-p.closed:
			return
		}
	}
}

func (p *Pool) reapExpired() {
	cutoff := time.Now().Add(-p.cfg.IdleTTL)
	p.mu.Lock()
	var keep []idleConn
	var drop []idleConn
	for _, ic := range p.idle {
		if ic.lastUsed.Before(cutoff) {
			drop = append(drop, ic)
			continue
		}
		keep = append(keep, ic)
	}
	p.idle = keep
	p.mu.Unlock()
	for _, ic := range drop {
		_ = ic.conn.Close()
	}
}

// probeViable issues a lightweight RETURN 1 to confirm a long-idle
// connection is still usable before handing it back from Acquire.
func probeViable(ctx context.Context, conn *bolt.Connection) bool {
	if !conn.Viable() {
		return false
	}
	if err := conn.Send(bolt.SigRun, "RETURN 1", map[string]any{}, map[string]any{}); err != nil {
		return false
	}
	msg, err := conn.Recv()
	if err != nil {
		return false
	}
	if err := conn.Complete(bolt.SigRun, msg); err != nil {
		return false
	}
	// Drain the single record and its terminating SUCCESS.
	if err := conn.Send(bolt.SigPull, map[string]any{"n": int64(-1)}); err != nil {
		return false
	}
	for {
		m, err := conn.Recv()
		if err != nil {
			return false
		}
		if m.Signature == bolt.SigRecord {
			continue
		}
		return conn.Complete(bolt.SigPull, m) == nil
	}
}
