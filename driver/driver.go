// Package driver is boltgraph's single exported entry point: it resolves a
// connection URL into an endpoint and dialect, owns the connection pool,
// and hands out Sessions.
package driver

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/sirupsen/logrus"

	"boltgraph/bolt"
	"boltgraph/dialect"
	"boltgraph/internal/errs"
	"boltgraph/internal/urlparse"
	"boltgraph/pool"
	"boltgraph/session"
)

// Config configures a Driver at construction time, layered over
// pkg/config.Config once a caller has loaded one.
type Config struct {
	MaxPoolSize    int
	IdleTTL        time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Logger         *logrus.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = 10
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 5 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// Driver ties a dialect.Adapter, a pool.Pool, and connection defaults
// together. Sessions and Connections are obtained only through it.
type Driver struct {
	pool     *pool.Pool
	adapter  dialect.Adapter
	database string
	log      *logrus.Entry
}

// New resolves rawURL (scheme://[user[:pass]@]host[:port][/database][?opt=val])
// into an endpoint and dialect adapter, and constructs the pool backing it.
func New(rawURL string, cfg Config) (*Driver, error) {
	cfg = cfg.withDefaults()

	parsed, err := urlparse.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	adapter, ok := dialect.ByScheme(parsed.Vendor)
	if !ok {
		return nil, errs.New(errs.Configuration, "driver: no adapter for vendor "+parsed.Vendor)
	}

	database := parsed.Database
	if database == "" {
		database = adapter.DefaultDatabase()
	}

	auth := bolt.NoAuth()
	if parsed.User != "" {
		auth = bolt.BasicAuth(parsed.User, parsed.Password)
	}

	ep := bolt.Endpoint{Host: parsed.Host, Port: parsed.Port, TLS: tlsConfig(parsed)}

	log := cfg.Logger.WithFields(logrus.Fields{"vendor": adapter.Name(), "endpoint": ep.String()})

	p := pool.New(ep, pool.Config{
		MaxSize: cfg.MaxPoolSize,
		IdleTTL: cfg.IdleTTL,
		ConnConfig: bolt.Config{
			UserAgent:      "boltgraph/1.0",
			Auth:           auth,
			ConnectTimeout: cfg.ConnectTimeout,
			ReadTimeout:    cfg.ReadTimeout,
			Logger:         cfg.Logger,
		},
		Logger: cfg.Logger,
	})

	return &Driver{pool: p, adapter: adapter, database: database, log: log}, nil
}

func tlsConfig(p urlparse.Parsed) *tls.Config {
	switch p.TLS {
	case urlparse.Verified:
		return &tls.Config{ServerName: p.Host}
	case urlparse.SelfSigned:
		return &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in via +ssc/+s scheme
	default:
		return nil
	}
}

// Adapter returns the dialect adapter this Driver resolved from the URL
// scheme.
func (d *Driver) Adapter() dialect.Adapter { return d.adapter }

// NewSession acquires a connection from the pool and wraps it in a Session
// bound to mode and the Driver's resolved database.
func (d *Driver) NewSession(ctx context.Context, mode session.AccessMode) (*session.Session, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return session.New(conn, d.pool, d.database, mode, d.adapter.SupportsAccessMode(), d.log.Logger), nil
}

// Close shuts down the pool, closing every idle connection and rejecting
// further acquisitions.
func (d *Driver) Close() { d.pool.Close() }
