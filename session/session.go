package session

import (
	"context"

	"boltgraph/bolt"
	"boltgraph/internal/errs"
	"boltgraph/packstream"

	"github.com/sirupsen/logrus"
)

// AccessMode is a routing hint communicated in BEGIN/RUN metadata.
type AccessMode string

const (
	Read  AccessMode = "r"
	Write AccessMode = "w"
)

// ConnLease is the minimal contract Session needs from whatever lent it a
// connection (normally pool.Pool). Decoupling from the concrete pool type
// keeps Session testable without a live pool.
type ConnLease interface {
	Release(c *bolt.Connection)
}

// Session is a transaction-scoped façade over one borrowed connection. Its
// lifetime is strictly shorter than the connection's: Close returns the
// connection to its lease.
type Session struct {
	conn        *bolt.Connection
	lease       ConnLease
	database    string
	mode        AccessMode
	includeMode bool // false for dialects that don't distinguish read/write
	log         *logrus.Entry

	inTx   bool
	busy   bool // at most one in-flight statement per session
	closed bool
}

// New wraps conn for the lifetime of one session. database may be empty to
// use the server/vendor default. includeMode controls whether the "mode"
// field is sent in BEGIN/RUN metadata, per dialect.Adapter.SupportsAccessMode.
func New(conn *bolt.Connection, lease ConnLease, database string, mode AccessMode, includeMode bool, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		conn: conn, lease: lease, database: database, mode: mode, includeMode: includeMode,
		log: log.WithFields(logrus.Fields{"conn_id": conn.ID()}),
	}
}

// Close releases the borrowed connection back to its lease. A session must
// not be used after Close.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.lease != nil {
		s.lease.Release(s.conn)
	}
}

func (s *Session) runMetadata(extra map[string]any) map[string]any {
	meta := map[string]any{}
	if s.includeMode {
		meta["mode"] = string(s.mode)
	}
	if s.database != "" {
		meta["db"] = s.database
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

// Run executes cypher as an auto-commit statement: it sends RUN and returns
// a lazy Result, which sends PULL(all) on its first Next.
func (s *Session) Run(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	if s.closed {
		return nil, errs.New(errs.Client, "session: use after close")
	}
	if s.inTx {
		return nil, errs.New(errs.Client, "session: auto-commit run not allowed inside a transaction")
	}
	if s.busy {
		return nil, errs.New(errs.Client, "session: at most one in-flight statement per session")
	}
	s.busy = true
	defer func() { s.busy = false }()

	if err := s.conn.Send(bolt.SigRun, cypher, normalizeParams(params), s.runMetadata(nil)); err != nil {
		return nil, err
	}
	msg, err := s.conn.Recv()
	if err != nil {
		return nil, err
	}
	if err := s.conn.Complete(bolt.SigRun, msg); err != nil {
		return nil, err
	}
	keys := extractKeys(msg)
	return newResult(s.conn, bolt.SigRun, keys), nil
}

// Tx is an explicit transaction: every Run inside it executes in
// TxReady/TxStreaming states, committed or rolled back as a unit.
type Tx struct {
	session *Session
	closed  bool
}

// beginTx sends BEGIN with the session's access mode. It resets the
// connection back to READY first, so a retried transaction-function
// attempt after a prior FAILURE (e.g. a transient commit failure) can
// begin cleanly.
func (s *Session) beginTx(ctx context.Context) (*Tx, error) {
	if s.inTx {
		return nil, errs.New(errs.Client, "session: nested transactions are not allowed")
	}
	if err := s.conn.Reset(ctx); err != nil {
		return nil, err
	}
	if err := s.conn.Send(bolt.SigBegin, s.runMetadata(nil)); err != nil {
		return nil, err
	}
	msg, err := s.conn.Recv()
	if err != nil {
		return nil, err
	}
	if err := s.conn.Complete(bolt.SigBegin, msg); err != nil {
		return nil, err
	}
	s.inTx = true
	return &Tx{session: s}, nil
}

// Run executes cypher inside the transaction.
func (t *Tx) Run(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	if t.closed {
		return nil, errs.New(errs.Client, "tx: use after commit/rollback")
	}
	s := t.session
	if s.busy {
		return nil, errs.New(errs.Client, "session: at most one in-flight statement per session")
	}
	s.busy = true
	defer func() { s.busy = false }()

	if err := s.conn.Send(bolt.SigRun, cypher, normalizeParams(params), map[string]any{}); err != nil {
		return nil, err
	}
	msg, err := s.conn.Recv()
	if err != nil {
		return nil, err
	}
	if err := s.conn.Complete(bolt.SigRun, msg); err != nil {
		return nil, err
	}
	keys := extractKeys(msg)
	return newResult(s.conn, bolt.SigRun, keys), nil
}

func (t *Tx) commit(ctx context.Context) error {
	s := t.session
	if err := s.conn.Send(bolt.SigCommit); err != nil {
		return err
	}
	msg, err := s.conn.Recv()
	if err != nil {
		return err
	}
	t.closed = true
	s.inTx = false
	if err := s.conn.Complete(bolt.SigCommit, msg); err != nil {
		if errs.IsTransient(err) {
			return err
		}
		return errs.Wrap(errs.Transaction, err, "tx: commit failed")
	}
	return nil
}

func (t *Tx) rollback(ctx context.Context) error {
	s := t.session
	t.closed = true
	s.inTx = false
	if err := s.conn.Send(bolt.SigRollback); err != nil {
		return err
	}
	msg, err := s.conn.Recv()
	if err != nil {
		return err
	}
	if err := s.conn.Complete(bolt.SigRollback, msg); err != nil {
		if errs.IsTransient(err) {
			return err
		}
		return errs.Wrap(errs.Transaction, err, "tx: rollback failed")
	}
	return nil
}

// TxWork is a caller-supplied callback run inside an explicit transaction.
type TxWork func(ctx context.Context, tx *Tx) (any, error)

// ReadTransaction opens a transaction with Read access mode, runs fn, and
// commits on success / rolls back and retries on transient failure.
func (s *Session) ReadTransaction(ctx context.Context, fn TxWork, opts ...RetryOption) (any, error) {
	return s.runTransaction(ctx, Read, fn, opts...)
}

// WriteTransaction opens a transaction with Write access mode, runs fn, and
// commits on success / rolls back and retries on transient failure.
func (s *Session) WriteTransaction(ctx context.Context, fn TxWork, opts ...RetryOption) (any, error) {
	return s.runTransaction(ctx, Write, fn, opts...)
}

func (s *Session) runTransaction(ctx context.Context, mode AccessMode, fn TxWork, opts ...RetryOption) (any, error) {
	prevMode := s.mode
	s.mode = mode
	defer func() { s.mode = prevMode }()

	return Retry(ctx, opts, func() (any, error) {
		tx, err := s.beginTx(ctx)
		if err != nil {
			return nil, err
		}
		result, err := fn(ctx, tx)
		if err != nil {
			if rbErr := tx.rollback(ctx); rbErr != nil {
				s.log.WithError(rbErr).Warn("session: rollback after application error also failed")
			}
			return nil, err
		}
		if err := tx.commit(ctx); err != nil {
			return nil, err
		}
		return result, nil
	})
}

func normalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return params
}

func extractKeys(msg bolt.Message) []string {
	meta := msg.Metadata(0)
	raw, ok := meta["fields"].(packstream.List)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys
}
