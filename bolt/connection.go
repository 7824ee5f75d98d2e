package bolt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"boltgraph/internal/errs"
)

// Endpoint names a Bolt server to connect to.
type Endpoint struct {
	Host string
	Port int
	TLS  *tls.Config // nil means plaintext
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// AuthToken carries a scheme (e.g. "basic", "none") and arbitrary
// credential fields, per the pluggable auth-scheme contract.
type AuthToken struct {
	Scheme string
	Fields map[string]any
}

// BasicAuth builds a "basic" AuthToken.
func BasicAuth(principal, credentials string) AuthToken {
	return AuthToken{Scheme: "basic", Fields: map[string]any{
		"principal": principal, "credentials": credentials,
	}}
}

// NoAuth builds the "none" AuthToken.
func NoAuth() AuthToken { return AuthToken{Scheme: "none", Fields: map[string]any{}} }

func (a AuthToken) toMap() map[string]any {
	m := make(map[string]any, len(a.Fields)+1)
	for k, v := range a.Fields {
		m[k] = v
	}
	m["scheme"] = a.Scheme
	return m
}

// Config configures a Connection at construction time.
type Config struct {
	UserAgent      string
	Auth           AuthToken
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Logger         *logrus.Logger
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "boltgraph/1.0"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// Connection owns one TCP (optionally TLS) socket, the framer, and the
// protocol state machine. A single mutex serializes state-machine access
// and socket I/O so the "never touched by two goroutines concurrently"
// invariant holds without a separate mailbox goroutine.
type Connection struct {
	mu sync.Mutex

	endpoint Endpoint
	cfg      Config
	conn     net.Conn
	framer   *Framer
	sm       *StateMachine
	version  Version
	agent    string
	connID   string
	lastUsed time.Time

	log *logrus.Entry
}

// Dial establishes a new Connection: TCP/TLS, handshake, HELLO, and (for
// >=5.1) LOGON. Success leaves the connection in Ready.
func Dial(ctx context.Context, ep Endpoint, cfg Config) (*Connection, error) {
	cfg = cfg.withDefaults()
	c := &Connection{
		endpoint: ep,
		cfg:      cfg,
		sm:       NewStateMachine(),
		connID:   uuid.NewString(),
	}
	c.log = cfg.Logger.WithFields(logrus.Fields{"conn_id": c.connID, "endpoint": ep.String()})

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", ep.String())
	if err != nil {
		return nil, errs.Wrap(errs.Connection, err, "bolt: dial").WithContext(ep.String(), Disconnected.String())
	}
	conn := raw
	if ep.TLS != nil {
		tconn := tls.Client(raw, ep.TLS)
		if err := tconn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, errs.Wrap(errs.Connection, err, "bolt: tls handshake").WithContext(ep.String(), Disconnected.String())
		}
		conn = tconn
	}
	c.conn = conn
	c.framer = NewFramer(conn)

	if err := WriteHandshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	v, err := ReadHandshakeResponse(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.version = v
	c.sm.state = Connected
	c.log = c.log.WithField("bolt_version", v.String())

	helloMeta := map[string]any{"user_agent": cfg.UserAgent}
	if !v.SupportsLogon() {
		for k, val := range cfg.Auth.toMap() {
			helloMeta[k] = val
		}
	}
	if err := c.request(SigHello, helloMeta); err != nil {
		conn.Close()
		return nil, err
	}
	msg, err := c.reply()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.completeFromResponse(SigHello, msg); err != nil {
		conn.Close()
		return nil, err
	}
	if !v.SupportsLogon() {
		// <=5.0 carries credentials inside HELLO itself, so the transition
		// table's {Connected, SigHello} -> Authenticated entry (which assumes
		// a following LOGON) doesn't apply: HELLO's SUCCESS already means
		// Ready, and there is no LOGON to send.
		c.sm.state = Ready
	}
	if agent, ok := msg.Metadata(0)["server"].(string); ok {
		c.agent = agent
	}

	if v.SupportsLogon() {
		if err := c.request(SigLogon, cfg.Auth.toMap()); err != nil {
			conn.Close()
			return nil, err
		}
		msg, err := c.reply()
		if err != nil {
			conn.Close()
			return nil, err
		}
		if err := c.completeFromResponse(SigLogon, msg); err != nil {
			conn.Close()
			return nil, err
		}
	}

	c.lastUsed = time.Now()
	c.log.Info("bolt: connection ready")
	return c, nil
}

// ID returns the connection's locally-generated identifier.
func (c *Connection) ID() string { return c.connID }

// Version reports the negotiated Bolt protocol version.
func (c *Connection) Version() Version { return c.version }

// ServerAgent reports the server's advertised agent string, if any.
func (c *Connection) ServerAgent() string { return c.agent }

// State reports the current Bolt state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.state
}

// request validates and sends one client message, marking it outstanding
// in the state machine before writing to the socket. Caller must hold mu.
func (c *Connection) request(sig Signature, fields ...any) error {
	if !c.sm.CanSend(sig) {
		return errs.New(errs.Protocol, fmt.Sprintf("bolt: cannot send %s from %s", sigName(sig), c.sm.state)).
			WithContext(c.endpoint.String(), c.sm.state.String())
	}
	if err := c.sm.BeginSend(sig); err != nil {
		return err
	}
	raw, err := EncodeMessage(sig, fields...)
	if err != nil {
		return err
	}
	if err := c.framer.WriteMessage(raw); err != nil {
		c.sm.MarkDefunct()
		return err.(*errs.Error).WithContext(c.endpoint.String(), Defunct.String())
	}
	return nil
}

// reply reads and decodes exactly one message, without updating the state
// machine (the caller interprets RECORD vs terminal responses). Caller
// must hold mu.
func (c *Connection) reply() (Message, error) {
	raw, err := c.framer.ReadMessageWithTimeout(c.cfg.ReadTimeout)
	if err != nil {
		c.sm.MarkDefunct()
		return Message{}, err
	}
	msg, err := DecodeMessage(raw)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// completeFromResponse applies the state-machine transition for a
// terminal (non-RECORD) response to the request identified by sig.
func (c *Connection) completeFromResponse(sig Signature, msg Message) error {
	switch msg.Signature {
	case SigSuccess:
		return c.sm.OnSuccess(sig)
	case SigFailure:
		if err := c.sm.OnFailure(); err != nil {
			return err
		}
		return classifyFailure(msg.Metadata(0)).WithContext(c.endpoint.String(), Failed.String())
	case SigIgnored:
		return c.sm.OnIgnored()
	default:
		return errs.New(errs.Protocol, "bolt: unexpected response signature").
			WithContext(c.endpoint.String(), c.sm.state.String())
	}
}

// classifyFailure turns FAILURE metadata into a ServerFailure/Transient
// error, per the taxonomy's sub-classification.
func classifyFailure(meta map[string]any) *errs.Error {
	code, _ := meta["code"].(string)
	message, _ := meta["message"].(string)
	kind := errs.ServerFailure
	if isTransientCode(code) {
		kind = errs.Transient
	}
	return &errs.Error{Kind: kind, Code: code, Message: message}
}

func isTransientCode(code string) bool {
	// Neo4j/Memgraph transient categories, e.g.
	// "Neo.TransientError.Transaction.DeadlockDetected".
	return strings.Contains(code, "TransientError")
}

// Send writes a request message (used by Session for RUN/PULL/BEGIN/etc.)
// and returns once the bytes are on the wire.
func (c *Connection) Send(sig Signature, fields ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.request(sig, fields...)
}

// Recv reads one reply message; it does not itself update the state
// machine for RECORD messages (callers streaming results loop Recv,
// interpret RECORD vs terminal themselves and pass the terminal reply to
// Complete).
func (c *Connection) Recv() (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, err := c.reply()
	if err != nil {
		return Message{}, err
	}
	c.lastUsed = time.Now()
	return msg, nil
}

// Complete applies the terminal-response state transition for the request
// identified by sig once a non-RECORD reply has been read via Recv.
func (c *Connection) Complete(sig Signature, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completeFromResponse(sig, msg)
}

// Reset returns the connection to Ready. It is idempotent and safe to call
// on a connection that is already Ready. It sends RESET directly -- there
// is no cheap-query-first fallback -- and then drains replies until the
// RESET's own response. RESET is only sent from Failed, Interrupted or
// TxReady with no request outstanding; from Streaming, TxStreaming or any
// state with a request outstanding, Reset returns a protocol error and
// sends nothing. Defunct and Disconnected connections return a
// connection-lost error.
func (c *Connection) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sm.state == Ready {
		return nil
	}
	if c.sm.state == Defunct || c.sm.state == Disconnected {
		return errs.New(errs.ConnectionLost, "bolt: cannot reset a defunct connection").
			WithContext(c.endpoint.String(), c.sm.state.String())
	}
	if err := c.request(SigReset); err != nil {
		return err
	}
	// Drain any records/responses until the terminating SUCCESS/IGNORED.
	for {
		msg, err := c.reply()
		if err != nil {
			return err
		}
		if msg.Signature == SigRecord {
			continue
		}
		if err := c.completeFromResponse(SigReset, msg); err != nil {
			return err
		}
		break
	}
	c.log.Debug("bolt: connection reset to READY")
	return nil
}

// Viable reports whether the connection's state machine is recoverable
// (i.e. in Ready) and the socket appears healthy. It does not itself
// perform I/O; callers needing a live probe issue `RETURN 1` on the
// connection (see the pool package's probeViable).
func (c *Connection) Viable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.Recoverable() && c.conn != nil
}

// LastUsed reports when the connection last completed I/O.
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Close sends GOODBYE best-effort and releases the socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sm.state == Defunct || c.sm.state == Disconnected {
		if c.conn != nil {
			return c.conn.Close()
		}
		return nil
	}
	raw, err := EncodeMessage(SigGoodbye)
	if err == nil {
		_ = c.framer.WriteMessage(raw) // best-effort
	}
	c.sm.MarkDefunct()
	c.log.Debug("bolt: connection closed")
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
