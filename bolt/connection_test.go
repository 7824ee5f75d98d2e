package bolt

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"boltgraph/packstream"
)

// fakeServer accepts one connection, answers the version handshake, then
// hands the test the server-side Framer so it can drive the HELLO/LOGON and
// any further exchanges itself. Modeled on the teacher's startTestServer helper
// (core/connection_pool_test.go), generalized to speak one Bolt exchange.
func fakeServer(t *testing.T) (addr string, serverFramer chan *Framer) {
	return fakeServerVersion(t, [4]byte{0x00, 0x00, 0x04, 0x05})
}

// fakeServerVersion is fakeServer parameterized on the negotiated handshake
// response bytes, so callers can exercise pre-5.1 (combined HELLO auth)
// servers as well as the default 5.4.
func fakeServerVersion(t *testing.T, versionBytes [4]byte) (addr string, serverFramer chan *Framer) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ch := make(chan *Framer, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		var hs [20]byte
		if _, err := conn.Read(hs[:]); err != nil {
			return
		}
		conn.Write(versionBytes[:])
		f := NewFramer(conn)
		ch <- f
	}()
	return ln.Addr().String(), ch
}

func hostPort(t *testing.T, addr string) Endpoint {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return Endpoint{Host: host, Port: port}
}

func serverReplySuccess(t *testing.T, f *Framer, meta map[string]any) {
	t.Helper()
	enc := packstream.NewEncoder()
	if err := enc.Encode(packstream.Structure{Signature: byte(SigSuccess), Fields: []any{packstream.Map(meta)}}); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteMessage(enc.Bytes()); err != nil {
		t.Fatal(err)
	}
}

func serverReadMessage(t *testing.T, f *Framer) Message {
	t.Helper()
	raw, err := f.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecodeMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestDialHandshakeHelloLogon(t *testing.T) {
	addr, serverCh := fakeServer(t)
	ep := hostPort(t, addr)

	done := make(chan *Connection, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := Dial(context.Background(), ep, Config{Auth: BasicAuth("neo4j", "s3cr3t")})
		if err != nil {
			errCh <- err
			return
		}
		done <- c
	}()

	f := <-serverCh
	helloMsg := serverReadMessage(t, f)
	if helloMsg.Signature != SigHello {
		t.Fatalf("expected HELLO, got %v", helloMsg.Signature)
	}
	serverReplySuccess(t, f, map[string]any{"server": "Neo4j/5.4.0", "connection_id": "bolt-1"})

	logonMsg := serverReadMessage(t, f)
	if logonMsg.Signature != SigLogon {
		t.Fatalf("expected LOGON, got %v", logonMsg.Signature)
	}
	serverReplySuccess(t, f, map[string]any{})

	select {
	case err := <-errCh:
		t.Fatalf("Dial failed: %v", err)
	case c := <-done:
		if c.State() != Ready {
			t.Fatalf("want Ready, got %s", c.State())
		}
		if c.ServerAgent() != "Neo4j/5.4.0" {
			t.Fatalf("want server agent, got %q", c.ServerAgent())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Dial")
	}
}

func TestDialCombinedHelloAuthOnPre51Version(t *testing.T) {
	// 4.4 is the documented minimum supported version and predates LOGON
	// (introduced in 5.1): credentials travel inside HELLO itself, and
	// HELLO's SUCCESS must land the connection directly in Ready.
	addr, serverCh := fakeServerVersion(t, [4]byte{0x00, 0x00, 0x04, 0x04})
	ep := hostPort(t, addr)

	done := make(chan *Connection, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := Dial(context.Background(), ep, Config{Auth: BasicAuth("neo4j", "s3cr3t")})
		if err != nil {
			errCh <- err
			return
		}
		done <- c
	}()

	f := <-serverCh
	helloMsg := serverReadMessage(t, f)
	if helloMsg.Signature != SigHello {
		t.Fatalf("expected HELLO, got %v", helloMsg.Signature)
	}
	meta := helloMsg.Metadata(0)
	if meta["principal"] != "neo4j" || meta["credentials"] != "s3cr3t" {
		t.Fatalf("expected auth fields embedded in HELLO, got %v", meta)
	}
	serverReplySuccess(t, f, map[string]any{"server": "Neo4j/4.4.0", "connection_id": "bolt-1"})

	var c *Connection
	select {
	case err := <-errCh:
		t.Fatalf("Dial failed: %v", err)
	case c = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Dial")
	}
	if c.State() != Ready {
		t.Fatalf("want Ready straight off HELLO on a pre-5.1 server, got %s", c.State())
	}
	if c.Version().SupportsLogon() {
		t.Fatalf("expected a non-LOGON version, got %s", c.Version())
	}

	// A connection stuck in Authenticated could never legally send RUN; this
	// confirms Ready was actually reached rather than just reported.
	if err := c.Send(SigRun, "RETURN 1", map[string]any{}, map[string]any{"mode": "r"}); err != nil {
		t.Fatalf("expected RUN to be legal from Ready, got %v", err)
	}
	runMsg := serverReadMessage(t, f)
	if runMsg.Signature != SigRun {
		t.Fatalf("expected RUN, got %v", runMsg.Signature)
	}
}

func TestAutoCommitRunOverWire(t *testing.T) {
	addr, serverCh := fakeServer(t)
	ep := hostPort(t, addr)

	connCh := make(chan *Connection, 1)
	go func() {
		c, err := Dial(context.Background(), ep, Config{Auth: NoAuth()})
		if err != nil {
			t.Error(err)
			return
		}
		connCh <- c
	}()

	f := <-serverCh
	serverReadMessage(t, f) // HELLO
	serverReplySuccess(t, f, map[string]any{"server": "Neo4j/5.4.0"})
	serverReadMessage(t, f) // LOGON
	serverReplySuccess(t, f, map[string]any{})

	c := <-connCh

	if err := c.Send(SigRun, "RETURN $x + $y AS total", map[string]any{"x": int64(10), "y": int64(5)}, map[string]any{"mode": "r"}); err != nil {
		t.Fatal(err)
	}
	runMsg := serverReadMessage(t, f)
	if runMsg.Signature != SigRun {
		t.Fatalf("expected RUN, got %v", runMsg.Signature)
	}
	serverReplySuccess(t, f, map[string]any{"fields": packstream.List{"total"}})
	reply, err := c.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(SigRun, reply); err != nil {
		t.Fatal(err)
	}
	if c.State() != Streaming {
		t.Fatalf("want Streaming, got %s", c.State())
	}

	if err := c.Send(SigPull, map[string]any{"n": int64(-1)}); err != nil {
		t.Fatal(err)
	}
	pullMsg := serverReadMessage(t, f)
	if pullMsg.Signature != SigPull {
		t.Fatalf("expected PULL, got %v", pullMsg.Signature)
	}
	// RECORD [15]
	enc := packstream.NewEncoder()
	enc.Encode(packstream.Structure{Signature: byte(SigRecord), Fields: []any{packstream.List{int64(15)}}})
	f.WriteMessage(enc.Bytes())
	rec, err := c.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Signature != SigRecord {
		t.Fatalf("expected RECORD, got %v", rec.Signature)
	}
	serverReplySuccess(t, f, map[string]any{"type": "r"})
	term, err := c.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(SigPull, term); err != nil {
		t.Fatal(err)
	}
	if c.State() != Ready {
		t.Fatalf("want Ready, got %s", c.State())
	}
}

func TestFailureThenResetOverWire(t *testing.T) {
	addr, serverCh := fakeServer(t)
	ep := hostPort(t, addr)

	connCh := make(chan *Connection, 1)
	go func() {
		c, err := Dial(context.Background(), ep, Config{Auth: NoAuth()})
		if err != nil {
			t.Error(err)
			return
		}
		connCh <- c
	}()
	f := <-serverCh
	serverReadMessage(t, f)
	serverReplySuccess(t, f, map[string]any{"server": "Neo4j/5.4.0"})
	serverReadMessage(t, f)
	serverReplySuccess(t, f, map[string]any{})
	c := <-connCh

	if err := c.Send(SigRun, "MALFORMED (", map[string]any{}, map[string]any{}); err != nil {
		t.Fatal(err)
	}
	serverReadMessage(t, f)
	enc := packstream.NewEncoder()
	enc.Encode(packstream.Structure{Signature: byte(SigFailure), Fields: []any{packstream.Map{"code": "Neo.ClientError.Statement.SyntaxError", "message": "bad"}}})
	f.WriteMessage(enc.Bytes())
	reply, err := c.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(SigRun, reply); err == nil {
		t.Fatal("expected failure error")
	}
	if c.State() != Failed {
		t.Fatalf("want Failed, got %s", c.State())
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- c.Reset(context.Background())
	}()
	resetMsg := serverReadMessage(t, f)
	if resetMsg.Signature != SigReset {
		t.Fatalf("expected RESET, got %v", resetMsg.Signature)
	}
	serverReplySuccess(t, f, map[string]any{})
	if err := <-resultCh; err != nil {
		t.Fatal(err)
	}
	if c.State() != Ready {
		t.Fatalf("want Ready after reset, got %s", c.State())
	}
}
