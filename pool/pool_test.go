package pool

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"boltgraph/bolt"
	"boltgraph/packstream"
)

// startFakeBoltServer accepts connections forever, completing the
// handshake/HELLO/LOGON exchange for each, modeled on the teacher's
// startTestServer helper (core/connection_pool_test.go) generalized to
// speak Bolt instead of raw bytes.
func startFakeBoltServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveOneBoltConn(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func serveOneBoltConn(conn net.Conn) {
	defer conn.Close()
	var hs [20]byte
	if _, err := conn.Read(hs[:]); err != nil {
		return
	}
	conn.Write([]byte{0x00, 0x00, 0x04, 0x05})
	f := bolt.NewFramer(conn)

	reply := func(sig bolt.Signature, meta map[string]any) bool {
		enc := packstream.NewEncoder()
		if err := enc.Encode(packstream.Structure{Signature: byte(sig), Fields: []any{packstream.Map(meta)}}); err != nil {
			return false
		}
		return f.WriteMessage(enc.Bytes()) == nil
	}

	// HELLO
	if _, err := f.ReadMessage(); err != nil {
		return
	}
	if !reply(bolt.SigSuccess, map[string]any{"server": "Neo4j/5.4.0"}) {
		return
	}
	// LOGON
	if _, err := f.ReadMessage(); err != nil {
		return
	}
	if !reply(bolt.SigSuccess, map[string]any{}) {
		return
	}

	for {
		raw, err := f.ReadMessage()
		if err != nil {
			return
		}
		msg, err := bolt.DecodeMessage(raw)
		if err != nil {
			return
		}
		switch msg.Signature {
		case bolt.SigRun:
			if !reply(bolt.SigSuccess, map[string]any{"fields": packstream.List{}}) {
				return
			}
		case bolt.SigPull, bolt.SigDiscard:
			if !reply(bolt.SigSuccess, map[string]any{"type": "r"}) {
				return
			}
		case bolt.SigReset:
			if !reply(bolt.SigSuccess, map[string]any{}) {
				return
			}
		case bolt.SigGoodbye:
			return
		default:
			if !reply(bolt.SigSuccess, map[string]any{}) {
				return
			}
		}
	}
}

func testEndpoint(t *testing.T, addr string) bolt.Endpoint {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	return bolt.Endpoint{Host: host, Port: p}
}

func TestPoolAcquireReleaseReuse(t *testing.T) {
	addr := startFakeBoltServer(t)
	ep := testEndpoint(t, addr)
	p := New(ep, Config{MaxSize: 2, IdleTTL: time.Minute})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id := c1.ID()
	p.Release(c1)

	idleN, inUse := p.Stats()
	if idleN != 1 || inUse != 0 {
		t.Fatalf("want idle=1 inUse=0, got idle=%d inUse=%d", idleN, inUse)
	}

	c2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c2.ID() != id {
		t.Fatalf("expected connection reuse, got different connection")
	}
	p.Release(c2)
}

func TestPoolCapacityTimeout(t *testing.T) {
	addr := startFakeBoltServer(t)
	ep := testEndpoint(t, addr)
	p := New(ep, Config{MaxSize: 2, IdleTTL: time.Minute})
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(shortCtx)
	if err == nil {
		t.Fatal("expected PoolTimeout with both connections held")
	}

	released := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Release(c1)
		close(released)
	}()

	waitCtx, cancel2 := context.WithTimeout(ctx, 2*time.Second)
	defer cancel2()
	c3, err := p.Acquire(waitCtx)
	if err != nil {
		t.Fatalf("expected acquire to complete after release: %v", err)
	}
	<-released
	p.Release(c2)
	p.Release(c3)
}
