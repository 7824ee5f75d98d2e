package driver

import (
	"context"
	"net"
	"testing"
	"time"

	"boltgraph/bolt"
	"boltgraph/packstream"
	"boltgraph/session"
)

func startFakeServer(t *testing.T) string {
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
			go serveConn(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func serveConn(conn net.Conn) {
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
	if _, err := f.ReadMessage(); err != nil { // HELLO
		return
	}
	if !reply(bolt.SigSuccess, map[string]any{"server": "Neo4j/5.4.0"}) {
		return
	}
	if _, err := f.ReadMessage(); err != nil { // LOGON
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
			if !reply(bolt.SigSuccess, map[string]any{"fields": packstream.List{"n"}}) {
				return
			}
		case bolt.SigPull, bolt.SigDiscard:
			if !reply(bolt.SigSuccess, map[string]any{"type": "r"}) {
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

func TestDriverNewSessionAutoCommitRun(t *testing.T) {
	addr := startFakeServer(t)
	d, err := New("neo4j://"+addr, Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sess, err := d.NewSession(ctx, session.Read)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	res, err := sess.Run(ctx, "RETURN 1 AS n", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Keys()) != 1 || res.Keys()[0] != "n" {
		t.Fatalf("unexpected keys: %v", res.Keys())
	}
}

func TestDriverRejectsUnknownScheme(t *testing.T) {
	if _, err := New("postgres://localhost", Config{}); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestDriverAdapterResolvedFromScheme(t *testing.T) {
	addr := startFakeServer(t)
	d, err := New("memgraph://"+addr, Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.Adapter().Name() != "memgraph" {
		t.Fatalf("expected memgraph adapter, got %s", d.Adapter().Name())
	}
}
