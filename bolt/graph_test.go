package bolt

import (
	"testing"

	"boltgraph/packstream"
)

func node(id int64, labels []string) packstream.Structure {
	ls := make(packstream.List, len(labels))
	for i, l := range labels {
		ls[i] = l
	}
	return packstream.Structure{
		Signature: sigNode,
		Fields:    []any{id, ls, packstream.Map{"name": labels}},
	}
}

func unboundRel(id int64, typ string) packstream.Structure {
	return packstream.Structure{
		Signature: sigUnboundRelationship,
		Fields:    []any{id, typ, packstream.Map{}},
	}
}

func TestAsNode(t *testing.T) {
	n, err := AsNode(node(1, []string{"Person"}))
	if err != nil {
		t.Fatal(err)
	}
	if n.ID != 1 || len(n.Labels) != 1 || n.Labels[0] != "Person" {
		t.Fatalf("unexpected node: %+v", n)
	}
}

func TestAsNodeRejectsWrongSignature(t *testing.T) {
	_, err := AsNode(packstream.Structure{Signature: sigRelationship})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAsRelationship(t *testing.T) {
	s := packstream.Structure{
		Signature: sigRelationship,
		Fields:    []any{int64(10), int64(1), int64(2), "KNOWS", packstream.Map{"since": int64(2020)}},
	}
	r, err := AsRelationship(s)
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != 10 || r.StartID != 1 || r.EndID != 2 || r.Type != "KNOWS" {
		t.Fatalf("unexpected relationship: %+v", r)
	}
}

// TestAsPathForwardChain builds a 3-node, 2-relationship path traversed
// entirely forward: (0)-[1]->(1)-[2]->(2).
func TestAsPathForwardChain(t *testing.T) {
	nodes := packstream.List{node(1, []string{"A"}), node(2, []string{"B"}), node(3, []string{"C"})}
	rels := packstream.List{unboundRel(100, "NEXT"), unboundRel(101, "NEXT")}
	seq := packstream.List{int64(1), int64(1), int64(2), int64(2)}

	p, err := AsPath(packstream.Structure{Signature: sigPath, Fields: []any{nodes, rels, seq}})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Nodes) != 3 || len(p.Relationships) != 2 {
		t.Fatalf("unexpected path shape: %+v", p)
	}
	if p.Nodes[0].ID != 1 || p.Nodes[1].ID != 2 || p.Nodes[2].ID != 3 {
		t.Fatalf("unexpected node order: %+v", p.Nodes)
	}
	r0, r1 := p.Relationships[0], p.Relationships[1]
	if r0.StartID != 1 || r0.EndID != 2 {
		t.Fatalf("expected forward rel 0: %+v", r0)
	}
	if r1.StartID != 2 || r1.EndID != 3 {
		t.Fatalf("expected forward rel 1: %+v", r1)
	}
}

// TestAsPathBackwardRelationship covers a relationship traversed against
// its stored direction, signaled by a negative relationship index.
func TestAsPathBackwardRelationship(t *testing.T) {
	nodes := packstream.List{node(1, []string{"A"}), node(2, []string{"B"})}
	rels := packstream.List{unboundRel(100, "NEXT")}
	seq := packstream.List{int64(-1), int64(1)}

	p, err := AsPath(packstream.Structure{Signature: sigPath, Fields: []any{nodes, rels, seq}})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Relationships) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(p.Relationships))
	}
	r := p.Relationships[0]
	if r.StartID != 2 || r.EndID != 1 {
		t.Fatalf("expected reversed relationship direction, got start=%d end=%d", r.StartID, r.EndID)
	}
}

func TestAsPathRejectsWrongSignature(t *testing.T) {
	_, err := AsPath(packstream.Structure{Signature: sigNode})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAsPathRejectsOutOfRangeIndex(t *testing.T) {
	nodes := packstream.List{node(1, []string{"A"})}
	rels := packstream.List{unboundRel(100, "NEXT")}
	seq := packstream.List{int64(5), int64(0)}
	_, err := AsPath(packstream.Structure{Signature: sigPath, Fields: []any{nodes, rels, seq}})
	if err == nil {
		t.Fatal("expected out-of-range error")
	}
}
