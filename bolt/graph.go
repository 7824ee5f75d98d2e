package bolt

import (
	"boltgraph/internal/errs"
	"boltgraph/packstream"
)

// Structure signatures for rich graph and temporal types carried as
// Packstream structures, fixed by the Bolt wire protocol.
const (
	sigNode                = 0x4E
	sigRelationship        = 0x52
	sigUnboundRelationship = 0x72
	sigPath                = 0x50
	sigDate                = 0x44
	sigTime                = 0x54
	sigLocalTime           = 0x74
	sigDateTime            = 0x49 // offset-based, modern (>=4.something) encoding
	sigDateTimeZoneID      = 0x69 // zone-id based, modern encoding
	sigLocalDateTime       = 0x64
	sigDuration            = 0x45
)

// Node is the core's opaque extraction of a NODE structure's
// (id, labels, properties) triple.
type Node struct {
	ID         int64
	ElementID  string
	Labels     []string
	Properties map[string]any
}

// Relationship is the core's opaque extraction of a RELATIONSHIP
// structure's (id, type, properties, start, end) tuple.
type Relationship struct {
	ID         int64
	ElementID  string
	Type       string
	Properties map[string]any
	StartID    int64
	EndID      int64
}

// Path is an alternating sequence of nodes and relationships as returned
// by the server; relationships may be traversed backward, so direction is
// carried explicitly.
type Path struct {
	Nodes         []Node
	Relationships []Relationship
	// Sequence describes traversal order as pairs of (relIndex, nodeIndex)
	// following the PATH structure's compact encoding; relIndex is
	// 1-based, negative meaning the relationship is traversed backward.
	Sequence []int64
}

// AsNode extracts a Node from a Packstream structure with sigNode. It
// treats field 3 (element id, since Bolt 5.x) as optional for older
// servers that only return numeric ids.
func AsNode(s packstream.Structure) (Node, error) {
	if s.Signature != sigNode || len(s.Fields) < 3 {
		return Node{}, errs.New(errs.Protocol, "bolt: not a NODE structure")
	}
	id, ok := s.Fields[0].(int64)
	if !ok {
		return Node{}, errs.New(errs.Protocol, "bolt: NODE id is not an integer")
	}
	labelsRaw, ok := s.Fields[1].(packstream.List)
	if !ok {
		return Node{}, errs.New(errs.Protocol, "bolt: NODE labels is not a list")
	}
	labels := make([]string, 0, len(labelsRaw))
	for _, l := range labelsRaw {
		ls, ok := l.(string)
		if !ok {
			return Node{}, errs.New(errs.Protocol, "bolt: NODE label is not a string")
		}
		labels = append(labels, ls)
	}
	props, ok := s.Fields[2].(packstream.Map)
	if !ok {
		return Node{}, errs.New(errs.Protocol, "bolt: NODE properties is not a map")
	}
	n := Node{ID: id, Labels: labels, Properties: map[string]any(props)}
	if len(s.Fields) >= 4 {
		if eid, ok := s.Fields[3].(string); ok {
			n.ElementID = eid
		}
	}
	return n, nil
}

// unboundRelationship is a RELATIONSHIP with no start/end, as carried inside
// a PATH structure; AsPath binds it to concrete endpoints while walking the
// path's index sequence.
type unboundRelationship struct {
	ID         int64
	ElementID  string
	Type       string
	Properties map[string]any
}

func asUnboundRelationship(s packstream.Structure) (unboundRelationship, error) {
	if s.Signature != sigUnboundRelationship || len(s.Fields) < 3 {
		return unboundRelationship{}, errs.New(errs.Protocol, "bolt: not an UNBOUND_RELATIONSHIP structure")
	}
	id, ok1 := s.Fields[0].(int64)
	typ, ok2 := s.Fields[1].(string)
	props, ok3 := s.Fields[2].(packstream.Map)
	if !ok1 || !ok2 || !ok3 {
		return unboundRelationship{}, errs.New(errs.Protocol, "bolt: malformed UNBOUND_RELATIONSHIP structure")
	}
	r := unboundRelationship{ID: id, Type: typ, Properties: map[string]any(props)}
	if len(s.Fields) >= 4 {
		if eid, ok := s.Fields[3].(string); ok {
			r.ElementID = eid
		}
	}
	return r, nil
}

// AsPath extracts a Path from a PATH structure: a node list, an unbound
// relationship list, and a flat index sequence that walks them into an
// alternating node/relationship chain. A positive relationship index means
// the relationship is traversed start->end in path order; negative means
// it is traversed backward (end->start), per the Bolt PATH encoding.
func AsPath(s packstream.Structure) (Path, error) {
	if s.Signature != sigPath || len(s.Fields) != 3 {
		return Path{}, errs.New(errs.Protocol, "bolt: not a PATH structure")
	}
	nodesRaw, ok := s.Fields[0].(packstream.List)
	if !ok {
		return Path{}, errs.New(errs.Protocol, "bolt: PATH nodes is not a list")
	}
	relsRaw, ok := s.Fields[1].(packstream.List)
	if !ok {
		return Path{}, errs.New(errs.Protocol, "bolt: PATH relationships is not a list")
	}
	idxRaw, ok := s.Fields[2].(packstream.List)
	if !ok {
		return Path{}, errs.New(errs.Protocol, "bolt: PATH sequence is not a list")
	}

	nodes := make([]Node, 0, len(nodesRaw))
	for _, n := range nodesRaw {
		ns, ok := n.(packstream.Structure)
		if !ok {
			return Path{}, errs.New(errs.Protocol, "bolt: PATH node entry is not a structure")
		}
		node, err := AsNode(ns)
		if err != nil {
			return Path{}, err
		}
		nodes = append(nodes, node)
	}

	unbound := make([]unboundRelationship, 0, len(relsRaw))
	for _, r := range relsRaw {
		rs, ok := r.(packstream.Structure)
		if !ok {
			return Path{}, errs.New(errs.Protocol, "bolt: PATH relationship entry is not a structure")
		}
		ur, err := asUnboundRelationship(rs)
		if err != nil {
			return Path{}, err
		}
		unbound = append(unbound, ur)
	}

	if len(idxRaw)%2 != 0 {
		return Path{}, errs.New(errs.Protocol, "bolt: PATH sequence has odd length")
	}
	seq := make([]int64, 0, len(idxRaw))
	for _, v := range idxRaw {
		n, ok := v.(int64)
		if !ok {
			return Path{}, errs.New(errs.Protocol, "bolt: PATH sequence entry is not an integer")
		}
		seq = append(seq, n)
	}

	if len(nodes) == 0 {
		return Path{Nodes: nodes, Sequence: seq}, nil
	}

	pathNodes := []Node{nodes[0]}
	pathRels := make([]Relationship, 0, len(seq)/2)
	prev := nodes[0]
	for i := 0; i < len(seq); i += 2 {
		relIdx := seq[i]
		nodeIdx := seq[i+1]
		abs := relIdx
		if abs < 0 {
			abs = -abs
		}
		if int(abs)-1 < 0 || int(abs)-1 >= len(unbound) {
			return Path{}, errs.New(errs.Protocol, "bolt: PATH relationship index out of range")
		}
		if int(nodeIdx) < 0 || int(nodeIdx) >= len(nodes) {
			return Path{}, errs.New(errs.Protocol, "bolt: PATH node index out of range")
		}
		ur := unbound[abs-1]
		next := nodes[nodeIdx]

		rel := Relationship{ID: ur.ID, ElementID: ur.ElementID, Type: ur.Type, Properties: ur.Properties}
		if relIdx > 0 {
			rel.StartID, rel.EndID = prev.ID, next.ID
		} else {
			rel.StartID, rel.EndID = next.ID, prev.ID
		}
		pathRels = append(pathRels, rel)
		pathNodes = append(pathNodes, next)
		prev = next
	}

	return Path{Nodes: pathNodes, Relationships: pathRels, Sequence: seq}, nil
}

// AsRelationship extracts a Relationship from a RELATIONSHIP structure.
func AsRelationship(s packstream.Structure) (Relationship, error) {
	if s.Signature != sigRelationship || len(s.Fields) < 5 {
		return Relationship{}, errs.New(errs.Protocol, "bolt: not a RELATIONSHIP structure")
	}
	id, ok1 := s.Fields[0].(int64)
	startID, ok2 := s.Fields[1].(int64)
	endID, ok3 := s.Fields[2].(int64)
	typ, ok4 := s.Fields[3].(string)
	props, ok5 := s.Fields[4].(packstream.Map)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return Relationship{}, errs.New(errs.Protocol, "bolt: malformed RELATIONSHIP structure")
	}
	r := Relationship{ID: id, StartID: startID, EndID: endID, Type: typ, Properties: map[string]any(props)}
	if len(s.Fields) >= 6 {
		if eid, ok := s.Fields[5].(string); ok {
			r.ElementID = eid
		}
	}
	return r, nil
}
