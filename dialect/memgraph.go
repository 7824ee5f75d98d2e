package dialect

// Memgraph is the dialect adapter for Memgraph servers.
type Memgraph struct{}

func (Memgraph) Name() string { return "memgraph" }

func (Memgraph) IDFunction() string { return "id" }

// Memgraph does not distinguish read/write access modes at the protocol
// level; BEGIN/RUN metadata omits `mode`.
func (Memgraph) SupportsAccessMode() bool { return false }

func (Memgraph) DefaultDatabase() string { return "memgraph" }

func (Memgraph) ListLabels() (string, string) {
	return "CALL db.labels() YIELD label RETURN label", "label"
}

func (Memgraph) ListRelationshipTypes() (string, string) {
	return "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType", "relationshipType"
}

func (Memgraph) ListIndexes() (string, string) {
	return "SHOW INDEX INFO", "label"
}

func (Memgraph) ListConstraints() (string, string) {
	return "SHOW CONSTRAINT INFO", "label"
}
