package dialect

// Neo4j is the dialect adapter for Neo4j-family servers.
type Neo4j struct{}

func (Neo4j) Name() string { return "neo4j" }

func (Neo4j) IDFunction() string { return "elementId" }

func (Neo4j) SupportsAccessMode() bool { return true }

func (Neo4j) DefaultDatabase() string { return "" } // server default

func (Neo4j) ListLabels() (string, string) {
	return "CALL db.labels() YIELD label RETURN label", "label"
}

func (Neo4j) ListRelationshipTypes() (string, string) {
	return "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType", "relationshipType"
}

func (Neo4j) ListIndexes() (string, string) {
	return "SHOW INDEXES YIELD name, labelsOrTypes, properties, type RETURN name, labelsOrTypes, properties, type", "name"
}

func (Neo4j) ListConstraints() (string, string) {
	return "SHOW CONSTRAINTS YIELD name, labelsOrTypes, properties, type RETURN name, labelsOrTypes, properties, type", "name"
}
