package migrate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverFilesSortedByVersion(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "0002_add_index.cypher", "CREATE INDEX ON :Person(name)")
	write(t, dir, "0001_init.cypher", "CREATE CONSTRAINT ON (p:Person) ASSERT p.id IS UNIQUE")

	migrations, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Fatalf("migrations not sorted: %+v", migrations)
	}
	if migrations[0].Name != "init" {
		t.Fatalf("expected name 'init', got %q", migrations[0].Name)
	}
}

func TestDiscoverFilesSplitsMultipleStatements(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "0001_init.cypher", "CREATE (:A);\nCREATE (:B)")

	migrations, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations[0].Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(migrations[0].Statements), migrations[0].Statements)
	}
}

func TestDiscoverIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "README.md", "not a migration")
	write(t, dir, "0001_init.cypher", "CREATE (:A)")

	migrations, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
}

func TestDiscoverManifestPrefersYAMLOverFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "0001_init.cypher", "CREATE (:Unused)")
	write(t, dir, "real_init.cypher", "CREATE (:Person {name: 'seed'})")
	write(t, dir, "migrations.yaml", `
migrations:
  - version: 1
    name: init
    file: real_init.cypher
  - version: 2
    name: inline
    cypher:
      - "CREATE (:Widget)"
`)

	migrations, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Name != "init" || migrations[0].Statements[0] != "CREATE (:Person {name: 'seed'})" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Statements[0] != "CREATE (:Widget)" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
}

func TestDiscoverManifestRejectsEmptyMigration(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "migrations.yaml", `
migrations:
  - version: 1
    name: empty
`)
	if _, err := Discover(dir); err == nil {
		t.Fatal("expected error for migration with no statements")
	}
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
