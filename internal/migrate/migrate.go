// Package migrate discovers and applies schema migrations for a boltgraph
// deployment: plain `<version>_<name>.cypher` files under a directory, or a
// `migrations.yaml` manifest naming them explicitly. Applied migrations are
// recorded as SchemaMigration marker nodes so repeated runs are idempotent.
package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"boltgraph/driver"
	"boltgraph/internal/errs"
	"boltgraph/session"
)

// Migration is one versioned unit of schema change: one or more Cypher
// statements applied together inside a single write transaction.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

var filePattern = regexp.MustCompile(`^(\d+)_(.+)\.cypher$`)

// manifest is the shape of an optional migrations.yaml.
type manifest struct {
	Migrations []manifestEntry `yaml:"migrations"`
}

type manifestEntry struct {
	Version int      `yaml:"version"`
	Name    string   `yaml:"name"`
	File    string   `yaml:"file"`
	Cypher  []string `yaml:"cypher"`
}

// Discover loads the migration set from dir: migrations.yaml if present,
// otherwise every *.cypher file matching <version>_<name>.cypher. Results
// are sorted ascending by version.
func Discover(dir string) ([]Migration, error) {
	manifestPath := filepath.Join(dir, "migrations.yaml")
	if _, err := os.Stat(manifestPath); err == nil {
		return discoverManifest(dir, manifestPath)
	}
	return discoverFiles(dir)
}

func discoverManifest(dir, manifestPath string) ([]Migration, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, err, "migrate: read manifest")
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, errs.Wrap(errs.Configuration, err, "migrate: parse manifest")
	}

	out := make([]Migration, 0, len(m.Migrations))
	for _, entry := range m.Migrations {
		stmts := entry.Cypher
		if entry.File != "" {
			raw, err := os.ReadFile(filepath.Join(dir, entry.File))
			if err != nil {
				return nil, errs.Wrap(errs.Configuration, err, "migrate: read "+entry.File)
			}
			stmts = append(stmts, splitStatements(string(raw))...)
		}
		if len(stmts) == 0 {
			return nil, errs.New(errs.Configuration, fmt.Sprintf("migrate: migration %d (%s) has no statements", entry.Version, entry.Name))
		}
		out = append(out, Migration{Version: entry.Version, Name: entry.Name, Statements: stmts})
	}
	sortMigrations(out)
	return out, nil
}

func discoverFiles(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, err, "migrate: read dir")
	}

	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errs.Wrap(errs.Configuration, err, "migrate: read "+e.Name())
		}
		stmts := splitStatements(string(raw))
		if len(stmts) == 0 {
			continue
		}
		out = append(out, Migration{Version: version, Name: m[2], Statements: stmts})
	}
	sortMigrations(out)
	return out, nil
}

func sortMigrations(m []Migration) {
	sort.Slice(m, func(i, j int) bool { return m[i].Version < m[j].Version })
}

func splitStatements(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ";") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Applied queries the versions already recorded via SchemaMigration marker
// nodes.
func Applied(ctx context.Context, sess *session.Session) (map[int]bool, error) {
	res, err := sess.Run(ctx, "MATCH (m:SchemaMigration) RETURN m.version AS version", nil)
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(records))
	for _, r := range records {
		v, ok := r.Get("version")
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			applied[int(n)] = true
		case int:
			applied[n] = true
		}
	}
	return applied, nil
}

// Apply runs every pending migration (ascending version order) inside its
// own write transaction, recording a SchemaMigration marker node on
// success. Already-applied versions are skipped.
func Apply(ctx context.Context, d *driver.Driver, migrations []Migration, now string) ([]Migration, error) {
	sess, err := d.NewSession(ctx, session.Write)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	applied, err := Applied(ctx, sess)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		_, err := sess.WriteTransaction(ctx, func(ctx context.Context, tx *session.Tx) (any, error) {
			for _, stmt := range m.Statements {
				if _, err := tx.Run(ctx, stmt, nil); err != nil {
					return nil, err
				}
			}
			_, err := tx.Run(ctx, "CREATE (:SchemaMigration {version: $v, name: $n, applied_at: $t})", map[string]any{
				"v": m.Version,
				"n": m.Name,
				"t": now,
			})
			return nil, err
		})
		if err != nil {
			return ran, errs.Wrap(errs.Transaction, err, fmt.Sprintf("migrate: applying %d_%s", m.Version, m.Name))
		}
		ran = append(ran, m)
	}
	return ran, nil
}
