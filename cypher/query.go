// Package cypher is a typed Cypher query builder: an AST of clauses,
// patterns and expressions; a visitor-based compiler that renders the AST
// to text in canonical clause order; and a parameter registry so literal
// values are never interpolated into query text.
package cypher

import (
	"fmt"
	"sort"

	"boltgraph/internal/errs"
)

// Query accumulates clauses in whatever order the caller adds them;
// Compile renders them in the canonical clause order (§4.8), not insertion
// order, since Cypher's clause grammar is order-insensitive to the builder
// but not to the server.
type Query struct {
	clauses []Clause
	params  *Registry
}

// New starts an empty query.
func New() *Query {
	return &Query{params: NewRegistry()}
}

func (q *Query) add(c Clause) *Query {
	q.clauses = append(q.clauses, c)
	return q
}

// Match appends a MATCH clause.
func (q *Query) Match(patterns ...Pattern) *Query {
	return q.add(&MatchClause{Patterns: patterns})
}

// OptionalMatch appends an OPTIONAL MATCH clause.
func (q *Query) OptionalMatch(patterns ...Pattern) *Query {
	return q.add(&MatchClause{Patterns: patterns, Optional: true})
}

// Where appends a WHERE clause.
func (q *Query) Where(cond Expr) *Query {
	return q.add(&WhereClause{Cond: cond})
}

// Create appends a CREATE clause.
func (q *Query) Create(patterns ...Pattern) *Query {
	return q.add(&CreateClause{Patterns: patterns})
}

// Merge appends a MERGE clause for a single pattern, with optional
// ON CREATE SET / ON MATCH SET actions.
func (q *Query) Merge(pattern Pattern, onCreate, onMatch []SetItem) *Query {
	return q.add(&MergeClause{Pattern: pattern, OnCreate: onCreate, OnMatch: onMatch})
}

// Set appends a SET clause.
func (q *Query) Set(items ...SetItem) *Query {
	return q.add(&SetClause{Items: items})
}

// Remove appends a REMOVE clause.
func (q *Query) Remove(props []Prop, labels map[string][]string) *Query {
	return q.add(&RemoveClause{Props: props, Labels: labels})
}

// Delete appends a DELETE clause.
func (q *Query) Delete(aliases ...string) *Query {
	return q.add(&DeleteClause{Aliases: aliases})
}

// DetachDelete appends a DETACH DELETE clause.
func (q *Query) DetachDelete(aliases ...string) *Query {
	return q.add(&DeleteClause{Aliases: aliases, Detach: true})
}

// With appends a WITH projection pipeline separator.
func (q *Query) With(items ...Expr) *Query {
	return q.add(&WithClause{Items: items})
}

// Return appends the query's RETURN projection.
func (q *Query) Return(items ...Expr) *Query {
	return q.add(&ReturnClause{Items: items})
}

// OrderBy appends an ORDER BY clause.
func (q *Query) OrderBy(items ...OrderItem) *Query {
	return q.add(&OrderByClause{Items: items})
}

// Skip appends a SKIP clause.
func (q *Query) Skip(n Expr) *Query {
	return q.add(&SkipClause{N: n})
}

// Limit appends a LIMIT clause.
func (q *Query) Limit(n Expr) *Query {
	return q.add(&LimitClause{N: n})
}

// Unwind appends an UNWIND clause.
func (q *Query) Unwind(list Expr, alias string) *Query {
	return q.add(&UnwindClause{List: list, Alias: alias})
}

// Call appends a procedure CALL clause.
func (q *Query) Call(procedure string, yield []string, args ...Expr) *Query {
	return q.add(&CallClause{Procedure: procedure, Args: args, Yield: yield})
}

// CallSubquery appends CALL { sub }.
func (q *Query) CallSubquery(sub *Query) *Query {
	return q.add(&CallSubqueryClause{Sub: sub})
}

// Foreach appends a FOREACH clause.
func (q *Query) Foreach(variable string, list Expr, do ...Clause) *Query {
	return q.add(&ForeachClause{Variable: variable, List: list, Do: do})
}

// LoadCSV appends a LOAD CSV clause.
func (q *Query) LoadCSV(url Expr, alias string, withHeaders bool) *Query {
	return q.add(&LoadCSVClause{URL: url, Alias: alias, WithHeaders: withHeaders})
}

// orderedClauses returns q.clauses sorted into canonical render order,
// stable within each bucket so clauses of the same kind keep the order the
// caller added them in.
func (q *Query) orderedClauses() []Clause {
	out := make([]Clause, len(q.clauses))
	copy(out, q.clauses)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind().bucket() < out[j].Kind().bucket()
	})
	return out
}

// CompiledQuery is a rendered Cypher statement ready for Session.Run.
type CompiledQuery struct {
	Text   string
	Params map[string]any
}

// Compile validates every pattern's aliases/labels/types, then renders the
// query using its own parameter registry.
func (q *Query) Compile() (CompiledQuery, error) {
	if err := q.validate(); err != nil {
		return CompiledQuery{}, err
	}
	text, reg := q.compileRaw()
	return CompiledQuery{Text: text, Params: reg.Values()}, nil
}

// validate checks identifiers on every pattern-bearing clause, and
// recurses into any nested subquery (CALL {}, EXISTS {}) so their patterns
// are checked too.
func (q *Query) validate() error {
	for _, c := range q.clauses {
		var patterns []Pattern
		var exprs []Expr
		switch tc := c.(type) {
		case *MatchClause:
			patterns = tc.Patterns
		case *CreateClause:
			patterns = tc.Patterns
		case *MergeClause:
			patterns = []Pattern{tc.Pattern}
			for _, item := range append(append([]SetItem{}, tc.OnCreate...), tc.OnMatch...) {
				exprs = append(exprs, item.Target, item.Value)
			}
		case *WhereClause:
			exprs = append(exprs, tc.Cond)
		case *SetClause:
			for _, item := range tc.Items {
				exprs = append(exprs, item.Target, item.Value)
			}
		case *WithClause:
			exprs = append(append(exprs, tc.Items...), tc.Where)
		case *ReturnClause:
			exprs = append(exprs, tc.Items...)
		case *OrderByClause:
			for _, item := range tc.Items {
				exprs = append(exprs, item.Expr)
			}
		case *UnwindClause:
			exprs = append(exprs, tc.List)
		case *CallClause:
			exprs = append(exprs, tc.Args...)
		case *CallSubqueryClause:
			if err := tc.Sub.validate(); err != nil {
				return err
			}
		case *ForeachClause:
			exprs = append(exprs, tc.List)
			for _, inner := range tc.Do {
				if err := (&Query{clauses: []Clause{inner}}).validate(); err != nil {
					return err
				}
			}
		case *LoadCSVClause:
			exprs = append(exprs, tc.URL)
		}
		for _, p := range patterns {
			if err := validatePatternIdentifiers(p); err != nil {
				return err
			}
		}
		for _, e := range exprs {
			for _, sub := range subqueries(e) {
				if err := sub.validate(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// compileRaw renders the query's text against its live registry, returning
// the registry itself so callers hoisting a subquery (EXISTS, CALL {})
// can merge its parameters into an outer scope.
func (q *Query) compileRaw() (string, *Registry) {
	c := newCompiler(q.params)
	for _, cl := range q.orderedClauses() {
		cl.Accept(c)
	}
	return c.b.String(), q.params
}

// union is an ordered list of queries combined with UNION/UNION ALL.
type union struct {
	queries []*Query
	all     []bool // all[i] says whether queries[i+1] joins via UNION ALL
}

// Union combines q with other via UNION (duplicate rows eliminated).
func (q *Query) Union(other *Query) *UnionQuery {
	return &UnionQuery{u: union{queries: []*Query{q, other}, all: []bool{false}}}
}

// UnionAll combines q with other via UNION ALL (duplicates kept).
func (q *Query) UnionAll(other *Query) *UnionQuery {
	return &UnionQuery{u: union{queries: []*Query{q, other}, all: []bool{true}}}
}

// UnionQuery is a chain of whole queries combined by UNION/UNION ALL; each
// branch compiles with its own parameter registry, then branches are joined
// with renamed, de-duplicated parameters in a shared outer registry.
type UnionQuery struct{ u union }

// Union appends another branch joined via UNION.
func (uq *UnionQuery) Union(other *Query) *UnionQuery {
	uq.u.queries = append(uq.u.queries, other)
	uq.u.all = append(uq.u.all, false)
	return uq
}

// UnionAll appends another branch joined via UNION ALL.
func (uq *UnionQuery) UnionAll(other *Query) *UnionQuery {
	uq.u.queries = append(uq.u.queries, other)
	uq.u.all = append(uq.u.all, true)
	return uq
}

// Compile renders every branch and joins them with UNION/UNION ALL,
// hoisting each branch's parameters into one shared registry.
func (uq *UnionQuery) Compile() (CompiledQuery, error) {
	reg := NewRegistry()
	texts := make([]string, len(uq.u.queries))
	for i, branch := range uq.u.queries {
		if err := branch.validate(); err != nil {
			return CompiledQuery{}, err
		}
		text, branchParams := branch.compileRaw()
		renames := reg.merge(branchParams)
		texts[i] = renameParams(text, renames)
	}
	var out string
	for i, t := range texts {
		if i == 0 {
			out = t
			continue
		}
		kw := "UNION"
		if uq.u.all[i-1] {
			kw = "UNION ALL"
		}
		out = out + "\n" + kw + "\n" + t
	}
	return CompiledQuery{Text: out, Params: reg.Values()}, nil
}

// MergeWith combines other into q (the builder's composition rule):
// alias-conflict checked, parameters renamed to preserve value identity,
// WHERE conditions ANDed, ORDER BY/SKIP/LIMIT replaced by other's, and
// every other clause kind appended.
func (q *Query) MergeWith(other *Query) error {
	if err := checkAliasConflicts(q, other); err != nil {
		return err
	}
	// Clauses stay live AST nodes (not pre-rendered text): every literal
	// still renders against q.params at Compile time, so pre-seeding q.params
	// with other's values here only needs to preserve value identity, not
	// rewrite any text.
	q.params.merge(other.params)

	var mergedWhere *WhereClause
	var rest []Clause
	for _, c := range q.clauses {
		if w, ok := c.(*WhereClause); ok {
			mergedWhere = w
			continue
		}
		rest = append(rest, c)
	}
	q.clauses = rest

	for _, c := range other.clauses {
		switch oc := c.(type) {
		case *WhereClause:
			if mergedWhere == nil {
				mergedWhere = oc
			} else {
				mergedWhere = &WhereClause{Cond: Binary{Op: "AND", Left: mergedWhere.Cond, Right: oc.Cond}}
			}
		case *OrderByClause:
			q.clauses = replaceClauseOfKind(q.clauses, KindOrderBy, oc)
		case *SkipClause:
			q.clauses = replaceClauseOfKind(q.clauses, KindSkip, oc)
		case *LimitClause:
			q.clauses = replaceClauseOfKind(q.clauses, KindLimit, oc)
		default:
			q.clauses = append(q.clauses, c)
		}
	}
	if mergedWhere != nil {
		q.clauses = append(q.clauses, mergedWhere)
	}
	return nil
}

func replaceClauseOfKind(clauses []Clause, k Kind, replacement Clause) []Clause {
	out := make([]Clause, 0, len(clauses)+1)
	for _, c := range clauses {
		if c.Kind() == k {
			continue
		}
		out = append(out, c)
	}
	return append(out, replacement)
}

// checkAliasConflicts fails if the same alias names incompatible
// labels/types in q and other: alias without labels on either side is
// compatible with anything.
func checkAliasConflicts(q, other *Query) error {
	left := collectAliases(q.clauses)
	right := collectAliases(other.clauses)
	for alias, leftLabels := range left {
		rightLabels, ok := right[alias]
		if !ok {
			continue
		}
		if len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}
		if !sameSet(leftLabels, rightLabels) {
			return errs.New(errs.AliasConflict, fmt.Sprintf(
				"cypher: alias %q has conflicting labels/types %v vs %v", alias, leftLabels, rightLabels))
		}
	}
	return nil
}

func collectAliases(clauses []Clause) map[string][]string {
	out := map[string][]string{}
	for _, c := range clauses {
		var patterns []Pattern
		switch tc := c.(type) {
		case *MatchClause:
			patterns = tc.Patterns
		case *CreateClause:
			patterns = tc.Patterns
		case *MergeClause:
			patterns = []Pattern{tc.Pattern}
		}
		for _, p := range patterns {
			for alias, labels := range p.aliases() {
				out[alias] = labels
			}
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	am := make(map[string]bool, len(a))
	for _, s := range a {
		am[s] = true
	}
	for _, s := range b {
		if !am[s] {
			return false
		}
	}
	return true
}
