package cypher

import (
	"fmt"
	"strings"
)

// Expr is any Cypher expression: a literal, a property lookup, an operator
// application, a function call, an alias, or one of the subquery forms
// (EXISTS, CASE, pattern comprehension). Render never touches raw user data
// directly — literals go through the Registry and come back as `$pN`.
type Expr interface {
	render(reg *Registry) string
}

// Raw is an already-formed fragment of Cypher text (a property key, a bare
// identifier, an operator keyword) emitted verbatim. It exists so the
// builder can compose expressions without re-validating text it already
// validated once, e.g. via ValidateIdentifier.
type Raw string

func (r Raw) render(*Registry) string { return string(r) }

// Lit wraps a literal value. Render registers it with the query's parameter
// table and emits the generated `$pN` reference; Cypher text never embeds
// literal values inline.
type Lit struct{ Value any }

func (l Lit) render(reg *Registry) string {
	return "$" + reg.Register(l.Value)
}

// Param references a parameter name the caller chose, e.g. bound externally
// via Session.Run's params map. Unlike Lit, this is emitted verbatim with a
// `$` prefix and never touches the registry — the caller owns the name.
type Param struct{ Name string }

func (p Param) render(*Registry) string { return "$" + p.Name }

// Ident is a bare variable reference, e.g. an alias bound by MATCH.
type Ident string

func (i Ident) render(*Registry) string { return string(i) }

// Prop is a property access `alias.key`.
type Prop struct {
	Alias string
	Key   string
}

func (p Prop) render(*Registry) string {
	return fmt.Sprintf("%s.%s", p.Alias, p.Key)
}

// Binary is a binary operator application, e.g. comparison (`=`, `<>`,
// `<`, `>`, `<=`, `>=`) or logical/arithmetic (`AND`, `OR`, `+`, `-`, …).
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (b Binary) render(reg *Registry) string {
	return fmt.Sprintf("(%s %s %s)", b.Left.render(reg), b.Op, b.Right.render(reg))
}

// Not negates an expression.
type Not struct{ Expr Expr }

func (n Not) render(reg *Registry) string {
	return fmt.Sprintf("NOT (%s)", n.Expr.render(reg))
}

// Call is a function invocation, e.g. `count(n)`.
type Call struct {
	Name string
	Args []Expr
}

func (c Call) render(reg *Registry) string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.render(reg)
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, ", "))
}

// As binds expr to an alias within a projection (WITH/RETURN item).
type As struct {
	Expr  Expr
	Alias string
}

func (a As) render(reg *Registry) string {
	return fmt.Sprintf("%s AS %s", a.Expr.render(reg), a.Alias)
}

// Exists renders `EXISTS { <subquery> }`. Sub is compiled with its own
// parameter registry, then its parameters are hoisted into the outer
// query's registry at materialization time (Query.Compile), renaming any
// that collide.
type Exists struct{ Sub *Query }

func (e Exists) render(reg *Registry) string {
	text, subParams := e.Sub.compileRaw()
	renames := reg.merge(subParams)
	text = renameParams(text, renames)
	return fmt.Sprintf("EXISTS {\n%s\n}", indent(text))
}

// CaseBranch is one WHEN/THEN arm of a CASE expression.
type CaseBranch struct {
	When Expr
	Then Expr
}

// Case renders a generic (no-operand) `CASE WHEN … THEN … ELSE … END`
// expression.
type Case struct {
	Branches []CaseBranch
	Else     Expr
}

func (c Case) render(reg *Registry) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, br := range c.Branches {
		b.WriteString(" WHEN ")
		b.WriteString(br.When.render(reg))
		b.WriteString(" THEN ")
		b.WriteString(br.Then.render(reg))
	}
	if c.Else != nil {
		b.WriteString(" ELSE ")
		b.WriteString(c.Else.render(reg))
	}
	b.WriteString(" END")
	return b.String()
}

// PatternComprehension renders `[pattern WHERE predicate | projection]`.
type PatternComprehension struct {
	Pattern    Pattern
	Where      Expr
	Projection Expr
}

func (p PatternComprehension) render(reg *Registry) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(p.Pattern.render(reg))
	if p.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(p.Where.render(reg))
	}
	b.WriteString(" | ")
	b.WriteString(p.Projection.render(reg))
	b.WriteString("]")
	return b.String()
}

// subqueries walks e looking for embedded EXISTS subqueries, so
// Query.validate can check their patterns' identifiers too instead of only
// the outer query's.
func subqueries(e Expr) []*Query {
	if e == nil {
		return nil
	}
	switch t := e.(type) {
	case Exists:
		return []*Query{t.Sub}
	case Binary:
		return append(subqueries(t.Left), subqueries(t.Right)...)
	case Not:
		return subqueries(t.Expr)
	case Call:
		var out []*Query
		for _, a := range t.Args {
			out = append(out, subqueries(a)...)
		}
		return out
	case As:
		return subqueries(t.Expr)
	case Case:
		var out []*Query
		for _, br := range t.Branches {
			out = append(out, subqueries(br.When)...)
			out = append(out, subqueries(br.Then)...)
		}
		return append(out, subqueries(t.Else)...)
	case PatternComprehension:
		return append(subqueries(t.Where), subqueries(t.Projection)...)
	default:
		return nil
	}
}
