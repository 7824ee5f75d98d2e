package cypher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Compiler walks a Query's clauses in canonical order and renders each one,
// implementing Visitor. It is the only production Visitor; external callers
// never construct one directly (see Query.Compile).
type Compiler struct {
	reg  *Registry
	b    strings.Builder
	n    int
}

func newCompiler(reg *Registry) *Compiler {
	return &Compiler{reg: reg}
}

func (c *Compiler) line(s string) {
	if s == "" {
		return
	}
	if c.n > 0 {
		c.b.WriteString("\n")
	}
	c.b.WriteString(s)
	c.n++
}

func (c *Compiler) VisitMatch(m *MatchClause) {
	kw := "MATCH"
	if m.Optional {
		kw = "OPTIONAL MATCH"
	}
	parts := make([]string, len(m.Patterns))
	for i, p := range m.Patterns {
		parts[i] = p.render(c.reg)
	}
	c.line(fmt.Sprintf("%s %s", kw, strings.Join(parts, ", ")))
}

func (c *Compiler) VisitWhere(w *WhereClause) {
	c.line(fmt.Sprintf("WHERE %s", w.Cond.render(c.reg)))
}

func (c *Compiler) VisitCreate(cr *CreateClause) {
	parts := make([]string, len(cr.Patterns))
	for i, p := range cr.Patterns {
		parts[i] = p.render(c.reg)
	}
	c.line(fmt.Sprintf("CREATE %s", strings.Join(parts, ", ")))
}

func renderSetItems(items []SetItem, reg *Registry) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch {
		case len(it.AddLabels) > 0:
			ident, ok := it.Target.(Ident)
			labels := ""
			if ok {
				labels = string(ident)
			}
			for _, l := range it.AddLabels {
				labels += ":" + l
			}
			out = append(out, labels)
		case it.PlusEqual:
			out = append(out, fmt.Sprintf("%s += %s", it.Target.render(reg), it.Value.render(reg)))
		default:
			out = append(out, fmt.Sprintf("%s = %s", it.Target.render(reg), it.Value.render(reg)))
		}
	}
	return out
}

func (c *Compiler) VisitMerge(m *MergeClause) {
	c.line(fmt.Sprintf("MERGE %s", m.Pattern.render(c.reg)))
	if len(m.OnCreate) > 0 {
		c.line(fmt.Sprintf("ON CREATE SET %s", strings.Join(renderSetItems(m.OnCreate, c.reg), ", ")))
	}
	if len(m.OnMatch) > 0 {
		c.line(fmt.Sprintf("ON MATCH SET %s", strings.Join(renderSetItems(m.OnMatch, c.reg), ", ")))
	}
}

func (c *Compiler) VisitSet(s *SetClause) {
	c.line(fmt.Sprintf("SET %s", strings.Join(renderSetItems(s.Items, c.reg), ", ")))
}

func (c *Compiler) VisitRemove(r *RemoveClause) {
	parts := make([]string, 0, len(r.Props)+len(r.Labels))
	for _, p := range r.Props {
		parts = append(parts, p.render(c.reg))
	}
	aliases := make([]string, 0, len(r.Labels))
	for a := range r.Labels {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, a := range aliases {
		s := a
		for _, l := range r.Labels[a] {
			s += ":" + l
		}
		parts = append(parts, s)
	}
	c.line(fmt.Sprintf("REMOVE %s", strings.Join(parts, ", ")))
}

func (c *Compiler) VisitDelete(d *DeleteClause) {
	kw := "DELETE"
	if d.Detach {
		kw = "DETACH DELETE"
	}
	c.line(fmt.Sprintf("%s %s", kw, strings.Join(d.Aliases, ", ")))
}

func (c *Compiler) VisitWith(w *WithClause) {
	kw := "WITH"
	if w.Distinct {
		kw = "WITH DISTINCT"
	}
	parts := make([]string, len(w.Items))
	for i, e := range w.Items {
		parts[i] = e.render(c.reg)
	}
	c.line(fmt.Sprintf("%s %s", kw, strings.Join(parts, ", ")))
	if w.Where != nil {
		c.line(fmt.Sprintf("WHERE %s", w.Where.render(c.reg)))
	}
}

func (c *Compiler) VisitReturn(r *ReturnClause) {
	kw := "RETURN"
	if r.Distinct {
		kw = "RETURN DISTINCT"
	}
	parts := make([]string, len(r.Items))
	for i, e := range r.Items {
		parts[i] = e.render(c.reg)
	}
	c.line(fmt.Sprintf("%s %s", kw, strings.Join(parts, ", ")))
}

func (c *Compiler) VisitOrderBy(o *OrderByClause) {
	parts := make([]string, len(o.Items))
	for i, it := range o.Items {
		s := it.Expr.render(c.reg)
		if it.Desc {
			s += " DESC"
		}
		parts[i] = s
	}
	c.line(fmt.Sprintf("ORDER BY %s", strings.Join(parts, ", ")))
}

func (c *Compiler) VisitSkip(s *SkipClause) {
	c.line(fmt.Sprintf("SKIP %s", s.N.render(c.reg)))
}

func (c *Compiler) VisitLimit(l *LimitClause) {
	c.line(fmt.Sprintf("LIMIT %s", l.N.render(c.reg)))
}

func (c *Compiler) VisitUnwind(u *UnwindClause) {
	c.line(fmt.Sprintf("UNWIND %s AS %s", u.List.render(c.reg), u.Alias))
}

func (c *Compiler) VisitCall(call *CallClause) {
	args := make([]string, len(call.Args))
	for i, a := range call.Args {
		args[i] = a.render(c.reg)
	}
	s := fmt.Sprintf("CALL %s(%s)", call.Procedure, strings.Join(args, ", "))
	if len(call.Yield) > 0 {
		s += " YIELD " + strings.Join(call.Yield, ", ")
	}
	c.line(s)
}

func (c *Compiler) VisitCallSubquery(cs *CallSubqueryClause) {
	text, subParams := cs.Sub.compileRaw()
	renames := c.reg.merge(subParams)
	text = renameParams(text, renames)
	c.line(fmt.Sprintf("CALL {\n%s\n}", indent(text)))
}

func (c *Compiler) VisitForeach(f *ForeachClause) {
	inner := newCompiler(c.reg)
	for _, cl := range f.Do {
		cl.Accept(inner)
	}
	c.line(fmt.Sprintf("FOREACH (%s IN %s | %s)", f.Variable, f.List.render(c.reg), inner.b.String()))
}

func (c *Compiler) VisitLoadCSV(l *LoadCSVClause) {
	kw := "LOAD CSV"
	if l.WithHeaders {
		kw = "LOAD CSV WITH HEADERS"
	}
	c.line(fmt.Sprintf("%s FROM %s AS %s", kw, l.URL.render(c.reg), l.Alias))
}

var paramRefPattern = regexp.MustCompile(`\$p(\d+)\b`)

// renameParams rewrites `$pN` references in text per the rename table built
// while hoisting a subquery's parameters into an outer registry.
func renameParams(text string, renames map[string]string) string {
	if len(renames) == 0 {
		return text
	}
	return paramRefPattern.ReplaceAllStringFunc(text, func(m string) string {
		old := m[1:] // strip leading "$"
		if newName, ok := renames[old]; ok {
			return "$" + newName
		}
		return m
	})
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
