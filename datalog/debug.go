package datalog

import (
	"fmt"
	"strings"
)

// Debugger pretty-prints engine values for diagnostics, playing the same
// role as the teacher's SymbolDebugger in datalog/symbol.go and
// datalog/debugger.go. Since this implementation never interns symbols
// into a shared table, no table needs to be threaded through the printer.
type Debugger struct{}

func (Debugger) Predicate(p Predicate) string { return p.String() }

func (Debugger) Rule(r Rule) string {
	body := make([]string, len(r.Body))
	for i, p := range r.Body {
		body[i] = p.String()
	}
	exprs := make([]string, len(r.Expressions))
	for i, e := range r.Expressions {
		exprs[i] = e.Print()
	}
	s := fmt.Sprintf("%s <- %s", r.Head, strings.Join(body, ", "))
	if len(exprs) > 0 {
		s += ", " + strings.Join(exprs, ", ")
	}
	return s
}

func (d Debugger) QueryItem(q QueryItem) string {
	body := make([]string, len(q.Body))
	for i, p := range q.Body {
		body[i] = p.String()
	}
	exprs := make([]string, len(q.Expressions))
	for i, e := range q.Expressions {
		exprs[i] = e.Print()
	}
	s := strings.Join(body, ", ")
	if len(exprs) > 0 {
		s += ", " + strings.Join(exprs, ", ")
	}
	return s
}

func (d Debugger) Check(c Check) string {
	items := make([]string, len(c.Queries))
	for i, q := range c.Queries {
		items[i] = d.QueryItem(q)
	}
	return "check if " + strings.Join(items, " or ")
}

func (d Debugger) World(w World) string {
	var b strings.Builder
	fmt.Fprintln(&b, "facts:")
	for _, f := range w.Facts {
		fmt.Fprintf(&b, "  %s\n", f.Predicate)
	}
	fmt.Fprintln(&b, "trusted rules:")
	for _, r := range w.TrustedRules {
		fmt.Fprintf(&b, "  %s\n", d.Rule(r))
	}
	fmt.Fprintln(&b, "block rules:")
	for _, r := range w.BlockRules {
		fmt.Fprintf(&b, "  %s\n", d.Rule(r))
	}
	return b.String()
}
