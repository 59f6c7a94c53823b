package datalog

import "errors"

var (
	ErrCheckEmpty          = errors.New("datalog: check must have at least one query item")
	ErrQueryNotRangeRestricted = errors.New("datalog: query item is not range-restricted, an expression variable does not occur in the body")
)

// QueryItem is a headless rule: a body plus guard expressions, used by
// checks and policies. Unlike Rule it never produces a derived fact — it is
// only ever asked whether some binding of Body satisfies every Expression.
type QueryItem struct {
	Body        []Predicate
	Expressions []Expression
}

// NewQueryItem validates range restriction: every expression variable must
// occur in Body.
func NewQueryItem(body []Predicate, exprs []Expression) (QueryItem, error) {
	bodyVars := make(map[Variable]struct{})
	for _, p := range body {
		p.variables(bodyVars)
	}
	for _, e := range exprs {
		for _, op := range e {
			if op.Type != OpTypeValue {
				continue
			}
			v, ok := op.Value.(Variable)
			if !ok {
				continue
			}
			if _, ok := bodyVars[v]; !ok {
				return QueryItem{}, ErrQueryNotRangeRestricted
			}
		}
	}
	return QueryItem{Body: body, Expressions: exprs}, nil
}

// Satisfied reports whether at least one binding of q.Body over facts
// satisfies every guard expression.
func (q QueryItem) Satisfied(facts FactSet, ctx EvalContext) bool {
	return len(solveBody(q.Body, q.Expressions, facts, ctx)) > 0
}

// Check is a disjunction of query items: it passes if at least one item is
// satisfied (spec.md §3/§4.5).
type Check struct {
	Queries []QueryItem
}

func NewCheck(queries ...QueryItem) (Check, error) {
	if len(queries) == 0 {
		return Check{}, ErrCheckEmpty
	}
	return Check{Queries: queries}, nil
}

// Satisfied reports whether any query item in the check passes.
func (c Check) Satisfied(facts FactSet, ctx EvalContext) bool {
	for _, q := range c.Queries {
		if q.Satisfied(facts, ctx) {
			return true
		}
	}
	return false
}

// PolicyKind distinguishes an Allow policy from a Deny policy.
type PolicyKind byte

const (
	PolicyAllow PolicyKind = iota
	PolicyDeny
)

// Policy is an ordered allow/deny rule evaluated against the final fact
// set; the first policy (in declaration order) whose Queries contains a
// satisfied item wins (spec.md §4.5).
type Policy struct {
	Kind    PolicyKind
	Queries []QueryItem
}

// Match reports whether any query item in p is satisfied, and which one
// matched first (for verdict reporting).
func (p Policy) Match(facts FactSet, ctx EvalContext) (matched bool, which *QueryItem) {
	for i := range p.Queries {
		if p.Queries[i].Satisfied(facts, ctx) {
			return true, &p.Queries[i]
		}
	}
	return false, nil
}
