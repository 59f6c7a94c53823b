package datalog

import (
	"errors"
	"fmt"
)

var ErrRuleNotRangeRestricted = errors.New("datalog: rule is not range-restricted, a head or expression variable does not occur in the body")

// Rule derives Head for every binding of Body that satisfies every
// Expression guard. Range restriction (I3) requires every variable
// mentioned in Head or in Expressions to also occur in Body.
type Rule struct {
	Head        Predicate
	Body        []Predicate
	Expressions []Expression
}

// NewRule validates range restriction before returning the rule.
func NewRule(head Predicate, body []Predicate, exprs []Expression) (Rule, error) {
	r := Rule{Head: head, Body: body, Expressions: exprs}
	bodyVars := make(map[Variable]struct{})
	for _, p := range body {
		p.variables(bodyVars)
	}
	headVars := make(map[Variable]struct{})
	head.variables(headVars)
	for v := range headVars {
		if _, ok := bodyVars[v]; !ok {
			return Rule{}, fmt.Errorf("%w: head variable %s", ErrRuleNotRangeRestricted, v)
		}
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
				return Rule{}, fmt.Errorf("%w: expression variable %s", ErrRuleNotRangeRestricted, v)
			}
		}
	}
	return r, nil
}

// variables collects every variable occurring anywhere in the rule.
func (r Rule) variables() map[Variable]struct{} {
	out := make(map[Variable]struct{})
	r.Head.variables(out)
	for _, p := range r.Body {
		p.variables(out)
	}
	return out
}

// Apply derives every fact r's head produces over the given fact set,
// filtering any candidate binding whose guards fail and dropping (per I2)
// any derived fact the reject function rejects. solveBody does the
// recursive per-predicate join (datalog/solver.go in the teacher).
func (r Rule) Apply(facts FactSet, reject func(Fact) bool, ctx EvalContext) (FactSet, error) {
	var out FactSet
	bindings := solveBody(r.Body, r.Expressions, facts, ctx)
	for _, b := range bindings {
		headPred, ok := b.resolve(r.Head)
		if !ok {
			continue
		}
		fact := Fact{headPred}
		if reject != nil && reject(fact) {
			continue
		}
		out.Insert(fact)
	}
	return out, nil
}

// solveBody performs the recursive predicate-at-a-time join described in
// spec.md §4.3, grounded on the teacher's Solver/Combinator pattern.
// Predicates are resolved strictly in body order so the resulting binding
// list is deterministic (I5).
func solveBody(body []Predicate, exprs []Expression, facts FactSet, ctx EvalContext) []Binding {
	if len(body) == 0 {
		if !evalGuards(exprs, NewBinding(), ctx) {
			return nil
		}
		return []Binding{NewBinding()}
	}
	return solveFrom(0, body, exprs, facts, NewBinding(), ctx)
}

func solveFrom(idx int, body []Predicate, exprs []Expression, facts FactSet, partial Binding, ctx EvalContext) []Binding {
	if idx == len(body) {
		if !evalGuards(exprs, partial, ctx) {
			return nil
		}
		return []Binding{partial}
	}
	pattern, ok := partial.resolve(body[idx])
	var candidates []Fact
	if ok {
		// Pattern is fully ground already; match exactly.
		for _, f := range facts {
			if f.Predicate.Equal(pattern) {
				candidates = append(candidates, f)
			}
		}
	} else {
		candidates = facts.matching(body[idx])
	}

	var out []Binding
	for _, f := range candidates {
		extended, ok := unify(partial, body[idx], f.Predicate)
		if !ok {
			continue
		}
		out = append(out, solveFrom(idx+1, body, exprs, facts, extended, ctx)...)
	}
	return out
}

// evalGuards requires every expression in exprs to evaluate to true against
// b. A guard that errors (type mismatch, unbound variable, disabled
// operator, division by zero) is treated the same as one that evaluates to
// Bool(false): the binding is rejected, not the whole evaluation (spec.md
// §7's "guard-level evaluation errors are not surfaced").
func evalGuards(exprs []Expression, b Binding, ctx EvalContext) bool {
	for _, e := range exprs {
		ok, err := e.SatisfiedWithContext(b, ctx)
		if err != nil || !ok {
			return false
		}
	}
	return true
}
