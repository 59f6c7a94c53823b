package datalog

import (
	"fmt"
	"strings"
)

// Predicate is a name plus an ordered sequence of terms. Arity is the pair
// (name, len(Terms)).
type Predicate struct {
	Name  string
	Terms []Term
}

// Equal is structural, type-strict equality: used to de-duplicate facts.
func (p Predicate) Equal(o Predicate) bool {
	if p.Name != o.Name || len(p.Terms) != len(o.Terms) {
		return false
	}
	for i, t := range p.Terms {
		if !t.Equal(o.Terms[i]) {
			return false
		}
	}
	return true
}

// Match reports whether p (typically a fact) could unify against pattern,
// ignoring the bindings of any variable position in pattern. Used to narrow
// the candidate fact set for a body predicate before building bindings.
func (p Predicate) Match(pattern Predicate) bool {
	if p.Name != pattern.Name || len(p.Terms) != len(pattern.Terms) {
		return false
	}
	for i, t := range pattern.Terms {
		if t.Type() == TermTypeVariable {
			continue
		}
		if !p.Terms[i].Equal(t) {
			return false
		}
	}
	return true
}

func (p Predicate) Clone() Predicate {
	terms := make([]Term, len(p.Terms))
	copy(terms, p.Terms)
	return Predicate{Name: p.Name, Terms: terms}
}

func (p Predicate) String() string {
	terms := make([]string, len(p.Terms))
	for i, t := range p.Terms {
		terms[i] = t.String()
	}
	return fmt.Sprintf("%s(%s)", p.Name, strings.Join(terms, ", "))
}

// variables returns the set of variable names occurring in p.
func (p Predicate) variables(out map[Variable]struct{}) {
	for _, t := range p.Terms {
		if v, ok := t.(Variable); ok {
			out[v] = struct{}{}
		}
	}
}

// Fact is a predicate containing no variables (invariant I1). Construction
// through NewFact enforces this; callers that build a Predicate by hand
// (e.g. rule head substitution) are trusted to have already replaced every
// variable.
type Fact struct {
	Predicate
}

// NewFact validates invariant I1 (facts are variable-free).
func NewFact(name string, terms ...Term) (Fact, error) {
	for _, t := range terms {
		if t.Type() == TermTypeVariable {
			return Fact{}, fmt.Errorf("datalog: fact %q contains a variable, facts must be ground", name)
		}
	}
	return Fact{Predicate{Name: name, Terms: terms}}, nil
}

// containsTaboo reports whether the fact mentions any of the given terms
// anywhere in its term list, including inside Set elements. Used to enforce
// I2 (attenuation may not forge authority/ambient context).
func (f Fact) containsTaboo(taboo []Term) bool {
	return predicateContainsAny(f.Predicate, taboo)
}

func predicateContainsAny(p Predicate, taboo []Term) bool {
	for _, t := range p.Terms {
		if termContainsAny(t, taboo) {
			return true
		}
	}
	return false
}

func termContainsAny(t Term, taboo []Term) bool {
	for _, tb := range taboo {
		if t.Equal(tb) {
			return true
		}
	}
	if set, ok := t.(Set); ok {
		for _, elt := range set {
			if termContainsAny(elt, taboo) {
				return true
			}
		}
	}
	return false
}

// FactSet is an ordered, deduplicated collection of facts. Order is
// insertion order: combined with deterministic rule/predicate ordering
// elsewhere in the engine, this is what makes derivation reproducible (I5).
type FactSet []Fact

// Insert adds f if no structurally-equal fact is already present, reporting
// whether it was newly added.
func (s *FactSet) Insert(f Fact) bool {
	for _, existing := range *s {
		if existing.Predicate.Equal(f.Predicate) {
			return false
		}
	}
	*s = append(*s, f)
	return true
}

// InsertAll inserts every fact in other, preserving other's order for newly
// added facts.
func (s *FactSet) InsertAll(other FactSet) {
	for _, f := range other {
		s.Insert(f)
	}
}

func (s FactSet) Clone() FactSet {
	out := make(FactSet, len(s))
	copy(out, s)
	return out
}

// matching returns, in s's order, every fact whose predicate could unify
// with pattern.
func (s FactSet) matching(pattern Predicate) []Fact {
	var out []Fact
	for _, f := range s {
		if f.Predicate.Match(pattern) {
			out = append(out, f)
		}
	}
	return out
}

func (s FactSet) String() string {
	strs := make([]string, len(s))
	for i, f := range s {
		strs[i] = f.Predicate.String()
	}
	return fmt.Sprintf("%v", strs)
}
