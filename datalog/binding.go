package datalog

import "sort"

// Binding maps variable names to the ground term they've been unified with
// during body resolution. It is consulted only by key lookup — never
// iterated to decide output order — so the map-backed implementation below
// cannot introduce nondeterminism into derived facts (I5).
type Binding struct {
	values map[Variable]Term
}

func NewBinding() Binding {
	return Binding{values: make(map[Variable]Term)}
}

// Get returns the term bound to v, if any.
func (b Binding) Get(v Variable) (Term, bool) {
	t, ok := b.values[v]
	return t, ok
}

// Extend returns a new Binding with v bound to t, failing if v is already
// bound to a different term (consistent-substitution check during
// unification).
func (b Binding) Extend(v Variable, t Term) (Binding, bool) {
	if existing, ok := b.values[v]; ok {
		return b, existing.Equal(t)
	}
	out := Binding{values: make(map[Variable]Term, len(b.values)+1)}
	for k, val := range b.values {
		out.values[k] = val
	}
	out.values[v] = t
	return out, true
}

func (b Binding) Clone() Binding {
	out := Binding{values: make(map[Variable]Term, len(b.values))}
	for k, v := range b.values {
		out.values[k] = v
	}
	return out
}

// Vars returns the bound variable names in sorted order, for deterministic
// printing only — never used to decide evaluation order.
func (b Binding) Vars() []Variable {
	out := make([]Variable, 0, len(b.values))
	for v := range b.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// resolve substitutes every Variable term in p with its binding, returning
// ok=false if any variable is unbound.
func (b Binding) resolve(p Predicate) (Predicate, bool) {
	terms := make([]Term, len(p.Terms))
	for i, t := range p.Terms {
		v, isVar := t.(Variable)
		if !isVar {
			terms[i] = t
			continue
		}
		bound, ok := b.Get(v)
		if !ok {
			return Predicate{}, false
		}
		terms[i] = bound
	}
	return Predicate{Name: p.Name, Terms: terms}, true
}

// unify attempts to extend b so that pattern matches fact, returning the
// extended binding and whether unification succeeded. pattern may contain
// variables; fact must be ground.
func unify(b Binding, pattern Predicate, fact Predicate) (Binding, bool) {
	if pattern.Name != fact.Name || len(pattern.Terms) != len(fact.Terms) {
		return b, false
	}
	cur := b
	for i, pt := range pattern.Terms {
		ft := fact.Terms[i]
		if v, ok := pt.(Variable); ok {
			var extended bool
			cur, extended = cur.Extend(v, ft)
			if !extended {
				return b, false
			}
			continue
		}
		if !pt.Equal(ft) {
			return b, false
		}
	}
	return cur, true
}
