package token

import "github.com/biscuit-auth/biscuit-datalog/datalog"

// AuthorizerOption customizes a *Authorizer at construction time, mirroring
// the functional-options pattern the teacher uses for its World/Builder
// types (datalog.WorldOption, builder.builderOption in biscuit-go).
type AuthorizerOption func(*Authorizer)

func WithLimits(l datalog.Limits) AuthorizerOption {
	return func(a *Authorizer) { a.limits = l }
}

func WithRevocationChecker(c datalog.RevocationChecker) AuthorizerOption {
	return func(a *Authorizer) { a.limits.CheckRevocation = c }
}

func WithClock(c datalog.Clock) AuthorizerOption {
	return func(a *Authorizer) { a.limits.Clock = c }
}

// Authorizer accumulates a Verifier (facts, rules, checks, policies
// supplied at authorization time, outside of any block) and drives
// datalog.Verify against a held Biscuit. It plays the role of the
// teacher's Authorizer interface in authorizer.go, stripped to the
// in-memory parts: no PrintWorld-over-signed-state, no protobuf policy
// (de)serialization.
type Authorizer struct {
	biscuit  Biscuit
	verifier datalog.Verifier
	limits   datalog.Limits
}

// NewAuthorizer starts an Authorizer over an already-assembled biscuit.
func NewAuthorizer(b Biscuit, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{biscuit: b, limits: datalog.DefaultLimits()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Authorizer) AddFact(f datalog.Fact) *Authorizer {
	a.verifier.Facts.Insert(f)
	return a
}

func (a *Authorizer) AddRule(r datalog.Rule) *Authorizer {
	a.verifier.Rules = append(a.verifier.Rules, r)
	return a
}

func (a *Authorizer) AddCheck(c datalog.Check) *Authorizer {
	a.verifier.Checks = append(a.verifier.Checks, c)
	return a
}

// AddPolicy appends a policy to the verifier's ordered policy list. Order
// matters: the first policy (of any kind) with a satisfied query item
// decides the verdict (spec.md §4.5, P6).
func (a *Authorizer) AddPolicy(p datalog.Policy) *Authorizer {
	a.verifier.Policies = append(a.verifier.Policies, p)
	return a
}

// Authorize runs the full engine pipeline (assembly, fixpoint, check and
// policy evaluation) over the held biscuit and accumulated verifier state.
func (a *Authorizer) Authorize() (*datalog.Verdict, error) {
	return datalog.Verify(a.biscuit.Authority, a.biscuit.Attenuations, a.verifier, a.limits)
}

// Reset clears every fact, rule, check and policy accumulated on the
// verifier, leaving the held biscuit untouched. Mirrors the teacher's
// Authorizer.Reset, used between repeated authorization attempts against
// the same token in request-handling loops.
func (a *Authorizer) Reset() {
	a.verifier = datalog.Verifier{}
}
