package datalog

// Block is one signed segment of a token: the authority block (always
// index 0) or an attenuation block (index >= 1). The two revocation ids
// are raw bytes already derived by the caller; this package never derives
// them itself (see SPEC_FULL.md §1) — it only exposes them as facts and,
// for the unique id, runs them past the revocation checker.
type Block struct {
	Facts               FactSet
	Rules               []Rule
	Checks              []Check
	GenericRevocationID []byte
	UniqueRevocationID  []byte
}

// Verifier holds the facts, rules, checks and policies contributed at
// authorization time, outside of any block.
type Verifier struct {
	Facts    FactSet
	Rules    []Rule
	Checks   []Check
	Policies []Policy
}

// Verdict is the positive result of a successful Verify call: the final
// derived fact set plus the policy (and its matching query item) that
// allowed it.
type Verdict struct {
	Facts         FactSet
	MatchedPolicy *Policy
	MatchedQuery  *QueryItem
}

// VerifyOption customizes a single Verify call, mirroring the teacher's
// functional-options pattern (datalog.WorldOption, builder.builderOption).
type VerifyOption func(*Limits)

func WithLimits(l Limits) VerifyOption {
	return func(dst *Limits) { *dst = l }
}

func WithMaxFacts(n int) VerifyOption {
	return func(dst *Limits) { dst.MaxFacts = n }
}

func WithMaxIterations(n int) VerifyOption {
	return func(dst *Limits) { dst.MaxIterations = n }
}

func WithRevocationChecker(c RevocationChecker) VerifyOption {
	return func(dst *Limits) { dst.CheckRevocation = c }
}

func WithClock(c Clock) VerifyOption {
	return func(dst *Limits) { dst.Clock = c }
}

// Verify assembles the world from authority, attenuations and verifier,
// runs the fixpoint, evaluates checks and policies, and returns either a
// Verdict or one of the typed errors in SPEC_FULL.md §7.
//
// Execution errors (ErrTimeout, ErrTooManyFacts, ErrTooManyIterations,
// ErrFactsInBlocks, *RevokedError) mean the question could not be
// answered. Result errors (*FailedChecksError, *NoPoliciesMatchedError,
// *DenyRuleMatchedError) mean it was answered "no".
func Verify(authority Block, attenuations []Block, verifier Verifier, limits Limits, opts ...VerifyOption) (*Verdict, error) {
	for _, opt := range opts {
		opt(&limits)
	}

	if !limits.AllowBlockFacts {
		for _, blk := range attenuations {
			if len(blk.Facts) > 0 || len(blk.Rules) > 0 {
				return nil, ErrFactsInBlocks
			}
		}
	}

	if limits.CheckRevocation != nil {
		if status := limits.CheckRevocation(0, authority.UniqueRevocationID); status == RevocationRevoked {
			return nil, &RevokedError{BlockIndex: 0}
		}
		for i, blk := range attenuations {
			if status := limits.CheckRevocation(i+1, blk.UniqueRevocationID); status == RevocationRevoked {
				return nil, &RevokedError{BlockIndex: i + 1}
			}
		}
	}

	world := assembleWorld(authority, attenuations, verifier)
	facts, err := world.run(limits)
	if err != nil {
		return nil, err
	}

	ctx := EvalContext{AllowRegexes: limits.AllowRegexes}

	var failed []FailedCheck
	failed = append(failed, evaluateChecks(-1, verifier.Checks, facts, ctx)...)
	failed = append(failed, evaluateChecks(0, authority.Checks, facts, ctx)...)
	for i, blk := range attenuations {
		failed = append(failed, evaluateChecks(i+1, blk.Checks, facts, ctx)...)
	}

	// Policies are tried regardless of whether any check failed: the
	// verdict table (spec.md §4.5) needs to know which policy matched,
	// and of which kind, even in the Failed(cs) rows.
	for i, p := range verifier.Policies {
		matched, query := p.Match(facts, ctx)
		if !matched {
			continue
		}
		if p.Kind == PolicyDeny {
			return nil, &DenyRuleMatchedError{FailedChecks: failed, PolicyIndex: i, Query: query}
		}
		if len(failed) > 0 {
			return nil, &FailedChecksError{FailedChecks: failed}
		}
		return &Verdict{Facts: facts, MatchedPolicy: &verifier.Policies[i], MatchedQuery: query}, nil
	}

	return nil, &NoPoliciesMatchedError{FailedChecks: failed}
}

// assembleWorld splits trusted rules (verifier + authority) from block
// rules (attenuation), and filters attenuation-block seed facts that
// violate I2 — the security boundary described in spec.md §4.1.
func assembleWorld(authority Block, attenuations []Block, verifier Verifier) World {
	facts := verifier.Facts.Clone()
	facts.InsertAll(authority.Facts)
	for _, blk := range attenuations {
		for _, f := range blk.Facts {
			if f.containsTaboo(tabooTerms) {
				continue
			}
			facts.Insert(f)
		}
	}

	// Revocation-id facts are synthesized by the assembler itself, so they
	// are not subject to I2 filtering even for attenuation blocks.
	facts.Insert(Fact{Predicate{Name: "revocation_id", Terms: []Term{Integer(0), Bytes(authority.GenericRevocationID)}}})
	facts.Insert(Fact{Predicate{Name: "unique_revocation_id", Terms: []Term{Integer(0), Bytes(authority.UniqueRevocationID)}}})
	for i, blk := range attenuations {
		facts.Insert(Fact{Predicate{Name: "revocation_id", Terms: []Term{Integer(i + 1), Bytes(blk.GenericRevocationID)}}})
		facts.Insert(Fact{Predicate{Name: "unique_revocation_id", Terms: []Term{Integer(i + 1), Bytes(blk.UniqueRevocationID)}}})
	}

	trusted := make([]Rule, 0, len(verifier.Rules)+len(authority.Rules))
	trusted = append(trusted, verifier.Rules...)
	trusted = append(trusted, authority.Rules...)

	var blockRules []Rule
	for _, blk := range attenuations {
		blockRules = append(blockRules, blk.Rules...)
	}

	return World{Facts: facts, TrustedRules: trusted, BlockRules: blockRules}
}

// evaluateChecks runs every check in checks against facts, returning a
// FailedCheck for each one that does not hold. blockIndex is -1 for the
// verifier's own checks.
func evaluateChecks(blockIndex int, checks []Check, facts FactSet, ctx EvalContext) []FailedCheck {
	var failed []FailedCheck
	for i, c := range checks {
		if !c.Satisfied(facts, ctx) {
			failed = append(failed, FailedCheck{BlockIndex: blockIndex, CheckIndex: i})
		}
	}
	return failed
}
