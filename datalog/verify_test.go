package datalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustQueryItem(t *testing.T, body []Predicate, exprs ...Expression) QueryItem {
	t.Helper()
	q, err := NewQueryItem(body, exprs)
	require.NoError(t, err)
	return q
}

// Scenario 1: authority allows read of file1.
func TestVerifyScenario1_AuthorityAllowsRead(t *testing.T) {
	authority := Block{
		Facts: FactSet{mustFact(t, "right", Symbol("authority"), String("file1"), Symbol("read"))},
	}
	verifier := Verifier{
		Facts: FactSet{
			mustFact(t, "resource", Symbol("ambient"), String("file1")),
			mustFact(t, "operation", Symbol("ambient"), Symbol("read")),
		},
		Policies: []Policy{
			{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, []Predicate{
				{Name: "resource", Terms: []Term{Symbol("ambient"), Variable("f")}},
				{Name: "operation", Terms: []Term{Symbol("ambient"), Symbol("read")}},
				{Name: "right", Terms: []Term{Symbol("authority"), Variable("f"), Symbol("read")}},
			})}},
		},
	}

	verdict, err := Verify(authority, nil, verifier, DefaultLimits())
	require.NoError(t, err)
	require.NotNil(t, verdict)
	require.NotNil(t, verdict.MatchedQuery)
}

// Scenario 2: attenuation cannot forge authority.
func TestVerifyScenario2_AttenuationCannotForgeAuthority(t *testing.T) {
	authority := Block{
		Facts: FactSet{mustFact(t, "right", Symbol("authority"), String("file1"), Symbol("read"))},
	}
	attenuation := Block{
		Facts: FactSet{mustFact(t, "right", Symbol("authority"), String("file2"), Symbol("read"))},
	}
	verifier := Verifier{
		Policies: []Policy{
			{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, []Predicate{
				{Name: "right", Terms: []Term{Symbol("authority"), String("file2"), Symbol("read")}},
			})}},
		},
	}

	_, err := Verify(authority, []Block{attenuation}, verifier, DefaultLimits())
	var noPolicies *NoPoliciesMatchedError
	require.ErrorAs(t, err, &noPolicies)
}

// Scenario 3: expression guard with arithmetic and comparison.
func TestVerifyScenario3_ArithmeticGuard(t *testing.T) {
	expr := Expression{
		ValueOp(Integer(1)), ValueOp(Integer(2)), ValueOp(Integer(3)),
		BinaryOpNode(BinaryOp{BinaryMul}), BinaryOpNode(BinaryOp{BinaryAdd}),
		ValueOp(Integer(4)), ValueOp(Integer(2)), BinaryOpNode(BinaryOp{BinaryDiv}),
		BinaryOpNode(BinaryOp{BinarySub}),
		ValueOp(Integer(5)), BinaryOpNode(BinaryOp{BinaryEqual}),
	}
	authority := Block{}
	verifier := Verifier{
		Checks: []Check{{Queries: []QueryItem{mustQueryItem(t, nil, expr)}}},
		Policies: []Policy{
			{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, nil)}},
		},
	}

	verdict, err := Verify(authority, nil, verifier, DefaultLimits())
	require.NoError(t, err)
	require.NotNil(t, verdict)
}

// Scenario 4: regex disabled makes the guarded check fail, not an execution error.
func TestVerifyScenario4_RegexDisabled(t *testing.T) {
	expr := Expression{
		ValueOp(String("abc")), ValueOp(String("a.*")), BinaryOpNode(BinaryOp{BinaryRegex}),
	}
	authority := Block{}
	verifier := Verifier{
		Checks: []Check{{Queries: []QueryItem{mustQueryItem(t, nil, expr)}}},
		Policies: []Policy{
			{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, nil)}},
		},
	}

	limits := DefaultLimits()
	limits.AllowRegexes = false

	_, err := Verify(authority, nil, verifier, limits)
	var failedChecks *FailedChecksError
	require.ErrorAs(t, err, &failedChecks)
	require.Len(t, failedChecks.FailedChecks, 1)
}

// Scenario 5: fact explosion trips the fact-count guard.
func TestVerifyScenario5_FactExplosionTripsLimit(t *testing.T) {
	var seedFacts FactSet
	for i := 0; i < 100; i++ {
		seedFacts.Insert(mustFact(t, "seed", Integer(i)))
	}
	rule, err := NewRule(
		Predicate{Name: "r", Terms: []Term{Variable("x"), Variable("y")}},
		[]Predicate{
			{Name: "seed", Terms: []Term{Variable("x")}},
			{Name: "seed", Terms: []Term{Variable("y")}},
		},
		nil,
	)
	require.NoError(t, err)

	authority := Block{Facts: seedFacts, Rules: []Rule{rule}}
	verifier := Verifier{
		Policies: []Policy{{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, nil)}}},
	}

	limits := DefaultLimits()
	limits.MaxFacts = 1000

	_, err = Verify(authority, nil, verifier, limits)
	require.ErrorIs(t, err, ErrTooManyFacts)
}

// Scenario 6: a deny policy declared before an allow policy wins.
func TestVerifyScenario6_DenyWinsWhenDeclaredFirst(t *testing.T) {
	authority := Block{}
	verifier := Verifier{
		Facts: FactSet{mustFact(t, "resource", Symbol("ambient"), String("file1"))},
		Policies: []Policy{
			{Kind: PolicyDeny, Queries: []QueryItem{mustQueryItem(t, []Predicate{
				{Name: "resource", Terms: []Term{Symbol("ambient"), String("file1")}},
			})}},
			{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, nil)}},
		},
	}

	_, err := Verify(authority, nil, verifier, DefaultLimits())
	var denyErr *DenyRuleMatchedError
	require.ErrorAs(t, err, &denyErr)
	require.Equal(t, 0, denyErr.PolicyIndex)
}

// Scenario 7: set membership is type-strict.
func TestVerifyScenario7_SetMembershipTypeStrict(t *testing.T) {
	passExpr := Expression{
		ValueOp(Set{Integer(1), Integer(2)}), ValueOp(Integer(2)), BinaryOpNode(BinaryOp{BinaryContains}),
	}
	failExpr := Expression{
		ValueOp(Set{Integer(1), Integer(2)}), ValueOp(String("2")), BinaryOpNode(BinaryOp{BinaryContains}),
	}

	passOk, err := passExpr.Satisfied(NewBinding())
	require.NoError(t, err)
	require.True(t, passOk)

	_, err = failExpr.Evaluate(NewBinding())
	require.Error(t, err, "mixed-type contains must be a type error, not false")
}

// Scenario 8: date ordering.
func TestVerifyScenario8_DateOrdering(t *testing.T) {
	earlier := DateFromTime(time.Date(2019, 12, 4, 9, 46, 41, 0, time.UTC))
	later := DateFromTime(time.Date(2020, 12, 4, 9, 46, 41, 0, time.UTC))
	expr := Expression{ValueOp(earlier), ValueOp(later), BinaryOpNode(BinaryOp{BinaryLessThan})}

	ok, err := expr.Satisfied(NewBinding())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyFactsInBlocksWhenDisallowed(t *testing.T) {
	authority := Block{}
	attenuation := Block{Facts: FactSet{mustFact(t, "extra", String("x"))}}
	verifier := Verifier{Policies: []Policy{{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, nil)}}}}

	limits := DefaultLimits()
	limits.AllowBlockFacts = false

	_, err := Verify(authority, []Block{attenuation}, verifier, limits)
	require.ErrorIs(t, err, ErrFactsInBlocks)
}

func TestVerifyRevocationAborts(t *testing.T) {
	authority := Block{UniqueRevocationID: []byte("authority-unique")}
	verifier := Verifier{Policies: []Policy{{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, nil)}}}}

	limits := DefaultLimits()
	limits.CheckRevocation = func(blockIndex int, id []byte) RevocationStatus {
		return RevocationRevoked
	}

	_, err := Verify(authority, nil, verifier, limits)
	var revoked *RevokedError
	require.ErrorAs(t, err, &revoked)
	require.Equal(t, 0, revoked.BlockIndex)
}

// P6: policy ordering — the first matching policy wins even when a later
// one would also match.
func TestVerifyPolicyOrdering(t *testing.T) {
	authority := Block{}
	verifier := Verifier{
		Policies: []Policy{
			{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, nil)}},
			{Kind: PolicyDeny, Queries: []QueryItem{mustQueryItem(t, nil)}},
		},
	}

	verdict, err := Verify(authority, nil, verifier, DefaultLimits())
	require.NoError(t, err)
	require.NotNil(t, verdict)
}

// P7: a failing check combined with a matching Allow still yields
// FailedChecks, never success.
func TestVerifyCheckHardness(t *testing.T) {
	impossible := mustQueryItem(t, []Predicate{{Name: "nonexistent", Terms: []Term{Variable("x")}}})
	authority := Block{Checks: []Check{{Queries: []QueryItem{impossible}}}}
	verifier := Verifier{
		Policies: []Policy{{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, nil)}}},
	}

	_, err := Verify(authority, nil, verifier, DefaultLimits())
	var failedChecks *FailedChecksError
	require.ErrorAs(t, err, &failedChecks)
}

func TestVerifyDeterministic(t *testing.T) {
	authority := Block{
		Facts: FactSet{mustFact(t, "right", Symbol("authority"), String("file1"), Symbol("read"))},
	}
	verifier := Verifier{
		Policies: []Policy{
			{Kind: PolicyAllow, Queries: []QueryItem{mustQueryItem(t, []Predicate{
				{Name: "right", Terms: []Term{Symbol("authority"), String("file1"), Symbol("read")}},
			})}},
		},
	}

	v1, err1 := Verify(authority, nil, verifier, DefaultLimits())
	v2, err2 := Verify(authority, nil, verifier, DefaultLimits())
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, v1.Facts.String(), v2.Facts.String())
}
