package datalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpressionArithmetic(t *testing.T) {
	cases := []struct {
		name    string
		expr    Expression
		want    Term
		wantErr bool
	}{
		{
			name: "add",
			expr: Expression{ValueOp(Integer(1)), ValueOp(Integer(2)), BinaryOpNode(BinaryOp{BinaryAdd})},
			want: Integer(3),
		},
		{
			name: "sub",
			expr: Expression{ValueOp(Integer(5)), ValueOp(Integer(2)), BinaryOpNode(BinaryOp{BinarySub})},
			want: Integer(3),
		},
		{
			name: "mul overflow",
			expr: Expression{
				ValueOp(Integer(1 << 62)),
				ValueOp(Integer(4)),
				BinaryOpNode(BinaryOp{BinaryMul}),
			},
			wantErr: true,
		},
		{
			name:    "div by zero",
			expr:    Expression{ValueOp(Integer(1)), ValueOp(Integer(0)), BinaryOpNode(BinaryOp{BinaryDiv})},
			wantErr: true,
		},
		{
			name: "negate",
			expr: Expression{ValueOp(Bool(true)), UnaryOpNode(UnaryOp{UnaryNegate})},
			want: Bool(false),
		},
		{
			name: "string length",
			expr: Expression{ValueOp(String("hello")), UnaryOpNode(UnaryOp{UnaryLength})},
			want: Integer(5),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.expr.Evaluate(NewBinding())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "got %v, want %v", got, tc.want)
		})
	}
}

func TestExpressionComparisons(t *testing.T) {
	cases := []struct {
		name string
		expr Expression
		want bool
	}{
		{
			name: "less than",
			expr: Expression{ValueOp(Integer(1)), ValueOp(Integer(2)), BinaryOpNode(BinaryOp{BinaryLessThan})},
			want: true,
		},
		{
			name: "string prefix",
			expr: Expression{ValueOp(String("hello world")), ValueOp(String("hello")), BinaryOpNode(BinaryOp{BinaryPrefix})},
			want: true,
		},
		{
			name: "string suffix false",
			expr: Expression{ValueOp(String("hello world")), ValueOp(String("hello")), BinaryOpNode(BinaryOp{BinarySuffix})},
			want: false,
		},
		{
			name: "regex match",
			expr: Expression{ValueOp(String("file123.txt")), ValueOp(String(`^file\d+\.txt$`)), BinaryOpNode(BinaryOp{BinaryRegex})},
			want: true,
		},
		{
			name: "set contains scalar",
			expr: Expression{
				ValueOp(Set{Symbol("read"), Symbol("write")}),
				ValueOp(Symbol("read")),
				BinaryOpNode(BinaryOp{BinaryContains}),
			},
			want: true,
		},
		{
			name: "set contains set (superset)",
			expr: Expression{
				ValueOp(Set{Symbol("read"), Symbol("write"), Symbol("admin")}),
				ValueOp(Set{Symbol("read"), Symbol("write")}),
				BinaryOpNode(BinaryOp{BinaryContains}),
			},
			want: true,
		},
		{
			name: "and",
			expr: Expression{ValueOp(Bool(true)), ValueOp(Bool(false)), BinaryOpNode(BinaryOp{BinaryAnd})},
			want: false,
		},
		{
			name: "or",
			expr: Expression{ValueOp(Bool(true)), ValueOp(Bool(false)), BinaryOpNode(BinaryOp{BinaryOr})},
			want: false || true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.expr.Satisfied(NewBinding())
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExpressionSetOps(t *testing.T) {
	a := Set{Integer(1), Integer(2), Integer(3)}
	b := Set{Integer(2), Integer(3), Integer(4)}

	inter := Expression{ValueOp(a), ValueOp(b), BinaryOpNode(BinaryOp{BinaryIntersection})}
	got, err := inter.Evaluate(NewBinding())
	require.NoError(t, err)
	require.True(t, Set{Integer(2), Integer(3)}.Equal(got))

	un := Expression{ValueOp(a), ValueOp(b), BinaryOpNode(BinaryOp{BinaryUnion})}
	got, err = un.Evaluate(NewBinding())
	require.NoError(t, err)
	require.True(t, Set{Integer(1), Integer(2), Integer(3), Integer(4)}.Equal(got))
}

func TestExpressionUnboundVariable(t *testing.T) {
	expr := Expression{ValueOp(Variable("unbound")), UnaryOpNode(UnaryOp{UnaryLength})}
	_, err := expr.Evaluate(NewBinding())
	require.ErrorIs(t, err, ErrExprUnknownVar)
}

func TestExpressionVariableSubstitution(t *testing.T) {
	b := NewBinding()
	b, ok := b.Extend("x", Integer(10))
	require.True(t, ok)

	expr := Expression{ValueOp(Variable("x")), ValueOp(Integer(5)), BinaryOpNode(BinaryOp{BinaryGreaterThan})}
	got, err := expr.Satisfied(b)
	require.NoError(t, err)
	require.True(t, got)
}
