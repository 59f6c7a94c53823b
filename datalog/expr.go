package datalog

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var (
	ErrExprStack        = errors.New("datalog: expression evaluation stack error")
	ErrExprTypeMismatch = errors.New("datalog: expression operand type mismatch")
	ErrExprDivByZero    = errors.New("datalog: division by zero")
	ErrExprOverflow     = errors.New("datalog: integer overflow")
	ErrExprUnknownVar   = errors.New("datalog: unbound variable in expression")
	ErrExprRegexDisabled = errors.New("datalog: regex operator disabled by limits.AllowRegexes")
)

// EvalContext carries the subset of Limits that the expression interpreter
// itself needs to consult mid-evaluation (currently just the regex gate).
// Kept separate from Limits so the interpreter doesn't import resource
// bookkeeping it has no business touching.
type EvalContext struct {
	AllowRegexes bool
}

func defaultEvalContext() EvalContext { return EvalContext{AllowRegexes: true} }

// OpType identifies the kind of operation an Op carries.
type OpType byte

const (
	OpTypeValue OpType = iota
	OpTypeUnary
	OpTypeBinary
)

// Op is one instruction of an Expression's postfix program.
type Op struct {
	Type   OpType
	Value  Term
	Unary  UnaryOp
	Binary BinaryOp
}

func ValueOp(t Term) Op       { return Op{Type: OpTypeValue, Value: t} }
func UnaryOpNode(u UnaryOp) Op  { return Op{Type: OpTypeUnary, Unary: u} }
func BinaryOpNode(b BinaryOp) Op { return Op{Type: OpTypeBinary, Binary: b} }

// UnaryOpFunc names a unary operator.
type UnaryOpFunc byte

const (
	UnaryNegate UnaryOpFunc = iota
	UnaryParens
	UnaryLength
)

type UnaryOp struct {
	Func UnaryOpFunc
}

func (u UnaryOp) String() string {
	switch u.Func {
	case UnaryNegate:
		return "!"
	case UnaryParens:
		return "()"
	case UnaryLength:
		return ".length()"
	default:
		return "?"
	}
}

func (u UnaryOp) eval(v Term) (Term, error) {
	switch u.Func {
	case UnaryParens:
		return v, nil
	case UnaryNegate:
		b, ok := v.(Bool)
		if !ok {
			return nil, fmt.Errorf("%w: negate expects Bool, got %T", ErrExprTypeMismatch, v)
		}
		return Bool(!b), nil
	case UnaryLength:
		switch t := v.(type) {
		case String:
			return Integer(runeLen(t)), nil
		case Set:
			return Integer(t.Len()), nil
		case Bytes:
			return Integer(len(t)), nil
		default:
			return nil, fmt.Errorf("%w: length expects String, Bytes or Set, got %T", ErrExprTypeMismatch, v)
		}
	default:
		return nil, fmt.Errorf("%w: unknown unary op %d", ErrExprStack, u.Func)
	}
}

// BinaryOpFunc names a binary operator.
type BinaryOpFunc byte

const (
	BinaryLessThan BinaryOpFunc = iota
	BinaryLessOrEqual
	BinaryGreaterThan
	BinaryGreaterOrEqual
	BinaryEqual
	BinaryAdd
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryPrefix
	BinarySuffix
	BinaryRegex
	BinaryAnd
	BinaryOr
	BinaryContains
	BinaryIntersection
	BinaryUnion
)

type BinaryOp struct {
	Func BinaryOpFunc
}

func (b BinaryOp) String() string {
	names := map[BinaryOpFunc]string{
		BinaryLessThan: "<", BinaryLessOrEqual: "<=", BinaryGreaterThan: ">",
		BinaryGreaterOrEqual: ">=", BinaryEqual: "==", BinaryAdd: "+",
		BinarySub: "-", BinaryMul: "*", BinaryDiv: "/", BinaryPrefix: ".starts_with()",
		BinarySuffix: ".ends_with()", BinaryRegex: ".matches()", BinaryAnd: "&&",
		BinaryOr: "||", BinaryContains: ".contains()", BinaryIntersection: ".intersection()",
		BinaryUnion: ".union()",
	}
	if n, ok := names[b.Func]; ok {
		return n
	}
	return "?"
}

func (op BinaryOp) eval(left, right Term, ctx EvalContext) (Term, error) {
	switch op.Func {
	case BinaryLessThan, BinaryLessOrEqual, BinaryGreaterThan, BinaryGreaterOrEqual:
		return op.evalOrdered(left, right)
	case BinaryEqual:
		if left.Type() != right.Type() {
			return nil, fmt.Errorf("%w: %s expects matching operand types, got %T and %T", ErrExprTypeMismatch, op, left, right)
		}
		return Bool(left.Equal(right)), nil
	case BinaryAdd, BinarySub, BinaryMul, BinaryDiv:
		return op.evalArith(left, right)
	case BinaryPrefix, BinarySuffix, BinaryRegex:
		if op.Func == BinaryRegex && !ctx.AllowRegexes {
			return nil, ErrExprRegexDisabled
		}
		return op.evalString(left, right)
	case BinaryAnd, BinaryOr:
		return op.evalBool(left, right)
	case BinaryContains:
		return op.evalContains(left, right)
	case BinaryIntersection:
		return op.evalSetSet(left, right, intersect)
	case BinaryUnion:
		return op.evalSetSet(left, right, union)
	default:
		return nil, fmt.Errorf("%w: unknown binary op %d", ErrExprStack, op.Func)
	}
}

func (op BinaryOp) evalOrdered(left, right Term) (Term, error) {
	var cmp int
	switch l := left.(type) {
	case Integer:
		r, ok := right.(Integer)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects matching Integer operands", ErrExprTypeMismatch, op)
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		default:
			cmp = 0
		}
	case Date:
		r, ok := right.(Date)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects matching Date operands", ErrExprTypeMismatch, op)
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		default:
			cmp = 0
		}
	case String:
		r, ok := right.(String)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects matching String operands", ErrExprTypeMismatch, op)
		}
		cmp = strings.Compare(string(l), string(r))
	default:
		return nil, fmt.Errorf("%w: %s not defined for %T", ErrExprTypeMismatch, op, left)
	}
	switch op.Func {
	case BinaryLessThan:
		return Bool(cmp < 0), nil
	case BinaryLessOrEqual:
		return Bool(cmp <= 0), nil
	case BinaryGreaterThan:
		return Bool(cmp > 0), nil
	default: // BinaryGreaterOrEqual
		return Bool(cmp >= 0), nil
	}
}

func (op BinaryOp) evalArith(left, right Term) (Term, error) {
	l, ok := left.(Integer)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects Integer operands, got %T", ErrExprTypeMismatch, op, left)
	}
	r, ok := right.(Integer)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects Integer operands, got %T", ErrExprTypeMismatch, op, right)
	}
	if op.Func == BinaryDiv && r == 0 {
		return nil, ErrExprDivByZero
	}
	bl := big.NewInt(int64(l))
	br := big.NewInt(int64(r))
	res := new(big.Int)
	switch op.Func {
	case BinaryAdd:
		res.Add(bl, br)
	case BinarySub:
		res.Sub(bl, br)
	case BinaryMul:
		res.Mul(bl, br)
	case BinaryDiv:
		res.Quo(bl, br)
	}
	if !res.IsInt64() {
		return nil, fmt.Errorf("%w: %s overflows Int64", ErrExprOverflow, op)
	}
	return Integer(res.Int64()), nil
}

func (op BinaryOp) evalString(left, right Term) (Term, error) {
	l, ok := left.(String)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects String left operand, got %T", ErrExprTypeMismatch, op, left)
	}
	r, ok := right.(String)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects String right operand, got %T", ErrExprTypeMismatch, op, right)
	}
	switch op.Func {
	case BinaryPrefix:
		return Bool(strings.HasPrefix(string(l), string(r))), nil
	case BinarySuffix:
		return Bool(strings.HasSuffix(string(l), string(r))), nil
	default: // BinaryRegex
		re, err := regexp.Compile(string(r))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid regex %q: %v", ErrExprTypeMismatch, r, err)
		}
		return Bool(re.MatchString(string(l))), nil
	}
}

func (op BinaryOp) evalBool(left, right Term) (Term, error) {
	l, ok := left.(Bool)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects Bool operands, got %T", ErrExprTypeMismatch, op, left)
	}
	r, ok := right.(Bool)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects Bool operands, got %T", ErrExprTypeMismatch, op, right)
	}
	if op.Func == BinaryAnd {
		return Bool(bool(l) && bool(r)), nil
	}
	return Bool(bool(l) || bool(r)), nil
}

// evalContains supports Set.contains(Set) (superset test) and
// Set.contains(scalar) (membership test), per spec.md §4.4. Membership
// against an element of a different type is a type error, not false,
// mirroring the teacher's Contains.Eval (datalog/expressions.go).
func (op BinaryOp) evalContains(left, right Term) (Term, error) {
	ls, ok := left.(Set)
	if !ok {
		return nil, fmt.Errorf("%w: contains expects Set left operand, got %T", ErrExprTypeMismatch, left)
	}
	if rs, ok := right.(Set); ok {
		for _, elt := range rs {
			found, err := setHasTyped(ls, elt)
			if err != nil {
				return nil, err
			}
			if !found {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	}
	found, err := setHasTyped(ls, right)
	if err != nil {
		return nil, err
	}
	return Bool(found), nil
}

// setHasTyped reports whether t occurs in s, raising a type-mismatch error
// the moment it finds a set element whose type differs from t's, rather
// than treating a type mismatch as "not found".
func setHasTyped(s Set, t Term) (bool, error) {
	for _, e := range s {
		if e.Type() != t.Type() {
			return false, fmt.Errorf("%w: contains expects matching element type, got %T in set vs %T", ErrExprTypeMismatch, e, t)
		}
		if e.Equal(t) {
			return true, nil
		}
	}
	return false, nil
}

func setHas(s Set, t Term) bool {
	for _, e := range s {
		if e.Equal(t) {
			return true
		}
	}
	return false
}

func (op BinaryOp) evalSetSet(left, right Term, fn func(a, b Set) Set) (Term, error) {
	ls, ok := left.(Set)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects Set operands, got %T", ErrExprTypeMismatch, op, left)
	}
	rs, ok := right.(Set)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects Set operands, got %T", ErrExprTypeMismatch, op, right)
	}
	return fn(ls, rs), nil
}

func intersect(a, b Set) Set {
	var out Set
	for _, e := range a {
		if setHas(b, e) {
			out = append(out, e)
		}
	}
	return out
}

func union(a, b Set) Set {
	out := make(Set, len(a))
	copy(out, a)
	for _, e := range b {
		if !setHas(out, e) {
			out = append(out, e)
		}
	}
	return out
}

// Expression is a postfix ("reverse Polish") program evaluated against a
// Binding by a small value stack, mirroring the teacher's
// datalog/expressions.go evaluator.
type Expression []Op

// Evaluate runs the expression against b, substituting any bound Variable
// value operands as it goes. It uses defaultEvalContext, in which every
// gated operator is enabled (used by direct unit tests of the interpreter);
// note that the zero EvalContext instead disables Regex. Callers that care
// about limits.AllowRegexes should use EvaluateWithContext.
func (e Expression) Evaluate(b Binding) (Term, error) {
	return e.EvaluateWithContext(b, defaultEvalContext())
}

// EvaluateWithContext is Evaluate with an explicit EvalContext, used by the
// rule/check/policy evaluators so limits.AllowRegexes reaches the Regex
// operator.
func (e Expression) EvaluateWithContext(b Binding, ctx EvalContext) (Term, error) {
	var stack []Term
	push := func(t Term) { stack = append(stack, t) }
	pop := func() (Term, error) {
		if len(stack) == 0 {
			return nil, fmt.Errorf("%w: pop on empty stack", ErrExprStack)
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, nil
	}

	for _, op := range e {
		switch op.Type {
		case OpTypeValue:
			v := op.Value
			if variable, ok := v.(Variable); ok {
				bound, ok := b.Get(variable)
				if !ok {
					return nil, fmt.Errorf("%w: %s", ErrExprUnknownVar, variable)
				}
				v = bound
			}
			push(v)
		case OpTypeUnary:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			res, err := op.Unary.eval(v)
			if err != nil {
				return nil, err
			}
			push(res)
		case OpTypeBinary:
			right, err := pop()
			if err != nil {
				return nil, err
			}
			left, err := pop()
			if err != nil {
				return nil, err
			}
			res, err := op.Binary.eval(left, right, ctx)
			if err != nil {
				return nil, err
			}
			push(res)
		default:
			return nil, fmt.Errorf("%w: unknown op type %d", ErrExprStack, op.Type)
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("%w: expression left %d values on the stack, expected 1", ErrExprStack, len(stack))
	}
	return stack[0], nil
}

// Print renders the expression's postfix program as a space-separated
// string for debugging (e.g. "1 2 +"), mirroring the teacher's
// Expression.Print.
func (e Expression) Print() string {
	var parts []string
	for _, op := range e {
		switch op.Type {
		case OpTypeValue:
			parts = append(parts, op.Value.String())
		case OpTypeUnary:
			parts = append(parts, op.Unary.String())
		case OpTypeBinary:
			parts = append(parts, op.Binary.String())
		}
	}
	return strings.Join(parts, " ")
}

// Satisfied evaluates e against b and requires a Bool(true) result; used by
// direct interpreter tests. SatisfiedWithContext is used by the engine.
func (e Expression) Satisfied(b Binding) (bool, error) {
	return e.SatisfiedWithContext(b, defaultEvalContext())
}

func (e Expression) SatisfiedWithContext(b Binding, ctx EvalContext) (bool, error) {
	v, err := e.EvaluateWithContext(b, ctx)
	if err != nil {
		return false, err
	}
	result, ok := v.(Bool)
	if !ok {
		return false, fmt.Errorf("%w: expression must evaluate to Bool, got %T", ErrExprTypeMismatch, v)
	}
	return bool(result), nil
}
