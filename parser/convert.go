package parser

import (
	"errors"
	"fmt"
	"time"

	"github.com/biscuit-auth/biscuit-datalog/datalog"
)

var (
	ErrVariableInFact    = errors.New("parser: a fact cannot contain a variable")
	ErrVariableInSet     = errors.New("parser: a set element cannot be a variable")
	ErrUnsupportedTerm   = errors.New("parser: unsupported term")
	ErrUnsupportedMethod = errors.New("parser: unsupported method call")
	ErrMethodArity       = errors.New("parser: wrong number of arguments for method call")
)

func (t *Term) toDatalog() (datalog.Term, error) {
	switch {
	case t.Symbol != nil:
		return datalog.Symbol(*t.Symbol), nil
	case t.Variable != nil:
		return datalog.Variable(*t.Variable), nil
	case t.Bytes != nil:
		b, err := t.Bytes.Decode()
		if err != nil {
			return nil, fmt.Errorf("parser: invalid hex string: %w", err)
		}
		return datalog.Bytes(b), nil
	case t.Date != nil:
		d, err := time.Parse(time.RFC3339, *t.Date)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid date: %w", err)
		}
		return datalog.DateFromTime(d), nil
	case t.Str != nil:
		return datalog.String(unquote(*t.Str)), nil
	case t.Int != nil:
		return datalog.Integer(*t.Int), nil
	case t.Bool != nil:
		return datalog.Bool(*t.Bool), nil
	case t.Set != nil:
		set := make(datalog.Set, 0, len(t.Set))
		for _, elt := range t.Set {
			term, err := elt.toDatalog()
			if err != nil {
				return nil, err
			}
			if term.Type() == datalog.TermTypeVariable {
				return nil, ErrVariableInSet
			}
			set = append(set, term)
		}
		return set, nil
	default:
		return nil, ErrUnsupportedTerm
	}
}

// unquote strips the surrounding double quotes the lexer leaves in place
// and removes each escaping backslash, keeping the character after it
// literally (so \" gives " and \\ gives \; \n gives n, not a newline).
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	inner := s[1 : len(s)-1]
	out := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		out = append(out, inner[i])
	}
	return string(out)
}

func (p *Predicate) toDatalog() (datalog.Predicate, error) {
	terms := make([]datalog.Term, 0, len(p.Terms))
	for _, t := range p.Terms {
		dt, err := t.toDatalog()
		if err != nil {
			return datalog.Predicate{}, err
		}
		terms = append(terms, dt)
	}
	return datalog.Predicate{Name: p.Name, Terms: terms}, nil
}

func (f *Fact) toDatalog() (datalog.Fact, error) {
	pred, err := f.Pred.toDatalog()
	if err != nil {
		return datalog.Fact{}, err
	}
	for _, t := range pred.Terms {
		if t.Type() == datalog.TermTypeVariable {
			return datalog.Fact{}, ErrVariableInFact
		}
	}
	return datalog.Fact{Predicate: pred}, nil
}

// splitItems separates a BodyItem list into its predicate and expression
// members, preserving each sublist's relative order.
func splitItems(items []*BodyItem) ([]datalog.Predicate, []datalog.Expression, error) {
	var preds []datalog.Predicate
	var exprs []datalog.Expression
	for _, item := range items {
		switch {
		case item.Predicate != nil:
			p, err := item.Predicate.toDatalog()
			if err != nil {
				return nil, nil, err
			}
			preds = append(preds, p)
		case item.Expr != nil:
			e, err := item.Expr.compile()
			if err != nil {
				return nil, nil, err
			}
			exprs = append(exprs, e)
		default:
			return nil, nil, errors.New("parser: empty body item")
		}
	}
	return preds, exprs, nil
}

func (r *Rule) toDatalog() (datalog.Rule, error) {
	head, err := r.Head.toDatalog()
	if err != nil {
		return datalog.Rule{}, err
	}
	body, exprs, err := splitItems(r.Items)
	if err != nil {
		return datalog.Rule{}, err
	}
	return datalog.NewRule(head, body, exprs)
}

func (q *QueryItem) toDatalog() (datalog.QueryItem, error) {
	body, exprs, err := splitItems(q.Items)
	if err != nil {
		return datalog.QueryItem{}, err
	}
	return datalog.NewQueryItem(body, exprs)
}

func (c *Check) toDatalog() (datalog.Check, error) {
	queries := make([]datalog.QueryItem, len(c.Queries))
	for i, q := range c.Queries {
		dq, err := q.toDatalog()
		if err != nil {
			return datalog.Check{}, err
		}
		queries[i] = dq
	}
	return datalog.NewCheck(queries...)
}

func (p *Policy) toDatalog() (datalog.Policy, error) {
	kind := datalog.PolicyAllow
	if p.Kind == "deny" {
		kind = datalog.PolicyDeny
	}
	queries := make([]datalog.QueryItem, len(p.Queries))
	for i, q := range p.Queries {
		dq, err := q.toDatalog()
		if err != nil {
			return datalog.Policy{}, err
		}
		queries[i] = dq
	}
	return datalog.Policy{Kind: kind, Queries: queries}, nil
}

// --- Expression compilation: each grammar layer emits its operand(s) then
// folds in its own operators, left to right, producing the postfix
// datalog.Expression program the engine evaluates.

func (e *Expr) compile() (datalog.Expression, error) {
	var out datalog.Expression
	if err := e.Or.emit(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OrExpr) emit(out *datalog.Expression) error {
	if err := o.Left.emit(out); err != nil {
		return err
	}
	for _, r := range o.Right {
		if err := r.emit(out); err != nil {
			return err
		}
		*out = append(*out, datalog.BinaryOpNode(datalog.BinaryOp{Func: datalog.BinaryOr}))
	}
	return nil
}

func (a *AndExpr) emit(out *datalog.Expression) error {
	if err := a.Left.emit(out); err != nil {
		return err
	}
	for _, r := range a.Right {
		if err := r.emit(out); err != nil {
			return err
		}
		*out = append(*out, datalog.BinaryOpNode(datalog.BinaryOp{Func: datalog.BinaryAnd}))
	}
	return nil
}

var cmpOps = map[string]datalog.BinaryOpFunc{
	"==": datalog.BinaryEqual,
	"<=": datalog.BinaryLessOrEqual,
	">=": datalog.BinaryGreaterOrEqual,
	"<":  datalog.BinaryLessThan,
	">":  datalog.BinaryGreaterThan,
}

func (c *CmpExpr) emit(out *datalog.Expression) error {
	if err := c.Left.emit(out); err != nil {
		return err
	}
	if c.Op == nil {
		return nil
	}
	if err := c.Right.emit(out); err != nil {
		return err
	}
	op, ok := cmpOps[*c.Op]
	if !ok {
		return fmt.Errorf("parser: unsupported comparison operator %q", *c.Op)
	}
	*out = append(*out, datalog.BinaryOpNode(datalog.BinaryOp{Func: op}))
	return nil
}

func (a *AddExpr) emit(out *datalog.Expression) error {
	if err := a.Left.emit(out); err != nil {
		return err
	}
	for _, rest := range a.Rest {
		if err := rest.Right.emit(out); err != nil {
			return err
		}
		fn := datalog.BinaryAdd
		if rest.Op == "-" {
			fn = datalog.BinarySub
		}
		*out = append(*out, datalog.BinaryOpNode(datalog.BinaryOp{Func: fn}))
	}
	return nil
}

func (m *MulExpr) emit(out *datalog.Expression) error {
	if err := m.Left.emit(out); err != nil {
		return err
	}
	for _, rest := range m.Rest {
		if err := rest.Right.emit(out); err != nil {
			return err
		}
		fn := datalog.BinaryMul
		if rest.Op == "/" {
			fn = datalog.BinaryDiv
		}
		*out = append(*out, datalog.BinaryOpNode(datalog.BinaryOp{Func: fn}))
	}
	return nil
}

func (u *UnaryExpr) emit(out *datalog.Expression) error {
	if err := u.Postfix.emit(out); err != nil {
		return err
	}
	if u.Negate {
		*out = append(*out, datalog.UnaryOpNode(datalog.UnaryOp{Func: datalog.UnaryNegate}))
	}
	return nil
}

var binaryMethods = map[string]datalog.BinaryOpFunc{
	"contains":     datalog.BinaryContains,
	"starts_with":  datalog.BinaryPrefix,
	"ends_with":    datalog.BinarySuffix,
	"matches":      datalog.BinaryRegex,
	"intersection": datalog.BinaryIntersection,
	"union":        datalog.BinaryUnion,
}

func (p *Postfix) emit(out *datalog.Expression) error {
	if err := p.Primary.emit(out); err != nil {
		return err
	}
	for _, call := range p.Calls {
		if call.Name == "length" {
			if len(call.Args) != 0 {
				return fmt.Errorf("%w: length() takes no arguments", ErrMethodArity)
			}
			*out = append(*out, datalog.UnaryOpNode(datalog.UnaryOp{Func: datalog.UnaryLength}))
			continue
		}
		fn, ok := binaryMethods[call.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedMethod, call.Name)
		}
		if len(call.Args) != 1 {
			return fmt.Errorf("%w: %s() takes exactly one argument", ErrMethodArity, call.Name)
		}
		if err := call.Args[0].Or.emit(out); err != nil {
			return err
		}
		*out = append(*out, datalog.BinaryOpNode(datalog.BinaryOp{Func: fn}))
	}
	return nil
}

func (p *Primary) emit(out *datalog.Expression) error {
	if p.Term != nil {
		t, err := p.Term.toDatalog()
		if err != nil {
			return err
		}
		*out = append(*out, datalog.ValueOp(t))
		return nil
	}
	return p.Sub.Or.emit(out)
}
