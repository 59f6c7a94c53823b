package parser

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/biscuit-auth/biscuit-datalog/datalog"
)

// lex tokenizes the surface syntax described in SPEC_FULL.md §6, grounded
// on the teacher's parser/grammar.go lexer definition — a hand-rolled
// symbol/variable/hex-string token set layered on participle's simple
// lexer rather than its default one, since this grammar's token shapes
// (#symbol, $variable, hex:...) don't fit a generic identifier lexer.
var lex = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Date", Pattern: `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})`},
	{Name: "HexString", Pattern: `hex:[0-9a-fA-F]+`},
	{Name: "Symbol", Pattern: `#[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Variable", Pattern: `\$[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Bool", Pattern: `true|false`},
	{Name: "Int", Pattern: `-?[0-9]+`},
	{Name: "Punct", Pattern: `<-|==|<=|>=|&&|\|\||[()\[\],.;+\-*/<>!]`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Whitespace", Pattern: `[ \t\n\r]+`},
})

var parserOptions = []participle.Option{
	participle.Lexer(lex),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(4),
}

// Symbol is a #-prefixed identifier term.
type Symbol string

func (s *Symbol) Capture(values []string) error {
	if len(values) != 1 || !strings.HasPrefix(values[0], "#") {
		return errors.New("parser: invalid symbol")
	}
	*s = Symbol(strings.TrimPrefix(values[0], "#"))
	return nil
}

// Variable is a $-prefixed identifier term.
type Variable string

func (v *Variable) Capture(values []string) error {
	if len(values) != 1 || !strings.HasPrefix(values[0], "$") {
		return errors.New("parser: invalid variable")
	}
	*v = Variable(strings.TrimPrefix(values[0], "$"))
	return nil
}

// Bool captures the "true"/"false" literal tokens.
type Bool bool

func (b *Bool) Capture(values []string) error {
	if len(values) != 1 {
		return errors.New("parser: invalid bool")
	}
	v, err := strconv.ParseBool(values[0])
	if err != nil {
		return err
	}
	*b = Bool(v)
	return nil
}

// HexString captures the hex:... byte-string literal, mirroring the
// teacher's custom HexString.Parse lexer hook in parser/grammar.go.
type HexString string

func (h *HexString) Parse(plex *lexer.PeekingLexer) error {
	token, err := plex.Peek(0)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(token.Value, "hex:") {
		return participle.NextMatch
	}
	if _, err := plex.Next(); err != nil {
		return err
	}
	*h = HexString(strings.TrimPrefix(token.Value, "hex:"))
	return nil
}

func (h HexString) Decode() ([]byte, error) {
	return hex.DecodeString(string(h))
}

// Term is a single datalog.Term literal in surface syntax.
type Term struct {
	Symbol   *Symbol   `@Symbol`
	Variable *Variable `| @Variable`
	Bytes    *HexString `| @@`
	Date     *string   `| @Date`
	Str      *string   `| @String`
	Int      *int64    `| @Int`
	Bool     *Bool     `| @Bool`
	Set      []*Term   `| "[" (@@ ("," @@)*)? "]"`
}

// Predicate is a name applied to an ordered list of terms.
type Predicate struct {
	Name  string  `@Ident`
	Terms []*Term `"(" (@@ ("," @@)*)? ")"`
}

// Fact is a single ground predicate statement, terminated by ".".
type Fact struct {
	Pred *Predicate `@@ "."`
}

// BodyItem is one comma-separated element of a rule/query body: either a
// predicate or a guard expression. Predicate is tried first, so a bare
// expression never gets misread as a zero-arity predicate call followed by
// stray tokens.
type BodyItem struct {
	Predicate *Predicate `@@`
	Expr      *Expr      `| @@`
}

// Rule is a head predicate derived from a body of predicates and guards,
// terminated by ".".
type Rule struct {
	Head  *Predicate  `@@ "<-"`
	Items []*BodyItem `@@ ("," @@)* "."`
}

// QueryItem is a body (no head), used by checks and policies.
type QueryItem struct {
	Items []*BodyItem `@@ ("," @@)*`
}

// Check is "check if" a disjunction of query items, terminated by ";".
type Check struct {
	Queries []*QueryItem `"check" "if" @@ ("or" @@)* ";"`
}

// Policy is "allow if"/"deny if" a disjunction of query items, terminated
// by ";".
type Policy struct {
	Kind    string       `@("allow" | "deny")`
	Queries []*QueryItem `"if" @@ ("or" @@)* ";"`
}

// --- Expression grammar: precedence climbing over explicit layers ---
// (Or > And > Comparison > Additive > Multiplicative > Unary > Postfix >
// Primary), grounded in the same recursive-descent-over-participle-tags
// style the teacher uses for its (much flatter) Constraint grammar.

type Expr struct {
	Or *OrExpr `@@`
}

type OrExpr struct {
	Left  *AndExpr `@@`
	Right []*AndExpr `("||" @@)*`
}

type AndExpr struct {
	Left  *CmpExpr `@@`
	Right []*CmpExpr `("&&" @@)*`
}

type CmpExpr struct {
	Left  *AddExpr `@@`
	Op    *string  `(@("=="|"<="|">="|"<"|">")`
	Right *AddExpr `@@)?`
}

type AddExpr struct {
	Left *MulExpr `@@`
	Rest []*AddOp `@@*`
}

type AddOp struct {
	Op    string   `@("+"|"-")`
	Right *MulExpr `@@`
}

type MulExpr struct {
	Left *UnaryExpr `@@`
	Rest []*MulOp   `@@*`
}

type MulOp struct {
	Op    string     `@("*"|"/")`
	Right *UnaryExpr `@@`
}

type UnaryExpr struct {
	Negate  bool     `@"!"?`
	Postfix *Postfix `@@`
}

type Postfix struct {
	Primary *Primary      `@@`
	Calls   []*MethodCall `("." @@)*`
}

type MethodCall struct {
	Name string  `@Ident "("`
	Args []*Expr `(@@ ("," @@)*)? ")"`
}

type Primary struct {
	Term *Term `@@`
	Sub  *Expr `| "(" @@ ")"`
}

func buildParser[T any]() *participle.Parser[T] {
	return participle.MustBuild[T](parserOptions...)
}
