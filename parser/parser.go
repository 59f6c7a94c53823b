package parser

import (
	"github.com/biscuit-auth/biscuit-datalog/datalog"
)

var (
	factParser      = buildParser[Fact]()
	ruleParser      = buildParser[Rule]()
	checkParser     = buildParser[Check]()
	policyParser    = buildParser[Policy]()
	exprParser      = buildParser[Expr]()
	queryItemParser = buildParser[QueryItem]()
)

// ParseFact parses a single ground predicate statement such as
// `right(#authority, "file1", #read).`.
func ParseFact(src string) (datalog.Fact, error) {
	ast, err := factParser.ParseString("", src)
	if err != nil {
		return datalog.Fact{}, err
	}
	return ast.toDatalog()
}

// ParseRule parses a rule of the form `head(...) <- body... .`.
func ParseRule(src string) (datalog.Rule, error) {
	ast, err := ruleParser.ParseString("", src)
	if err != nil {
		return datalog.Rule{}, err
	}
	return ast.toDatalog()
}

// ParseCheck parses a `check if ... or ... ;` statement.
func ParseCheck(src string) (datalog.Check, error) {
	ast, err := checkParser.ParseString("", src)
	if err != nil {
		return datalog.Check{}, err
	}
	return ast.toDatalog()
}

// ParsePolicy parses an `allow if ...;` or `deny if ...;` statement.
func ParsePolicy(src string) (datalog.Policy, error) {
	ast, err := policyParser.ParseString("", src)
	if err != nil {
		return datalog.Policy{}, err
	}
	return ast.toDatalog()
}

// ParseQueryItem parses a single bare query item (one comma-separated body,
// no "check"/"allow"/"deny" keyword, no disjunction) — useful for testing
// and for embedding in larger surface syntax built elsewhere.
func ParseQueryItem(src string) (datalog.QueryItem, error) {
	ast, err := queryItemParser.ParseString("", src)
	if err != nil {
		return datalog.QueryItem{}, err
	}
	return ast.toDatalog()
}

// ParseExpression parses a standalone guard expression, with no trailing
// terminator, e.g. `1 + 2 * 3 - 4 / 2 == 5`.
func ParseExpression(src string) (datalog.Expression, error) {
	ast, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, err
	}
	return ast.compile()
}
