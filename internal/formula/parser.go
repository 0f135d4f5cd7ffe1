package formula

import (
	"math"
	"strconv"
	"strings"

	apperrors "staats/internal/errors"
	"staats/internal/schema"
)

// Resolver looks variables up while compiling. *schema.Schema implements it.
type Resolver interface {
	Question(name string) (schema.Question, bool)
}

// ClassVar is the placeholder variable of class formulas
const ClassVar = "X"

// RuleMode selects how rule outputs are read
type RuleMode int

const (
	// CodeRules require integer outputs (qualitative recodes)
	CodeRules RuleMode = iota
	// WeightRules accept any non-negative number (weight recodes)
	WeightRules
)

type parser struct {
	src  string
	toks []token
	pos  int
}

func newParser(src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{src: smartQuotes.Replace(src), toks: toks}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, msg string) *ParseError {
	return newParseError(p.src, t.pos, msg)
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected "+what)
	}
	return t, nil
}

func (p *parser) expectEOF() error {
	if t := p.peek(); t.kind != tokEOF {
		return p.errorf(t, "unexpected trailing input")
	}
	return nil
}

// isKeyword matches identifiers case-insensitively
func isKeyword(t token, kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

// clause := term ("and" term)*
func (p *parser) clause(term func() (Condition, error)) (Clause, error) {
	var cl Clause
	for {
		c, err := term()
		if err != nil {
			return nil, err
		}
		cl = append(cl, c)
		t := p.peek()
		switch {
		case isKeyword(t, "and"):
			p.next()
		case isKeyword(t, "or"):
			return nil, p.errorf(t, "OR is not supported; write each alternative as its own rule")
		default:
			return cl, nil
		}
	}
}

// bracketTerm := "[" STRING op values "]"
func (p *parser) bracketTerm() (Condition, error) {
	if _, err := p.expect(tokLBracket, `'["'`); err != nil {
		return Condition{}, err
	}
	name, err := p.expect(tokString, "quoted variable name")
	if err != nil {
		return Condition{}, err
	}
	if strings.TrimSpace(name.text) == "" {
		return Condition{}, p.errorf(name, "empty variable name")
	}
	op, err := p.operator()
	if err != nil {
		return Condition{}, err
	}
	c := Condition{Var: name.text, Op: op}
	if err := p.operands(&c); err != nil {
		return Condition{}, err
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return Condition{}, err
	}
	return c, nil
}

// symbolTerm := "X" op number
func (p *parser) symbolTerm() (Condition, error) {
	t := p.next()
	if t.kind != tokIdent || t.text != ClassVar {
		return Condition{}, p.errorf(t, "expected X")
	}
	op, err := p.operator()
	if err != nil {
		return Condition{}, err
	}
	if op.IsSet() {
		return Condition{}, p.errorf(t, "class formulas only take comparison operators")
	}
	c := Condition{Var: ClassVar, Op: op, Symbolic: true, Type: schema.Numeric}
	if err := p.operands(&c); err != nil {
		return Condition{}, err
	}
	return c, nil
}

func (p *parser) operator() (Operator, error) {
	t := p.next()
	if t.kind == tokCompare || t.kind == tokIdent {
		if op, ok := ParseOperator(t.text); ok {
			return op, nil
		}
	}
	return 0, p.errorf(t, "expected operator (=, !=, >, <, >=, <=, C, NC, CO, NCO)")
}

func (p *parser) number() (float64, token, error) {
	neg := false
	first := p.peek()
	if first.kind == tokMinus {
		p.next()
		neg = true
	}
	t := p.next()
	if t.kind != tokNumber {
		return 0, t, p.errorf(t, "expected number")
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return 0, t, p.errorf(t, "invalid number")
	}
	if neg {
		f = -f
	}
	return f, first, nil
}

// operands reads a comma-separated code list for set operators, a single
// threshold otherwise.
func (p *parser) operands(c *Condition) error {
	if !c.Op.IsSet() {
		f, _, err := p.number()
		if err != nil {
			return err
		}
		if t := p.peek(); t.kind == tokComma {
			return p.errorf(t, "comparison operators take a single value")
		}
		c.Threshold = f
		return nil
	}
	for {
		f, t, err := p.number()
		if err != nil {
			return err
		}
		if f != math.Trunc(f) {
			return p.errorf(t, "codes must be integers")
		}
		c.Codes = append(c.Codes, int(f))
		if p.peek().kind != tokComma {
			return nil
		}
		p.next()
	}
}

// resolve binds each condition to its question type. All problems of the
// clause are returned together.
func resolve(cl Clause, r Resolver) error {
	var issues apperrors.Issues
	for i := range cl {
		c := &cl[i]
		if c.Symbolic {
			continue
		}
		q, ok := r.Question(c.Var)
		if !ok {
			issues.AddError("", apperrors.ErrTypeValidation, &ValidationError{Var: c.Var, Msg: "not defined in schema"})
			continue
		}
		if !c.Op.allowedFor(q.Type) {
			issues.AddError("", apperrors.ErrTypeValidation, &ValidationError{
				Var: c.Var,
				Msg: "operator " + c.Op.String() + " is not allowed on " + q.Type.String() + " variables",
			})
			continue
		}
		c.Type = q.Type
	}
	return issues.Err()
}

// ParseClause compiles a single clause such as `["Age">=18] and ["Q10"C2,3]`
func ParseClause(src string, r Resolver) (Clause, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "empty formula")
	}
	cl, err := p.clause(p.bracketTerm)
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	if err := resolve(cl, r); err != nil {
		return nil, err
	}
	return cl, nil
}

// ParseClassClause compiles a class bin such as `X>=18 and X<30`
func ParseClassClause(src string) (Clause, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "empty formula")
	}
	cl, err := p.clause(p.symbolTerm)
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return cl, nil
}

// ParseRules compiles a rule formula: one `<output>: <clause>` per line,
// blank lines ignored. The first syntax error aborts; unknown variables and
// operator mismatches are collected across all lines.
func ParseRules(src string, r Resolver, mode RuleMode) (Formula, error) {
	var (
		f      Formula
		issues apperrors.Issues
	)
	for _, line := range splitLines(src) {
		rule, err := parseRuleLine(line, mode)
		if err != nil {
			return nil, err
		}
		if err := resolve(rule.Clause, r); err != nil {
			issues.AddError("", apperrors.ErrTypeValidation, err)
			continue
		}
		f = append(f, rule)
	}
	if len(issues) > 0 {
		return nil, issues
	}
	if len(f) == 0 {
		return nil, newParseError(src, 0, "formula has no rules")
	}
	return f, nil
}

func parseRuleLine(line string, mode RuleMode) (Rule, error) {
	p, err := newParser(line)
	if err != nil {
		return Rule{}, err
	}
	out, t, err := p.number()
	if err != nil {
		return Rule{}, p.errorf(t, "rule must start with '<output>:'")
	}
	switch mode {
	case CodeRules:
		if out != math.Trunc(out) {
			return Rule{}, p.errorf(t, "rule output must be an integer code")
		}
	case WeightRules:
		if out < 0 {
			return Rule{}, p.errorf(t, "weights must not be negative")
		}
	}
	if _, err := p.expect(tokColon, "':' after rule output"); err != nil {
		return Rule{}, err
	}
	cl, err := p.clause(p.bracketTerm)
	if err != nil {
		return Rule{}, err
	}
	if err := p.expectEOF(); err != nil {
		return Rule{}, err
	}
	return Rule{Output: out, Clause: cl}, nil
}

// ParseReference reads a formula made of a single variable reference, `["Q23A"]`
func ParseReference(src string, r Resolver) (schema.Question, error) {
	p, err := newParser(src)
	if err != nil {
		return schema.Question{}, err
	}
	if _, err := p.expect(tokLBracket, `'["'`); err != nil {
		return schema.Question{}, err
	}
	name, err := p.expect(tokString, "quoted variable name")
	if err != nil {
		return schema.Question{}, err
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return schema.Question{}, err
	}
	if err := p.expectEOF(); err != nil {
		return schema.Question{}, err
	}
	q, ok := r.Question(name.text)
	if !ok {
		return schema.Question{}, &ValidationError{Var: name.text, Msg: "not defined in schema"}
	}
	return q, nil
}

func splitLines(src string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(src, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
