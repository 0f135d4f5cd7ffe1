package formula

import (
	"strconv"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/schema"
)

// Expr is a compiled arithmetic expression over numeric variables. Eval
// reports false when the result is missing: an operand was NA or a divisor
// was zero.
type Expr interface {
	Eval(row dataset.Row) (float64, bool)
	String() string
	vars(out []string) []string
}

// ExprVars returns the distinct variables referenced by e
func ExprVars(e Expr) []string {
	all := e.vars(nil)
	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, v := range all {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

type refExpr struct{ name string }

func (e refExpr) Eval(row dataset.Row) (float64, bool) { return row.Value(e.name).Float() }
func (e refExpr) String() string                       { return `["` + e.name + `"]` }
func (e refExpr) vars(out []string) []string           { return append(out, e.name) }

type numExpr struct{ v float64 }

func (e numExpr) Eval(dataset.Row) (float64, bool) { return e.v, true }
func (e numExpr) String() string                   { return dataset.FormatNumber(e.v) }
func (e numExpr) vars(out []string) []string       { return out }

type negExpr struct{ x Expr }

func (e negExpr) Eval(row dataset.Row) (float64, bool) {
	v, ok := e.x.Eval(row)
	return -v, ok
}

func (e negExpr) String() string {
	if _, ok := e.x.(binExpr); ok {
		return "-(" + e.x.String() + ")"
	}
	return "-" + e.x.String()
}

func (e negExpr) vars(out []string) []string { return e.x.vars(out) }

type binExpr struct {
	op   rune
	l, r Expr
}

func (e binExpr) Eval(row dataset.Row) (float64, bool) {
	l, ok := e.l.Eval(row)
	if !ok {
		return 0, false
	}
	r, ok := e.r.Eval(row)
	if !ok {
		return 0, false
	}
	switch e.op {
	case '+':
		return l + r, true
	case '-':
		return l - r, true
	case '*':
		return l * r, true
	case '/':
		if r == 0 {
			return 0, false
		}
		return l / r, true
	}
	return 0, false
}

func (e binExpr) String() string {
	return operandString(e.l) + " " + string(e.op) + " " + operandString(e.r)
}

func (e binExpr) vars(out []string) []string { return e.r.vars(e.l.vars(out)) }

func operandString(e Expr) string {
	if _, ok := e.(binExpr); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// ParseExpr compiles a numeric recode expression such as `(["A"]+["B"])/2`.
// Every referenced variable must be Numeric.
func ParseExpr(src string, r Resolver) (Expr, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "empty expression")
	}
	e, err := p.sum()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	var issues apperrors.Issues
	for _, name := range ExprVars(e) {
		q, ok := r.Question(name)
		switch {
		case !ok:
			issues.AddError("", apperrors.ErrTypeValidation, &ValidationError{Var: name, Msg: "not defined in schema"})
		case q.Type != schema.Numeric:
			issues.AddError("", apperrors.ErrTypeValidation, &ValidationError{
				Var: name,
				Msg: "arithmetic needs a Numeric variable, got " + q.Type.String(),
			})
		}
	}
	if err := issues.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

// sum := product (("+"|"-") product)*
func (p *parser) sum() (Expr, error) {
	l, err := p.product()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return l, nil
		}
		p.next()
		r, err := p.product()
		if err != nil {
			return nil, err
		}
		l = binExpr{op: rune(t.text[0]), l: l, r: r}
	}
}

// product := unary (("*"|"/") unary)*
func (p *parser) product() (Expr, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash {
			return l, nil
		}
		p.next()
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = binExpr{op: rune(t.text[0]), l: l, r: r}
	}
}

// unary := "-" unary | primary
func (p *parser) unary() (Expr, error) {
	if p.peek().kind == tokMinus {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return negExpr{x: x}, nil
	}
	return p.primary()
}

// primary := number | `["name"]` | "(" sum ")"
func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number")
		}
		return numExpr{v: f}, nil
	case tokLBracket:
		name, err := p.expect(tokString, "quoted variable name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return refExpr{name: name.text}, nil
	case tokLParen:
		e, err := p.sum()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, p.errorf(t, "expected number, variable or '('")
}
