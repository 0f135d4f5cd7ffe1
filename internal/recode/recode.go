package recode

import (
	"fmt"
	"sort"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/formula"
	"staats/internal/schema"
)

// Recode is a derived-variable definition. Formula holds rule lines for the
// rule-based kinds, an arithmetic expression for Numeric, and a single
// reference such as ["Q23A"] for NumberOfAnswers and Combination.
type Recode struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Kind    Kind   `json:"kind" yaml:"kind" validate:"required"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Formula string `json:"formula" yaml:"formula" validate:"required"`
	// OptionNA turns rows that match no rule into missing values instead of
	// validation issues.
	OptionNA bool             `json:"option_na" yaml:"option_na"`
	Codes    schema.CodeTable `json:"codes,omitempty" yaml:"codes,omitempty"`
	// Source is the multi-choice variable QualiMultiIni extends. Defaults to
	// the first variable the formula references.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Entity names the recode in issue lists
func (r Recode) Entity() string { return fmt.Sprintf("recode %q", r.Name) }

// compiled is a recode resolved against the schema it will run on
type compiled struct {
	Recode
	rules  formula.Formula
	expr   formula.Expr
	source string
	deps   []string
	output schema.Question
}

// compile parses the formula and derives the output question. It does not
// touch s.
func compile(r Recode, s *schema.Schema) (*compiled, error) {
	c := &compiled{Recode: r}
	var err error

	if r.Kind.IsRuleBased() {
		mode := formula.CodeRules
		if r.Kind == Weight {
			mode = formula.WeightRules
		}
		if c.rules, err = formula.ParseRules(r.Formula, s, mode); err != nil {
			return nil, err
		}
		c.deps = c.rules.Vars()
		if r.Kind == QualiMultiIni {
			c.source = r.Source
			if c.source == "" {
				c.source = c.deps[0]
			}
			if err := requireMultiple(s, c.source); err != nil {
				return nil, err
			}
			c.deps = appendUnique(c.deps, c.source)
		}
		c.output = c.outputQuestion(s)
		return c, nil
	}

	switch r.Kind {
	case Numeric:
		if c.expr, err = formula.ParseExpr(r.Formula, s); err != nil {
			return nil, err
		}
		c.deps = formula.ExprVars(c.expr)
	case NumberOfAnswers, Combination:
		q, err := formula.ParseReference(r.Formula, s)
		if err != nil {
			return nil, err
		}
		if err := requireMultiple(s, q.Name); err != nil {
			return nil, err
		}
		c.source = q.Name
		c.deps = []string{q.Name}
	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown recode kind %q", r.Kind))
	}

	c.output = c.outputQuestion(s)
	return c, nil
}

func requireMultiple(s *schema.Schema, name string) error {
	q, ok := s.Question(name)
	if !ok {
		return &formula.ValidationError{Var: name, Msg: "not defined in schema"}
	}
	if q.Type != schema.QualiMultiple {
		return &formula.ValidationError{Var: name, Msg: "must be a QualiMultiple variable, got " + q.Type.String()}
	}
	return nil
}

// outputQuestion describes the column the recode produces. Combination gets
// a provisional code table until its run assigns the real one.
func (c *compiled) outputQuestion(s *schema.Schema) schema.Question {
	q := schema.Question{Name: c.Name, Label: c.Label}
	if q.Label == "" {
		q.Label = c.Name
	}
	switch c.Kind {
	case QualiUnique:
		q.Type = schema.QualiUnique
		q.Codes = ruleCodes(c.Codes, c.rules)
	case QualiMultiple:
		q.Type = schema.QualiMultiple
		q.Codes = ruleCodes(c.Codes, c.rules)
	case QualiMultiIni:
		src, _ := s.Question(c.source)
		q.Type = schema.QualiMultiple
		q.Codes = src.Codes.Merge(ruleCodes(c.Codes, c.rules))
	case Combination:
		src, _ := s.Question(c.source)
		q.Type = schema.QualiUnique
		q.Codes = src.Codes
	default:
		q.Type = schema.Numeric
	}
	return q
}

// ruleCodes completes the declared code table with the rule outputs that have
// no label, labelled by their number.
func ruleCodes(declared schema.CodeTable, rules formula.Formula) schema.CodeTable {
	out := append(schema.CodeTable(nil), declared...)
	for _, r := range rules {
		code := r.Code()
		if !out.Has(code) {
			out = append(out, schema.Code{Value: code, Label: dataset.FormatNumber(float64(code))})
		}
	}
	if len(declared) == 0 {
		sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
