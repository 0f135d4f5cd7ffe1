package formula

import (
	"math"
	"strings"

	"staats/internal/dataset"
	"staats/internal/schema"
)

// Operator is a condition operator
type Operator uint8

const (
	OpEq Operator = iota + 1
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
	OpContains
	OpNotContains
	OpContainsOnly
	OpNotContainsOnly
)

var operatorSymbols = map[Operator]string{
	OpEq:              "=",
	OpNe:              "!=",
	OpGt:              ">",
	OpLt:              "<",
	OpGe:              ">=",
	OpLe:              "<=",
	OpContains:        "C",
	OpNotContains:     "NC",
	OpContainsOnly:    "CO",
	OpNotContainsOnly: "NCO",
}

// ParseOperator maps a symbol to its operator
func ParseOperator(s string) (Operator, bool) {
	for op, sym := range operatorSymbols {
		if sym == s {
			return op, true
		}
	}
	return 0, false
}

// String returns the formula symbol
func (o Operator) String() string {
	if s, ok := operatorSymbols[o]; ok {
		return s
	}
	return "?"
}

// IsSet reports whether o is one of the multi-choice operators C, NC, CO, NCO
func (o Operator) IsSet() bool {
	return o >= OpContains && o <= OpNotContainsOnly
}

// allowedFor reports whether the question type accepts the operator
func (o Operator) allowedFor(t schema.QuestionType) bool {
	switch t {
	case schema.QualiMultiple:
		return o.IsSet()
	case schema.QualiUnique, schema.Numeric:
		return !o.IsSet()
	}
	return false
}

// Condition is a compiled predicate over one variable. Set operators use
// Codes; comparison operators use Threshold.
type Condition struct {
	Var       string
	Op        Operator
	Codes     []int
	Threshold float64
	Type      schema.QuestionType
	// Symbolic marks the X placeholder of class formulas
	Symbolic bool
}

// String renders the canonical form
func (c Condition) String() string {
	var b strings.Builder
	if c.Symbolic {
		b.WriteString("X")
	} else {
		b.WriteString(`["`)
		b.WriteString(c.Var)
		b.WriteString(`"`)
	}
	b.WriteString(c.Op.String())
	if c.Op.IsSet() {
		b.WriteString(dataset.JoinCodes(c.Codes))
	} else {
		b.WriteString(dataset.FormatNumber(c.Threshold))
	}
	if !c.Symbolic {
		b.WriteString("]")
	}
	return b.String()
}

// Clause is a conjunction of conditions
type Clause []Condition

// String renders the canonical form
func (cl Clause) String() string {
	parts := make([]string, len(cl))
	for i, c := range cl {
		parts[i] = c.String()
	}
	return strings.Join(parts, " and ")
}

// Vars returns the distinct variables referenced, in order of appearance
func (cl Clause) Vars() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range cl {
		if c.Symbolic || seen[c.Var] {
			continue
		}
		seen[c.Var] = true
		out = append(out, c.Var)
	}
	return out
}

// Rule pairs an output (a code, or a weight for weight formulas) with a clause
type Rule struct {
	Output float64
	Clause Clause
}

// Code returns the output as an integer code
func (r Rule) Code() int { return int(math.Round(r.Output)) }

// String renders the canonical "output: clause" line
func (r Rule) String() string {
	return dataset.FormatNumber(r.Output) + ": " + r.Clause.String()
}

// Formula is an ordered rule list; evaluation scans it top to bottom
type Formula []Rule

// String renders one rule per line
func (f Formula) String() string {
	lines := make([]string, len(f))
	for i, r := range f {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// Vars returns the distinct variables referenced by all rules
func (f Formula) Vars() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range f {
		for _, v := range r.Clause.Vars() {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
