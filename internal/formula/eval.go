package formula

import (
	"staats/internal/dataset"
)

// Holds evaluates c against v. A missing response is false for every operator.
func (c Condition) Holds(v dataset.Value) bool {
	return c.holds(v, false)
}

func (c Condition) holds(v dataset.Value, naPasses bool) bool {
	if v.IsNA() {
		return naPasses
	}
	if c.Op.IsSet() {
		set, ok := v.CodeSet()
		if !ok {
			return false
		}
		return setHolds(c.Op, set, c.Codes)
	}
	f, ok := v.Float()
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return f == c.Threshold
	case OpNe:
		return f != c.Threshold
	case OpGt:
		return f > c.Threshold
	case OpLt:
		return f < c.Threshold
	case OpGe:
		return f >= c.Threshold
	case OpLe:
		return f <= c.Threshold
	}
	return false
}

// setHolds applies a multi-choice operator to the respondent's set s and the
// operand set vs.
func setHolds(op Operator, s, vs []int) bool {
	switch op {
	case OpContains:
		return intersects(s, vs)
	case OpNotContains:
		return !intersects(s, vs)
	case OpContainsOnly:
		return containsOnly(s, vs)
	case OpNotContainsOnly:
		return !containsOnly(s, vs)
	}
	return false
}

func intersects(s, vs []int) bool {
	for _, a := range s {
		for _, b := range vs {
			if a == b {
				return true
			}
		}
	}
	return false
}

func containsOnly(s, vs []int) bool {
	if len(s) == 0 {
		return false
	}
	for _, a := range s {
		found := false
		for _, b := range vs {
			if a == b {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Eval reports whether every condition holds for row, left to right with
// early exit.
func (cl Clause) Eval(row dataset.Row) bool {
	return cl.EvalNA(row, false)
}

// EvalNA is Eval where a condition on a missing response evaluates to naPasses
func (cl Clause) EvalNA(row dataset.Row, naPasses bool) bool {
	for _, c := range cl {
		if !c.holds(row.Value(c.Var), naPasses) {
			return false
		}
	}
	return true
}

// EvalScalar evaluates a class clause with X bound to v
func (cl Clause) EvalScalar(v dataset.Value) bool {
	for _, c := range cl {
		if !c.Holds(v) {
			return false
		}
	}
	return true
}

// First returns the first rule whose clause holds for row
func (f Formula) First(row dataset.Row) (Rule, bool) {
	for _, r := range f {
		if r.Clause.Eval(row) {
			return r, true
		}
	}
	return Rule{}, false
}

// All returns every rule whose clause holds for row, in formula order
func (f Formula) All(row dataset.Row) []Rule {
	var out []Rule
	for _, r := range f {
		if r.Clause.Eval(row) {
			out = append(out, r)
		}
	}
	return out
}
