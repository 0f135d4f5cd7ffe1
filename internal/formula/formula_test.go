package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Question{Name: "Age", Type: schema.Numeric, Label: "Age"},
		schema.Question{Name: "Gender", Type: schema.QualiUnique, Label: "Gender",
			Codes: schema.CodeTable{{Value: 1, Label: "Male"}, {Value: 2, Label: "Female"}}},
		schema.Question{Name: "Brands", Type: schema.QualiMultiple, Label: "Brands",
			Codes: schema.CodeTable{{Value: 1, Label: "Nike"}, {Value: 2, Label: "Adidas"}, {Value: 3, Label: "Puma"}}},
		schema.Question{Name: "Comment", Type: schema.Open, Label: "Comment"},
		schema.Question{Name: "Income", Type: schema.Numeric, Label: "Income"},
	)
	require.NoError(t, err)
	return s
}

func TestParseClause(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		name      string
		src       string
		canonical string
	}{
		{"numeric comparison", `["Age">=18]`, `["Age">=18]`},
		{"whitespace ignored", ` [ "Age"  >= 18 ] `, `["Age">=18]`},
		{"negative threshold", `["Income">-5.5]`, `["Income">-5.5]`},
		{"contains list", `["Brands"C1,2]`, `["Brands"C1,2]`},
		{"not contains only", `["Brands"NCO3]`, `["Brands"NCO3]`},
		{"conjunction", `["Age">=18] and ["Gender"=2]`, `["Age">=18] and ["Gender"=2]`},
		{"upper-case and", `["Age">=18] AND ["Brands"C2]`, `["Age">=18] and ["Brands"C2]`},
		{"smart quotes", "[“Gender”!=1]", `["Gender"!=1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl, err := ParseClause(tt.src, s)
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, cl.String())
		})
	}
}

func TestParseClauseErrors(t *testing.T) {
	s := testSchema(t)

	t.Run("syntax errors carry the fragment", func(t *testing.T) {
		tests := []struct {
			name     string
			src      string
			fragment string
		}{
			{"or is rejected", `["Age">=18] or ["Gender"=1]`, `or ["Gender"=1]`},
			{"missing bracket", `["Age">=18`, ""},
			{"value list on comparison", `["Age"=1,2]`, `,2]`},
			{"unknown operator", `["Age"~1]`, `~1]`},
			{"unterminated name", `["Age>=18]`, `"Age>=18]`},
			{"fractional code", `["Brands"C1.5]`, `1.5]`},
			{"empty", "", ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParseClause(tt.src, s)
				require.Error(t, err)
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.fragment, pe.Fragment)
			})
		}
	})

	t.Run("schema errors are collected", func(t *testing.T) {
		_, err := ParseClause(`["Missing"=1] and ["Age"C1] and ["Brands">2] and ["Comment"=1]`, s)
		require.Error(t, err)
		var issues apperrors.Issues
		require.ErrorAs(t, err, &issues)
		assert.Len(t, issues, 4)
		for _, is := range issues {
			assert.Equal(t, apperrors.ErrTypeValidation, is.Kind)
		}
		assert.Contains(t, issues[0].Message, `"Missing"`)
		assert.Contains(t, issues[1].Message, "operator C")
	})

	t.Run("variable names are case-sensitive", func(t *testing.T) {
		_, err := ParseClause(`["age">=18]`, s)
		assert.Error(t, err)
	})
}

func TestParseRules(t *testing.T) {
	s := testSchema(t)

	t.Run("one rule per line", func(t *testing.T) {
		src := "1: [\"Age\"<30]\r\n\n2: [\"Age\">=30] and [\"Gender\"=1]\n"
		f, err := ParseRules(src, s, CodeRules)
		require.NoError(t, err)
		require.Len(t, f, 2)
		assert.Equal(t, 1, f[0].Code())
		assert.Equal(t, 2, f[1].Code())
		assert.Equal(t, []string{"Age", "Gender"}, f.Vars())
		assert.Equal(t, "1: [\"Age\"<30]\n2: [\"Age\">=30] and [\"Gender\"=1]", f.String())
	})

	t.Run("codes must be integers", func(t *testing.T) {
		_, err := ParseRules(`1.5: ["Age"<30]`, s, CodeRules)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("weights accept decimals", func(t *testing.T) {
		f, err := ParseRules("0.8: [\"Gender\"=1]\n1.25: [\"Gender\"=2]", s, WeightRules)
		require.NoError(t, err)
		assert.Equal(t, 0.8, f[0].Output)
		assert.Equal(t, 1.25, f[1].Output)
	})

	t.Run("missing colon", func(t *testing.T) {
		_, err := ParseRules(`1 ["Age"<30]`, s, CodeRules)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("no rules", func(t *testing.T) {
		_, err := ParseRules("\n  \n", s, CodeRules)
		assert.Error(t, err)
	})

	t.Run("unknown variables across lines", func(t *testing.T) {
		_, err := ParseRules("1: [\"X1\"=1]\n2: [\"X2\"=1]", s, CodeRules)
		var issues apperrors.Issues
		require.ErrorAs(t, err, &issues)
		assert.Len(t, issues, 2)
	})
}

func TestRoundTrip(t *testing.T) {
	s := testSchema(t)
	rows := []dataset.MapRow{
		{"Age": dataset.Number(17), "Gender": dataset.Code(1), "Brands": dataset.Codes(1)},
		{"Age": dataset.Number(30), "Gender": dataset.Code(2), "Brands": dataset.Codes(2, 3)},
		{"Age": dataset.NA(), "Gender": dataset.Code(2), "Brands": dataset.Codes()},
		{"Age": dataset.Number(45), "Gender": dataset.NA(), "Brands": dataset.NA()},
	}

	sources := []string{
		`[ "Age" >= 18 ]   and   ["Brands" C 2 , 3]`,
		`["Gender"!=1]AND["Brands"NC1]`,
		`["Age"<=30]`,
	}
	for _, src := range sources {
		first, err := ParseClause(src, s)
		require.NoError(t, err)
		second, err := ParseClause(first.String(), s)
		require.NoError(t, err)
		assert.Equal(t, first, second, src)
		for i, row := range rows {
			assert.Equal(t, first.Eval(row), second.Eval(row), "%s row %d", src, i)
		}
	}
}

func TestConditionNumeric(t *testing.T) {
	tests := []struct {
		op   Operator
		v    float64
		want bool
	}{
		{OpEq, 18, true},
		{OpEq, 19, false},
		{OpNe, 19, true},
		{OpGt, 19, true},
		{OpGt, 18, false},
		{OpLt, 17, true},
		{OpGe, 18, true},
		{OpLe, 18, true},
		{OpLe, 18.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			c := Condition{Var: "Age", Op: tt.op, Threshold: 18, Type: schema.Numeric}
			assert.Equal(t, tt.want, c.Holds(dataset.Number(tt.v)))
			assert.False(t, c.Holds(dataset.NA()), "missing responses never match")
		})
	}
}

func TestMultipleChoiceAlgebra(t *testing.T) {
	sets := [][]int{{}, {1}, {2}, {1, 2}, {1, 3}, {2, 3}, {1, 2, 3}, {4}}
	operands := [][]int{{1}, {2}, {1, 2}, {3}, {1, 2, 3}}

	holds := func(op Operator, s, v []int) bool {
		c := Condition{Var: "Q", Op: op, Codes: v, Type: schema.QualiMultiple}
		return c.Holds(dataset.Codes(s...))
	}

	for _, s := range sets {
		for _, v := range operands {
			c := holds(OpContains, s, v)
			nc := holds(OpNotContains, s, v)
			co := holds(OpContainsOnly, s, v)
			nco := holds(OpNotContainsOnly, s, v)

			assert.Equal(t, c, !nc, "C/NC on S=%v V=%v", s, v)
			assert.Equal(t, nco, !co, "CO/NCO on S=%v V=%v", s, v)
			if len(s) > 0 && co {
				assert.True(t, c, "CO implies C on S=%v V=%v", s, v)
			}
		}
	}

	t.Run("empty set", func(t *testing.T) {
		assert.False(t, holds(OpContains, nil, []int{1}))
		assert.True(t, holds(OpNotContains, nil, []int{1}))
		assert.False(t, holds(OpContainsOnly, nil, []int{1}))
		assert.True(t, holds(OpNotContainsOnly, nil, []int{1}))
	})

	t.Run("missing is false for every operator", func(t *testing.T) {
		for _, op := range []Operator{OpContains, OpNotContains, OpContainsOnly, OpNotContainsOnly} {
			c := Condition{Var: "Q", Op: op, Codes: []int{1}, Type: schema.QualiMultiple}
			assert.False(t, c.Holds(dataset.NA()), op.String())
		}
	})
}

func TestClauseEvalNA(t *testing.T) {
	s := testSchema(t)
	cl, err := ParseClause(`["Age">=18] and ["Gender"=2]`, s)
	require.NoError(t, err)

	row := dataset.MapRow{"Age": dataset.NA(), "Gender": dataset.Code(2)}
	assert.False(t, cl.Eval(row))
	assert.True(t, cl.EvalNA(row, true))

	row = dataset.MapRow{"Age": dataset.NA(), "Gender": dataset.Code(1)}
	assert.False(t, cl.EvalNA(row, true), "answered conditions still apply")
}

func TestFirstMatchWins(t *testing.T) {
	s := testSchema(t)
	f, err := ParseRules("1: [\"Age\">200]\n2: [\"Age\">=0]\n3: [\"Age\">=0]", s, CodeRules)
	require.NoError(t, err)

	for _, age := range []float64{0, 17, 45, 99} {
		r, ok := f.First(dataset.MapRow{"Age": dataset.Number(age)})
		require.True(t, ok)
		assert.Equal(t, 2, r.Code())
	}

	_, ok := f.First(dataset.MapRow{"Age": dataset.NA()})
	assert.False(t, ok)

	all := f.All(dataset.MapRow{"Age": dataset.Number(10)})
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[0].Code())
	assert.Equal(t, 3, all[1].Code())
}

func TestParseClassClause(t *testing.T) {
	cl, err := ParseClassClause(`X >= 18 and X<30`)
	require.NoError(t, err)
	assert.Equal(t, "X>=18 and X<30", cl.String())
	assert.True(t, cl.EvalScalar(dataset.Number(18)))
	assert.False(t, cl.EvalScalar(dataset.Number(30)))
	assert.False(t, cl.EvalScalar(dataset.NA()))

	_, err = ParseClassClause(`X C1`)
	assert.Error(t, err)
	_, err = ParseClassClause(`Y>1`)
	assert.Error(t, err)
}

func TestParseExpr(t *testing.T) {
	s, err := schema.New(
		schema.Question{Name: "A", Type: schema.Numeric},
		schema.Question{Name: "B", Type: schema.Numeric},
		schema.Question{Name: "G", Type: schema.QualiUnique, Codes: schema.CodeTable{{Value: 1, Label: "x"}}},
	)
	require.NoError(t, err)

	t.Run("NA propagates", func(t *testing.T) {
		e, err := ParseExpr(`["A"]+["B"]`, s)
		require.NoError(t, err)
		a := []dataset.Value{dataset.Number(1), dataset.Number(2), dataset.NA()}
		b := []dataset.Value{dataset.Number(10), dataset.Number(20), dataset.Number(5)}

		var got []dataset.Value
		for i := range a {
			v, ok := e.Eval(dataset.MapRow{"A": a[i], "B": b[i]})
			if ok {
				got = append(got, dataset.Number(v))
			} else {
				got = append(got, dataset.NA())
			}
		}
		assert.Equal(t, []dataset.Value{dataset.Number(11), dataset.Number(22), dataset.NA()}, got)
	})

	t.Run("precedence", func(t *testing.T) {
		tests := []struct {
			src       string
			want      float64
			canonical string
		}{
			{`["A"]+["B"]*2`, 21, `["A"] + (["B"] * 2)`},
			{`(["A"]+["B"])*2`, 22, `(["A"] + ["B"]) * 2`},
			{`-["A"]+10`, 9, `-["A"] + 10`},
			{`["B"]/4-1`, 1.5, `(["B"] / 4) - 1`},
		}
		row := dataset.MapRow{"A": dataset.Number(1), "B": dataset.Number(10)}
		for _, tt := range tests {
			e, err := ParseExpr(tt.src, s)
			require.NoError(t, err, tt.src)
			v, ok := e.Eval(row)
			require.True(t, ok)
			assert.InDelta(t, tt.want, v, 1e-9, tt.src)
			assert.Equal(t, tt.canonical, e.String())
		}
	})

	t.Run("division by zero is missing", func(t *testing.T) {
		e, err := ParseExpr(`["A"]/["B"]`, s)
		require.NoError(t, err)
		_, ok := e.Eval(dataset.MapRow{"A": dataset.Number(1), "B": dataset.Number(0)})
		assert.False(t, ok)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParseExpr(`["A"]+`, s)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)

		_, err = ParseExpr(`["A"]+["G"]`, s)
		var issues apperrors.Issues
		require.ErrorAs(t, err, &issues)
		assert.Contains(t, issues[0].Message, "Numeric")

		_, err = ParseExpr(`(["A"]`, s)
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("vars", func(t *testing.T) {
		e, err := ParseExpr(`["A"]*["B"]+["A"]`, s)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, ExprVars(e))
	})
}

func TestParseReference(t *testing.T) {
	s := testSchema(t)
	q, err := ParseReference(` ["Brands"] `, s)
	require.NoError(t, err)
	assert.Equal(t, schema.QualiMultiple, q.Type)

	_, err = ParseReference(`["Nope"]`, s)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
