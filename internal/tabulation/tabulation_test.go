package tabulation

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staats/internal/class"
	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/filter"
	"staats/internal/schema"
)

func surveySchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Question{Name: "Grp", Type: schema.QualiUnique, Label: "Group",
			Codes: schema.CodeTable{{Value: 1, Label: "Group 1"}, {Value: 2, Label: "Group 2"}, {Value: 3, Label: "Group 3"}}},
		schema.Question{Name: "Aware", Type: schema.QualiUnique, Label: "Brand awareness",
			Codes: schema.CodeTable{{Value: 1, Label: "Yes"}, {Value: 2, Label: "No"}}},
		schema.Question{Name: "Region", Type: schema.QualiUnique, Label: "Region",
			Codes: schema.CodeTable{{Value: 1, Label: "North"}, {Value: 2, Label: "South"}}},
		schema.Question{Name: "Brands", Type: schema.QualiMultiple, Label: "Brands",
			Codes: schema.CodeTable{{Value: 1, Label: "Nike"}, {Value: 2, Label: "Adidas"}}},
		schema.Question{Name: "Age", Type: schema.Numeric, Label: "Age"},
		schema.Question{Name: "W", Type: schema.Numeric, Label: "Weight"},
		schema.Question{Name: "Verbatim", Type: schema.Open},
	)
	require.NoError(t, err)
	return s
}

// block describes n identical respondents
type block struct {
	n      int
	values map[string]dataset.Value
}

func build(blocks ...block) *dataset.Dataset {
	var rows []map[string]dataset.Value
	for _, b := range blocks {
		for i := 0; i < b.n; i++ {
			rows = append(rows, b.values)
		}
	}
	return dataset.FromRows([]string{"Grp", "Aware", "Region", "Brands", "Age", "W"}, rows)
}

func resp(grp, aware int) map[string]dataset.Value {
	return map[string]dataset.Value{"Grp": dataset.Code(grp), "Aware": dataset.Code(aware), "W": dataset.Number(1)}
}

func cell(t *testing.T, res *Result, rowKey, colKey string) Cell {
	t.Helper()
	r, ok := res.Row(rowKey)
	require.True(t, ok, "row %s", rowKey)
	c, ok := res.Column(colKey)
	require.True(t, ok, "column %s", colKey)
	return res.Rows[r].Cells[c]
}

func TestZTest(t *testing.T) {
	z, p, ok := ZTest(80, 100, 40, 100)
	require.True(t, ok)
	assert.InDelta(t, 5.7735, z, 1e-4)
	assert.Less(t, p, 0.001)

	z, p, ok = ZTest(50, 100, 50, 100)
	require.True(t, ok)
	assert.Equal(t, 0.0, z)
	assert.InDelta(t, 1.0, p, 1e-12)

	_, _, ok = ZTest(0, 0, 10, 100)
	assert.False(t, ok)
	_, _, ok = ZTest(100, 100, 50, 50)
	assert.False(t, ok, "no variance")
}

func TestLetter(t *testing.T) {
	tests := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"}
	for i, want := range tests {
		assert.Equal(t, want, Letter(i), "index %d", i)
	}
}

func TestSignificanceLetters(t *testing.T) {
	ds := build(
		block{80, resp(1, 1)}, block{20, resp(1, 2)},
		block{40, resp(2, 1)}, block{60, resp(2, 2)},
	)
	res, err := Generate(ds, Spec{Name: "t1", Row: "Aware", Col: "Grp"}, surveySchema(t), nil, nil)
	require.NoError(t, err)

	require.Len(t, res.Columns, 4)
	assert.Equal(t, "A", res.Columns[1].Letter)
	assert.Equal(t, "B", res.Columns[2].Letter)
	assert.Equal(t, 100.0, res.Columns[1].Base)
	assert.Equal(t, 200.0, res.Base())

	yesA := cell(t, res, "1", "1")
	yesB := cell(t, res, "1", "2")
	assert.Equal(t, 80.0, yesA.Count)
	assert.InDelta(t, 80.0, yesA.ColPct, 1e-9)
	assert.Equal(t, "B", yesA.Letters)
	assert.Empty(t, yesB.Letters)
	assert.Equal(t, "A", cell(t, res, "2", "2").Letters)

	// group 3 has no respondents
	assert.Equal(t, 0.0, res.Columns[3].Base)
	assert.True(t, res.Columns[3].Unreliable)

	assert.Equal(t, "80 (80.0%)", res.Format(0, 1))
	assert.InDelta(t, 66.67, yesA.RowPct, 0.01)

	require.NotNil(t, res.Chi)
	assert.Equal(t, 1, res.Chi.DF)
	assert.InDelta(t, 33.333, res.Chi.Statistic, 1e-3)
	assert.Less(t, res.Chi.PValue, 0.001)
}

func TestNoSignificanceForEqualProportions(t *testing.T) {
	ds := build(
		block{50, resp(1, 1)}, block{50, resp(1, 2)},
		block{52, resp(2, 1)}, block{48, resp(2, 2)},
	)
	res, err := Generate(ds, Spec{Name: "t", Row: "Aware", Col: "Grp"}, surveySchema(t), nil, nil)
	require.NoError(t, err)
	for _, row := range res.Rows {
		for _, c := range row.Cells {
			assert.Empty(t, c.Letters)
		}
	}
}

func TestSignificanceSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := surveySchema(t)
	for trial := 0; trial < 20; trial++ {
		var blocks []block
		for grp := 1; grp <= 3; grp++ {
			yes := 20 + rng.Intn(80)
			blocks = append(blocks, block{yes, resp(grp, 1)}, block{30 + rng.Intn(70), resp(grp, 2)})
		}
		res, err := Generate(build(blocks...), Spec{Name: "sym", Row: "Aware", Col: "Grp"}, s, nil, nil)
		require.NoError(t, err)

		for _, row := range res.Rows {
			for i, ci := range res.Columns {
				for j, cj := range res.Columns {
					if i == j || ci.Total || cj.Total {
						continue
					}
					iBeatsJ := strings.Contains(row.Cells[i].Letters, cj.Letter)
					jBeatsI := strings.Contains(row.Cells[j].Letters, ci.Letter)
					assert.False(t, iBeatsJ && jBeatsI, "trial %d: %s and %s both marked", trial, ci.Letter, cj.Letter)
				}
			}
		}
	}
}

func TestBaseSuppression(t *testing.T) {
	ds := build(
		block{20, resp(1, 1)},
		block{20, resp(2, 1)}, block{80, resp(2, 2)},
		block{90, resp(3, 1)}, block{10, resp(3, 2)},
	)
	res, err := Generate(ds, Spec{Name: "t", Row: "Aware", Col: "Grp"}, surveySchema(t), nil, nil)
	require.NoError(t, err)

	a := res.Columns[1]
	assert.Equal(t, 20.0, a.Base)
	assert.True(t, a.Unreliable)
	for _, row := range res.Rows {
		assert.Empty(t, row.Cells[1].Letters, "unreliable column is not tested")
		assert.True(t, row.Cells[1].Unreliable)
		for _, c := range row.Cells {
			assert.NotContains(t, c.Letters, "A", "unreliable column is not a comparison target")
		}
	}
	assert.Equal(t, "B", cell(t, res, "1", "3").Letters)
	assert.Equal(t, "C", cell(t, res, "2", "2").Letters)

	t.Run("minimum base is configurable", func(t *testing.T) {
		g := NewGenerator(surveySchema(t), nil, nil, WithSettings(Settings{Alpha: 0.05, MinBase: 10}))
		res, err := g.Generate(ds, Spec{Name: "t", Row: "Aware", Col: "Grp"})
		require.NoError(t, err)
		assert.False(t, res.Columns[1].Unreliable)
		// 100% vs 90% on 20 and 100 respondents is not significant
		assert.Equal(t, "B", cell(t, res, "1", "1").Letters)
	})
}

func TestWeightsAndFilters(t *testing.T) {
	heavy := resp(1, 1)
	heavy["W"] = dataset.Number(2)
	noWeight := resp(2, 1)
	noWeight["W"] = dataset.NA()
	ds := build(block{10, heavy}, block{10, resp(1, 2)}, block{5, noWeight}, block{10, resp(2, 2)})

	s := surveySchema(t)
	filters := filter.NewEngine(nil)
	require.NoError(t, filters.Add(filter.Filter{Name: "Aware", Formula: `["Aware"=1]`}))

	res, err := Generate(ds, Spec{Name: "w", Row: "Aware", Col: "Grp", Weight: "W"}, s, filters, nil)
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.Columns[1].Base)
	assert.Equal(t, 20, res.Columns[1].Respondents)
	assert.Equal(t, 10.0, res.Columns[2].Base)
	assert.Equal(t, 5, res.Excluded)
	assert.InDelta(t, 66.667, cell(t, res, "1", "1").ColPct, 1e-3)

	res, err = Generate(ds, Spec{Name: "f", Row: "Aware", Col: "Grp", Filter: "Aware"}, s, filters, nil)
	require.NoError(t, err)
	assert.Equal(t, 15.0, res.Base())
	assert.Equal(t, 20, res.Excluded)
}

func TestNACategories(t *testing.T) {
	missingRow := resp(1, 0)
	missingRow["Aware"] = dataset.NA()
	missingCol := resp(0, 1)
	missingCol["Grp"] = dataset.NA()
	ds := build(block{10, resp(1, 1)}, block{5, missingRow}, block{3, missingCol})
	s := surveySchema(t)

	res, err := Generate(ds, Spec{Name: "plain", Row: "Aware", Col: "Grp"}, s, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Base())
	assert.Equal(t, 8, res.Excluded)
	assert.Len(t, res.Rows, 2)

	res, err = Generate(ds, Spec{Name: "na", Row: "Aware", Col: "Grp", RowNA: true, ColNA: true}, s, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 18.0, res.Base())
	require.Len(t, res.Rows, 3)
	assert.True(t, res.Rows[2].Category.NA)
	assert.Equal(t, 5.0, cell(t, res, "NA", "1").Count)
	assert.Equal(t, 3.0, cell(t, res, "1", "NA").Count)
}

func TestMultipleChoiceAxes(t *testing.T) {
	both := resp(1, 1)
	both["Brands"] = dataset.Codes(1, 2)
	nike := resp(2, 1)
	nike["Brands"] = dataset.Codes(1)
	none := resp(2, 1)
	none["Brands"] = dataset.Codes()
	ds := build(block{4, both}, block{6, nike}, block{2, none})
	s := surveySchema(t)

	res, err := Generate(ds, Spec{Name: "rows", Row: "Brands", Col: "Grp"}, s, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, cell(t, res, "1", TotalKey).Count)
	assert.Equal(t, 4.0, cell(t, res, "2", TotalKey).Count)
	assert.Equal(t, 12.0, res.Base())
	assert.Nil(t, res.Chi, "overlapping categories")

	res, err = Generate(ds, Spec{Name: "cols", Row: "Aware", Col: "Brands"}, s, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Columns[1].Base)
	assert.Equal(t, 4.0, res.Columns[2].Base)
	assert.Equal(t, 12.0, res.Base(), "each respondent counts once in Total")
}

func TestSecondColumnVariable(t *testing.T) {
	north := func(grp, aware int) map[string]dataset.Value {
		v := resp(grp, aware)
		v["Region"] = dataset.Code(1)
		return v
	}
	south := func(grp, aware int) map[string]dataset.Value {
		v := resp(grp, aware)
		v["Region"] = dataset.Code(2)
		return v
	}
	ds := build(
		block{80, north(1, 1)}, block{20, north(1, 2)},
		block{40, south(1, 1)}, block{60, south(1, 2)},
		block{50, north(2, 1)}, block{50, north(2, 2)},
		block{90, south(2, 1)}, block{10, south(2, 2)},
	)
	res, err := Generate(ds, Spec{Name: "nested", Row: "Aware", Col: "Grp", SecondCol: "Region"}, surveySchema(t), nil, nil)
	require.NoError(t, err)

	// Total + 3 groups × 2 regions
	require.Len(t, res.Columns, 7)
	assert.Equal(t, "1|1", res.Columns[1].Key)
	assert.Equal(t, "Group 1 / North", res.Columns[1].Label)
	assert.Equal(t, 0, res.Columns[1].Group)
	assert.Equal(t, 1, res.Columns[3].Group)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, []string{
		res.Columns[1].Letter, res.Columns[2].Letter, res.Columns[3].Letter,
		res.Columns[4].Letter, res.Columns[5].Letter, res.Columns[6].Letter,
	})

	assert.Equal(t, "B", cell(t, res, "1", "1|1").Letters)
	assert.Equal(t, "C", cell(t, res, "1", "2|2").Letters, "tests stay within the group")
	assert.Empty(t, cell(t, res, "1", "2|1").Letters)

	t.Run("second column NA flag is independent", func(t *testing.T) {
		unknown := resp(1, 1)
		unknown["Region"] = dataset.NA()
		ds := build(block{10, north(1, 1)}, block{4, unknown})
		s := surveySchema(t)

		res, err := Generate(ds, Spec{Name: "col_na", Row: "Aware", Col: "Grp", SecondCol: "Region", ColNA: true}, s, nil, nil)
		require.NoError(t, err)
		_, ok := res.Column("1|NA")
		assert.False(t, ok)
		assert.Equal(t, 4, res.Excluded)

		res, err = Generate(ds, Spec{Name: "second_na", Row: "Aware", Col: "Grp", SecondCol: "Region", SecondColNA: true}, s, nil, nil)
		require.NoError(t, err)
		_, ok = res.Column("NA|1")
		assert.False(t, ok, "the primary axis has no NA category")
		assert.Equal(t, 4.0, cell(t, res, "1", "1|NA").Count)
		assert.Zero(t, res.Excluded)
	})
}

func TestClassedNumericRow(t *testing.T) {
	young := resp(1, 1)
	young["Age"] = dataset.Number(22)
	old := resp(1, 1)
	old["Age"] = dataset.Number(55)
	outside := resp(2, 1)
	outside["Age"] = dataset.Number(5)
	ds := build(block{3, young}, block{2, old}, block{1, outside})
	s := surveySchema(t)

	classes := class.NewEngine(nil)
	require.NoError(t, classes.Add(class.Class{Name: "AgeBands", OptionNA: true, Bins: []class.Bin{
		{Formula: "X>=18 and X<35", Label: "18-34"},
		{Formula: "X>=35", Label: "35+"},
	}}))

	res, err := Generate(ds, Spec{Name: "age", Row: "Age", Col: "Grp", Class: "AgeBands"}, s, nil, classes)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "18-34", res.Rows[0].Category.Label)
	assert.Equal(t, 3.0, res.Rows[0].Cells[0].Count)
	assert.Equal(t, 2.0, res.Rows[1].Cells[0].Count)
	assert.Equal(t, 5.0, res.Base())

	t.Run("strict class reports rows outside every bin", func(t *testing.T) {
		strict := class.NewEngine(nil)
		require.NoError(t, strict.Add(class.Class{Name: "Adults", Bins: []class.Bin{{Formula: "X>=18", Label: "18+"}}}))
		lenient := class.NewEngine(nil)
		require.NoError(t, lenient.Add(class.Class{Name: "Adults", OptionNA: true, Bins: []class.Bin{{Formula: "X>=18", Label: "18+"}}}))
		spec := Spec{Name: "adults", Row: "Age", Col: "Grp", Class: "Adults", RowNA: true}

		res, err := Generate(ds, spec, s, nil, strict)
		require.NoError(t, err)
		assert.Equal(t, []int{5}, res.Unmatched)
		assert.Equal(t, 1, res.Excluded)
		assert.Equal(t, 5.0, res.Base())
		assert.Equal(t, 0.0, cell(t, res, "NA", TotalKey).Count, "unmatched rows stay out of the NA row")

		res, err = Generate(ds, spec, s, nil, lenient)
		require.NoError(t, err)
		assert.Empty(t, res.Unmatched)
		assert.Equal(t, 6.0, res.Base())
		assert.Equal(t, 1.0, cell(t, res, "NA", TotalKey).Count)
	})

	t.Run("strict class ignores rows the filter leaves out", func(t *testing.T) {
		strict := class.NewEngine(nil)
		require.NoError(t, strict.Add(class.Class{Name: "Adults", Bins: []class.Bin{{Formula: "X>=18", Label: "18+"}}}))
		filters := filter.NewEngine(nil)
		require.NoError(t, filters.Add(filter.Filter{Name: "G1", Formula: `["Grp"=1]`}))

		res, err := Generate(ds, Spec{Name: "g1", Row: "Age", Col: "Grp", Class: "Adults", Filter: "G1"}, s, filters, strict)
		require.NoError(t, err)
		assert.Empty(t, res.Unmatched)
		assert.Equal(t, 5.0, res.Base())
	})

	t.Run("without a class numeric values are categories", func(t *testing.T) {
		res, err := Generate(ds, Spec{Name: "raw", Row: "Age", Col: "Grp"}, s, nil, nil)
		require.NoError(t, err)
		require.Len(t, res.Rows, 3)
		assert.Equal(t, []string{"5", "22", "55"}, []string{
			res.Rows[0].Category.Label, res.Rows[1].Category.Label, res.Rows[2].Category.Label,
		})
	})
}

func TestDisplayModes(t *testing.T) {
	ds := build(block{3, resp(1, 1)}, block{1, resp(1, 2)})
	s := surveySchema(t)
	tests := []struct {
		mode DisplayMode
		want string
	}{
		{Counts, "3"},
		{Vertical, "75.0%"},
		{Horizontal, "100.0%"},
		{Both, "3 (75.0%)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			res, err := Generate(ds, Spec{Name: "d", Row: "Aware", Col: "Grp", Display: tt.mode}, s, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Format(0, 1))
		})
	}

	m, err := ParseDisplayMode("col%")
	require.NoError(t, err)
	assert.Equal(t, Vertical, m)
	_, err = ParseDisplayMode("pie")
	assert.Error(t, err)
	assert.Equal(t, "2.5", FormatCount(2.5))
}

func TestValidateSpec(t *testing.T) {
	s := surveySchema(t)
	classes := class.NewEngine(nil)
	require.NoError(t, classes.Add(class.Class{Name: "C", Bins: []class.Bin{{Formula: "X>1", Label: "x"}}}))
	g := NewGenerator(s, filter.NewEngine(nil), classes)

	issues := g.Validate(Spec{
		Name:   "bad",
		Row:    "Verbatim",
		Col:    "Age",
		Filter: "nope",
		Weight: "Grp",
		Class:  "C",
	})
	require.Len(t, issues, 5)
	for _, is := range issues {
		assert.Equal(t, `tab "bad"`, is.Entity)
	}

	issues = g.Validate(Spec{Name: "missing", Row: "Nope"})
	assert.Len(t, issues, 2)

	_, err := g.Generate(build(block{1, resp(1, 1)}), Spec{Name: "bad", Row: "Aware", Col: "Age"})
	var got apperrors.Issues
	require.ErrorAs(t, err, &got)
}

func TestReport(t *testing.T) {
	ds := build(block{80, resp(1, 1)}, block{20, resp(1, 2)}, block{40, resp(2, 1)}, block{60, resp(2, 2)})
	g := NewGenerator(surveySchema(t), nil, nil)
	specs := []Spec{
		{Name: "a", Row: "Aware", Col: "Grp"},
		{Name: "b", Row: "Grp", Col: "Aware"},
		{Name: "c", Row: "Aware", Col: "Grp", Display: Counts},
	}

	results, err := g.Report(context.Background(), ds, specs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, specs[i].Name, r.Spec.Name)
	}

	_, err = g.Report(context.Background(), ds, []Spec{specs[0], specs[0], {Name: "x", Row: "Aware", Col: "Age"}}, 2)
	var issues apperrors.Issues
	require.ErrorAs(t, err, &issues)
	assert.Len(t, issues, 2)
}

func TestSummarize(t *testing.T) {
	s := surveySchema(t)
	var rows []map[string]dataset.Value
	for i := 1; i <= 5; i++ {
		rows = append(rows, map[string]dataset.Value{"Age": dataset.Number(float64(i)), "W": dataset.Number(1)})
	}
	rows = append(rows, map[string]dataset.Value{"Age": dataset.NA(), "W": dataset.Number(1)})
	ds := dataset.FromRows([]string{"Age", "W"}, rows)

	sum, err := Summarize(ds, s, "Age", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.N)
	assert.Equal(t, 5.0, sum.WeightedN)
	assert.InDelta(t, 3.0, sum.Mean, 1e-12)
	assert.Equal(t, 3.0, sum.Median)
	assert.InDelta(t, math.Sqrt(2.5), sum.StdDev, 1e-12)
	assert.Equal(t, 1.0, sum.Min)
	assert.Equal(t, 5.0, sum.Max)

	sum, err = Summarize(ds, s, "Age", "W", []bool{true, true, false, false, false, false})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.N)
	assert.InDelta(t, 1.5, sum.Mean, 1e-12)

	_, err = Summarize(ds, s, "Grp", "", nil)
	assert.Error(t, err)
	_, err = Summarize(ds, s, "Nope", "", nil)
	assert.Error(t, err)
}
