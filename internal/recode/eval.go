package recode

import (
	"sort"
	"strings"

	"staats/internal/dataset"
	"staats/internal/schema"
)

// column is the evaluated output of one recode
type column struct {
	values    []dataset.Value
	question  schema.Question
	stats     Stats
	unmatched []int
}

// evaluate computes the recode over every row of ds. It never fails: rows
// that cannot be computed become NA.
func (c *compiled) evaluate(ds *dataset.Dataset) column {
	n := ds.Len()
	col := column{
		values:   make([]dataset.Value, n),
		question: c.output,
		stats:    Stats{Name: c.Name, Kind: c.Kind},
	}

	switch c.Kind {
	case QualiUnique, Weight:
		for i := 0; i < n; i++ {
			r, ok := c.rules.First(ds.Row(i))
			if !ok {
				col.miss(i, c.OptionNA)
				continue
			}
			if c.Kind == Weight {
				col.values[i] = dataset.Number(r.Output)
			} else {
				col.values[i] = dataset.Code(r.Code())
			}
			col.stats.Matched++
		}
	case QualiMultiple:
		for i := 0; i < n; i++ {
			matched := c.rules.All(ds.Row(i))
			if len(matched) == 0 {
				col.miss(i, c.OptionNA)
				continue
			}
			codes := make([]int, len(matched))
			for j, r := range matched {
				codes[j] = r.Code()
			}
			col.values[i] = dataset.SortedCodes(codes...)
			col.stats.Matched++
		}
	case QualiMultiIni:
		for i := 0; i < n; i++ {
			row := ds.Row(i)
			src, ok := row.Value(c.source).CodeSet()
			if !ok {
				col.stats.Missing++
				continue
			}
			codes := append([]int(nil), src...)
			for _, r := range c.rules.All(row) {
				codes = append(codes, r.Code())
			}
			col.values[i] = dataset.SortedCodes(codes...)
			col.stats.Matched++
		}
	case Numeric:
		for i := 0; i < n; i++ {
			row := ds.Row(i)
			v, ok := c.expr.Eval(row)
			if !ok {
				col.stats.Missing++
				if c.answered(row) {
					col.stats.Degraded++
				}
				continue
			}
			col.values[i] = dataset.Number(v)
			col.stats.Matched++
		}
	case NumberOfAnswers:
		for i := 0; i < n; i++ {
			set, _ := ds.Value(i, c.source).CodeSet()
			col.values[i] = dataset.Number(float64(len(set)))
			col.stats.Matched++
		}
	case Combination:
		c.combine(ds, &col)
	}
	return col
}

// miss records a row no rule matched
func (col *column) miss(i int, optionNA bool) {
	col.stats.Missing++
	if !optionNA {
		col.stats.Unmatched++
		col.unmatched = append(col.unmatched, i)
	}
}

// answered reports whether every operand of the recode is present in row
func (c *compiled) answered(row dataset.Row) bool {
	for _, name := range c.deps {
		if row.Value(name).IsNA() {
			return false
		}
	}
	return true
}

// combine assigns codes 1..k to the distinct code sets in first-seen row
// order, so the mapping depends on the row order of ds.
func (c *compiled) combine(ds *dataset.Dataset, col *column) {
	src, _ := ds.Column(c.source)
	srcCodes := c.output.Codes
	index := make(map[string]int)
	var table schema.CodeTable

	for i, v := range src {
		set, ok := v.CodeSet()
		if !ok {
			col.stats.Missing++
			continue
		}
		sorted := append([]int(nil), set...)
		sort.Ints(sorted)
		key := dataset.JoinCodes(sorted)
		code, seen := index[key]
		if !seen {
			code = len(table) + 1
			index[key] = code
			table = append(table, schema.Code{Value: code, Label: combinationLabel(sorted, srcCodes)})
		}
		col.values[i] = dataset.Code(code)
		col.stats.Matched++
	}

	if len(table) == 0 {
		table = schema.CodeTable{{Value: 1, Label: "None"}}
	}
	col.question.Codes = table
}

func combinationLabel(codes []int, labels schema.CodeTable) string {
	if len(codes) == 0 {
		return "None"
	}
	parts := make([]string, len(codes))
	for i, code := range codes {
		if l, ok := labels.Label(code); ok && l != "" {
			parts[i] = l
		} else {
			parts[i] = dataset.FormatNumber(float64(code))
		}
	}
	return strings.Join(parts, " + ")
}
