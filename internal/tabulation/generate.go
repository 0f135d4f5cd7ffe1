package tabulation

import (
	"fmt"
	"log/slog"
	"sort"

	"staats/internal/class"
	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/filter"
	"staats/internal/schema"
)

// Option configures a Generator
type Option func(*Generator)

// WithSettings overrides the statistical parameters
func WithSettings(s Settings) Option {
	return func(g *Generator) { g.settings = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// Generator computes tabulations against one schema and its named filters
// and classes. It holds no per-table state and is safe for concurrent use.
type Generator struct {
	schema   *schema.Schema
	filters  *filter.Engine
	classes  *class.Engine
	settings Settings
	logger   *slog.Logger
}

// NewGenerator creates a generator. filters and classes may be nil when no
// tab references them.
func NewGenerator(s *schema.Schema, filters *filter.Engine, classes *class.Engine, opts ...Option) *Generator {
	g := &Generator{
		schema:   s,
		filters:  filters,
		classes:  classes,
		settings: DefaultSettings(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(slog.String("component", "tabulation"))
	return g
}

// Generate computes one table with default settings
func Generate(ds *dataset.Dataset, spec Spec, s *schema.Schema, filters *filter.Engine, classes *class.Engine) (*Result, error) {
	return NewGenerator(s, filters, classes).Generate(ds, spec)
}

// Validate checks every reference of spec and returns all problems found
func (g *Generator) Validate(spec Spec) apperrors.Issues {
	var issues apperrors.Issues
	entity := spec.Entity()

	row, rowOK := g.schema.Question(spec.Row)
	switch {
	case spec.Row == "":
		issues.Add(entity, apperrors.ErrTypeValidation, "row variable is required")
	case !rowOK:
		issues.Add(entity, apperrors.ErrTypeValidation, "row variable %q is not defined", spec.Row)
	case row.Type == schema.Open:
		issues.Add(entity, apperrors.ErrTypeValidation, "row variable %q is an Open question", spec.Row)
	}

	for _, name := range []string{spec.Col, spec.SecondCol} {
		if name == "" {
			continue
		}
		q, ok := g.schema.Question(name)
		switch {
		case !ok:
			issues.Add(entity, apperrors.ErrTypeValidation, "column variable %q is not defined", name)
		case !q.Type.IsQualitative():
			issues.Add(entity, apperrors.ErrTypeValidation, "column variable %q must be qualitative, got %s", name, q.Type)
		}
	}
	if spec.Col == "" {
		issues.Add(entity, apperrors.ErrTypeValidation, "column variable is required")
	}

	if spec.Filter != "" {
		f, ok := g.filterDef(spec.Filter)
		if !ok {
			issues.Add(entity, apperrors.ErrTypeValidation, "filter %q is not defined", spec.Filter)
		} else if _, err := f.Compile(g.schema); err != nil {
			issues.AddError(entity, apperrors.ErrTypeValidation, fmt.Errorf("filter %q: %w", spec.Filter, err))
		}
	}

	if spec.Weight != "" {
		q, ok := g.schema.Question(spec.Weight)
		switch {
		case !ok:
			issues.Add(entity, apperrors.ErrTypeValidation, "weight variable %q is not defined", spec.Weight)
		case q.Type != schema.Numeric:
			issues.Add(entity, apperrors.ErrTypeValidation, "weight variable %q must be Numeric, got %s", spec.Weight, q.Type)
		}
	}

	if spec.Class != "" {
		c, ok := g.classDef(spec.Class)
		switch {
		case !ok:
			issues.Add(entity, apperrors.ErrTypeValidation, "class %q is not defined", spec.Class)
		case rowOK && row.Type != schema.Numeric:
			issues.Add(entity, apperrors.ErrTypeValidation, "class %q needs a Numeric row variable, %q is %s", spec.Class, spec.Row, row.Type)
		default:
			if _, err := c.Compile(); err != nil {
				issues.AddError(entity, apperrors.ErrTypeValidation, err)
			}
		}
	}

	if spec.Display != "" {
		if _, err := ParseDisplayMode(string(spec.Display)); err != nil {
			issues.AddError(entity, apperrors.ErrTypeValidation, err)
		}
	}
	return issues
}

func (g *Generator) filterDef(name string) (filter.Filter, bool) {
	if g.filters == nil {
		return filter.Filter{}, false
	}
	return g.filters.Get(name)
}

func (g *Generator) classDef(name string) (class.Class, bool) {
	if g.classes == nil {
		return class.Class{}, false
	}
	return g.classes.Get(name)
}

// Generate computes the table described by spec over ds
func (g *Generator) Generate(ds *dataset.Dataset, spec Spec) (*Result, error) {
	if issues := g.Validate(spec); len(issues) > 0 {
		return nil, issues
	}
	if spec.Display == "" {
		spec.Display = Both
	}

	n := ds.Len()
	include := make([]bool, n)
	for i := range include {
		include[i] = true
	}
	if spec.Filter != "" {
		mask, err := g.filters.Apply(spec.Filter, ds, g.schema)
		if err != nil {
			return nil, err
		}
		include = filter.And(include, mask)
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
		if spec.Weight == "" {
			continue
		}
		w, ok := ds.Value(i, spec.Weight).Float()
		if !ok || w < 0 {
			include[i] = false
			continue
		}
		weights[i] = w
	}

	rowQ, _ := g.schema.Question(spec.Row)
	rowVals, _ := ds.Column(spec.Row)
	rowCodes := rowQ.Codes
	var unmatched []int
	if spec.Class != "" {
		out, err := g.classes.Apply(spec.Class, rowVals)
		if err != nil {
			return nil, err
		}
		rowVals, rowCodes = out.Values, out.Codes
		// a strict class leaves these rows out of the table, NA row included
		for _, i := range out.Unmatched {
			if include[i] {
				include[i] = false
				unmatched = append(unmatched, i)
			}
		}
		if len(unmatched) > 0 {
			g.logger.Warn("rows outside every class bin",
				slog.String("tab", spec.Name),
				slog.String("class", spec.Class),
				slog.Int("rows", len(unmatched)))
		}
	}
	rowAxis := newAxis(rowCodes, rowVals, include, spec.RowNA, rowQ.Type == schema.Numeric && spec.Class == "")

	colQ, _ := g.schema.Question(spec.Col)
	colVals, _ := ds.Column(spec.Col)
	colAxis := newAxis(colQ.Codes, colVals, include, spec.ColNA, false)

	var (
		secVals []dataset.Value
		secAxis *axis
	)
	if spec.SecondCol != "" {
		secQ, _ := g.schema.Question(spec.SecondCol)
		secVals, _ = ds.Column(spec.SecondCol)
		secAxis = newAxis(secQ.Codes, secVals, include, spec.SecondColNA, false)
	}

	res := &Result{
		Spec:      spec,
		Title:     spec.Title,
		Settings:  g.settings,
		Columns:   buildColumns(colAxis, secAxis),
		Unmatched: unmatched,
	}
	if res.Title == "" {
		res.Title = rowQ.Label
		if res.Title == "" {
			res.Title = spec.Row
		}
	}
	res.Rows = make([]Row, len(rowAxis.cats))
	for r, cat := range rowAxis.cats {
		res.Rows[r] = Row{Category: cat, Cells: make([]Cell, len(res.Columns))}
	}

	for i := 0; i < n; i++ {
		if !include[i] {
			res.Excluded++
			continue
		}
		rows, ok := rowAxis.members(rowVals[i])
		if !ok {
			res.Excluded++
			continue
		}
		cols, ok := colAxis.members(colVals[i])
		if !ok {
			res.Excluded++
			continue
		}
		if secAxis != nil {
			sec, ok := secAxis.members(secVals[i])
			if !ok {
				res.Excluded++
				continue
			}
			cols = product(cols, sec, len(secAxis.cats))
		}

		res.add(0, rows, weights[i])
		for _, c := range cols {
			res.add(c+1, rows, weights[i])
		}
	}

	for c := range res.Columns {
		col := &res.Columns[c]
		col.Unreliable = !col.Total && col.Base < g.settings.MinBase
	}
	for r := range res.Rows {
		row := &res.Rows[r]
		total := row.Cells[0].Count
		for c := range row.Cells {
			cell := &row.Cells[c]
			if base := res.Columns[c].Base; base > 0 {
				cell.ColPct = 100 * cell.Count / base
			}
			if total > 0 {
				cell.RowPct = 100 * cell.Count / total
			}
			cell.Unreliable = res.Columns[c].Unreliable
		}
		markSignificance(row, res.Columns, g.settings.Alpha)
	}

	if !overlapping(rowQ.Type, spec.Class != "", g.schema, spec.Col, spec.SecondCol) {
		res.Chi = chiSquare(res.Rows, res.Columns)
	}

	g.logger.Debug("table generated",
		slog.String("tab", spec.Name),
		slog.Int("rows", len(res.Rows)),
		slog.Int("columns", len(res.Columns)),
		slog.Float64("base", res.Base()),
		slog.Int("excluded", res.Excluded))
	return res, nil
}

// add counts one respondent of weight w in column c and the given rows
func (r *Result) add(c int, rows []int, w float64) {
	r.Columns[c].Base += w
	r.Columns[c].Respondents++
	for _, row := range rows {
		r.Rows[row].Cells[c].Count += w
	}
}

// overlapping reports whether a respondent can fall in several categories
// of an axis, which rules out the chi-square test.
func overlapping(rowType schema.QuestionType, classed bool, s *schema.Schema, cols ...string) bool {
	if rowType == schema.QualiMultiple && !classed {
		return true
	}
	for _, name := range cols {
		if q, ok := s.Question(name); ok && q.Type == schema.QualiMultiple {
			return true
		}
	}
	return false
}

// product maps (primary, secondary) pairs to column positions, excluding Total
func product(primary, secondary []int, width int) []int {
	out := make([]int, 0, len(primary)*len(secondary))
	for _, p := range primary {
		for _, s := range secondary {
			out = append(out, p*width+s)
		}
	}
	return out
}

func buildColumns(primary, secondary *axis) []Column {
	cols := []Column{{Key: TotalKey, Label: TotalKey, Total: true}}
	for pi := range primary.cats {
		p := primary.cats[pi]
		if secondary == nil {
			cols = append(cols, Column{Key: p.Key(), Label: p.Label, Primary: &p})
			continue
		}
		for si := range secondary.cats {
			s := secondary.cats[si]
			cols = append(cols, Column{
				Key:       p.Key() + "|" + s.Key(),
				Label:     p.Label + " / " + s.Label,
				Primary:   &p,
				Secondary: &s,
				Group:     pi,
			})
		}
	}
	for i := 1; i < len(cols); i++ {
		cols[i].Letter = Letter(i - 1)
	}
	return cols
}

// axis lists the categories of one variable
type axis struct {
	cats  []Category
	index map[float64]int
	na    int
}

// newAxis orders categories as the code table does, followed by values
// observed among included rows that the table does not define, then NA when
// withNA is set. Numeric axes list their distinct values in ascending order.
func newAxis(codes schema.CodeTable, values []dataset.Value, include []bool, withNA bool, numeric bool) *axis {
	a := &axis{index: make(map[float64]int), na: -1}
	add := func(v float64, label string) {
		if _, ok := a.index[v]; ok {
			return
		}
		a.index[v] = len(a.cats)
		a.cats = append(a.cats, Category{Value: v, Label: label})
	}
	for _, c := range codes {
		add(float64(c.Value), c.Label)
	}

	var extra []float64
	seen := make(map[float64]bool)
	for i, v := range values {
		if !include[i] {
			continue
		}
		var found []float64
		if numeric {
			if f, ok := v.Float(); ok {
				found = append(found, f)
			}
		} else if set, ok := v.CodeSet(); ok {
			for _, c := range set {
				found = append(found, float64(c))
			}
		}
		for _, f := range found {
			if _, known := a.index[f]; !known && !seen[f] {
				seen[f] = true
				extra = append(extra, f)
			}
		}
	}
	sort.Float64s(extra)
	for _, f := range extra {
		add(f, dataset.FormatNumber(f))
	}

	if withNA {
		a.na = len(a.cats)
		a.cats = append(a.cats, Category{Label: "NA", NA: true})
	}
	return a
}

// members returns the category positions of v. ok is false when v is missing
// and the axis has no NA category.
func (a *axis) members(v dataset.Value) ([]int, bool) {
	if v.IsNA() {
		if a.na < 0 {
			return nil, false
		}
		return []int{a.na}, true
	}
	if f, ok := v.Float(); ok {
		if i, known := a.index[f]; known {
			return []int{i}, true
		}
		return nil, true
	}
	set, ok := v.CodeSet()
	if !ok {
		return nil, true
	}
	out := make([]int, 0, len(set))
	for _, c := range set {
		if i, known := a.index[float64(c)]; known {
			out = append(out, i)
		}
	}
	return out, true
}
