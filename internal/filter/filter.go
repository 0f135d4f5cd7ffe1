package filter

import (
	"fmt"
	"log/slog"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/formula"
	"staats/internal/schema"
)

// Filter is a named respondent selection
type Filter struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Formula string `json:"formula" yaml:"formula" validate:"required"`
	// WithNA lets respondents with a missing answer on a filtered variable
	// pass that condition.
	WithNA bool `json:"with_na" yaml:"with_na"`
}

// Entity names the filter in issue lists
func (f Filter) Entity() string { return fmt.Sprintf("filter %q", f.Name) }

// Compile resolves the filter formula against s
func (f Filter) Compile(s *schema.Schema) (formula.Clause, error) {
	return formula.ParseClause(f.Formula, s)
}

// Engine stores named filters
type Engine struct {
	filters []Filter
	index   map[string]int
	logger  *slog.Logger
}

// NewEngine creates an empty engine
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		index:  make(map[string]int),
		logger: logger.With(slog.String("component", "filter")),
	}
}

// Add registers a filter. Names must be unique.
func (e *Engine) Add(f Filter) error {
	if f.Name == "" {
		return apperrors.NewAppValidationError("filter name is empty")
	}
	if _, exists := e.index[f.Name]; exists {
		return apperrors.NewAppValidationError(fmt.Sprintf("duplicate filter %q", f.Name))
	}
	e.index[f.Name] = len(e.filters)
	e.filters = append(e.filters, f)
	return nil
}

// Get returns the named filter
func (e *Engine) Get(name string) (Filter, bool) {
	i, ok := e.index[name]
	if !ok {
		return Filter{}, false
	}
	return e.filters[i], true
}

// Filters returns all filters in registration order
func (e *Engine) Filters() []Filter {
	return append([]Filter(nil), e.filters...)
}

// Validate compiles every filter against s and returns all problems found
func (e *Engine) Validate(s *schema.Schema) apperrors.Issues {
	var issues apperrors.Issues
	for _, f := range e.filters {
		if _, err := f.Compile(s); err != nil {
			issues.AddError(f.Entity(), apperrors.ErrTypeValidation, err)
		}
	}
	return issues
}

// Apply returns the mask of rows of ds that pass the named filter
func (e *Engine) Apply(name string, ds *dataset.Dataset, s *schema.Schema) ([]bool, error) {
	f, ok := e.Get(name)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("filter %q", name))
	}
	cl, err := f.Compile(s)
	if err != nil {
		return nil, err
	}
	mask := Mask(cl, f.WithNA, ds)
	e.logger.Debug("filter applied",
		slog.String("filter", name),
		slog.Int("rows", ds.Len()),
		slog.Int("passed", Count(mask)))
	return mask, nil
}

// Test applies every filter to ds and returns one mask per filter name.
// Filters that do not compile are reported as issues and left out.
func (e *Engine) Test(ds *dataset.Dataset, s *schema.Schema) (map[string][]bool, apperrors.Issues) {
	var issues apperrors.Issues
	out := make(map[string][]bool, len(e.filters))
	for _, f := range e.filters {
		cl, err := f.Compile(s)
		if err != nil {
			issues.AddError(f.Entity(), apperrors.ErrTypeValidation, err)
			continue
		}
		out[f.Name] = Mask(cl, f.WithNA, ds)
	}
	return out, issues
}

// Mask evaluates a compiled clause over every row
func Mask(cl formula.Clause, withNA bool, ds *dataset.Dataset) []bool {
	mask := make([]bool, ds.Len())
	for i := range mask {
		mask[i] = cl.EvalNA(ds.Row(i), withNA)
	}
	return mask
}

// And combines masks row by row. Nil masks are ignored.
func And(masks ...[]bool) []bool {
	var out []bool
	for _, m := range masks {
		if m == nil {
			continue
		}
		if out == nil {
			out = append([]bool(nil), m...)
			continue
		}
		for i := range out {
			out[i] = out[i] && i < len(m) && m[i]
		}
	}
	return out
}

// Count returns how many rows pass
func Count(mask []bool) int {
	n := 0
	for _, ok := range mask {
		if ok {
			n++
		}
	}
	return n
}
