package class

import (
	"fmt"
	"log/slog"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/formula"
	"staats/internal/schema"
)

// Bin is one range of a class, e.g. {"X>=18 and X<30", "18-29"}
type Bin struct {
	Formula string `json:"formula" yaml:"formula" validate:"required"`
	Label   string `json:"label" yaml:"label" validate:"required"`
}

// Class bins a numeric variable into ordered categories. Bins are scanned in
// order and the first matching one wins.
type Class struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	Bins []Bin  `json:"bins" yaml:"bins" validate:"required,min=1,dive"`
	// OptionNA makes values outside every bin missing instead of reporting them
	OptionNA bool `json:"option_na" yaml:"option_na"`
}

// Entity names the class in issue lists
func (c Class) Entity() string { return fmt.Sprintf("class %q", c.Name) }

// Compiled is a class with parsed bins
type Compiled struct {
	Class
	clauses []formula.Clause
}

// Compile parses every bin, reporting all bins that fail
func (c Class) Compile() (*Compiled, error) {
	var issues apperrors.Issues
	if len(c.Bins) == 0 {
		issues.Add(c.Entity(), apperrors.ErrTypeValidation, "class has no bins")
	}
	out := &Compiled{Class: c, clauses: make([]formula.Clause, 0, len(c.Bins))}
	for _, b := range c.Bins {
		cl, err := formula.ParseClassClause(b.Formula)
		if err != nil {
			issues.AddError(fmt.Sprintf("%s bin %q", c.Entity(), b.Label), apperrors.ErrTypeValidation, err)
			continue
		}
		out.clauses = append(out.clauses, cl)
	}
	if err := issues.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Codes returns the code table of the binned variable: bin i has code i+1
func (c *Compiled) Codes() schema.CodeTable {
	ct := make(schema.CodeTable, len(c.Bins))
	for i, b := range c.Bins {
		ct[i] = schema.Code{Value: i + 1, Label: b.Label}
	}
	return ct
}

// Bin returns the 1-based code of the first bin containing v
func (c *Compiled) Bin(v dataset.Value) (int, bool) {
	if v.IsNA() {
		return 0, false
	}
	for i, cl := range c.clauses {
		if cl.EvalScalar(v) {
			return i + 1, true
		}
	}
	return 0, false
}

// Outcome is a binned column
type Outcome struct {
	Values []dataset.Value
	Codes  schema.CodeTable
	// Unmatched lists rows with an answer outside every bin when OptionNA is
	// off. Those rows are NA in Values.
	Unmatched []int
}

// Apply bins values. Missing answers stay missing.
func (c *Compiled) Apply(values []dataset.Value) Outcome {
	out := Outcome{Values: make([]dataset.Value, len(values)), Codes: c.Codes()}
	for i, v := range values {
		if v.IsNA() {
			continue
		}
		code, ok := c.Bin(v)
		if !ok {
			if !c.OptionNA {
				out.Unmatched = append(out.Unmatched, i)
			}
			continue
		}
		out.Values[i] = dataset.Code(code)
	}
	return out
}

// Engine stores named classes
type Engine struct {
	classes []Class
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
		logger: logger.With(slog.String("component", "class")),
	}
}

// Add registers a class. Names must be unique.
func (e *Engine) Add(c Class) error {
	if c.Name == "" {
		return apperrors.NewAppValidationError("class name is empty")
	}
	if _, exists := e.index[c.Name]; exists {
		return apperrors.NewAppValidationError(fmt.Sprintf("duplicate class %q", c.Name))
	}
	e.index[c.Name] = len(e.classes)
	e.classes = append(e.classes, c)
	return nil
}

// Get returns the named class
func (e *Engine) Get(name string) (Class, bool) {
	i, ok := e.index[name]
	if !ok {
		return Class{}, false
	}
	return e.classes[i], true
}

// Classes returns all classes in registration order
func (e *Engine) Classes() []Class {
	return append([]Class(nil), e.classes...)
}

// Validate parses every bin of every class and returns all problems found
func (e *Engine) Validate() apperrors.Issues {
	var issues apperrors.Issues
	for _, c := range e.classes {
		if _, err := c.Compile(); err != nil {
			issues.AddError(c.Entity(), apperrors.ErrTypeValidation, err)
		}
	}
	return issues
}

// Compile returns the named class ready to apply
func (e *Engine) Compile(name string) (*Compiled, error) {
	c, ok := e.Get(name)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("class %q", name))
	}
	return c.Compile()
}

// Apply bins a numeric column with the named class
func (e *Engine) Apply(name string, values []dataset.Value) (Outcome, error) {
	c, err := e.Compile(name)
	if err != nil {
		return Outcome{}, err
	}
	out := c.Apply(values)
	e.logger.Debug("class applied",
		slog.String("class", name),
		slog.Int("rows", len(values)),
		slog.Int("unmatched", len(out.Unmatched)))
	return out, nil
}
