package recode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/schema"
)

const defaultWorkers = 4

// DefaultMaxRowIssues is the number of unmatched rows reported per recode
// before the rest are summarized in one issue
const DefaultMaxRowIssues = 20

// Stats summarizes one recode evaluation
type Stats struct {
	Name      string        `json:"name"`
	Kind      Kind          `json:"kind"`
	Level     int           `json:"level"`
	Matched   int           `json:"matched"`
	Unmatched int           `json:"unmatched"`
	Missing   int           `json:"missing"`
	Degraded  int           `json:"degraded"`
	Duration  time.Duration `json:"duration"`
}

// Result is the outcome of a run: the dataset extended with one column per
// recode and the schema extended with their questions.
type Result struct {
	Dataset *dataset.Dataset
	Schema  *schema.Schema
	Stats   []Stats
	// Issues lists rows that matched no rule in recodes without OptionNA.
	// Their values are NA in the output.
	Issues apperrors.Issues
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers bounds how many recodes of one dependency level run at once
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMaxRowIssues caps the unmatched-row issues reported per recode
func WithMaxRowIssues(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRowIssues = n
		}
	}
}

// Engine holds the recodes of a project in declaration order
type Engine struct {
	recodes      []Recode
	logger       *slog.Logger
	workers      int
	maxRowIssues int
}

// NewEngine creates an empty engine
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:       logger.With(slog.String("component", "recode")),
		workers:      defaultWorkers,
		maxRowIssues: DefaultMaxRowIssues,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add appends a recode. Names must be unique within the engine.
func (e *Engine) Add(r Recode) error {
	if r.Name == "" {
		return apperrors.NewAppValidationError("recode name is empty")
	}
	for _, existing := range e.recodes {
		if existing.Name == r.Name {
			return apperrors.NewAppValidationError(fmt.Sprintf("duplicate recode %q", r.Name))
		}
	}
	e.recodes = append(e.recodes, r)
	return nil
}

// Recodes returns the recodes in declaration order
func (e *Engine) Recodes() []Recode {
	return append([]Recode(nil), e.recodes...)
}

// Len returns the number of recodes
func (e *Engine) Len() int { return len(e.recodes) }

// Validate compiles every recode against s, each one seeing the outputs of
// those declared before it. It returns the extended schema and every problem
// found; s is not modified.
func (e *Engine) Validate(s *schema.Schema) (*schema.Schema, apperrors.Issues) {
	ext, _, issues := e.compileAll(s)
	return ext, issues
}

func (e *Engine) compileAll(s *schema.Schema) (*schema.Schema, []*compiled, apperrors.Issues) {
	var (
		issues apperrors.Issues
		plan   []*compiled
	)
	ext := s.Clone()
	for _, r := range e.recodes {
		if _, exists := ext.Question(r.Name); exists {
			issues.Add(r.Entity(), apperrors.ErrTypeValidation, "name %q is already a question", r.Name)
			continue
		}
		c, err := compile(r, ext)
		if err != nil {
			issues.AddError(r.Entity(), apperrors.ErrTypeValidation, err)
			continue
		}
		if err := ext.Put(c.output); err != nil {
			issues.AddError(r.Entity(), apperrors.ErrTypeValidation, err)
			continue
		}
		plan = append(plan, c)
		e.logger.Debug("recode compiled",
			slog.String("recode", r.Name),
			slog.String("kind", string(r.Kind)),
			slog.Any("depends_on", c.deps))
	}
	return ext, plan, issues
}

// levels groups the plan so that every recode only depends on recodes of
// earlier levels. Declaration order is kept inside a level.
func levels(plan []*compiled) [][]*compiled {
	level := make(map[string]int, len(plan))
	var out [][]*compiled
	for _, c := range plan {
		l := 0
		for _, dep := range c.deps {
			if dl, ok := level[dep]; ok && dl+1 > l {
				l = dl + 1
			}
		}
		level[c.Name] = l
		for len(out) <= l {
			out = append(out, nil)
		}
		out[l] = append(out[l], c)
	}
	return out
}

// Run validates all recodes and, when none fails, evaluates them over ds.
// Validation problems are returned as apperrors.Issues before any row is read.
// Recodes of one dependency level are evaluated concurrently; the result
// columns are appended in declaration order.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset, s *schema.Schema) (*Result, error) {
	start := time.Now()
	ext, plan, issues := e.compileAll(s)
	if len(issues) > 0 {
		return nil, issues
	}

	res := &Result{Dataset: ds, Schema: ext}
	work := ds
	cols := make(map[string]column, len(plan))

	for li, level := range levels(plan) {
		out := make([]column, len(level))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for i, c := range level {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				t := time.Now()
				out[i] = c.evaluate(work)
				out[i].stats.Level = li
				out[i].stats.Duration = time.Since(t)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("recode level %d: %w", li, err)
		}

		for i, c := range level {
			next, err := work.WithColumn(c.Name, out[i].values)
			if err != nil {
				return nil, apperrors.NewAppError(apperrors.ErrTypeComputation, c.Entity()+": cannot add column", err)
			}
			work = next
			cols[c.Name] = out[i]

			e.logger.Debug("recode evaluated",
				slog.String("recode", c.Name),
				slog.Int("level", li),
				slog.Int("matched", out[i].stats.Matched),
				slog.Int("missing", out[i].stats.Missing),
				slog.Duration("duration", out[i].stats.Duration))
		}
	}

	for _, c := range plan {
		col := cols[c.Name]
		next, err := res.Dataset.WithColumn(c.Name, col.values)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeComputation, c.Entity()+": cannot add column", err)
		}
		res.Dataset = next
		if err := res.Schema.Put(col.question); err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeComputation, c.Entity()+": invalid output question", err)
		}
		res.Stats = append(res.Stats, col.stats)
		res.Issues.Extend(e.rowIssues(c.Recode, col.unmatched))
	}

	e.logger.InfoContext(ctx, "recodes computed",
		slog.Int("recodes", len(plan)),
		slog.Int("rows", ds.Len()),
		slog.Int("row_issues", len(res.Issues)),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

// rowIssues reports unmatched rows, numbered from 1, up to the configured cap
func (e *Engine) rowIssues(r Recode, rows []int) apperrors.Issues {
	var issues apperrors.Issues
	for i, row := range rows {
		if i == e.maxRowIssues {
			issues.Add(r.Entity(), apperrors.ErrTypeValidation, "%d more rows match no rule", len(rows)-i)
			break
		}
		issues.Add(r.Entity(), apperrors.ErrTypeValidation, "row %d matches no rule", row+1)
	}
	return issues
}
