package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"staats/internal/class"
	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/filter"
	"staats/internal/infrastructure"
	"staats/internal/recode"
	"staats/internal/schema"
	"staats/internal/tabulation"
)

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSettings sets alpha and the minimum base of every table
func WithSettings(s tabulation.Settings) Option {
	return func(p *Pipeline) { p.settings = s }
}

// WithWorkers bounds the concurrency of recode levels and table generation
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxRowIssues caps unmatched-row issues per recode and per classed tab.
// Negative values keep the default.
func WithMaxRowIssues(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxRowIssues = n
		}
	}
}

// WithTracer sets the tracer used for run spans
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithMetrics records run metrics on m
func WithMetrics(m *infrastructure.PipelineMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline runs a project: recodes, then every tab plan. It is immutable
// once built and safe for concurrent runs.
type Pipeline struct {
	project      Project
	schema       *schema.Schema
	recodes      *recode.Engine
	filters      *filter.Engine
	classes      *class.Engine
	settings     tabulation.Settings
	workers      int
	maxRowIssues int
	logger       *slog.Logger
	tracer       trace.Tracer
	metrics      *infrastructure.PipelineMetrics
}

// New checks the project structure and registers its definitions. Problems
// are returned together as apperrors.Issues.
func New(project Project, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		project:      project,
		settings:     tabulation.DefaultSettings(),
		workers:      4,
		maxRowIssues: recode.DefaultMaxRowIssues,
		logger:       slog.Default(),
		tracer:       otel.Tracer(infrastructure.InstrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = infrastructure.WithComponent(p.logger, "pipeline").With(slog.String("project", project.Name))

	issues := project.ValidateStruct()
	if len(issues) > 0 {
		return nil, issues
	}

	s, err := project.Schema()
	if err != nil {
		return nil, err
	}
	p.schema = s

	p.recodes = recode.NewEngine(p.logger, recode.WithWorkers(p.workers), recode.WithMaxRowIssues(p.maxRowIssues))
	p.filters = filter.NewEngine(p.logger)
	p.classes = class.NewEngine(p.logger)

	for _, r := range project.Recodes {
		issues.AddError(r.Entity(), apperrors.ErrTypeConfig, p.recodes.Add(r))
	}
	for _, f := range project.Filters {
		issues.AddError(f.Entity(), apperrors.ErrTypeConfig, p.filters.Add(f))
	}
	for _, c := range project.Classes {
		issues.AddError(c.Entity(), apperrors.ErrTypeConfig, p.classes.Add(c))
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return p, nil
}

// Project returns the definition the pipeline was built from
func (p *Pipeline) Project() Project { return p.project }

// Schema returns the question catalog before recodes
func (p *Pipeline) Schema() *schema.Schema { return p.schema }

// Filters returns the filter engine
func (p *Pipeline) Filters() *filter.Engine { return p.filters }

// Classes returns the class engine
func (p *Pipeline) Classes() *class.Engine { return p.classes }

// Preflight is the outcome of checking a project, and optionally a dataset,
// without evaluating anything
type Preflight struct {
	// Schema is the catalog extended with every recode output that compiled
	Schema   *schema.Schema   `json:"-"`
	Issues   apperrors.Issues `json:"issues"`
	Warnings []string         `json:"warnings,omitempty"`
}

// OK reports whether the project can run
func (pf *Preflight) OK() bool { return len(pf.Issues) == 0 }

// Preflight checks every definition of the project. When ds is not nil its
// columns are checked against the question catalog too. All problems are
// collected; nothing stops at the first one.
func (p *Pipeline) Preflight(ds *dataset.Dataset) *Preflight {
	pf := &Preflight{}
	if ds != nil {
		issues, warnings := p.schema.ValidateDataset(ds)
		pf.Issues.Extend(issues)
		pf.Warnings = append(pf.Warnings, warnings...)
	}

	ext, issues := p.recodes.Validate(p.schema)
	pf.Schema = ext
	pf.Issues.Extend(issues)
	pf.Issues.Extend(p.filters.Validate(ext))
	pf.Issues.Extend(p.classes.Validate())

	gen := p.generator(ext)
	plans := make(map[string]bool, len(p.project.Plans))
	tabs := make(map[string]string)
	for _, plan := range p.project.Plans {
		if plans[plan.Name] {
			pf.Issues.Add(plan.Entity(), apperrors.ErrTypeValidation, "duplicate plan name")
		}
		plans[plan.Name] = true
		pf.Issues.Extend(p.validatePlan(plan, ext))

		for _, spec := range plan.Tabs {
			if other, dup := tabs[spec.Name]; dup {
				pf.Issues.Add(spec.Entity(), apperrors.ErrTypeValidation, "duplicate tab name (also in plan %q)", other)
			}
			tabs[spec.Name] = plan.Name
			pf.Issues.Extend(gen.Validate(plan.apply(spec)))
		}
	}

	if len(p.project.Plans) == 0 {
		pf.Warnings = append(pf.Warnings, "project defines no tab plans")
	}
	return pf
}

func (p *Pipeline) validatePlan(plan TabPlan, s *schema.Schema) apperrors.Issues {
	var issues apperrors.Issues
	if plan.Filter != "" {
		f, ok := p.filters.Get(plan.Filter)
		if !ok {
			issues.Add(plan.Entity(), apperrors.ErrTypeValidation, "unknown filter %q", plan.Filter)
		} else if _, err := f.Compile(s); err != nil {
			issues.Add(plan.Entity(), apperrors.ErrTypeValidation, "filter %q does not compile", plan.Filter)
		}
	}
	if plan.Weight != "" {
		if q, ok := s.Question(plan.Weight); !ok {
			issues.Add(plan.Entity(), apperrors.ErrTypeValidation, "unknown weight variable %q", plan.Weight)
		} else if q.Type != schema.Numeric {
			issues.Add(plan.Entity(), apperrors.ErrTypeValidation, "weight variable %q must be numeric, is %s", plan.Weight, q.Type)
		}
	}
	for _, name := range plan.Summaries {
		if q, ok := s.Question(name); !ok {
			issues.Add(plan.Entity(), apperrors.ErrTypeValidation, "unknown summary variable %q", name)
		} else if q.Type != schema.Numeric {
			issues.Add(plan.Entity(), apperrors.ErrTypeValidation, "summary variable %q must be numeric, is %s", name, q.Type)
		}
	}
	return issues
}

// apply puts the plan weight onto a tab
func (plan TabPlan) apply(spec tabulation.Spec) tabulation.Spec {
	if plan.Weight != "" {
		spec.Weight = plan.Weight
	}
	return spec
}

func (p *Pipeline) generator(s *schema.Schema) *tabulation.Generator {
	return tabulation.NewGenerator(s, p.filters, p.classes,
		tabulation.WithSettings(p.settings),
		tabulation.WithLogger(p.logger))
}

// Run evaluates the project over ds. Definition problems abort the run before
// any row is read and come back as apperrors.Issues. Rows that match no rule
// of a strict recode, or no bin of a strict class in a tab, are reported in
// Report.Issues and do not abort.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset) (report *Report, err error) {
	ctx, runID := infrastructure.NewRunID(infrastructure.EnsureTraceID(ctx))
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("project", p.project.Name),
		attribute.String("run_id", runID),
		attribute.Int("rows", ds.Len()),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		p.metrics.RecordRun(ctx, p.project.Name, ds.Len(), time.Since(start), err)
	}()

	p.logger.InfoContext(ctx, "pipeline run started",
		slog.Int("rows", ds.Len()),
		slog.Int("recodes", p.recodes.Len()),
		slog.Int("plans", len(p.project.Plans)))

	pf := p.Preflight(ds)
	if !pf.OK() {
		p.metrics.RecordIssues(ctx, pf.Issues)
		p.logger.WarnContext(ctx, "pipeline rejected", slog.Int("issues", len(pf.Issues)))
		return nil, pf.Issues
	}

	report = &Report{
		RunID:     runID,
		Project:   p.project.Name,
		StartedAt: start,
		Rows:      ds.Len(),
		Warnings:  pf.Warnings,
	}

	rctx, rspan := p.tracer.Start(ctx, "pipeline.recode")
	res, err := p.recodes.Run(rctx, ds, p.schema)
	rspan.End()
	if err != nil {
		return nil, fmt.Errorf("run recodes: %w", err)
	}
	report.Dataset = res.Dataset
	report.Schema = res.Schema
	report.Recodes = res.Stats
	report.Issues = res.Issues
	for _, st := range res.Stats {
		p.metrics.RecordRecode(ctx, string(st.Kind))
	}
	p.metrics.RecordIssues(ctx, res.Issues)

	gen := p.generator(res.Schema)
	for _, plan := range p.project.Plans {
		pr, issues, err := p.runPlan(ctx, gen, plan, res.Dataset, res.Schema)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", plan.Entity(), err)
		}
		report.Plans = append(report.Plans, *pr)
		report.Issues.Extend(issues)
		p.metrics.RecordIssues(ctx, issues)
		p.metrics.RecordTables(ctx, plan.Name, len(pr.Tables))
	}

	report.Duration = time.Since(start)
	p.logger.InfoContext(ctx, "pipeline run finished",
		slog.Int("tables", report.TableCount()),
		slog.Int("row_issues", len(report.Issues)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (p *Pipeline) runPlan(ctx context.Context, gen *tabulation.Generator, plan TabPlan, ds *dataset.Dataset, s *schema.Schema) (*PlanResult, apperrors.Issues, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.plan", trace.WithAttributes(
		attribute.String("plan", plan.Name),
		attribute.Int("tabs", len(plan.Tabs)),
	))
	defer span.End()

	pop := ds
	// positions of the population rows in ds
	var source []int
	if plan.Filter != "" {
		mask, err := p.filters.Apply(plan.Filter, ds, s)
		if err != nil {
			return nil, nil, err
		}
		pop = ds.Subset(mask)
		for i, keep := range mask {
			if keep {
				source = append(source, i)
			}
		}
	}
	infrastructure.AddSpanEvent(ctx, "population", attribute.Int("respondents", pop.Len()))

	specs := make([]tabulation.Spec, len(plan.Tabs))
	for i, spec := range plan.Tabs {
		specs[i] = plan.apply(spec)
	}
	tables, err := gen.Report(ctx, pop, specs, p.workers)
	if err != nil {
		return nil, nil, err
	}

	var issues apperrors.Issues
	for _, t := range tables {
		rows := t.Unmatched
		if source != nil {
			rows = make([]int, len(t.Unmatched))
			for i, r := range t.Unmatched {
				rows[i] = source[r]
			}
		}
		issues.Extend(p.classIssues(t.Spec, rows))
	}

	pr := &PlanResult{
		Name:        plan.Name,
		Filter:      plan.Filter,
		Weight:      plan.Weight,
		Respondents: pop.Len(),
		Tables:      tables,
	}
	for _, name := range plan.Summaries {
		sum, err := tabulation.Summarize(pop, s, name, plan.Weight, nil)
		if err != nil {
			return nil, nil, err
		}
		pr.Summaries = append(pr.Summaries, sum)
	}
	return pr, issues, nil
}

// classIssues reports rows of ds, numbered from 1, whose value falls outside
// every bin of the tab's strict class, up to the configured cap
func (p *Pipeline) classIssues(spec tabulation.Spec, rows []int) apperrors.Issues {
	var issues apperrors.Issues
	for i, row := range rows {
		if i == p.maxRowIssues {
			issues.Add(spec.Entity(), apperrors.ErrTypeValidation, "%d more rows are outside every bin of class %q", len(rows)-i, spec.Class)
			break
		}
		issues.Add(spec.Entity(), apperrors.ErrTypeValidation, "row %d is outside every bin of class %q", row+1, spec.Class)
	}
	return issues
}
