package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"staats/internal/config"
	"staats/internal/dataprocessing"
	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/infrastructure"
	"staats/internal/pipeline"
	"staats/internal/tabulation"
)

// DataTable carries survey rows the way a CSV file holds them: a header and
// raw cell texts, typed against the question catalog of the project
type DataTable struct {
	Columns []string   `json:"columns" validate:"required,min=1,dive,varname"`
	Rows    [][]string `json:"rows"`
}

// ValidationResult is the outcome of a preflight
type ValidationResult struct {
	Project  string           `json:"project"`
	OK       bool             `json:"ok"`
	Rows     int              `json:"rows"`
	Issues   apperrors.Issues `json:"issues"`
	Warnings []string         `json:"warnings,omitempty"`
}

// AnalysisService builds pipelines from request payloads with the
// application's analysis settings
type AnalysisService struct {
	settings     tabulation.Settings
	workers      int
	maxRowIssues int
	metrics      *infrastructure.PipelineMetrics
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewAnalysisService creates an analysis service. metrics and tracer may be nil.
func NewAnalysisService(cfg config.AnalysisConfig, metrics *infrastructure.PipelineMetrics, tracer trace.Tracer, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		settings:     tabulation.Settings{Alpha: cfg.Alpha, MinBase: cfg.MinBase},
		workers:      cfg.Workers,
		maxRowIssues: cfg.MaxRowIssues,
		metrics:      metrics,
		tracer:       tracer,
		logger:       logger.With(slog.String("service", "analysis")),
	}
}

func (s *AnalysisService) newPipeline(project pipeline.Project) (*pipeline.Pipeline, error) {
	return pipeline.New(project,
		pipeline.WithLogger(s.logger),
		pipeline.WithSettings(s.settings),
		pipeline.WithWorkers(s.workers),
		pipeline.WithMaxRowIssues(s.maxRowIssues),
		pipeline.WithTracer(s.tracer),
		pipeline.WithMetrics(s.metrics),
	)
}

// Validate checks the project, and the data when given, without evaluating
// any formula. Definition problems are part of the result, not an error.
func (s *AnalysisService) Validate(ctx context.Context, project pipeline.Project, data *DataTable) (*ValidationResult, error) {
	result := &ValidationResult{Project: project.Name}

	p, err := s.newPipeline(project)
	if err != nil {
		var issues apperrors.Issues
		var appErr *apperrors.AppError
		if !errors.As(err, &issues) && !errors.As(err, &appErr) {
			return nil, err
		}
		result.Issues.AddError("project", apperrors.ErrTypeConfig, err)
		s.logResult(ctx, result)
		return result, nil
	}

	var ds *dataset.Dataset
	if data != nil {
		if ds, err = dataprocessing.FromTable(data.Columns, data.Rows, p.Schema()); err != nil {
			return nil, err
		}
		result.Rows = ds.Len()
	}

	pf := p.Preflight(ds)
	result.OK = pf.OK()
	result.Issues = pf.Issues
	result.Warnings = pf.Warnings
	s.logResult(ctx, result)
	return result, nil
}

func (s *AnalysisService) logResult(ctx context.Context, result *ValidationResult) {
	s.metrics.RecordIssues(ctx, result.Issues)
	s.logger.InfoContext(ctx, "project validated",
		slog.String("project", result.Project),
		slog.Bool("ok", result.OK),
		slog.Int("issues", len(result.Issues)),
		slog.Int("rows", result.Rows))
}

// Tabulate runs the project over the data. A project with definition
// problems fails with apperrors.Issues.
func (s *AnalysisService) Tabulate(ctx context.Context, project pipeline.Project, data *DataTable) (*pipeline.Report, error) {
	if data == nil {
		return nil, ErrNoData
	}
	start := time.Now()

	p, err := s.newPipeline(project)
	if err != nil {
		return nil, err
	}
	ds, err := dataprocessing.FromTable(data.Columns, data.Rows, p.Schema())
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, ErrNoData
	}

	report, err := p.Run(ctx, ds)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "project tabulated",
		slog.String("project", project.Name),
		slog.String("run_id", report.RunID),
		slog.Int("rows", report.Rows),
		slog.Int("tables", report.TableCount()),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}
