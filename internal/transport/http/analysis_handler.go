package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "staats/internal/errors"
	"staats/internal/exporter"
	"staats/internal/middleware"
	"staats/internal/pipeline"
	"staats/internal/services"
)

// Output formats of POST /tabulate
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var tabulateFormats = []string{FormatJSON, FormatCSV, FormatXLSX}

// Content types of the tabulate exports
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AnalysisServiceInterface defines the analysis operations served over HTTP
type AnalysisServiceInterface interface {
	Validate(ctx context.Context, project pipeline.Project, data *services.DataTable) (*services.ValidationResult, error)
	Tabulate(ctx context.Context, project pipeline.Project, data *services.DataTable) (*pipeline.Report, error)
}

// ValidateRequest is the body of POST /validate. Data is optional; without it
// only the project definitions are checked.
type ValidateRequest struct {
	Project pipeline.Project    `json:"project" validate:"-"`
	Data    *services.DataTable `json:"data,omitempty"`
}

// TabulateRequest is the body of POST /tabulate. The format query parameter,
// when present, overrides Format.
type TabulateRequest struct {
	Project pipeline.Project    `json:"project" validate:"-"`
	Data    *services.DataTable `json:"data" validate:"required"`
	Format  string              `json:"format,omitempty" validate:"omitempty,oneof=json csv xlsx"`
}

// AnalysisHandler serves project validation and tabulation
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	workbook     *exporter.WorkbookExporter
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, validation *middleware.ValidationMiddleware, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:      service,
		validation:   validation,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		workbook:     exporter.NewWorkbookExporter(logger),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "analysis_handler")),
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.validation.ValidateRequest)
	r.Use(middleware.ContentTypeValidator(h.errorHandler, "application/json"))

	r.Post("/validate", h.Validate)
	r.Post("/tabulate", h.Tabulate)

	return r
}

// decode reads and validates the JSON body into v. On failure the problem
// response has been written.
func (h *AnalysisHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	if err := h.validation.ValidateStruct(v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// Validate handles POST /api/v1/validate. Projects with problems still
// answer 200; the result carries ok=false and the issue list.
func (h *AnalysisHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Validate(r.Context(), req.Project, req.Data)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// Tabulate handles POST /api/v1/tabulate. The report is answered as JSON,
// as the long-format tables CSV or as the styled XLSX workbook.
func (h *AnalysisHandler) Tabulate(w http.ResponseWriter, r *http.Request) {
	var req TabulateRequest
	if !h.decode(w, r, &req) {
		return
	}

	defaultFormat := req.Format
	if defaultFormat == "" {
		defaultFormat = FormatJSON
	}
	format, ok := h.query.ValidateEnum(w, r, "format", tabulateFormats, defaultFormat)
	if !ok {
		return
	}

	report, err := h.service.Tabulate(r.Context(), req.Project, req.Data)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "sending report",
		slog.String("run_id", report.RunID),
		slog.String("format", format),
		slog.Int("tables", report.TableCount()))

	switch format {
	case FormatCSV:
		var buf bytes.Buffer
		if err := exporter.WriteTables(&buf, report); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.attachment(w, ContentTypeCSV, report.Project, "csv", buf.Bytes())
	case FormatXLSX:
		var buf bytes.Buffer
		if err := h.workbook.WriteReport(report, &buf); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.attachment(w, ContentTypeXLSX, report.Project, "xlsx", buf.Bytes())
	default:
		render.JSON(w, r, report)
	}
}

func (h *AnalysisHandler) attachment(w http.ResponseWriter, contentType, project, ext string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-tables.%s"`, safeFilename(project), ext))
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// safeFilename keeps letters, digits, dashes and underscores
func safeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(name))
	if strings.Trim(name, "_") == "" {
		return "report"
	}
	return name
}
