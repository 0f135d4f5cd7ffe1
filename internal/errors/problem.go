package errors

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ProblemDetails is an RFC 7807 problem document. The members after Instance
// are the staats extensions; empty ones are left out of the body.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	TraceID   string      `json:"trace_id,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Issues    []Issue     `json:"issues,omitempty"`
	Panic     string      `json:"panic,omitempty"`
	Stack     string      `json:"stack,omitempty"`
}

// NewProblemDetails creates a problem without request information; see At
func NewProblemDetails(status int, problemType, title, detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// At stamps the request path and request id onto the problem
func (pd *ProblemDetails) At(r *http.Request) *ProblemDetails {
	pd.Instance = r.URL.Path
	pd.TraceID = middleware.GetReqID(r.Context())
	return pd
}

// Render implements render.Renderer
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}
