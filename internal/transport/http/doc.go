// Package http implements the HTTP handlers of the staats API. Handlers stay
// thin: they decode and validate the request, call a service and render the
// result.
//
// # Endpoints
//
//	POST /api/v1/validate   preflight of a project, optionally against data
//	POST /api/v1/tabulate   run a project over inline data (json, csv, xlsx)
//	GET  /healthz           liveness and runtime statistics
//	GET  /metrics           Prometheus exposition
//
// # Request bodies
//
// Both POST endpoints take the project in the same shape as a JSON project
// file, plus the data as a header and raw cell texts:
//
//	{
//	    "project": {"name": "brands", "questions": [...], "plans": [...]},
//	    "data": {"columns": ["Gender", "Age"], "rows": [["1", "34"], ["2", "51"]]}
//	}
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details. A project that cannot run is
// answered with 422 and its issue list:
//
//	{
//	    "type": "/errors/pipeline/rejected",
//	    "title": "Project Rejected",
//	    "status": 422,
//	    "detail": "project has 1 issue(s)",
//	    "issues": [{"entity": "tab \"t1\"", "kind": "VALIDATION", "message": "..."}]
//	}
//
// # Testing
//
// Handlers are tested with httptest against testify mocks of their service
// interfaces.
package http
