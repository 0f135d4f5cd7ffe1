package pipeline

import (
	"time"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/recode"
	"staats/internal/schema"
	"staats/internal/tabulation"
)

// PlanResult holds the tables of one plan
type PlanResult struct {
	Name   string `json:"name"`
	Filter string `json:"filter,omitempty"`
	Weight string `json:"weight,omitempty"`
	// Respondents counts the rows passing the plan filter
	Respondents int                  `json:"respondents"`
	Tables      []*tabulation.Result `json:"tables"`
	Summaries   []tabulation.Summary `json:"summaries,omitempty"`
}

// Report is the outcome of one pipeline run
type Report struct {
	RunID     string        `json:"run_id"`
	Project   string        `json:"project"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Rows      int           `json:"rows"`
	// Dataset is the input extended with one column per recode
	Dataset *dataset.Dataset `json:"-"`
	Schema  *schema.Schema   `json:"-"`
	Recodes []recode.Stats   `json:"recodes"`
	Plans   []PlanResult     `json:"plans"`
	// Issues lists row-level problems of a completed run: rows matching no
	// rule of a strict recode and rows outside every bin of a strict class.
	// A run that returns a Report may still carry issues; the tables are
	// computed without those rows.
	Issues   apperrors.Issues `json:"issues,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// TableCount returns the number of tables over all plans
func (r *Report) TableCount() int {
	n := 0
	for _, p := range r.Plans {
		n += len(p.Tables)
	}
	return n
}

// Tables returns every table in plan order
func (r *Report) Tables() []*tabulation.Result {
	out := make([]*tabulation.Result, 0, r.TableCount())
	for _, p := range r.Plans {
		out = append(out, p.Tables...)
	}
	return out
}

// Table finds a table by tab name
func (r *Report) Table(name string) (*tabulation.Result, bool) {
	for _, p := range r.Plans {
		for _, t := range p.Tables {
			if t.Spec.Name == name {
				return t, true
			}
		}
	}
	return nil, false
}
