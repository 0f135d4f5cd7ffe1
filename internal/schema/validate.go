package schema

import (
	"sort"
	"strings"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
)

// sampleRows bounds how many rows ValidateDataset inspects per column
const sampleRows = 100

// Accepts reports whether v is a legal answer for the question. NA is always
// accepted.
func (q Question) Accepts(v dataset.Value) bool {
	if v.IsNA() {
		return true
	}
	switch q.Type {
	case Numeric:
		_, ok := v.Float()
		return ok
	case QualiUnique:
		c, ok := v.Int()
		return ok && q.Codes.Has(c)
	case QualiMultiple:
		cs, ok := v.CodeSet()
		if !ok {
			return false
		}
		for _, c := range cs {
			if !q.Codes.Has(c) {
				return false
			}
		}
		return true
	}
	return true
}

// ValidateDataset checks that ds carries every question with answers of the
// right shape; only the first rows of each column are sampled. Columns the
// schema does not know are returned as warnings.
func (s *Schema) ValidateDataset(ds *dataset.Dataset) (issues apperrors.Issues, warnings []string) {
	var missing []string
	for _, name := range s.order {
		if !ds.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		issues.Add("dataset", apperrors.ErrTypeValidation, "missing columns in data: %s", strings.Join(missing, ", "))
	}

	var extra []string
	for _, name := range ds.Names() {
		if _, ok := s.questions[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		warnings = append(warnings, "extra columns in data (ignored): "+strings.Join(extra, ", "))
	}

	for _, name := range s.order {
		col, ok := ds.Column(name)
		if !ok {
			continue
		}
		q := s.questions[name]
		invalid := 0
		for i := 0; i < len(col) && i < sampleRows; i++ {
			if !q.Accepts(col[i]) {
				invalid++
			}
		}
		if invalid > 0 {
			issues.Add("question \""+name+"\"", apperrors.ErrTypeValidation,
				"%d invalid values (type: %s)", invalid, q.Type)
		}
	}
	return issues, warnings
}
