package tabulation

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/schema"
)

// Summary describes the distribution of a numeric variable. With no valid
// observation every statistic is zero.
type Summary struct {
	Variable  string  `json:"variable"`
	N         int     `json:"n"`
	WeightedN float64 `json:"weighted_n"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	StdDev    float64 `json:"std_dev"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

// Summarize computes weighted statistics of a numeric variable over the rows
// selected by mask (nil selects all). Rows with a missing value or weight are
// skipped; weight may be empty.
func Summarize(ds *dataset.Dataset, s *schema.Schema, variable, weight string, mask []bool) (Summary, error) {
	out := Summary{Variable: variable}
	for _, name := range []string{variable, weight} {
		if name == "" {
			continue
		}
		q, ok := s.Question(name)
		if !ok {
			return out, apperrors.NewNotFoundError(fmt.Sprintf("variable %q", name))
		}
		if q.Type != schema.Numeric {
			return out, apperrors.NewAppValidationError(fmt.Sprintf("variable %q must be Numeric, got %s", name, q.Type))
		}
	}

	var xs, ws []float64
	for i := 0; i < ds.Len(); i++ {
		if mask != nil && (i >= len(mask) || !mask[i]) {
			continue
		}
		x, ok := ds.Value(i, variable).Float()
		if !ok {
			continue
		}
		w := 1.0
		if weight != "" {
			if w, ok = ds.Value(i, weight).Float(); !ok || w < 0 {
				continue
			}
		}
		xs = append(xs, x)
		ws = append(ws, w)
	}

	out.N = len(xs)
	for _, w := range ws {
		out.WeightedN += w
	}
	if out.N == 0 || out.WeightedN == 0 {
		// statistics stay zero; callers check N
		return out, nil
	}

	stat.SortWeighted(xs, ws)
	out.Mean = stat.Mean(xs, ws)
	out.Median = stat.Quantile(0.5, stat.Empirical, xs, ws)
	out.Min, out.Max = xs[0], xs[len(xs)-1]
	if out.N > 1 {
		out.StdDev = stat.StdDev(xs, ws)
	}
	return out, nil
}
