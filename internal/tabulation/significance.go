package tabulation

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ZTest compares the proportions x1/n1 and x2/n2 with the pooled-variance
// two-proportion z-test. ok is false when the test is undefined: an empty
// base or no variance in the pooled sample.
func ZTest(x1, n1, x2, n2 float64) (z, p float64, ok bool) {
	if n1 <= 0 || n2 <= 0 {
		return 0, 1, false
	}
	pooled := (x1 + x2) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 || math.IsNaN(se) {
		return 0, 1, false
	}
	z = (x1/n1 - x2/n2) / se
	p = 2 * distuv.UnitNormal.Survival(math.Abs(z))
	return z, p, true
}

// Letter returns the spreadsheet-style letter of the i-th tested column:
// A..Z, then AA, AB, ...
func Letter(i int) string {
	var b []byte
	for i >= 0 {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
	}
	return string(b)
}

// markSignificance adds the letters of one row. Each cell receives the
// letters of the columns of its group it is significantly greater than.
func markSignificance(row *Row, cols []Column, alpha float64) {
	for i := range cols {
		ci := cols[i]
		if ci.Total || ci.Unreliable || ci.Base <= 0 {
			continue
		}
		var letters []byte
		for j := range cols {
			cj := cols[j]
			if i == j || cj.Total || cj.Unreliable || cj.Base <= 0 || cj.Group != ci.Group {
				continue
			}
			xi, xj := row.Cells[i].Count, row.Cells[j].Count
			if xi/ci.Base <= xj/cj.Base {
				continue
			}
			if _, p, ok := ZTest(xi, ci.Base, xj, cj.Base); ok && p < alpha {
				letters = append(letters, cj.Letter...)
			}
		}
		row.Cells[i].Letters = string(letters)
	}
}

// chiSquare tests independence on the table without the Total column.
// Rows and columns with an empty margin are dropped; nil is returned when
// fewer than two rows or columns remain.
func chiSquare(rows []Row, cols []Column) *ChiSquare {
	var colIdx []int
	colSum := make(map[int]float64)
	for j, c := range cols {
		if c.Total {
			continue
		}
		for _, r := range rows {
			colSum[j] += r.Cells[j].Count
		}
		if colSum[j] > 0 {
			colIdx = append(colIdx, j)
		}
	}

	var (
		rowSums []float64
		kept    []Row
		total   float64
	)
	for _, r := range rows {
		s := 0.0
		for _, j := range colIdx {
			s += r.Cells[j].Count
		}
		if s > 0 {
			rowSums = append(rowSums, s)
			kept = append(kept, r)
			total += s
		}
	}
	if len(kept) < 2 || len(colIdx) < 2 || total <= 0 {
		return nil
	}

	// column sums over the kept rows only
	sums := make([]float64, len(colIdx))
	for _, r := range kept {
		for k, j := range colIdx {
			sums[k] += r.Cells[j].Count
		}
	}

	stat := 0.0
	for ri, r := range kept {
		for k, j := range colIdx {
			expected := rowSums[ri] * sums[k] / total
			if expected == 0 {
				continue
			}
			d := r.Cells[j].Count - expected
			stat += d * d / expected
		}
	}
	df := (len(kept) - 1) * (len(colIdx) - 1)
	return &ChiSquare{
		Statistic: stat,
		DF:        df,
		PValue:    distuv.ChiSquared{K: float64(df)}.Survival(stat),
	}
}
