package tabulation

import (
	"fmt"
	"strings"

	"staats/internal/dataset"
)

// TotalKey is the key of the all-respondents column
const TotalKey = "Total"

// Category is one value of a row or column axis
type Category struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
	NA    bool    `json:"na,omitempty"`
}

// Key identifies the category within its axis
func (c Category) Key() string {
	if c.NA {
		return "NA"
	}
	return dataset.FormatNumber(c.Value)
}

// Column is one column of a table. With a second column variable every
// column belongs to the group of its primary category and letter tests only
// compare columns of the same group.
type Column struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Letter    string    `json:"letter,omitempty"`
	Primary   *Category `json:"primary,omitempty"`
	Secondary *Category `json:"secondary,omitempty"`
	Group     int       `json:"group"`
	Total     bool      `json:"total,omitempty"`
	// Base is the weighted number of respondents in the column
	Base        float64 `json:"base"`
	Respondents int     `json:"respondents"`
	// Unreliable marks a base below the minimum: the column is neither
	// tested nor used as a comparison.
	Unreliable bool `json:"unreliable,omitempty"`
}

// Cell is one row × column intersection
type Cell struct {
	Count float64 `json:"count"`
	// ColPct is Count over the column base, RowPct Count over the row total
	ColPct float64 `json:"col_pct"`
	RowPct float64 `json:"row_pct"`
	// Letters lists the columns this cell is significantly greater than
	Letters    string `json:"letters,omitempty"`
	Unreliable bool   `json:"unreliable,omitempty"`
}

// Row is one row category with its cells aligned on Result.Columns
type Row struct {
	Category Category `json:"category"`
	Cells    []Cell   `json:"cells"`
}

// ChiSquare is a test of independence between the row and column variables
type ChiSquare struct {
	Statistic float64 `json:"statistic"`
	DF        int     `json:"df"`
	PValue    float64 `json:"p_value"`
}

// Result is a computed cross-tabulation. Columns[0] is the Total column.
type Result struct {
	Spec     Spec       `json:"spec"`
	Title    string     `json:"title"`
	Settings Settings   `json:"settings"`
	Columns  []Column   `json:"columns"`
	Rows     []Row      `json:"rows"`
	Chi      *ChiSquare `json:"chi_square,omitempty"`
	// Excluded counts respondents left out by the filter, a missing weight or
	// a missing answer without the matching NA flag.
	Excluded int `json:"excluded"`
	// Unmatched lists the rows of the input whose row value falls outside
	// every bin of a class without OptionNA. They are part of Excluded.
	Unmatched []int `json:"unmatched_rows,omitempty"`
}

// Base returns the weighted total of the table
func (r *Result) Base() float64 { return r.Columns[0].Base }

// Column returns the column with the given key
func (r *Result) Column(key string) (int, bool) {
	for i, c := range r.Columns {
		if c.Key == key {
			return i, true
		}
	}
	return 0, false
}

// Row returns the index of the row category with the given key
func (r *Result) Row(key string) (int, bool) {
	for i, row := range r.Rows {
		if row.Category.Key() == key {
			return i, true
		}
	}
	return 0, false
}

// Format renders a cell according to the display mode, without letters
func (r *Result) Format(row, col int) string {
	c := r.Rows[row].Cells[col]
	switch r.Spec.Display {
	case Counts:
		return FormatCount(c.Count)
	case Vertical:
		return FormatPct(c.ColPct)
	case Horizontal:
		return FormatPct(c.RowPct)
	default:
		return fmt.Sprintf("%s (%s)", FormatCount(c.Count), FormatPct(c.ColPct))
	}
}

// FormatCount prints whole counts without decimals, weighted ones with one
func FormatCount(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(s, ".0")
}

// FormatPct prints a percentage with one decimal
func FormatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
