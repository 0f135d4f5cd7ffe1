package tabulation

import (
	"fmt"
	"strings"
)

// DisplayMode selects what a rendered cell shows
type DisplayMode string

const (
	Counts DisplayMode = "counts"
	// Vertical shows column percentages (cell / column base)
	Vertical DisplayMode = "vertical"
	// Horizontal shows row percentages (cell / row total)
	Horizontal DisplayMode = "horizontal"
	// Both shows the count followed by the column percentage
	Both DisplayMode = "both"
)

// ParseDisplayMode accepts the mode names and their common abbreviations
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both", "counts+%", "count_pct":
		return Both, nil
	case "counts", "count", "n":
		return Counts, nil
	case "vertical", "col%", "column", "v%":
		return Vertical, nil
	case "horizontal", "row%", "row", "h%":
		return Horizontal, nil
	}
	return "", fmt.Errorf("unknown display mode %q", s)
}

// UnmarshalText normalizes modes read from JSON or YAML
func (m *DisplayMode) UnmarshalText(text []byte) error {
	parsed, err := ParseDisplayMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Spec defines one cross-tabulation
type Spec struct {
	Name      string `json:"name" yaml:"name" validate:"required"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Row       string `json:"row_var" yaml:"row_var" validate:"required"`
	Col       string `json:"col_var" yaml:"col_var" validate:"required"`
	SecondCol string `json:"second_col_var,omitempty" yaml:"second_col_var,omitempty"`
	Filter    string `json:"filter,omitempty" yaml:"filter,omitempty"`
	Weight    string `json:"weight,omitempty" yaml:"weight,omitempty"`
	// Class bins a numeric row variable
	Class   string      `json:"class,omitempty" yaml:"class,omitempty"`
	Display DisplayMode `json:"display,omitempty" yaml:"display,omitempty"`
	// RowNA, ColNA and SecondColNA keep respondents with a missing answer on
	// that axis as an NA category instead of leaving them out.
	RowNA       bool `json:"row_na,omitempty" yaml:"row_na,omitempty"`
	ColNA       bool `json:"col_na,omitempty" yaml:"col_na,omitempty"`
	SecondColNA bool `json:"second_col_na,omitempty" yaml:"second_col_na,omitempty"`
}

// Entity names the tab in issue lists
func (s Spec) Entity() string { return fmt.Sprintf("tab %q", s.Name) }

// Settings holds the statistical parameters of a tabulation
type Settings struct {
	// Alpha is the two-sided significance level of the letter tests
	Alpha float64 `json:"alpha"`
	// MinBase is the weighted column base below which a column is not tested
	MinBase float64 `json:"min_base"`
}

// DefaultSettings returns alpha 0.05 and a minimum base of 30
func DefaultSettings() Settings {
	return Settings{Alpha: 0.05, MinBase: 30}
}
