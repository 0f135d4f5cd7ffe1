package exporter

import (
	"fmt"
	"strconv"
)

// formatFloat formats a statistic with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatPValue keeps small p-values readable instead of rounding them to 0.00
func formatPValue(p float64) string {
	if p < 0.0001 {
		return "<0.0001"
	}
	return strconv.FormatFloat(p, 'f', 4, 64)
}

// formatInt formats a count for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatBool formats a flag for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
