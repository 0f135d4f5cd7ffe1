// Package tabulation builds weighted cross-tabulations of survey variables
// and annotates them with significance letters.
//
// Each non-total column gets a letter (A, B, ...). For every row category,
// a cell lists the letters of the columns of its group whose proportion it
// exceeds at the configured two-sided level, using a pooled two-proportion
// z-test on the weighted bases. Columns whose base is below the minimum are
// marked unreliable and take no part in the tests. No design-effect
// correction is applied to weighted bases.
package tabulation
