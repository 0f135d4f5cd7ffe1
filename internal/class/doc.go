// Package class bins numeric variables into labelled ranges written with the
// placeholder X, e.g. "X>=18 and X<30".
package class
