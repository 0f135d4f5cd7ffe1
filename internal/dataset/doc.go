// Package dataset is the in-memory response table the engines read.
//
// A Value is one of: NA (no answer), a number (numeric answers and
// single-choice codes), an ordered de-duplicated code set (multi-choice
// answers) or text (open answers). NA is distinct from 0 and from the empty
// code set.
package dataset
