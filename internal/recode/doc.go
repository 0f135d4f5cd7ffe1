// Package recode derives new survey variables from existing ones.
//
// Seven kinds are supported: QualiUnique and Weight take the first matching
// rule, QualiMultiple collects every matching rule, QualiMultiIni adds the
// matching rule codes to the respondent's existing answers, Numeric evaluates
// an arithmetic expression, NumberOfAnswers counts multi-choice answers and
// Combination gives each distinct answer set its own code.
//
// Recodes run in declaration order as far as visibility goes: a recode can
// reference any question of the schema and any recode declared before it.
// Recodes that do not depend on each other are evaluated concurrently.
package recode
