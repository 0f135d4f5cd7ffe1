// Package schema holds the question catalog of a survey: question names,
// notation types (QU, QM, N, O), labels and ordered code tables.
//
// Every variable referenced by a formula must resolve in the Schema, either
// as a raw question or as the output of a recode added during a pipeline run.
package schema
