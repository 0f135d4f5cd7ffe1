// Package dataprocessing moves survey data and project definitions in and
// out of files. It is the ingestion side of a run: everything it returns is
// plain dataset, schema and pipeline values.
//
// # Survey data
//
// ReadData loads CSV or XLSX responses with a header row. When a schema is
// given, each cell is typed by its question: code lists such as "1,3" or
// "1;3" for QM questions, numbers for QU and N, text for O. Blank cells and
// "NA" are missing. Cells that do not fit their question are kept as text
// so that schema.ValidateDataset can report them.
//
//	ds, err := dataprocessing.ReadData("survey.csv", s)
//
// # Project files
//
// LoadProject reads a project from JSON, YAML or a configuration workbook
// with the sheets Datamap, Recode, Filters, Classes and Tabs. SaveProject
// writes any of the three, so a legacy workbook converts with
//
//	p, issues, err := dataprocessing.LoadProject("STAATS.xlsm")
//	err = dataprocessing.SaveProject(p, "project.yaml")
//
// Workbook rows that cannot be read are skipped and reported as issues.
package dataprocessing
