// Package exporter writes the results of a pipeline run.
//
// This package contains four components:
//
// CSVWriter: Core CSV writing with headers, appending, streaming and a
// UTF-8 BOM so spreadsheet applications read labels correctly.
//
// DatasetExporter: Writes the response data extended with recoded
// variables, optionally restricted to a set of columns.
//
// TableExporter: Writes every table in long format, one record per cell
// with counts, percentages and significance letters, plus the numeric
// summaries of each plan.
//
// WorkbookExporter: Renders a styled XLSX workbook with a Summary index,
// one sheet per table with significant cells highlighted, and sheets for
// statistics, recodes and issues.
//
// Example usage:
//
//	report, err := p.Run(ctx, ds)
//	if err != nil {
//	    return err
//	}
//	err = exporter.NewDatasetExporter("out").ExportDataset(report.Dataset, "derived.csv")
//	err = exporter.NewTableExporter("out").ExportTables(report, "tables.csv")
//	err = exporter.NewWorkbookExporter(logger).ExportReport(report, "out/tables.xlsx")
package exporter
