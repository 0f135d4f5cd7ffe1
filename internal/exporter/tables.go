package exporter

import (
	"fmt"
	"io"
	"log/slog"

	"staats/internal/dataset"
	"staats/internal/pipeline"
	"staats/internal/tabulation"
)

// TableExporter writes cross-tabulations and summaries as flat CSV files
type TableExporter struct {
	csvWriter *CSVWriter
}

// NewTableExporter creates a table exporter writing below baseDir
func NewTableExporter(baseDir string) *TableExporter {
	return &TableExporter{csvWriter: NewCSVWriter(baseDir)}
}

// getTableHeaders returns the long-format columns: one record per cell
func getTableHeaders() []string {
	return []string{
		"Plan", "Table", "Title", "RowKey", "RowLabel",
		"ColumnKey", "ColumnLabel", "ColumnLetter", "ColumnBase",
		"Count", "ColPct", "RowPct", "Letters", "Display", "Unreliable",
	}
}

func tableRecords(plan string, t *tabulation.Result) [][]string {
	records := make([][]string, 0, len(t.Rows)*len(t.Columns))
	for r, row := range t.Rows {
		for c, col := range t.Columns {
			cell := row.Cells[c]
			records = append(records, []string{
				plan,
				t.Spec.Name,
				t.Title,
				row.Category.Key(),
				row.Category.Label,
				col.Key,
				col.Label,
				col.Letter,
				dataset.FormatNumber(col.Base),
				dataset.FormatNumber(cell.Count),
				formatFloat(cell.ColPct),
				formatFloat(cell.RowPct),
				cell.Letters,
				t.Format(r, c),
				formatBool(cell.Unreliable),
			})
		}
	}
	return records
}

// ExportTables writes every table of the report to one CSV file
func (e *TableExporter) ExportTables(report *pipeline.Report, filePath string) error {
	sw, err := e.csvWriter.CreateStreamWriter(filePath, getTableHeaders())
	if err != nil {
		return fmt.Errorf("failed to export tables: %w", err)
	}
	if err := writeTables(sw, report); err != nil {
		sw.Close()
		return err
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("failed to export tables: %w", err)
	}

	slog.Info("Tables exported",
		slog.String("file_path", filePath),
		slog.Int("tables", report.TableCount()),
		slog.Int("cells", sw.Count()))
	return nil
}

// WriteTables streams the report tables in long format to w
func WriteTables(w io.Writer, report *pipeline.Report) error {
	sw := NewStreamWriter(w)
	if err := sw.WriteRecord(getTableHeaders()); err != nil {
		return err
	}
	if err := writeTables(sw, report); err != nil {
		return err
	}
	return sw.Close()
}

func writeTables(sw *StreamWriter, report *pipeline.Report) error {
	for _, plan := range report.Plans {
		for _, t := range plan.Tables {
			for _, record := range tableRecords(plan.Name, t) {
				if err := sw.WriteRecord(record); err != nil {
					return fmt.Errorf("failed to write table %s: %w", t.Spec.Name, err)
				}
			}
		}
	}
	return nil
}

// getSummaryHeaders returns the columns of the summary statistics export
func getSummaryHeaders() []string {
	return []string{"Plan", "Variable", "N", "WeightedN", "Mean", "Median", "StdDev", "Min", "Max"}
}

// summaryRecords flattens the summaries of every plan
func summaryRecords(report *pipeline.Report) [][]string {
	var records [][]string
	for _, plan := range report.Plans {
		for _, s := range plan.Summaries {
			records = append(records, []string{
				plan.Name,
				s.Variable,
				formatInt(s.N),
				formatFloat(s.WeightedN),
				formatFloat(s.Mean),
				formatFloat(s.Median),
				formatFloat(s.StdDev),
				formatFloat(s.Min),
				formatFloat(s.Max),
			})
		}
	}
	return records
}

// ExportSummaries writes the numeric summaries of every plan. Nothing is
// written when the report has no summaries.
func (e *TableExporter) ExportSummaries(report *pipeline.Report, filePath string) error {
	records := summaryRecords(report)
	if len(records) == 0 {
		return nil
	}
	if err := e.csvWriter.WriteSimpleCSV(filePath, getSummaryHeaders(), records); err != nil {
		return fmt.Errorf("failed to export summaries: %w", err)
	}
	return nil
}
