package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"staats/internal/pipeline"
	"staats/internal/tabulation"
)

// SummarySheet is the index sheet of a tables workbook
const SummarySheet = "Summary"

const (
	statisticsSheet = "Statistics"
	recodesSheet    = "Recodes"
	issuesSheet     = "Issues"
)

// WorkbookExporter renders a report as an XLSX workbook: an index sheet,
// one sheet per table with significant cells highlighted, and sheets for
// summaries, recode statistics and issues.
type WorkbookExporter struct {
	logger *slog.Logger
}

// NewWorkbookExporter creates a workbook exporter. A nil logger uses the
// default logger.
func NewWorkbookExporter(logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{logger: logger.With(slog.String("component", "exporter"))}
}

// ExportReport writes the report workbook to filePath
func (e *WorkbookExporter) ExportReport(report *pipeline.Report, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := e.build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	e.logger.Info("Tables workbook exported",
		slog.String("file_path", filePath),
		slog.Int("tables", report.TableCount()))
	return nil
}

// WriteReport streams the report workbook to w
func (e *WorkbookExporter) WriteReport(report *pipeline.Report, w io.Writer) error {
	f, err := e.build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type workbookStyles struct {
	title, header, base, significant, unreliable, number int
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	var (
		s   workbookStyles
		err error
	)
	decimals := 2
	styles := []struct {
		id    *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 13}}},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#305496"}},
			Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
		}},
		{&s.base, &excelize.Style{
			Font:   &excelize.Font{Italic: true},
			Border: []excelize.Border{{Type: "bottom", Color: "#808080", Style: 1}},
		}},
		{&s.significant, &excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "#006100"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#C6EFCE"}},
		}},
		{&s.unreliable, &excelize.Style{Font: &excelize.Font{Italic: true, Color: "#9C5700"}}},
		{&s.number, &excelize.Style{DecimalPlaces: &decimals, NumFmt: 2}},
	}
	for _, st := range styles {
		if *st.id, err = f.NewStyle(st.style); err != nil {
			return s, fmt.Errorf("failed to create style: %w", err)
		}
	}
	return s, nil
}

// workbookBuilder keeps the first write error so sheet layouts stay linear
type workbookBuilder struct {
	f      *excelize.File
	styles workbookStyles
	names  map[string]bool
	err    error
}

func (e *WorkbookExporter) build(report *pipeline.Report) (*excelize.File, error) {
	if report == nil {
		return nil, fmt.Errorf("no report to export")
	}
	f := excelize.NewFile()
	styles, err := newWorkbookStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	b := &workbookBuilder{f: f, styles: styles, names: make(map[string]bool)}
	for _, reserved := range []string{SummarySheet, statisticsSheet, recodesSheet, issuesSheet} {
		b.names[strings.ToLower(reserved)] = true
	}
	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}

	b.set(SummarySheet, 1, 1, fmt.Sprintf("%s: %d respondents, %d tables", report.Project, report.Rows, report.TableCount()))
	b.style(SummarySheet, 1, 1, 1, styles.title)
	b.header(SummarySheet, 3, "Plan", "Table", "Title", "Base", "Excluded", "Chi-square", "DF", "p-value", "Significant")
	line := 4
	for _, plan := range report.Plans {
		for _, t := range plan.Tables {
			sheet := b.tableSheet(t)
			var chi, df, p, sig interface{}
			if t.Chi != nil {
				chi, df, p = t.Chi.Statistic, t.Chi.DF, formatPValue(t.Chi.PValue)
				sig = yesNo(t.Chi.PValue < t.Settings.Alpha)
			}
			b.set(SummarySheet, 1, line, plan.Name, t.Spec.Name, t.Title, t.Base(), t.Excluded, chi, df, p, sig)
			b.style(SummarySheet, 6, line, 6, styles.number)
			b.link(SummarySheet, 2, line, sheet)
			line++
		}
	}
	b.widths(SummarySheet, 8, 18, 40, 10, 10, 12, 6, 10, 12)
	b.statistics(report)
	b.recodes(report)
	b.issues(report)
	if b.err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to build workbook: %w", b.err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (b *workbookBuilder) cellName(col, row int) string {
	if b.err != nil {
		return ""
	}
	var ref string
	ref, b.err = excelize.CoordinatesToCellName(col, row)
	return ref
}

func (b *workbookBuilder) set(sheet string, col, row int, values ...interface{}) {
	ref := b.cellName(col, row)
	if b.err != nil {
		return
	}
	b.err = b.f.SetSheetRow(sheet, ref, &values)
}

func (b *workbookBuilder) style(sheet string, fromCol, row, toCol, style int) {
	from, to := b.cellName(fromCol, row), b.cellName(toCol, row)
	if b.err != nil {
		return
	}
	b.err = b.f.SetCellStyle(sheet, from, to, style)
}

func (b *workbookBuilder) header(sheet string, row int, labels ...string) {
	values := make([]interface{}, len(labels))
	for i, l := range labels {
		values[i] = l
	}
	b.set(sheet, 1, row, values...)
	b.style(sheet, 1, row, len(labels), b.styles.header)
}

func (b *workbookBuilder) link(sheet string, col, row int, target string) {
	ref := b.cellName(col, row)
	if b.err != nil {
		return
	}
	b.err = b.f.SetCellHyperLink(sheet, ref, fmt.Sprintf("'%s'!A1", target), "Location")
}

func (b *workbookBuilder) widths(sheet string, widths ...float64) {
	for i, w := range widths {
		if b.err != nil {
			return
		}
		var col string
		if col, b.err = excelize.ColumnNumberToName(i + 1); b.err != nil {
			return
		}
		b.err = b.f.SetColWidth(sheet, col, col, w)
	}
}

func (b *workbookBuilder) newSheet(name string) {
	if b.err != nil {
		return
	}
	_, b.err = b.f.NewSheet(name)
}

// sheetName derives a unique, legal sheet name from a tab name
func (b *workbookBuilder) sheetName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]'`, r) {
			return '_'
		}
		return r
	}, name)
	if clean == "" {
		clean = "Table"
	}
	base := []rune(clean)
	if len(base) > excelize.MaxSheetNameLength {
		base = base[:excelize.MaxSheetNameLength]
	}
	candidate := string(base)
	for i := 2; b.names[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		cut := min(len(base), excelize.MaxSheetNameLength-len(suffix))
		candidate = string(base[:cut]) + suffix
	}
	b.names[strings.ToLower(candidate)] = true
	return candidate
}

// tableSheet lays out one table: title, column labels with their letters,
// the base row, then one row per category. Cells carrying letters are
// highlighted and columns with a base under the minimum are marked.
func (b *workbookBuilder) tableSheet(t *tabulation.Result) string {
	sheet := b.sheetName(t.Spec.Name)
	b.newSheet(sheet)

	b.set(sheet, 1, 1, t.Title)
	b.style(sheet, 1, 1, 1, b.styles.title)
	b.set(sheet, 1, 2, describeSpec(t))

	labels := []interface{}{""}
	letters := []interface{}{""}
	bases := []interface{}{"Base"}
	for _, col := range t.Columns {
		labels = append(labels, col.Label)
		letter := ""
		if col.Letter != "" {
			letter = "(" + col.Letter + ")"
		}
		letters = append(letters, letter)
		base := tabulation.FormatCount(col.Base)
		if col.Unreliable {
			base += "*"
		}
		bases = append(bases, base)
	}
	width := len(t.Columns) + 1
	b.set(sheet, 1, 4, labels...)
	b.style(sheet, 1, 4, width, b.styles.header)
	b.set(sheet, 1, 5, letters...)
	b.style(sheet, 1, 5, width, b.styles.header)
	b.set(sheet, 1, 6, bases...)
	b.style(sheet, 1, 6, width, b.styles.base)
	for c, col := range t.Columns {
		if col.Unreliable {
			b.style(sheet, c+2, 6, c+2, b.styles.unreliable)
		}
	}

	line := 7
	for r, row := range t.Rows {
		values := []interface{}{row.Category.Label}
		for c, cell := range row.Cells {
			text := t.Format(r, c)
			if cell.Letters != "" {
				text += " " + cell.Letters
			}
			values = append(values, text)
		}
		b.set(sheet, 1, line, values...)
		for c, cell := range row.Cells {
			switch {
			case cell.Letters != "":
				b.style(sheet, c+2, line, c+2, b.styles.significant)
			case cell.Unreliable:
				b.style(sheet, c+2, line, c+2, b.styles.unreliable)
			}
		}
		line++
	}

	line++
	if t.Chi != nil {
		b.set(sheet, 1, line, fmt.Sprintf("Chi-square %.2f, df %d, p %s", t.Chi.Statistic, t.Chi.DF, formatPValue(t.Chi.PValue)))
		line++
	}
	b.set(sheet, 1, line, fmt.Sprintf("Letters: column proportion z-test at alpha %.2f. * base under %s, not tested.",
		t.Settings.Alpha, tabulation.FormatCount(t.Settings.MinBase)))

	b.widths(sheet, 28)
	if b.err == nil && width > 1 {
		last, err := excelize.ColumnNumberToName(width)
		if err != nil {
			b.err = err
			return sheet
		}
		b.err = b.f.SetColWidth(sheet, "B", last, 14)
	}
	if b.err == nil {
		b.err = b.f.SetPanes(sheet, &excelize.Panes{Freeze: true, XSplit: 1, YSplit: 6, TopLeftCell: "B7", ActivePane: "bottomRight"})
	}
	return sheet
}

func describeSpec(t *tabulation.Result) string {
	parts := []string{fmt.Sprintf("%s by %s", t.Spec.Row, t.Spec.Col)}
	if t.Spec.SecondCol != "" {
		parts[0] += " / " + t.Spec.SecondCol
	}
	if t.Spec.Filter != "" {
		parts = append(parts, "filter "+t.Spec.Filter)
	}
	if t.Spec.Weight != "" {
		parts = append(parts, "weight "+t.Spec.Weight)
	}
	if t.Spec.Class != "" {
		parts = append(parts, "class "+t.Spec.Class)
	}
	if t.Spec.Display != "" {
		parts = append(parts, "display "+string(t.Spec.Display))
	}
	return strings.Join(parts, ", ")
}

func (b *workbookBuilder) statistics(report *pipeline.Report) {
	records := summaryRecords(report)
	if len(records) == 0 {
		return
	}
	b.newSheet(statisticsSheet)
	b.header(statisticsSheet, 1, getSummaryHeaders()...)
	line := 2
	for _, plan := range report.Plans {
		for _, s := range plan.Summaries {
			b.set(statisticsSheet, 1, line, plan.Name, s.Variable, s.N, s.WeightedN, s.Mean, s.Median, s.StdDev, s.Min, s.Max)
			b.style(statisticsSheet, 4, line, 9, b.styles.number)
			line++
		}
	}
	b.widths(statisticsSheet, 12, 18)
}

func (b *workbookBuilder) recodes(report *pipeline.Report) {
	if len(report.Recodes) == 0 {
		return
	}
	b.newSheet(recodesSheet)
	b.header(recodesSheet, 1, "Name", "Kind", "Level", "Matched", "Unmatched", "Missing", "Degraded")
	for i, st := range report.Recodes {
		b.set(recodesSheet, 1, i+2, st.Name, string(st.Kind), st.Level, st.Matched, st.Unmatched, st.Missing, st.Degraded)
	}
	b.widths(recodesSheet, 18, 18)
}

func (b *workbookBuilder) issues(report *pipeline.Report) {
	if len(report.Issues) == 0 && len(report.Warnings) == 0 {
		return
	}
	b.newSheet(issuesSheet)
	b.header(issuesSheet, 1, "Entity", "Kind", "Message")
	line := 2
	for _, is := range report.Issues {
		b.set(issuesSheet, 1, line, is.Entity, string(is.Kind), is.Message)
		line++
	}
	for _, w := range report.Warnings {
		b.set(issuesSheet, 1, line, "", "WARNING", w)
		line++
	}
	b.widths(issuesSheet, 24, 14, 80)
}
