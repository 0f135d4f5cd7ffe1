package dataprocessing

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"staats/internal/class"
	apperrors "staats/internal/errors"
	"staats/internal/filter"
	"staats/internal/pipeline"
	"staats/internal/recode"
	"staats/internal/schema"
	"staats/internal/tabulation"
)

// Sheet names of the configuration workbook
const (
	SheetDatamap = "Datamap"
	SheetRecode  = "Recode"
	SheetFilters = "Filters"
	SheetClasses = "Classes"
	SheetTabs    = "Tabs"
)

// DefaultPlan collects tabs whose Plan cell is empty
const DefaultPlan = "main"

// headerScanRows bounds the search for a header row
const headerScanRows = 20

var sheetAliases = map[string][]string{
	SheetDatamap: {"datamap", "data map"},
	SheetRecode:  {"recode", "recodes"},
	SheetFilters: {"filters", "filter"},
	SheetClasses: {"classes", "class"},
	SheetTabs:    {"tabs", "tab", "tabspec", "tab specifications"},
}

var tabColumns = []string{
	"Plan", "Plan Filter", "Plan Weight", "Summaries", "Name", "Title", "Row", "Col",
	"Second Col", "Filter", "Weight", "Class", "Display", "Row NA", "Col NA",
	"Second Col NA",
}

// workbookReader turns the sheets of a configuration workbook into a
// project, collecting one issue per unusable row.
type workbookReader struct {
	f      *excelize.File
	sheets map[string]string
	issues apperrors.Issues
	logger *slog.Logger
}

// ReadConfigWorkbook reads a STAATS configuration workbook (.xlsx/.xlsm).
// Only the Datamap sheet is mandatory. Rows that cannot be read are
// skipped and returned as issues alongside the partial project; the error
// is reserved for workbooks that cannot be opened at all.
func ReadConfigWorkbook(path string) (*pipeline.Project, apperrors.Issues, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("open configuration workbook", err)
	}
	defer f.Close()

	r := &workbookReader{
		f:      f,
		sheets: make(map[string]string),
		logger: slog.Default().With(slog.String("component", "workbook")),
	}
	for _, name := range f.GetSheetList() {
		r.sheets[strings.ToLower(strings.TrimSpace(name))] = name
	}

	p := &pipeline.Project{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	datamap, ok := r.rows(SheetDatamap)
	if !ok {
		return nil, nil, apperrors.NewConfigError(fmt.Sprintf("%s sheet not found in %s", SheetDatamap, path), nil)
	}
	p.Questions = r.readDatamap(datamap)
	if rows, ok := r.rows(SheetRecode); ok {
		p.Recodes = r.readRecodes(rows)
	}
	if rows, ok := r.rows(SheetFilters); ok {
		p.Filters = r.readFilters(rows)
	}
	if rows, ok := r.rows(SheetClasses); ok {
		p.Classes = r.readClasses(rows)
	}
	if rows, ok := r.rows(SheetTabs); ok {
		p.Plans = r.readTabs(rows)
	}

	r.logger.Info("Configuration workbook read",
		slog.String("path", path),
		slog.Int("questions", len(p.Questions)),
		slog.Int("recodes", len(p.Recodes)),
		slog.Int("filters", len(p.Filters)),
		slog.Int("classes", len(p.Classes)),
		slog.Int("plans", len(p.Plans)),
		slog.Int("issues", len(r.issues)))
	return p, r.issues, nil
}

// rows returns the content of a sheet found under any of its aliases
func (r *workbookReader) rows(sheet string) ([][]string, bool) {
	for _, alias := range sheetAliases[sheet] {
		name, ok := r.sheets[alias]
		if !ok {
			continue
		}
		rows, err := r.f.GetRows(name)
		if err != nil {
			r.issues.Add("sheet "+strconv.Quote(name), apperrors.ErrTypeStorage, "cannot read sheet: %v", err)
			return nil, false
		}
		return rows, true
	}
	r.logger.Debug("Sheet not present", slog.String("sheet", sheet))
	return nil, false
}

// findHeader locates the first row holding every required label within the
// first rows of a sheet and maps lowercased labels to column indexes.
func findHeader(rows [][]string, required ...string) (int, map[string]int, bool) {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		cols := make(map[string]int, len(rows[i]))
		for j, v := range rows[i] {
			key := strings.ToLower(strings.TrimSpace(v))
			if _, dup := cols[key]; key != "" && !dup {
				cols[key] = j
			}
		}
		found := true
		for _, label := range required {
			if _, ok := cols[strings.ToLower(label)]; !ok {
				found = false
				break
			}
		}
		if found {
			return i, cols, true
		}
	}
	return 0, nil, false
}

// column returns the index of a header label, or fallback when absent
func column(cols map[string]int, label string, fallback int) int {
	if i, ok := cols[strings.ToLower(label)]; ok {
		return i
	}
	return fallback
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1", "x", "oui":
		return true
	}
	return false
}

// parseWithNA reads the combined NA column, e.g. "RowNA/SecondColNA"
func parseWithNA(s string) (row, col, second bool) {
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == ',' || r == ';' || r == ' ' }) {
		switch strings.ToLower(part) {
		case "rowna":
			row = true
		case "colna":
			col = true
		case "secondcolna":
			second = true
		}
	}
	return row, col, second
}

func parseCode(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid code %q", s)
	}
	return int(f), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *workbookReader) readDatamap(rows [][]string) []schema.Question {
	head, cols, ok := findHeader(rows, "Name", "Type")
	if !ok {
		r.issues.Add("sheet "+strconv.Quote(SheetDatamap), apperrors.ErrTypeConfig, "header row with Name and Type not found")
		return nil
	}
	nameCol, typeCol := cols["name"], cols["type"]
	titleCol := column(cols, "Title", -1)
	codeStart := typeCol + 1
	if titleCol >= 0 {
		codeStart = titleCol + 1
	}

	var questions []schema.Question
	for i := head + 1; i < len(rows); i++ {
		row := rows[i]
		name, typ := cell(row, nameCol), cell(row, typeCol)
		if name == "" || typ == "" {
			continue
		}
		entity := fmt.Sprintf("question %q", name)
		qt, err := schema.ParseQuestionType(typ)
		if err != nil {
			r.issues.Add(entity, apperrors.ErrTypeConfig, "row %d: %v", i+1, err)
			continue
		}
		q := schema.Question{Name: name, Type: qt, Label: cell(row, titleCol)}
		if q.Label == "" {
			q.Label = name
		}
		for c := codeStart; c < len(row); c += 2 {
			code, label := cell(row, c), cell(row, c+1)
			if code == "" || label == "" {
				continue
			}
			v, err := parseCode(code)
			if err != nil {
				r.issues.Add(entity, apperrors.ErrTypeConfig, "row %d: %v", i+1, err)
				continue
			}
			q.Codes = append(q.Codes, schema.Code{Value: v, Label: label})
		}
		questions = append(questions, q)
	}
	return questions
}

// readRecodes groups rows by recode: a row with a Name starts a recode and
// the following rows with an empty Name continue its formula and code table.
func (r *workbookReader) readRecodes(rows [][]string) []recode.Recode {
	head, cols, ok := findHeader(rows, "Name", "Type")
	if !ok {
		r.issues.Add("sheet "+strconv.Quote(SheetRecode), apperrors.ErrTypeConfig, "header row with Name and Type not found")
		return nil
	}
	var (
		nameCol    = cols["name"]
		typeCol    = cols["type"]
		titleCol   = column(cols, "Title", 2)
		optionCol  = column(cols, "Option NA", 3)
		formulaCol = column(cols, "Formula", 4)
		sourceCol  = column(cols, "Source", -1)
	)

	var (
		out     []recode.Recode
		current *recode.Recode
		lines   []string
		skip    bool
	)
	flush := func() {
		if current != nil && !skip {
			current.Formula = strings.Join(lines, "\n")
			out = append(out, *current)
		}
		current, lines, skip = nil, nil, false
	}

	for i := head + 1; i < len(rows); i++ {
		row := rows[i]
		if name := cell(row, nameCol); name != "" {
			flush()
			current = &recode.Recode{
				Name:     name,
				Kind:     recode.QualiUnique,
				Label:    cell(row, titleCol),
				OptionNA: parseYes(cell(row, optionCol)),
				Source:   cell(row, sourceCol),
			}
			if typ := cell(row, typeCol); typ != "" {
				kind, err := recode.ParseKind(typ)
				if err != nil {
					r.issues.Add(current.Entity(), apperrors.ErrTypeConfig, "row %d: %v", i+1, err)
					skip = true
				}
				current.Kind = kind
			}
		}
		if current == nil {
			continue
		}
		if line := cell(row, formulaCol); line != "" {
			lines = append(lines, line)
		}
		code, label := cell(row, formulaCol+1), cell(row, formulaCol+2)
		if code == "" || label == "" {
			continue
		}
		v, err := parseCode(code)
		if err != nil {
			r.issues.Add(current.Entity(), apperrors.ErrTypeConfig, "row %d: %v", i+1, err)
			continue
		}
		current.Codes = append(current.Codes, schema.Code{Value: v, Label: label})
	}
	flush()
	return out
}

// readFilters reads Name, Formula and With NA from columns B, C and D, with
// an optional label in column E.
func (r *workbookReader) readFilters(rows [][]string) []filter.Filter {
	var out []filter.Filter
	for _, row := range rows {
		name, formula := cell(row, 1), cell(row, 2)
		if name == "" || strings.EqualFold(name, "Name") {
			continue
		}
		if formula == "" {
			r.issues.Add(fmt.Sprintf("filter %q", name), apperrors.ErrTypeConfig, "formula is empty")
			continue
		}
		out = append(out, filter.Filter{
			Name:    name,
			Formula: formula,
			WithNA:  parseYes(cell(row, 3)),
			Label:   cell(row, 4),
		})
	}
	return out
}

// readClasses reads classes laid out as column pairs from column B: the
// name on row 1, Option NA on row 2 next to its label, and (formula, label)
// bins from row 4 down to the first empty formula.
func (r *workbookReader) readClasses(rows [][]string) []class.Class {
	if len(rows) == 0 {
		return nil
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	var out []class.Class
	for col := 1; col < width; col += 2 {
		name := cell(rows[0], col)
		if name == "" {
			continue
		}
		c := class.Class{Name: name}
		if len(rows) > 1 {
			c.OptionNA = parseYes(cell(rows[1], col+1))
		}
		for i := 3; i < len(rows); i++ {
			formula, label := cell(rows[i], col), cell(rows[i], col+1)
			if formula == "" {
				break
			}
			if label == "" {
				r.issues.Add(c.Entity(), apperrors.ErrTypeConfig, "row %d: bin %q has no label", i+1, formula)
				continue
			}
			c.Bins = append(c.Bins, class.Bin{Formula: formula, Label: label})
		}
		if len(c.Bins) == 0 {
			r.issues.Add(c.Entity(), apperrors.ErrTypeConfig, "class has no bins")
			continue
		}
		out = append(out, c)
	}
	return out
}

// readTabs groups tab rows into plans. Plan settings may be repeated on
// every row of a plan but must agree.
func (r *workbookReader) readTabs(rows [][]string) []pipeline.TabPlan {
	head, cols, ok := findHeader(rows, "Name", "Row", "Col")
	if !ok {
		r.issues.Add("sheet "+strconv.Quote(SheetTabs), apperrors.ErrTypeConfig, "header row with Name, Row and Col not found")
		return nil
	}
	at := func(row []string, label string) string { return cell(row, column(cols, label, -1)) }

	var (
		plans []*pipeline.TabPlan
		index = make(map[string]*pipeline.TabPlan)
	)
	for i := head + 1; i < len(rows); i++ {
		row := rows[i]
		name := at(row, "Name")
		if name == "" {
			continue
		}
		planName := at(row, "Plan")
		if planName == "" {
			planName = DefaultPlan
		}
		plan, ok := index[planName]
		if !ok {
			plan = &pipeline.TabPlan{Name: planName}
			index[planName] = plan
			plans = append(plans, plan)
		}
		r.mergePlanSetting(plan, &plan.Filter, at(row, "Plan Filter"), "filter", i)
		r.mergePlanSetting(plan, &plan.Weight, at(row, "Plan Weight"), "weight", i)
		for _, v := range splitList(at(row, "Summaries")) {
			if !contains(plan.Summaries, v) {
				plan.Summaries = append(plan.Summaries, v)
			}
		}

		spec := tabulation.Spec{
			Name:        name,
			Title:       at(row, "Title"),
			Row:         at(row, "Row"),
			Col:         at(row, "Col"),
			SecondCol:   at(row, "Second Col"),
			Filter:      at(row, "Filter"),
			Weight:      at(row, "Weight"),
			Class:       at(row, "Class"),
			RowNA:       parseYes(at(row, "Row NA")),
			ColNA:       parseYes(at(row, "Col NA")),
			SecondColNA: parseYes(at(row, "Second Col NA")),
		}
		if withNA := at(row, "With NA"); withNA != "" {
			spec.RowNA, spec.ColNA, spec.SecondColNA = parseWithNA(withNA)
		}
		mode, err := tabulation.ParseDisplayMode(at(row, "Display"))
		if err != nil {
			r.issues.Add(fmt.Sprintf("tab %q", name), apperrors.ErrTypeConfig, "row %d: %v", i+1, err)
			continue
		}
		spec.Display = mode
		plan.Tabs = append(plan.Tabs, spec)
	}

	out := make([]pipeline.TabPlan, 0, len(plans))
	for _, p := range plans {
		if len(p.Tabs) > 0 {
			out = append(out, *p)
		}
	}
	return out
}

func (r *workbookReader) mergePlanSetting(plan *pipeline.TabPlan, field *string, value, setting string, row int) {
	switch {
	case value == "" || value == *field:
	case *field == "":
		*field = value
	default:
		r.issues.Add(plan.Entity(), apperrors.ErrTypeConfig,
			"row %d: %s %q conflicts with %q set earlier", row+1, setting, value, *field)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// WriteConfigWorkbook writes a project in the layout ReadConfigWorkbook reads
func WriteConfigWorkbook(p *pipeline.Project, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return apperrors.NewStorageError("create header style", err)
	}

	w := &sheetWriter{f: f, header: header}
	if err := f.SetSheetName(f.GetSheetName(0), SheetDatamap); err != nil {
		return apperrors.NewStorageError("name datamap sheet", err)
	}
	w.datamap(p.Questions)
	w.recodes(p.Recodes)
	w.filters(p.Filters)
	w.classes(p.Classes)
	w.tabs(p.Plans)
	if w.err != nil {
		return apperrors.NewStorageError("write configuration workbook", w.err)
	}
	if err := f.SaveAs(path); err != nil {
		return apperrors.NewStorageError("save configuration workbook", err)
	}
	return nil
}

// sheetWriter keeps the first write error so sheet builders stay linear
type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) newSheet(name string) {
	if w.err != nil {
		return
	}
	_, w.err = w.f.NewSheet(name)
}

func (w *sheetWriter) row(sheet string, col, row int, values ...interface{}) {
	if w.err != nil {
		return
	}
	var ref string
	if ref, w.err = excelize.CoordinatesToCellName(col, row); w.err != nil {
		return
	}
	w.err = w.f.SetSheetRow(sheet, ref, &values)
}

func (w *sheetWriter) headerRow(sheet string, row int, labels ...string) {
	values := make([]interface{}, len(labels))
	for i, l := range labels {
		values[i] = l
	}
	w.row(sheet, 1, row, values...)
	if w.err != nil || len(labels) == 0 {
		return
	}
	var first, last string
	if first, w.err = excelize.CoordinatesToCellName(1, row); w.err != nil {
		return
	}
	if last, w.err = excelize.CoordinatesToCellName(len(labels), row); w.err != nil {
		return
	}
	w.err = w.f.SetCellStyle(sheet, first, last, w.header)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (w *sheetWriter) datamap(questions []schema.Question) {
	labels := []string{"Name", "Type", "Title"}
	width := 0
	for _, q := range questions {
		width = max(width, len(q.Codes))
	}
	for i := 0; i < width; i++ {
		labels = append(labels, "Code", "Label")
	}
	w.headerRow(SheetDatamap, 1, labels...)
	for i, q := range questions {
		values := []interface{}{q.Name, string(q.Type), q.Label}
		for _, c := range q.Codes {
			values = append(values, c.Value, c.Label)
		}
		w.row(SheetDatamap, 1, i+2, values...)
	}
}

func (w *sheetWriter) recodes(recodes []recode.Recode) {
	if len(recodes) == 0 {
		return
	}
	w.newSheet(SheetRecode)
	w.headerRow(SheetRecode, 1, "Name", "Type", "Title", "Option NA", "Formula", "Code", "Label", "Source")
	line := 2
	for _, rc := range recodes {
		lines := strings.Split(rc.Formula, "\n")
		n := max(len(lines), len(rc.Codes))
		for i := 0; i < n; i++ {
			values := make([]interface{}, 8)
			if i == 0 {
				values[0], values[1], values[2], values[3] = rc.Name, string(rc.Kind), rc.Label, yesNo(rc.OptionNA)
				values[7] = rc.Source
			}
			if i < len(lines) {
				values[4] = lines[i]
			}
			if i < len(rc.Codes) {
				values[5], values[6] = rc.Codes[i].Value, rc.Codes[i].Label
			}
			w.row(SheetRecode, 1, line, values...)
			line++
		}
	}
}

func (w *sheetWriter) filters(filters []filter.Filter) {
	if len(filters) == 0 {
		return
	}
	w.newSheet(SheetFilters)
	w.row(SheetFilters, 2, 1, "Name", "Formula", "With NA", "Label")
	for i, f := range filters {
		w.row(SheetFilters, 2, i+2, f.Name, f.Formula, yesNo(f.WithNA), f.Label)
	}
}

func (w *sheetWriter) classes(classes []class.Class) {
	if len(classes) == 0 {
		return
	}
	w.newSheet(SheetClasses)
	for i, c := range classes {
		col := 2 + 2*i
		w.row(SheetClasses, col, 1, c.Name)
		w.row(SheetClasses, col, 2, "Option NA", yesNo(c.OptionNA))
		w.row(SheetClasses, col, 3, "Formula", "Label")
		for j, b := range c.Bins {
			w.row(SheetClasses, col, 4+j, b.Formula, b.Label)
		}
	}
}

func (w *sheetWriter) tabs(plans []pipeline.TabPlan) {
	if len(plans) == 0 {
		return
	}
	w.newSheet(SheetTabs)
	w.headerRow(SheetTabs, 1, tabColumns...)
	line := 2
	for _, p := range plans {
		summaries := strings.Join(p.Summaries, ",")
		for _, t := range p.Tabs {
			w.row(SheetTabs, 1, line,
				p.Name, p.Filter, p.Weight, summaries, t.Name, t.Title, t.Row, t.Col,
				t.SecondCol, t.Filter, t.Weight, t.Class, string(t.Display), yesNo(t.RowNA), yesNo(t.ColNA),
				yesNo(t.SecondColNA))
			line++
		}
	}
}
