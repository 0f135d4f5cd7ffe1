package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/schema"
)

// missingMarkers are cell contents read as missing answers
var missingMarkers = map[string]bool{
	"":    true,
	"na":  true,
	"n/a": true,
	"nan": true,
}

// ReadData loads a survey data file. The format follows the extension:
// .csv, or .xlsx/.xlsm (first sheet). Cells are typed by the schema; s may
// be nil, in which case numeric cells become numbers and the rest text.
func ReadData(path string, s *schema.Schema) (*dataset.Dataset, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewStorageError("open data file", err)
		}
		defer f.Close()
		ds, err := ReadCSV(f, s)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return ds, nil
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, "", s)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported data file extension %q", ext), nil)
	}
}

// ReadCSV reads comma separated responses with a header row
func ReadCSV(r io.Reader, s *schema.Schema) (*dataset.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParseError("malformed CSV", err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewParseError("CSV has no header row", nil)
	}
	return FromTable(records[0], records[1:], s)
}

// ReadXLSX reads responses from a worksheet. An empty sheet name selects the
// first sheet of the workbook.
func ReadXLSX(path, sheet string, s *schema.Schema) (*dataset.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("open data workbook", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewParseError("workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("read sheet %q", sheet), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewParseError(fmt.Sprintf("sheet %q is empty", sheet), nil)
	}

	ds, err := FromTable(rows[0], rows[1:], s)
	if err != nil {
		return nil, err
	}
	slog.Debug("Survey data loaded from workbook",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("rows", ds.Len()),
		slog.Int("columns", len(ds.Names())))
	return ds, nil
}

// FromTable converts a header and string rows into a dataset. Columns with
// an empty header are dropped, and fully blank rows are skipped.
func FromTable(header []string, rows [][]string, s *schema.Schema) (*dataset.Dataset, error) {
	names := make([]string, 0, len(header))
	index := make([]int, 0, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, apperrors.NewParseError(fmt.Sprintf("duplicate column %q", name), nil)
		}
		seen[name] = true
		names = append(names, name)
		index = append(index, i)
	}
	if len(names) == 0 {
		return nil, apperrors.NewParseError("header row has no column names", nil)
	}

	questions := make([]*schema.Question, len(names))
	if s != nil {
		for i, name := range names {
			if q, ok := s.Question(name); ok {
				questions[i] = &q
			}
		}
	}

	records := make([]map[string]dataset.Value, 0, len(rows))
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		rec := make(map[string]dataset.Value, len(names))
		for i, name := range names {
			var raw string
			if index[i] < len(row) {
				raw = row[index[i]]
			}
			rec[name] = ParseCell(raw, questions[i])
		}
		records = append(records, rec)
	}
	return dataset.FromRows(names, records), nil
}

// ParseCell types one raw cell for question q (nil when the column is not
// in the schema). Values that do not fit the question type are kept as text
// so that schema validation reports them.
func ParseCell(raw string, q *schema.Question) dataset.Value {
	raw = strings.TrimSpace(raw)
	if missingMarkers[strings.ToLower(raw)] {
		return dataset.NA()
	}
	if q == nil {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return dataset.Number(f)
		}
		return dataset.Text(raw)
	}

	switch q.Type {
	case schema.QualiMultiple:
		codes, err := dataset.ParseCodes(normalizeCodeList(raw))
		if err != nil {
			return dataset.Text(raw)
		}
		return dataset.Codes(codes...)
	case schema.QualiUnique, schema.Numeric:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return dataset.Number(f)
		}
		return dataset.Text(raw)
	default:
		return dataset.Text(raw)
	}
}

// normalizeCodeList accepts "1,2", "1;2", "1 2" and "[1, 2]"
func normalizeCodeList(raw string) string {
	raw = strings.Trim(raw, "[]{}()")
	return strings.NewReplacer(";", ",", "|", ",", " ", ",").Replace(raw)
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
