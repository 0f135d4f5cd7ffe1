package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"staats/internal/dataprocessing"
)

const projectJSON = `{
	"name": "brands",
	"questions": [
		{"name": "Gender", "type": "QU", "label": "Gender", "codes": [{"code": 1, "label": "Men"}, {"code": 2, "label": "Women"}]},
		{"name": "Aware", "type": "QU", "label": "Knows the brand", "codes": [{"code": 1, "label": "Yes"}, {"code": 2, "label": "No"}]},
		{"name": "Age", "type": "N", "label": "Age"}
	],
	"recodes": [
		{"name": "Senior", "kind": "quali_unique", "label": "Senior", "option_na": true,
		 "formula": "1: [\"Age\">=50]", "codes": [{"code": 1, "label": "50+"}]}
	],
	"plans": [{"name": "main", "summaries": ["Age"], "tabs": [
		{"name": "aware_gender", "row_var": "Aware", "col_var": "Gender"},
		{"name": "senior_gender", "row_var": "Senior", "col_var": "Gender"}
	]}]
}`

// writeFixtures writes a project and a 40 row data file into a temp dir
func writeFixtures(t *testing.T) (dir, data, project string) {
	t.Helper()
	dir = t.TempDir()

	var csv strings.Builder
	csv.WriteString("Gender,Aware,Age\n")
	for i := 0; i < 40; i++ {
		aware := 1
		if i%4 == 3 {
			aware = 2
		}
		fmt.Fprintf(&csv, "%d,%d,%d\n", 1+i%2, aware, 20+i)
	}

	data = filepath.Join(dir, "survey.csv")
	project = filepath.Join(dir, "brands.json")
	require.NoError(t, os.WriteFile(data, []byte(csv.String()), 0o644))
	require.NoError(t, os.WriteFile(project, []byte(projectJSON), 0o644))
	return dir, data, project
}

func runCLI(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, exitUsage},
		{"unknown command", []string{"frobnicate"}, exitUsage},
		{"help", []string{"help"}, exitOK},
		{"missing arguments", []string{"validate", "data.csv"}, exitUsage},
		{"unknown flag", []string{"process", "-x", "a", "b"}, exitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(tt.args...)
			assert.Equal(t, tt.want, code)
			assert.Contains(t, stderr, "Usage: staats")
		})
	}
}

func TestProcess(t *testing.T) {
	dir, data, project := writeFixtures(t)
	tables := filepath.Join(dir, "out", "tables.csv")
	derived := filepath.Join(dir, "out", "derived.csv")
	summaries := filepath.Join(dir, "out", "summaries.csv")

	code, stdout, stderr := runCLI("process",
		"-tables", tables, "-derived", derived, "-summaries", summaries, data, project)
	require.Equal(t, exitOK, code, stderr)

	assert.Contains(t, stdout, "processed 40 rows: 1 recodes, 2 tables in 1 plans")
	workbook := filepath.Join(dir, "survey-tables.xlsx")
	assert.Contains(t, stdout, "wrote "+workbook)

	f, err := excelize.OpenFile(workbook)
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())

	out, err := os.ReadFile(tables)
	require.NoError(t, err)
	assert.Contains(t, string(out), "main,senior_gender,")

	out, err = os.ReadFile(derived)
	require.NoError(t, err)
	header := strings.SplitN(string(out), "\n", 2)[0]
	assert.Contains(t, header, "Senior")

	_, err = os.Stat(summaries)
	assert.NoError(t, err)
}

func TestProcessRejectsBadOutput(t *testing.T) {
	_, data, project := writeFixtures(t)
	code, _, stderr := runCLI("process", "-tables", "tables.txt", data, project)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "unsupported output tables.txt")
}

func TestProcessRejectsProject(t *testing.T) {
	dir, data, _ := writeFixtures(t)
	project := filepath.Join(dir, "broken.json")
	broken := strings.Replace(projectJSON, `"col_var": "Gender"}`, `"col_var": "Sex"}`, 1)
	require.NoError(t, os.WriteFile(project, []byte(broken), 0o644))

	code, _, stderr := runCLI("process", data, project)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Sex")
	_, err := os.Stat(filepath.Join(dir, "survey-tables.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidate(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		_, data, project := writeFixtures(t)
		code, stdout, stderr := runCLI("validate", data, project)
		require.Equal(t, exitOK, code, stderr)
		assert.Contains(t, stdout, "ok: 40 rows, 3 columns")
	})

	t.Run("missing column exits 1", func(t *testing.T) {
		dir, _, project := writeFixtures(t)
		data := filepath.Join(dir, "short.csv")
		require.NoError(t, os.WriteFile(data, []byte("Gender,Age\n1,30\n2,40\n"), 0o644))

		code, stdout, stderr := runCLI("validate", data, project)
		assert.Equal(t, exitFailure, code)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "issue(s)")
		assert.Contains(t, stderr, "Aware")
	})

	t.Run("unreadable project", func(t *testing.T) {
		_, data, _ := writeFixtures(t)
		code, _, stderr := runCLI("validate", data, "project.toml")
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "unsupported file project.toml")
	})

	t.Run("missing data file", func(t *testing.T) {
		dir, _, project := writeFixtures(t)
		code, _, stderr := runCLI("validate", filepath.Join(dir, "nope.csv"), project)
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "not found")
	})
}

func TestConvert(t *testing.T) {
	dir, _, project := writeFixtures(t)
	p, _, err := dataprocessing.LoadProject(project)
	require.NoError(t, err)
	workbook := filepath.Join(dir, "STAATS.xlsx")
	require.NoError(t, dataprocessing.WriteConfigWorkbook(p, workbook))

	t.Run("default output", func(t *testing.T) {
		code, stdout, stderr := runCLI("convert", workbook)
		require.Equal(t, exitOK, code, stderr)
		assert.Contains(t, stdout, "3 questions, 1 recodes")

		converted, _, err := dataprocessing.LoadProject(filepath.Join(dir, "STAATS.json"))
		require.NoError(t, err)
		assert.Len(t, converted.Questions, 3)
		assert.Len(t, converted.Recodes, 1)
	})

	t.Run("yaml output", func(t *testing.T) {
		out := filepath.Join(dir, "brands.yaml")
		code, _, stderr := runCLI("convert", "-o", out, workbook)
		require.Equal(t, exitOK, code, stderr)
		_, err := os.Stat(out)
		assert.NoError(t, err)
	})

	t.Run("not a workbook", func(t *testing.T) {
		code, _, stderr := runCLI("convert", project)
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "expected .xlsx, .xlsm")
	})
}
