package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content = bytes.TrimPrefix(content, utf8BOM)
	return strings.Split(strings.TrimSpace(string(content)), "\n")
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewCSVWriter(tempDir)

	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		want     []string
		bom      bool
	}{
		{
			name:     "basic write with headers",
			filePath: "basic.csv",
			options: WriteOptions{
				Headers: []string{"Name", "Kind"},
				Records: [][]string{{"AgeGroup", "quali_unique"}, {"NbBrands", "number_of_answers"}},
			},
			want: []string{"Name,Kind", "AgeGroup,quali_unique", "NbBrands,number_of_answers"},
		},
		{
			name:     "BOM prefix and quoting",
			filePath: "bom.csv",
			options: WriteOptions{
				Headers:   []string{"Label"},
				Records:   [][]string{{"Nike + Adidas, Puma"}},
				BOMPrefix: true,
			},
			want: []string{"Label", `"Nike + Adidas, Puma"`},
			bom:  true,
		},
		{
			name:     "nested directory",
			filePath: filepath.Join("out", "tables", "t.csv"),
			options:  WriteOptions{Headers: []string{"A"}},
			want:     []string{"A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, writer.WriteCSV(tt.filePath, tt.options))

			fullPath := filepath.Join(tempDir, tt.filePath)
			content, err := os.ReadFile(fullPath)
			require.NoError(t, err)
			assert.Equal(t, tt.bom, bytes.HasPrefix(content, utf8BOM))
			assert.Equal(t, tt.want, readLines(t, fullPath))
		})
	}
}

func TestCSVWriter_WriteSimpleCSVTruncates(t *testing.T) {
	writer := NewCSVWriter(t.TempDir())

	require.NoError(t, writer.WriteSimpleCSV("summaries.csv", []string{"Variable", "Mean"}, [][]string{{"Age", "41.20"}, {"Income", "3.10"}}))
	require.NoError(t, writer.WriteSimpleCSV("summaries.csv", []string{"Variable", "Mean"}, [][]string{{"Age", "39.00"}}))

	assert.Equal(t, []string{"Variable,Mean", "Age,39.00"}, readLines(t, writer.resolvePath("summaries.csv")))
}

func TestCSVWriter_StreamWriter(t *testing.T) {
	writer := NewCSVWriter(t.TempDir())

	sw, err := writer.CreateStreamWriter("stream.csv", []string{"ID", "Value"})
	require.NoError(t, err)
	for _, rec := range [][]string{{"1", "a"}, {"2", "b"}, {"3", ""}} {
		require.NoError(t, sw.WriteRecord(rec))
	}
	assert.Equal(t, 3, sw.Count())
	require.NoError(t, sw.Close())

	assert.Equal(t, []string{"ID,Value", "1,a", "2,b", "3,"}, readLines(t, writer.resolvePath("stream.csv")))
}

func TestCSVWriter_ResolvePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "x.csv")

	tests := []struct {
		name    string
		baseDir string
		path    string
		want    string
	}{
		{"relative joined to base", "reports", "t.csv", filepath.Join("reports", "t.csv")},
		{"absolute kept", "reports", abs, abs},
		{"no base", "", "t.csv", "t.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewCSVWriter(tt.baseDir).resolvePath(tt.path))
		})
	}
}

func TestCSVWriter_CreateFailsOnFileAsDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	writer := NewCSVWriter(dir)
	_, err := writer.CreateStreamWriter(filepath.Join("blocker", "t.csv"), nil)
	assert.Error(t, err)
	assert.Error(t, writer.WriteSimpleCSV(filepath.Join("blocker", "t.csv"), nil, nil))
}
