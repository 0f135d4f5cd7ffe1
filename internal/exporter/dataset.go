package exporter

import (
	"fmt"
	"log/slog"

	"staats/internal/dataset"
)

// DatasetExporter writes response data, typically the input extended with
// recoded variables.
type DatasetExporter struct {
	csvWriter *CSVWriter
}

// NewDatasetExporter creates a dataset exporter writing below baseDir
func NewDatasetExporter(baseDir string) *DatasetExporter {
	return &DatasetExporter{csvWriter: NewCSVWriter(baseDir)}
}

// ExportDataset writes ds as CSV. When columns is non-empty only those
// columns are written, in that order.
func (d *DatasetExporter) ExportDataset(ds *dataset.Dataset, filePath string, columns ...string) error {
	names, err := selectColumns(ds, columns)
	if err != nil {
		return err
	}
	sw, err := d.csvWriter.CreateStreamWriter(filePath, names)
	if err != nil {
		return fmt.Errorf("failed to export dataset: %w", err)
	}
	if err := writeRows(sw, ds, names); err != nil {
		sw.Close()
		return err
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("failed to export dataset: %w", err)
	}

	slog.Info("Dataset exported",
		slog.String("file_path", filePath),
		slog.Int("rows", sw.Count()),
		slog.Int("columns", len(names)))
	return nil
}

func selectColumns(ds *dataset.Dataset, columns []string) ([]string, error) {
	if ds == nil {
		return nil, fmt.Errorf("no dataset to export")
	}
	if len(columns) == 0 {
		return ds.Names(), nil
	}
	for _, c := range columns {
		if !ds.Has(c) {
			return nil, fmt.Errorf("column %q is not in the dataset", c)
		}
	}
	return columns, nil
}

func writeRows(sw *StreamWriter, ds *dataset.Dataset, names []string) error {
	record := make([]string, len(names))
	for i := 0; i < ds.Len(); i++ {
		for j, name := range names {
			record[j] = ds.Value(i, name).String()
		}
		if err := sw.WriteRecord(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return nil
}
