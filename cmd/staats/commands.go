package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"staats/internal/dataprocessing"
	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/exporter"
	"staats/internal/infrastructure"
	"staats/internal/pipeline"
	"staats/internal/tabulation"
	"staats/internal/validation"
)

// errUsage marks bad command lines
var errUsage = errors.New("usage")

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("staats "+name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse parses args and checks the positional count
func (c *cli) parse(fs *flag.FlagSet, args []string, positional ...string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if fs.NArg() != len(positional) {
		return fmt.Errorf("%w: %s expects %s", errUsage, fs.Name(), strings.Join(positional, " "))
	}
	return nil
}

// checkFiles validates inputs and outputs before any work starts. Empty
// output paths are skipped.
func (c *cli) checkFiles(inputs map[string][]string, outputs map[string][]string) error {
	v := validation.NewFileValidator(c.logger)
	for path, exts := range inputs {
		if err := v.ValidateInput(path, exts); err != nil {
			return err
		}
	}
	for path, exts := range outputs {
		if path == "" {
			continue
		}
		if err := v.ValidateOutput(path, exts); err != nil {
			return err
		}
	}
	return nil
}

// loadProject reads a project file. Workbook rows that could not be read are
// logged and skipped.
func (c *cli) loadProject(path string) (*pipeline.Project, apperrors.Issues, error) {
	project, issues, err := dataprocessing.LoadProject(path)
	if err != nil {
		return nil, nil, err
	}
	for _, issue := range issues {
		c.logger.Warn("skipped workbook row", slog.String("issue", issue.String()))
	}
	return project, issues, nil
}

// newPipeline builds a pipeline with the analysis settings. Tracing is
// enabled when the telemetry settings ask for it; the returned func flushes
// the spans.
func (c *cli) newPipeline(project pipeline.Project) (*pipeline.Pipeline, func(), error) {
	opts := []pipeline.Option{
		pipeline.WithLogger(c.logger),
		pipeline.WithSettings(tabulation.Settings{Alpha: c.cfg.Analysis.Alpha, MinBase: c.cfg.Analysis.MinBase}),
		pipeline.WithWorkers(c.cfg.Analysis.Workers),
		pipeline.WithMaxRowIssues(c.cfg.Analysis.MaxRowIssues),
	}

	shutdown := func() {}
	if c.cfg.Telemetry.EnableTracing {
		otelCfg := infrastructure.OTelConfigFrom(c.cfg.Telemetry)
		otelCfg.EnableMetrics = false
		providers, err := infrastructure.InitializeOTel(otelCfg, c.logger)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithTracer(providers.Tracer))
		shutdown = func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				infrastructure.WithError(c.logger, err).Error("flush traces")
			}
		}
	}

	p, err := pipeline.New(project, opts...)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return p, shutdown, nil
}

// readData loads the survey responses typed by the pipeline's schema
func readData(path, sheet string, p *pipeline.Pipeline) (*dataset.Dataset, error) {
	if sheet != "" {
		return dataprocessing.ReadXLSX(path, sheet, p.Schema())
	}
	return dataprocessing.ReadData(path, p.Schema())
}

// process runs a project over a data file and writes the results
func (c *cli) process(args []string) error {
	fs := c.flagSet("process")
	output := fs.String("o", "", "tables workbook (default <data>-tables.xlsx)")
	tablesCSV := fs.String("tables", "", "also write the tables as long-format CSV")
	derivedCSV := fs.String("derived", "", "write the data with the derived columns as CSV")
	summariesCSV := fs.String("summaries", "", "write the numeric summaries as CSV")
	sheet := fs.String("sheet", "", "worksheet of an XLSX data file")
	if err := c.parse(fs, args, "<data>", "<project>"); err != nil {
		return err
	}
	dataPath, projectPath := fs.Arg(0), fs.Arg(1)
	if *output == "" {
		*output = strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + "-tables.xlsx"
	}
	csvOnly := []string{".csv"}
	if err := c.checkFiles(
		map[string][]string{dataPath: validation.DataExtensions, projectPath: validation.ProjectExtensions},
		map[string][]string{*output: {".xlsx"}, *tablesCSV: csvOnly, *derivedCSV: csvOnly, *summariesCSV: csvOnly},
	); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	project, _, err := c.loadProject(projectPath)
	if err != nil {
		return err
	}
	p, shutdown, err := c.newPipeline(*project)
	if err != nil {
		return err
	}
	defer shutdown()

	ds, err := readData(dataPath, *sheet, p)
	if err != nil {
		return err
	}

	c.logger.Info("processing",
		slog.String("project", project.Name),
		slog.String("data", dataPath),
		slog.Int("rows", ds.Len()))

	report, err := p.Run(ctx, ds)
	if err != nil {
		return err
	}
	for _, issue := range report.Issues {
		c.logger.Warn("row issue", slog.String("issue", issue.String()))
	}

	if err := exporter.NewWorkbookExporter(c.logger).ExportReport(report, *output); err != nil {
		return err
	}
	written := []string{*output}

	tables := exporter.NewTableExporter("")
	if *tablesCSV != "" {
		if err := tables.ExportTables(report, *tablesCSV); err != nil {
			return err
		}
		written = append(written, *tablesCSV)
	}
	if *summariesCSV != "" {
		if err := tables.ExportSummaries(report, *summariesCSV); err != nil {
			return err
		}
		written = append(written, *summariesCSV)
	}
	if *derivedCSV != "" {
		if err := exporter.NewDatasetExporter("").ExportDataset(report.Dataset, *derivedCSV); err != nil {
			return err
		}
		written = append(written, *derivedCSV)
	}

	fmt.Fprintf(c.out, "processed %d rows: %d recodes, %d tables in %d plans\n",
		report.Rows, len(report.Recodes), report.TableCount(), len(report.Plans))
	for _, path := range written {
		fmt.Fprintf(c.out, "wrote %s\n", path)
	}
	return nil
}

// validate checks a project against a data file without computing anything
func (c *cli) validate(args []string) error {
	fs := c.flagSet("validate")
	sheet := fs.String("sheet", "", "worksheet of an XLSX data file")
	if err := c.parse(fs, args, "<data>", "<project>"); err != nil {
		return err
	}
	dataPath, projectPath := fs.Arg(0), fs.Arg(1)
	if err := c.checkFiles(
		map[string][]string{dataPath: validation.DataExtensions, projectPath: validation.ProjectExtensions}, nil,
	); err != nil {
		return err
	}

	project, skipped, err := c.loadProject(projectPath)
	if err != nil {
		return err
	}
	p, shutdown, err := c.newPipeline(*project)
	if err != nil {
		return err
	}
	defer shutdown()

	ds, err := readData(dataPath, *sheet, p)
	if err != nil {
		return err
	}

	pf := p.Preflight(ds)
	for _, warning := range pf.Warnings {
		c.logger.Warn("preflight", slog.String("warning", warning))
	}
	issues := append(apperrors.Issues{}, skipped...)
	issues.Extend(pf.Issues)
	if err := issues.Err(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "ok: %d rows, %d columns, %d questions\n",
		ds.Len(), len(ds.Names()), p.Schema().Len())
	return nil
}

// convert writes a configuration workbook as a JSON or YAML project
func (c *cli) convert(args []string) error {
	fs := c.flagSet("convert")
	output := fs.String("o", "", "project file, .json or .yaml (default <workbook>.json)")
	if err := c.parse(fs, args, "<workbook>"); err != nil {
		return err
	}
	input := fs.Arg(0)
	if *output == "" {
		*output = strings.TrimSuffix(input, filepath.Ext(input)) + ".json"
	}
	if err := c.checkFiles(
		map[string][]string{input: validation.WorkbookExtensions},
		map[string][]string{*output: {".json", ".yaml", ".yml"}},
	); err != nil {
		return err
	}

	project, _, err := c.loadProject(input)
	if err != nil {
		return err
	}
	if err := dataprocessing.SaveProject(project, *output); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "wrote %s: %d questions, %d recodes, %d filters, %d classes, %d plans\n",
		*output, len(project.Questions), len(project.Recodes), len(project.Filters),
		len(project.Classes), len(project.Plans))
	return nil
}
