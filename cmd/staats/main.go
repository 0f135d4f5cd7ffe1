// Command staats runs survey projects from the command line.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"staats/internal/config"
	apperrors "staats/internal/errors"
	"staats/internal/infrastructure"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `Usage: staats [-config settings.yaml] [-v] <command> [flags] <args>

Commands:
  process  [-o tables.xlsx] [-tables tables.csv] [-derived data.csv] [-summaries summaries.csv] [-sheet name] <data> <project>
           compute recodes and write the tabulation plans
  validate [-sheet name] <data> <project>
           check the project against the data; exits 1 on issues
  convert  [-o project.json] <workbook.xlsx>
           convert a configuration workbook to a JSON or YAML project

Data files are CSV or XLSX. Projects are JSON, YAML or a configuration
workbook (.xlsx/.xlsm). Settings come from the -config file and STAATS_*
environment variables.
`

// cli carries what every command needs
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses the global flags and dispatches to a command. Results go to
// stdout, logs and errors to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("staats", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "settings file (YAML)")
	verbose := global.Bool("v", false, "debug logging")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	c := &cli{
		cfg:    cfg,
		logger: infrastructure.NewLogger(cfg.Logging, stderr),
		out:    stdout,
	}

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "process":
		err = c.process(rest)
	case "validate":
		err = c.validate(rest)
	case "convert":
		err = c.convert(rest)
	case "help":
		global.Usage()
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		global.Usage()
		return exitUsage
	}

	return c.exitCode(err, stderr)
}

// exitCode reports err on stderr and maps it to the process exit code
func (c *cli) exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
		return exitUsage
	}

	var issues apperrors.Issues
	if errors.As(err, &issues) {
		fmt.Fprintf(stderr, "%d issue(s):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return exitFailure
	}

	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitFailure
}
