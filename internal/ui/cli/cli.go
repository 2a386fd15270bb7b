package cli

import (
	"flag"
	"io"
)

const defaultConfigPath = "./csguard.toml"

// Exit codes returned by Run.
const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitViolations = 3
)

type cliOptions struct {
	configPath   string
	once         bool
	ui           bool
	format       string
	out          string
	query        string
	trends       bool
	since        string
	trendsWindow string
	trendsTSV    string
	trendsJSON   string
	metricsAddr  string
	verbose      bool
	version      bool
	args         []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("csguard", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.BoolVar(&opts.once, "once", false, "Run a single scan and exit (exit code 3 when violations are found)")
	fs.BoolVar(&opts.ui, "ui", false, "Enable terminal UI mode")
	fs.StringVar(&opts.format, "format", "", "Report format: text, sarif or markdown (default from [output] format)")
	fs.StringVar(&opts.out, "out", "", "Write the report to this file instead of stdout")
	fs.StringVar(&opts.query, "query", "", "Filter the scan result and exit, e.g. \"SELECT violations WHERE rule = 'UseThisPrefix'\"")
	fs.BoolVar(&opts.trends, "trends", false, "Print the run history trend and exit (requires [db] enabled)")
	fs.StringVar(&opts.since, "since", "", "Include runs at/after this timestamp (RFC3339 or YYYY-MM-DD)")
	fs.StringVar(&opts.trendsWindow, "trends-window", "24h", "Moving-window duration for trend averages")
	fs.StringVar(&opts.trendsTSV, "trends-tsv", "", "Write the trend report as TSV to this path")
	fs.StringVar(&opts.trendsJSON, "trends-json", "", "Write the trend report as JSON to this path")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address (overrides config)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
