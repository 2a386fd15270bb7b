package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "csguard/internal/core/app"
	"csguard/internal/core/config"
	"csguard/internal/core/errors"
	"csguard/internal/core/ports"
	"csguard/internal/data/history"
	"csguard/internal/data/query"
	"csguard/internal/engine/rules"
	"csguard/internal/shared/observability"
	"csguard/internal/shared/util"
	"csguard/internal/shared/version"
	"csguard/internal/ui/report"
	"csguard/internal/ui/report/formats"
)

// Run is the csguard entry point; it returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return exitUsage
	}

	if opts.version {
		fmt.Fprintf(stdout, "csguard %s\n", version.Version)
		return exitOK
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "failed to detect working directory: %v\n", err)
		return exitError
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitError
	}
	if err := applyOptions(&opts, cfg); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitUsage
	}

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		fmt.Fprintf(stderr, "failed to resolve runtime paths: %v\n", err)
		return exitError
	}

	cleanupLogs := configureLogging(opts.ui, opts.verbose, paths.LogPath, stderr)
	defer cleanupLogs()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		return exitError
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	app, err := coreapp.New(cfg, paths)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return exitError
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			slog.Warn("failed to flush history", "error", err)
		}
	}()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		go func() {
			if err := observability.Serve(ctx, addr, coreapp.NewHealthService(app).Probe); err != nil {
				slog.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	analysis := app.AnalysisService()
	result, err := analysis.RunScan(ctx, ports.ScanRequest{})
	if err != nil {
		slog.Error("initial scan failed", "error", err)
		return exitError
	}

	if opts.query != "" {
		if err := runQuery(app.Paths.ProjectRoot, opts.query, result, stdout); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return exitError
		}
		return exitOK
	}

	if opts.trends {
		if err := runTrends(ctx, app, opts, stdout); err != nil {
			slog.Error("trend report failed", "error", err)
			return exitError
		}
		return exitOK
	}

	if err := app.WriteReports(ctx, result); err != nil {
		slog.Error("failed to write reports", "error", err)
	}

	if !opts.ui {
		if err := writeReport(ctx, app, opts, result, stdout); err != nil {
			slog.Error("failed to render report", "error", err)
			return exitError
		}
	}

	if opts.once {
		if len(result.Violations) > 0 {
			return exitViolations
		}
		return exitOK
	}

	if cfgPath != "" {
		cw := config.NewWatcher(cfgPath, func(next *config.Config) {
			next.WatchPaths = cfg.WatchPaths
			if _, err := app.Reload(ctx, next); err != nil {
				slog.Warn("reload failed", "error", err)
			}
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else {
			defer cw.Stop()
		}
	}

	if opts.ui {
		trend, _ := app.TrendReport(ctx, time.Now().Add(-30*24*time.Hour), 24*time.Hour)
		if err := runUI(ctx, app, &trend); err != nil {
			slog.Error("failed to run UI", "error", err)
			return exitError
		}
		return exitOK
	}

	err = analysis.Watch(ctx, func(update ports.WatchUpdate) {
		printUpdate(app.Paths.ProjectRoot, update, stdout)
		if err := app.WriteReports(ctx, update.Result); err != nil {
			slog.Warn("failed to write reports", "error", err)
		}
	})
	if err != nil && !errors.IsCode(err, errors.CodeCanceled) && ctx.Err() == nil {
		slog.Error("watch failed", "error", err)
		return exitError
	}
	return exitOK
}

// loadConfig reads the explicit config path, or the first default candidate
// that exists. Without any file the built-in defaults are used and the
// returned path is empty.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	for _, candidate := range defaultConfigCandidates(cwd) {
		cfg, err := config.Load(candidate)
		if err == nil {
			return cfg, candidate, nil
		}
		if !errors.IsCode(err, errors.CodeNotFound) {
			return nil, "", err
		}
	}
	return config.Default(), "", nil
}

func defaultConfigCandidates(cwd string) []string {
	return []string{
		filepath.Join(cwd, "csguard.toml"),
		filepath.Join(cwd, ".csguard.toml"),
		filepath.Join(cwd, "data", "config", "csguard.toml"),
	}
}

func applyOptions(opts *cliOptions, cfg *config.Config) error {
	if len(opts.args) > 1 {
		return fmt.Errorf("at most one path argument is accepted, got %d", len(opts.args))
	}
	if len(opts.args) == 1 {
		cfg.WatchPaths = []string{opts.args[0]}
	}
	if opts.format != "" {
		format := strings.ToLower(strings.TrimSpace(opts.format))
		switch format {
		case "text", "sarif", "markdown":
			cfg.Output.Format = format
		default:
			return fmt.Errorf("-format must be text, sarif or markdown, got %q", opts.format)
		}
	}
	if opts.metricsAddr != "" {
		cfg.Observability.MetricsAddr = opts.metricsAddr
	}
	if opts.ui && opts.once {
		return fmt.Errorf("-ui and -once cannot be combined")
	}
	if opts.query != "" {
		if opts.ui || opts.trends {
			return fmt.Errorf("-query cannot be combined with -ui or -trends")
		}
		if _, err := query.ParseCQL(opts.query); err != nil {
			return err
		}
	}
	if opts.trends {
		if opts.ui {
			return fmt.Errorf("-trends and -ui cannot be combined")
		}
		if !cfg.DB.Enabled {
			return fmt.Errorf("-trends requires [db] enabled = true")
		}
		if _, err := parseSince(opts.since); err != nil {
			return err
		}
		if _, err := parseWindow(opts.trendsWindow); err != nil {
			return err
		}
	} else if opts.trendsTSV != "" || opts.trendsJSON != "" || opts.since != "" {
		return fmt.Errorf("-since, -trends-tsv and -trends-json require -trends")
	}
	return nil
}

func writeReport(ctx context.Context, app *coreapp.App, opts cliOptions, result ports.ScanResult, stdout io.Writer) error {
	if opts.out == "" {
		return app.RenderReport(ctx, stdout, app.Config.Output.Format, result)
	}
	var b strings.Builder
	if err := app.RenderReport(ctx, &b, app.Config.Output.Format, result); err != nil {
		return err
	}
	return util.WriteFileAtomic(opts.out, []byte(b.String()), 0o644)
}

// printUpdate lists the violations of the files a watch update touched.
func printUpdate(root string, update ports.WatchUpdate, w io.Writer) {
	changed := make(map[string]bool, len(update.Changed))
	for _, path := range update.Changed {
		changed[path] = true
	}
	var touched []rules.Violation
	for _, v := range update.Result.Violations {
		if changed[v.Path] {
			touched = append(touched, v)
		}
	}
	var failures []ports.FileFailure
	for _, f := range update.Result.Failures {
		if changed[f.Path] {
			failures = append(failures, f)
		}
	}
	fmt.Fprintf(w, "[%s] %d file(s) changed\n", time.Now().Format("15:04:05"), len(update.Changed))
	if err := formats.WriteText(w, root, touched, failures); err != nil {
		slog.Warn("failed to print update", "error", err)
	}
}

func runQuery(root, raw string, result ports.ScanResult, w io.Writer) error {
	res, err := query.Execute(raw, result.Violations)
	if err != nil {
		return err
	}
	if res.Target == query.TargetViolations {
		return formats.WriteText(w, root, res.Violations, nil)
	}
	for _, row := range res.Files {
		counts := make([]string, 0, len(row.Rules))
		for _, id := range util.SortedKeys(row.Rules) {
			counts = append(counts, fmt.Sprintf("%s=%d", id, row.Rules[id]))
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", util.RelSlash(root, row.Path), row.Violations, strings.Join(counts, ","))
	}
	fmt.Fprintf(w, "%d file(s)\n", len(res.Files))
	return nil
}

func runTrends(ctx context.Context, app *coreapp.App, opts cliOptions, stdout io.Writer) error {
	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}
	window, err := parseWindow(opts.trendsWindow)
	if err != nil {
		return err
	}
	// Let the run recorded by the initial scan reach the store.
	if err := app.Close(ctx); err != nil {
		return err
	}
	store, err := history.OpenWithTimeout(app.Paths.DBPath, app.Config.DB.BusyTimeout)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.LoadRuns(ctx, app.ProjectKey(), since)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "History: no runs matched the requested time window.")
		return nil
	}
	trend, err := history.BuildTrendReport(app.ProjectKey(), runs, window)
	if err != nil {
		return err
	}

	tsv, err := report.RenderTrendTSV(trend)
	if err != nil {
		return fmt.Errorf("render trend TSV: %w", err)
	}
	if opts.trendsTSV != "" {
		if err := util.WriteFileAtomic(opts.trendsTSV, tsv, 0o644); err != nil {
			return fmt.Errorf("write trend TSV %q: %w", opts.trendsTSV, err)
		}
	}
	if opts.trendsJSON != "" {
		raw, err := report.RenderTrendJSON(trend)
		if err != nil {
			return fmt.Errorf("render trend JSON: %w", err)
		}
		if err := util.WriteFileAtomic(opts.trendsJSON, raw, 0o644); err != nil {
			return fmt.Errorf("write trend JSON %q: %w", opts.trendsJSON, err)
		}
	}
	if opts.trendsTSV == "" && opts.trendsJSON == "" {
		_, err = stdout.Write(tsv)
		return err
	}
	fmt.Fprintf(stdout, "History: %d runs from %s to %s\n",
		trend.RunCount,
		trend.Since.Format("2006-01-02 15:04:05"),
		trend.Until.Format("2006-01-02 15:04:05"),
	)
	return nil
}

func parseSince(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("-since must be RFC3339 or YYYY-MM-DD, got %q", value)
}

func parseWindow(value string) (time.Duration, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("-trends-window must be a Go duration (example: 24h), got %q", value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("-trends-window must be > 0, got %q", value)
	}
	return d, nil
}

// configureLogging installs the default slog handler. UI mode writes to
// logPath so the terminal stays clean.
func configureLogging(uiMode, verbose bool, logPath string, stderr io.Writer) func() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	output := stderr
	closeFn := func() {}
	if uiMode {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			fmt.Fprintf(stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
		} else {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err != nil {
				fmt.Fprintf(stderr, "warning: failed to open log file %s: %v\n", logPath, err)
			} else {
				output = f
				closeFn = func() { _ = f.Close() }
			}
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})))
	return closeFn
}
