package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"csguard/internal/core/app/helpers"
	"csguard/internal/core/errors"
	"csguard/internal/core/ports"
	"csguard/internal/data/history"
	"csguard/internal/shared/version"
	"csguard/internal/ui/report"
	"csguard/internal/ui/report/formats"
)

const (
	trendLookback = 30 * 24 * time.Hour
	trendWindow   = 24 * time.Hour
	summaryMarker = "summary"
)

// RenderReport writes result to w in format: text, sarif or markdown.
func (a *App) RenderReport(ctx context.Context, w io.Writer, format string, result ports.ScanResult) error {
	var (
		out string
		err error
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return formats.WriteText(w, a.Paths.ProjectRoot, result.Violations, result.Failures)
	case "sarif":
		var data []byte
		data, err = formats.GenerateSARIF(a.Paths.ProjectRoot, result.Violations)
		out = string(data) + "\n"
	case "markdown":
		out, err = a.MarkdownReport(ctx, result)
	default:
		return errors.New(errors.CodeNotSupported, fmt.Sprintf("unknown output format %q", format))
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// MarkdownReport renders result with the recent run trend when history is
// enabled.
func (a *App) MarkdownReport(ctx context.Context, result ports.ScanResult) (string, error) {
	data := markdownData(result)
	if trend, err := a.TrendReport(ctx, time.Now().Add(-trendLookback), trendWindow); err == nil {
		data.Trend = &trend
	}
	return formats.NewMarkdownGenerator().Generate(data, formats.MarkdownReportOptions{
		ProjectName:         filepath.Base(a.Paths.ProjectRoot),
		ProjectRoot:         a.Paths.ProjectRoot,
		Version:             version.Version,
		RunID:               result.RunID,
		GeneratedAt:         result.StartedAt,
		TableOfContents:     true,
		CollapsibleSections: true,
	})
}

func markdownData(result ports.ScanResult) formats.MarkdownReportData {
	return formats.MarkdownReportData{
		TotalFiles: result.Files,
		Skipped:    result.Skipped,
		Violations: result.Violations,
		Failures:   result.Failures,
	}
}

// WriteReports writes the report files named in [output]. Each target is
// attempted; the first error is returned.
func (a *App) WriteReports(ctx context.Context, result ports.ScanResult) error {
	root := a.Paths.ProjectRoot
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if target := helpers.ResolveOutputPath(a.Config.Output.SARIF, root); target != "" {
		data, err := formats.GenerateSARIF(root, result.Violations)
		if err == nil {
			err = helpers.WriteArtifact(target, string(data)+"\n")
		}
		if err != nil {
			keep(errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write SARIF report"), errors.CtxPath, target))
		} else {
			slog.Debug("wrote SARIF report", "path", target)
		}
	}

	if target := helpers.ResolveOutputPath(a.Config.Output.Markdown, root); target != "" {
		md, err := a.MarkdownReport(ctx, result)
		if err == nil {
			err = helpers.WriteArtifact(target, md)
		}
		if err != nil {
			keep(errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write markdown report"), errors.CtxPath, target))
		} else {
			slog.Debug("wrote markdown report", "path", target)
		}
	}

	if target := helpers.ResolveOutputPath(a.Config.Output.Inject, root); target != "" {
		if err := report.InjectSection(target, summaryMarker, formats.SummaryTable(markdownData(result))); err != nil {
			keep(errors.AddContext(errors.Wrap(err, errors.CodeInternal, "inject summary"), errors.CtxPath, target))
		}
	}
	return firstErr
}

// TrendReport builds the trend of this project's runs started after since.
func (a *App) TrendReport(ctx context.Context, since time.Time, window time.Duration) (history.TrendReport, error) {
	if a.history == nil {
		return history.TrendReport{}, errors.New(errors.CodeNotSupported, "history is disabled")
	}
	runs, err := a.history.LoadRuns(ctx, a.projectKey, since)
	if err != nil {
		return history.TrendReport{}, err
	}
	if len(runs) == 0 {
		return history.TrendReport{}, errors.New(errors.CodeNotFound, "no runs recorded")
	}
	return history.BuildTrendReport(a.projectKey, runs, window)
}
