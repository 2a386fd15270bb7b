package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"csguard/internal/core/errors"
	"csguard/internal/core/ports"
	"csguard/internal/data/history"
	"csguard/internal/shared/observability"

	"go.opentelemetry.io/otel/trace"
)

type analysisService struct {
	app *App
}

var _ ports.AnalysisService = (*analysisService)(nil)

func NewAnalysisService(app *App) ports.AnalysisService {
	return &analysisService{app: app}
}

func (s *analysisService) Unwrap() *App {
	return s.app
}

func (s *analysisService) Close(ctx context.Context) error {
	if s == nil || s.app == nil {
		return nil
	}
	return s.app.Close(ctx)
}

func (a *App) AnalysisService() ports.AnalysisService {
	return NewAnalysisService(a)
}

func (s *analysisService) RunScan(ctx context.Context, req ports.ScanRequest) (ports.ScanResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.RunScan", trace.WithAttributes())
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.ScanResult{}, err
	}
	if s.app == nil {
		return ports.ScanResult{}, fmt.Errorf("app is required")
	}
	if s.app.Config == nil {
		return ports.ScanResult{}, fmt.Errorf("config is required")
	}

	if len(req.Paths) > 0 {
		return s.app.Scan(ctx, req.Paths)
	}
	result, err := s.app.InitialScan(ctx)
	if err != nil {
		return result, errors.AddContext(err, errors.CtxOperation, "initial_scan")
	}
	return result, nil
}

// Watch installs handler for watch updates and follows the roots of the
// last scan until ctx is done.
func (s *analysisService) Watch(ctx context.Context, handler func(ports.WatchUpdate)) error {
	if s.app == nil {
		return fmt.Errorf("app is required")
	}
	s.app.SetUpdateHandler(handler)
	if err := s.app.StartWatcher(ctx); err != nil {
		return errors.AddContext(err, errors.CtxOperation, "start_watcher")
	}
	<-ctx.Done()
	return nil
}

func (s *analysisService) Current() ports.ScanResult {
	if s.app == nil {
		return ports.ScanResult{}
	}
	return s.app.Current()
}

// publish stamps the cached state as a new run, makes it current, updates
// the gauges and hands the run to the history writer.
func (a *App) publish(ctx context.Context, started time.Time) ports.ScanResult {
	run := history.NewRun(a.projectKey, started)
	result := a.snapshot()
	result.RunID = run.ID
	result.StartedAt = run.StartedAt
	result.Duration = time.Since(started)

	a.cacheMu.Lock()
	a.current = result
	a.cacheMu.Unlock()

	counts := result.RuleCounts()
	observability.CurrentViolations.Reset()
	for rule, n := range counts {
		observability.CurrentViolations.WithLabelValues(string(rule)).Set(float64(n))
	}

	a.recordRun(ctx, run, result)
	slog.Info("analysis complete",
		"run_id", result.RunID,
		"files", result.Files,
		"violations", len(result.Violations),
		"failed", len(result.Failures),
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result
}

func (a *App) recordRun(ctx context.Context, run history.Run, result ports.ScanResult) {
	if a.history == nil {
		return
	}
	run.Duration = result.Duration
	run.FileCount = result.Files
	run.FailedCount = len(result.Failures)
	run.ViolationCount = len(result.Violations)
	for rule, n := range result.RuleCounts() {
		run.RuleCounts[string(rule)] = n
	}
	history.HeadCommit(context.WithoutCancel(ctx), a.Paths.ProjectRoot).Stamp(&run)

	if err := a.enqueueHistoryWrite(ports.WriteRequest{Run: run, Violations: result.Violations}); err != nil {
		slog.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}
