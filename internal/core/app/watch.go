package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"csguard/internal/core/ports"
	"csguard/internal/core/watcher"
	"csguard/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartWatcher follows the roots of the last scan, or the configured watch
// paths before any scan, and re-analyzes changed files until ctx is done.
func (a *App) StartWatcher(ctx context.Context) error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.filter,
		func(paths []string) { a.HandleChanges(ctx, paths) },
	)
	if err != nil {
		return err
	}
	w.Prime(a.analyzedFiles())
	a.activeWatcher = w

	a.cacheMu.RLock()
	roots := append([]string(nil), a.activeRoots...)
	a.cacheMu.RUnlock()
	if len(roots) == 0 {
		roots = a.Config.WatchPaths
	}
	return w.Watch(ctx, roots)
}

// HandleChanges re-analyzes the changed files, drops deleted ones from the
// cached state and publishes the merged result as a new run.
func (a *App) HandleChanges(ctx context.Context, paths []string) {
	if ctx.Err() != nil {
		return
	}
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	ctx, span := observability.Tracer.Start(ctx, "app.HandleChanges", trace.WithAttributes(attribute.Int("paths", len(paths))))
	defer span.End()

	slog.Info("detected changes", "count", len(paths))
	started := time.Now()

	changed := make([]string, 0, len(paths))
	removed := make([]string, 0)
	for _, path := range paths {
		if !a.parser.Supports(path) {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if a.isAnalyzed(path) {
				removed = append(removed, path)
			}
			continue
		}
		changed = append(changed, path)
	}
	if len(changed) == 0 && len(removed) == 0 {
		return
	}

	violations, failures, err := a.analyzeFiles(ctx, changed)
	if err != nil {
		slog.Debug("re-analysis interrupted", "error", err)
		return
	}
	a.updateCache(changed, removed, violations, failures)

	result := a.publish(ctx, started)
	observability.AnalysisDuration.WithLabelValues("incremental").Observe(time.Since(started).Seconds())
	a.emitUpdate(ports.WatchUpdate{
		Changed: append(changed, removed...),
		Result:  result,
	})
}
