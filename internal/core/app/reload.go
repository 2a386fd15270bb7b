package app

import (
	"context"
	"log/slog"

	"csguard/internal/core/config"
	"csguard/internal/core/errors"
	"csguard/internal/core/ports"
	"csguard/internal/core/watcher"
	"csguard/internal/engine/parser"
	"csguard/internal/engine/rules"
	"csguard/internal/shared/util"
)

// Reload applies the rule, exclude, watch and performance sections of cfg
// and rescans the active roots. Paths, history and output settings keep the
// values the App was created with.
func (a *App) Reload(ctx context.Context, cfg *config.Config) (ports.ScanResult, error) {
	if cfg == nil {
		return ports.ScanResult{}, errors.New(errors.CodeValidationError, "config is required")
	}
	filter, err := watcher.NewFilter(cfg.Exclude.Dirs, cfg.Exclude.Files, parser.Extensions)
	if err != nil {
		return ports.ScanResult{}, errors.Wrap(err, errors.CodeValidationError, "compile exclude patterns")
	}

	a.scanMu.Lock()
	a.Config.Rules = cfg.Rules
	a.Config.Exclude = cfg.Exclude
	a.Config.Watch = cfg.Watch
	a.Config.Performance.Workers = cfg.Performance.Workers
	a.Config.Performance.MaxFilesPerSecond = cfg.Performance.MaxFilesPerSecond
	a.filter = filter
	a.limiter = util.NewFileLimiter(cfg.Performance.MaxFilesPerSecond)
	// Injected analyzers are left alone.
	if _, ok := a.analyzer.(*rules.Analyzer); ok {
		a.analyzer = rules.NewAnalyzer(cfg.RuleOptions())
	}
	if a.activeWatcher != nil {
		a.activeWatcher.SetDebounce(cfg.Watch.Debounce)
	}
	a.scanMu.Unlock()

	a.cacheMu.RLock()
	roots := append([]string(nil), a.activeRoots...)
	a.cacheMu.RUnlock()
	if len(roots) == 0 {
		roots = a.Config.WatchPaths
	}
	slog.Info("configuration reloaded", "roots", len(roots))
	return a.Scan(ctx, roots)
}
