package app

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"csguard/internal/core/app/helpers"
	"csguard/internal/core/errors"
	"csguard/internal/core/ports"
	"csguard/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScanDirectories returns the C# files under roots that pass the exclude
// filter, sorted, together with the number of C# files the filter rejected.
// A root may also name a single file.
func (a *App) ScanDirectories(ctx context.Context, roots []string) ([]string, int, error) {
	seen := make(map[string]bool)
	var files []string
	skipped := 0

	for _, root := range helpers.UniqueScanRoots(roots) {
		info, err := os.Stat(root)
		if err != nil {
			return nil, 0, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "stat scan root"), errors.CtxPath, root)
		}
		if !info.IsDir() {
			if !a.parser.Supports(root) {
				return nil, 0, errors.AddContext(errors.New(errors.CodeNotSupported, "scan root is not a C# file"), errors.CtxPath, root)
			}
			if !seen[root] {
				seen[root] = true
				files = append(files, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("walk failed", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				if a.filter.SkipDir(root, path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !a.parser.Supports(path) {
				return nil
			}
			if !a.filter.Accept(root, path) {
				skipped++
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
	}

	sort.Strings(files)
	return files, skipped, nil
}

// InitialScan analyzes everything under the configured watch paths and makes
// the result current.
func (a *App) InitialScan(ctx context.Context) (ports.ScanResult, error) {
	return a.Scan(ctx, a.Config.WatchPaths)
}

// Scan analyzes the files under roots, replaces the cached state with the
// outcome and publishes it. On cancellation the partial result is returned
// with the context error.
func (a *App) Scan(ctx context.Context, roots []string) (ports.ScanResult, error) {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	ctx, span := observability.Tracer.Start(ctx, "app.Scan", trace.WithAttributes(attribute.Int("roots", len(roots))))
	defer span.End()

	started := time.Now()
	roots = normalizeScanPaths(roots)
	if len(roots) == 0 {
		return ports.ScanResult{}, errors.New(errors.CodeValidationError, "no paths to scan")
	}
	files, skipped, err := a.ScanDirectories(ctx, roots)
	if err != nil {
		return ports.ScanResult{}, errors.AddContext(err, errors.CtxOperation, "scan_directories")
	}
	slog.Debug("discovered sources", "files", len(files), "skipped", skipped)

	violations, failures, scanErr := a.analyzeFiles(ctx, files)
	a.replaceCache(files, skipped, violations, failures)
	a.cacheMu.Lock()
	a.activeRoots = roots
	a.cacheMu.Unlock()

	result := a.publish(ctx, started)
	span.SetAttributes(attribute.Int("files", result.Files), attribute.Int("violations", len(result.Violations)))
	if scanErr != nil {
		return result, errors.AddContext(errors.Wrap(scanErr, errors.CodeCanceled, "scan interrupted"), errors.CtxRunID, result.RunID)
	}
	return result, nil
}

func normalizeScanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
