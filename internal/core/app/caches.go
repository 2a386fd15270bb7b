package app

import (
	"csguard/internal/core/ports"
	"csguard/internal/engine/rules"
	"csguard/internal/shared/util"
)

// Violations and failures are cached per file so that a watch update only
// re-analyzes the files that changed.

func groupByFile(violations []rules.Violation) map[string][]rules.Violation {
	out := make(map[string][]rules.Violation)
	for _, v := range violations {
		out[v.Path] = append(out[v.Path], v)
	}
	return out
}

// replaceCache makes files the complete set of analyzed files.
func (a *App) replaceCache(files []string, skipped int, violations []rules.Violation, failures []ports.FileFailure) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()

	a.analyzed = make(map[string]bool, len(files))
	for _, f := range files {
		a.analyzed[f] = true
	}
	a.byFile = groupByFile(violations)
	a.failures = make(map[string]string, len(failures))
	for _, f := range failures {
		a.failures[f.Path] = f.Error
	}
	a.skipped = skipped
}

// updateCache replaces the entries of the re-analyzed files and drops the
// removed ones.
func (a *App) updateCache(changed, removed []string, violations []rules.Violation, failures []ports.FileFailure) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()

	for _, path := range removed {
		delete(a.analyzed, path)
		delete(a.byFile, path)
		delete(a.failures, path)
	}
	for _, path := range changed {
		a.analyzed[path] = true
		delete(a.byFile, path)
		delete(a.failures, path)
	}
	for path, vs := range groupByFile(violations) {
		a.byFile[path] = vs
	}
	for _, f := range failures {
		a.failures[f.Path] = f.Error
	}
}

// snapshot flattens the cache into a sorted result without run metadata.
func (a *App) snapshot() ports.ScanResult {
	a.cacheMu.RLock()
	defer a.cacheMu.RUnlock()

	result := ports.ScanResult{
		Files:   len(a.analyzed),
		Skipped: a.skipped,
	}
	for _, path := range util.SortedKeys(a.byFile) {
		result.Violations = append(result.Violations, a.byFile[path]...)
	}
	rules.SortViolations(result.Violations)
	for _, path := range util.SortedKeys(a.failures) {
		result.Failures = append(result.Failures, ports.FileFailure{Path: path, Error: a.failures[path]})
	}
	return result
}

func (a *App) analyzedFiles() []string {
	a.cacheMu.RLock()
	defer a.cacheMu.RUnlock()
	return util.SortedKeys(a.analyzed)
}

func (a *App) isAnalyzed(path string) bool {
	a.cacheMu.RLock()
	defer a.cacheMu.RUnlock()
	return a.analyzed[path]
}

// Current returns the latest published result.
func (a *App) Current() ports.ScanResult {
	a.cacheMu.RLock()
	defer a.cacheMu.RUnlock()
	return a.current
}
