package formats

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"csguard/internal/core/ports"
	"csguard/internal/engine/rules"
)

// WriteText prints one line per violation in the compiler style
// path:line:col: CODE Rule: message, followed by failures and a summary.
func WriteText(w io.Writer, projectRoot string, violations []rules.Violation, failures []ports.FileFailure) error {
	bw := bufio.NewWriter(w)
	sorted := append([]rules.Violation(nil), violations...)
	rules.SortViolations(sorted)
	for _, v := range sorted {
		fmt.Fprintf(bw, "%s:%d:%d: %s %s: %s\n", relPath(projectRoot, v.Path), v.Line, v.Column, ruleCode(v.Rule), v.Rule, v.Message)
	}

	failed := append([]ports.FileFailure(nil), failures...)
	sort.Slice(failed, func(i, j int) bool { return failed[i].Path < failed[j].Path })
	for _, f := range failed {
		fmt.Fprintf(bw, "%s: error: %s\n", relPath(projectRoot, f.Path), f.Error)
	}

	files := make(map[string]bool)
	for _, v := range violations {
		files[v.Path] = true
	}
	fmt.Fprintf(bw, "%d violation(s) in %d file(s)", len(violations), len(files))
	if len(failures) > 0 {
		fmt.Fprintf(bw, ", %d file(s) failed", len(failures))
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}
