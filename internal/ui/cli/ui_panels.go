package cli

import (
	"fmt"
	"strings"

	"csguard/internal/core/ports"
	"csguard/internal/data/history"
	"csguard/internal/engine/rules"
	"csguard/internal/shared/util"
)

func renderHelp(m model) string {
	keys := "Keys: tab panel | / filter | enter open source | r rescan | c rule counts | t trend | q quit"
	if m.mode == panelFiles {
		keys = "Keys: tab panel | / filter | enter show violations | r rescan | c rule counts | t trend | q quit"
	}
	return statusStyle.Render(keys)
}

func renderRuleCounts(result ports.ScanResult) string {
	counts := result.RuleCounts()
	if len(counts) == 0 {
		return statusStyle.Render("No rule fired.")
	}
	lines := []string{"Rule Counts"}
	for _, id := range util.SortedKeys(counts) {
		desc := ""
		if r, ok := rules.Lookup(id); ok {
			desc = r.Description
		}
		lines = append(lines, fmt.Sprintf("  %-6s %-36s %5d  %s", ruleCode(id), id, counts[id], desc))
	}
	return strings.Join(lines, "\n")
}

func renderTrendOverlay(report *history.TrendReport) string {
	if report == nil || len(report.Points) == 0 {
		return statusStyle.Render("Trend unavailable (enable [db] to record runs).")
	}
	last := report.Points[len(report.Points)-1]
	lines := []string{
		"Trend",
		fmt.Sprintf("  Window: %s | Runs: %d", report.Window, report.RunCount),
		fmt.Sprintf("  Violations: %d (%+d) | Files: %d (%+d)", last.ViolationCount, last.DeltaViolations, last.FileCount, last.DeltaFiles),
		fmt.Sprintf("  Per file: %.2f | Moving avg: %.2f", last.ViolationsPerFile, last.AvgViolations),
	}
	if len(last.RuleDeltas) > 0 {
		parts := make([]string, 0, len(last.RuleDeltas))
		for _, id := range util.SortedKeys(last.RuleDeltas) {
			parts = append(parts, fmt.Sprintf("%s %+d", id, last.RuleDeltas[id]))
		}
		lines = append(lines, "  Rule deltas: "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}
