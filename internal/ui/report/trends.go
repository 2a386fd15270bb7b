package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"csguard/internal/data/history"
	"csguard/internal/shared/util"
)

func RenderTrendTSV(report history.TrendReport) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Timestamp\tCommit\tRun\tFiles\tViolations\tDeltaFiles\tDeltaViolations\tViolationsPerFile\tAvgViolations\tWindowHours\tRuleDeltas\n")
	for _, point := range report.Points {
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\t%s\n",
			point.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			point.CommitHash,
			point.RunID,
			point.FileCount,
			point.ViolationCount,
			point.DeltaFiles,
			point.DeltaViolations,
			point.ViolationsPerFile,
			point.AvgViolations,
			point.WindowHours,
			formatRuleDeltas(point.RuleDeltas),
		))
	}

	return []byte(buf.String()), nil
}

func RenderTrendJSON(report history.TrendReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// formatRuleDeltas renders rule=delta pairs sorted by rule.
func formatRuleDeltas(deltas map[string]int) string {
	if len(deltas) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(deltas))
	for _, k := range util.SortedKeys(deltas) {
		parts = append(parts, fmt.Sprintf("%s=%+d", k, deltas[k]))
	}
	return strings.Join(parts, ",")
}
