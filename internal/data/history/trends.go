package history

import (
	"fmt"
	"math"
	"time"
)

// BuildTrendReport turns runs, oldest first, into per-run deltas and a
// moving average of the violation count over window.
func BuildTrendReport(projectKey string, runs []Run, window time.Duration) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs available")
	}

	points := make([]TrendPoint, 0, len(runs))
	for i, current := range runs {
		point := TrendPoint{
			RunID:          current.ID,
			Timestamp:      current.StartedAt,
			CommitHash:     current.CommitHash,
			FileCount:      current.FileCount,
			ViolationCount: current.ViolationCount,
		}
		if current.FileCount > 0 {
			point.ViolationsPerFile = round2(float64(current.ViolationCount) / float64(current.FileCount))
		}

		if i > 0 {
			prev := runs[i-1]
			point.DeltaFiles = current.FileCount - prev.FileCount
			point.DeltaViolations = current.ViolationCount - prev.ViolationCount
			point.RuleDeltas = ruleDeltas(prev.RuleCounts, current.RuleCounts)
		}

		point.AvgViolations = round2(movingAverage(runs, i, window))
		point.WindowHours = round2(window.Hours())
		points = append(points, point)
	}

	return TrendReport{
		SchemaVersion: SchemaVersion,
		ProjectKey:    projectKey,
		Since:         runs[0].StartedAt,
		Until:         runs[len(runs)-1].StartedAt,
		Window:        window.String(),
		RunCount:      len(points),
		Points:        points,
	}, nil
}

// ruleDeltas lists the rules whose count changed, including rules that
// disappeared.
func ruleDeltas(prev, current map[string]int) map[string]int {
	out := map[string]int{}
	for rule, n := range current {
		if d := n - prev[rule]; d != 0 {
			out[rule] = d
		}
	}
	for rule, n := range prev {
		if _, ok := current[rule]; !ok && n != 0 {
			out[rule] = -n
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func movingAverage(runs []Run, index int, window time.Duration) float64 {
	if window <= 0 {
		return float64(runs[index].ViolationCount)
	}

	cutoff := runs[index].StartedAt.Add(-window)
	total := 0
	count := 0
	for i := index; i >= 0; i-- {
		if runs[i].StartedAt.Before(cutoff) {
			break
		}
		total += runs[i].ViolationCount
		count++
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
