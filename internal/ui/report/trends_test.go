package report

import (
	"strings"
	"testing"
	"time"

	"csguard/internal/data/history"
)

func TestRenderTrendTSV(t *testing.T) {
	report := history.TrendReport{
		SchemaVersion: 1,
		Since:         time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC),
		Until:         time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
		Window:        "24h0m0s",
		RunCount:      1,
		Points: []history.TrendPoint{
			{
				RunID:             "run-1",
				Timestamp:         time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
				CommitHash:        "abc123",
				FileCount:         15,
				ViolationCount:    30,
				DeltaViolations:   -4,
				RuleDeltas:        map[string]int{"UseThisPrefix": -5, "DoNotUseLinqAliases": 1},
				ViolationsPerFile: 2,
				AvgViolations:     32,
				WindowHours:       24,
			},
		},
	}

	out, err := RenderTrendTSV(report)
	if err != nil {
		t.Fatalf("render tsv: %v", err)
	}

	body := string(out)
	if !strings.Contains(body, "Timestamp\tCommit\tRun") {
		t.Fatalf("missing header in output: %s", body)
	}
	if !strings.Contains(body, "abc123\trun-1\t15\t30\t0\t-4\t2.00\t32.00\t24.00\tDoNotUseLinqAliases=+1,UseThisPrefix=-5") {
		t.Fatalf("missing row values in output: %s", body)
	}
}

func TestRenderTrendJSON(t *testing.T) {
	report := history.TrendReport{
		SchemaVersion: 1,
		RunCount:      2,
	}

	out, err := RenderTrendJSON(report)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	if !strings.Contains(string(out), "\"run_count\": 2") {
		t.Fatalf("missing run_count in output: %s", out)
	}
}
