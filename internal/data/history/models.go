package history

import (
	"time"

	"github.com/google/uuid"
)

const SchemaVersion = 1

// Run is one analysis pass over the watched sources.
type Run struct {
	ID              string         `json:"id"`
	ProjectKey      string         `json:"project_key"`
	StartedAt       time.Time      `json:"started_at"`
	Duration        time.Duration  `json:"duration"`
	CommitHash      string         `json:"commit_hash,omitempty"`
	CommitTimestamp time.Time      `json:"commit_timestamp,omitempty"`
	FileCount       int            `json:"file_count"`
	FailedCount     int            `json:"failed_count"`
	ViolationCount  int            `json:"violation_count"`
	RuleCounts      map[string]int `json:"rule_counts"`
}

// NewRun starts a run record with a fresh ID.
func NewRun(projectKey string, startedAt time.Time) Run {
	return Run{
		ID:         uuid.NewString(),
		ProjectKey: projectKey,
		StartedAt:  startedAt.UTC(),
		RuleCounts: map[string]int{},
	}
}

type TrendPoint struct {
	RunID             string         `json:"run_id"`
	Timestamp         time.Time      `json:"timestamp"`
	CommitHash        string         `json:"commit_hash,omitempty"`
	FileCount         int            `json:"file_count"`
	ViolationCount    int            `json:"violation_count"`
	DeltaFiles        int            `json:"delta_files"`
	DeltaViolations   int            `json:"delta_violations"`
	RuleDeltas        map[string]int `json:"rule_deltas,omitempty"`
	ViolationsPerFile float64        `json:"violations_per_file"`
	AvgViolations     float64        `json:"avg_violations"`
	WindowHours       float64        `json:"window_hours"`
}

type TrendReport struct {
	SchemaVersion int          `json:"schema_version"`
	ProjectKey    string       `json:"project_key"`
	Since         time.Time    `json:"since"`
	Until         time.Time    `json:"until"`
	Window        string       `json:"window"`
	RunCount      int          `json:"run_count"`
	Points        []TrendPoint `json:"points"`
}
