package ports

import (
	"context"
	"time"

	"csguard/internal/data/history"
	"csguard/internal/engine/rules"
	"csguard/internal/engine/syntax"
)

// SourceParser abstracts the front end that turns a file into a tree.
type SourceParser interface {
	ParseFile(path string, content []byte) (*syntax.Tree, error)
	Supports(path string) bool
}

// TreeAnalyzer runs the rule set over one parsed tree.
type TreeAnalyzer interface {
	Analyze(ctx context.Context, tree *syntax.Tree, sink rules.Sink) error
}

// HistoryStore abstracts run persistence for trend and report workflows.
type HistoryStore interface {
	SaveRun(ctx context.Context, run history.Run, violations []rules.Violation) error
	LoadRuns(ctx context.Context, projectKey string, since time.Time) ([]history.Run, error)
	Prune(ctx context.Context, projectKey string, keep int) (int64, error)
}

// WriteRequest carries one finished run to the history writer.
type WriteRequest struct {
	Run        history.Run       `json:"run"`
	Violations []rules.Violation `json:"violations"`
}

type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

// WriteQueuePort is the in-memory hand-off between the analysis loop and
// the history writer.
type WriteQueuePort interface {
	Enqueue(req WriteRequest) EnqueueResult
	DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]WriteRequest, error)
	Close() error
	Len() int
}

// SpoolRow is a persisted write waiting for a retry.
type SpoolRow struct {
	ID       int64
	Request  WriteRequest
	Attempts int
}

// WriteSpoolPort holds writes the history store rejected so they survive
// until the store recovers.
type WriteSpoolPort interface {
	Enqueue(req WriteRequest) error
	DequeueBatch(ctx context.Context, maxItems int) ([]SpoolRow, error)
	Ack(ctx context.Context, ids []int64) error
	Nack(ctx context.Context, rows []SpoolRow, nextAttemptAt time.Time, lastErr string) error
	PendingCount(ctx context.Context) (int, error)
	Close() error
}

// ScanRequest defines a scan operation request for driving adapters.
type ScanRequest struct {
	Paths []string
}

// FileFailure records a file that could not be analyzed.
type FileFailure struct {
	Path  string
	Error string
}

// ScanResult summarizes a completed scan.
type ScanResult struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Files      int
	Skipped    int
	Failures   []FileFailure
	Violations []rules.Violation
}

// RuleCounts tallies violations per rule.
func (r ScanResult) RuleCounts() map[rules.RuleID]int {
	out := make(map[rules.RuleID]int)
	for _, v := range r.Violations {
		out[v.Rule]++
	}
	return out
}

// WatchUpdate is published after each incremental re-analysis.
type WatchUpdate struct {
	Changed []string
	Result  ScanResult
}

// AnalysisService is the driving-port surface used by the CLI and the UI.
type AnalysisService interface {
	RunScan(ctx context.Context, req ScanRequest) (ScanResult, error)
	Watch(ctx context.Context, handler func(WatchUpdate)) error
	Current() ScanResult
}
