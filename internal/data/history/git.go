package history

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Commit identifies the checkout a run analyzed.
type Commit struct {
	Hash string
	Time time.Time
}

// HeadCommit reads HEAD of the repository containing dir. Outside a
// repository, or without git on PATH, it returns the zero Commit.
func HeadCommit(ctx context.Context, dir string) Commit {
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "log", "-1", "--format=%h%x00%cI", "--abbrev=12").Output()
	if err != nil {
		return Commit{}
	}
	hash, when, ok := strings.Cut(strings.TrimSpace(string(out)), "\x00")
	if !ok || hash == "" {
		return Commit{}
	}
	c := Commit{Hash: hash}
	if t, err := time.Parse(time.RFC3339, when); err == nil {
		c.Time = t.UTC()
	}
	return c
}

// Stamp records c on run.
func (c Commit) Stamp(run *Run) {
	run.CommitHash = c.Hash
	run.CommitTimestamp = c.Time
}
