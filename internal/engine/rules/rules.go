// Package rules implements the style checks that run over a syntax.Tree.
//
// The checks never mutate the tree and never fail a run: each detected issue
// becomes one Violation handed to a Sink. Ambiguous cases are suppressed
// rather than guessed.
package rules

import (
	"fmt"
	"sort"
	"sync"
)

// RuleID names a rule.
type RuleID string

const (
	RuleUnderscorePrefix   RuleID = "InstanceVariablesUnderscorePrefix"
	RuleUseThisPrefix      RuleID = "UseThisPrefix"
	RuleLinqAliases        RuleID = "DoNotUseLinqAliases"
	RuleMinimumLength      RuleID = "MinimumFieldLength"
	RuleBuiltInTypeAliases RuleID = "DoNotUseBuiltInTypeAliases"
)

// Rule describes one check in the catalog.
type Rule struct {
	ID          RuleID
	Code        string
	Description string
	Format      string
	Level       string
}

var catalog = map[RuleID]Rule{
	RuleUnderscorePrefix: {
		ID:          RuleUnderscorePrefix,
		Code:        "CSG001",
		Description: "Private and protected fields are prefixed with an underscore followed by a lower-case letter.",
		Format:      "Field '%s' must be prefixed with an underscore followed by a lower-case letter.",
		Level:       "warning",
	},
	RuleUseThisPrefix: {
		ID:          RuleUseThisPrefix,
		Code:        "CSG002",
		Description: "Instance members are referenced through 'this.'.",
		Format:      "The call to '%s' must begin with the 'this.' prefix to indicate that the item is a member of the class.",
		Level:       "warning",
	},
	RuleLinqAliases: {
		ID:          RuleLinqAliases,
		Code:        "CSG003",
		Description: "LINQ query syntax is not used; extension method calls are used instead.",
		Format:      "Do not use the LINQ query keyword '%s'; use the extension method form.",
		Level:       "warning",
	},
	RuleMinimumLength: {
		ID:          RuleMinimumLength,
		Code:        "CSG004",
		Description: "Declared names have a minimum length.",
		Format:      "Name '%s' must be at least %s characters long.",
		Level:       "warning",
	},
	RuleBuiltInTypeAliases: {
		ID:          RuleBuiltInTypeAliases,
		Code:        "CSG005",
		Description: "Built-in types are spelled consistently.",
		Format:      "Use the built-in alias '%[3]s' instead of '%[1]s' (%[2]s).",
		Level:       "warning",
	},
}

// Lookup returns the catalog entry for id.
func Lookup(id RuleID) (Rule, bool) {
	r, ok := catalog[id]
	return r, ok
}

// Catalog returns every rule ordered by code.
func Catalog() []Rule {
	out := make([]Rule, 0, len(catalog))
	for _, r := range catalog {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Violation is one reported issue.
type Violation struct {
	Rule    RuleID
	Path    string
	Line    int
	Column  int
	Element string
	Args    []string
	Message string
}

func newViolation(rule RuleID, path string, line, column int, element string, args ...string) Violation {
	v := Violation{
		Rule:    rule,
		Path:    path,
		Line:    line,
		Column:  column,
		Element: element,
		Args:    args,
	}
	if r, ok := catalog[rule]; ok {
		v.Message = formatArgs(r.Format, args)
	}
	return v
}

func formatArgs(format string, args []string) string {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a
	}
	return fmt.Sprintf(format, values...)
}

// Sink receives violations. Implementations used across goroutines must be
// safe for concurrent Report calls.
type Sink interface {
	Report(v Violation)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(v Violation)

func (f SinkFunc) Report(v Violation) { f(v) }

// ListSink collects violations in report order. Not safe for concurrent use.
type ListSink struct {
	Violations []Violation
}

func (s *ListSink) Report(v Violation) {
	s.Violations = append(s.Violations, v)
}

// SyncSink is a ListSink guarded by a mutex.
type SyncSink struct {
	mu    sync.Mutex
	items []Violation
}

func (s *SyncSink) Report(v Violation) {
	s.mu.Lock()
	s.items = append(s.items, v)
	s.mu.Unlock()
}

// Violations returns a copy of the collected violations.
func (s *SyncSink) Violations() []Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Violation, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of collected violations.
func (s *SyncSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// SortViolations orders violations by path, line, column and rule.
func SortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Rule < b.Rule
	})
}
