package query

import (
	"sort"
	"strings"

	"csguard/internal/engine/rules"
)

// FileRow aggregates the violations of one file.
type FileRow struct {
	Path       string
	Violations int
	Rules      map[rules.RuleID]int
}

// Result holds the rows of the query's target; the other slice is nil.
type Result struct {
	Target     string
	Violations []rules.Violation
	Files      []FileRow
}

// Execute parses raw and runs it over violations.
func Execute(raw string, violations []rules.Violation) (Result, error) {
	q, err := ParseCQL(raw)
	if err != nil {
		return Result{}, err
	}
	return q.Run(violations), nil
}

func (q CQLQuery) Run(violations []rules.Violation) Result {
	out := Result{Target: q.Target}
	if q.Target == TargetFiles {
		for _, row := range groupFiles(violations) {
			if q.matchFile(row) {
				out.Files = append(out.Files, row)
				if q.Limit > 0 && len(out.Files) == q.Limit {
					break
				}
			}
		}
		return out
	}

	for _, v := range violations {
		if q.matchViolation(v) {
			out.Violations = append(out.Violations, v)
			if q.Limit > 0 && len(out.Violations) == q.Limit {
				break
			}
		}
	}
	return out
}

// groupFiles returns one row per file, most violations first.
func groupFiles(violations []rules.Violation) []FileRow {
	byPath := make(map[string]*FileRow)
	for _, v := range violations {
		row, ok := byPath[v.Path]
		if !ok {
			row = &FileRow{Path: v.Path, Rules: make(map[rules.RuleID]int)}
			byPath[v.Path] = row
		}
		row.Violations++
		row.Rules[v.Rule]++
	}
	rows := make([]FileRow, 0, len(byPath))
	for _, row := range byPath {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Violations != rows[j].Violations {
			return rows[i].Violations > rows[j].Violations
		}
		return rows[i].Path < rows[j].Path
	})
	return rows
}

func (q CQLQuery) matchViolation(v rules.Violation) bool {
	for _, c := range q.Conditions {
		var ok bool
		switch c.Field {
		case "line":
			ok = compareInt(v.Line, c)
		case "column":
			ok = compareInt(v.Column, c)
		case "rule":
			ok = compareString(string(v.Rule), c)
		case "code":
			ok = compareString(codeOf(v.Rule), c)
		case "path":
			ok = compareString(v.Path, c)
		case "element":
			ok = compareString(v.Element, c)
		case "message":
			ok = compareString(v.Message, c)
		}
		if !ok {
			return false
		}
	}
	return true
}

// matchFile applies rule and code conditions to the set of rules that fired
// in the file: = and CONTAINS need one match, != needs none.
func (q CQLQuery) matchFile(row FileRow) bool {
	for _, c := range q.Conditions {
		var ok bool
		switch c.Field {
		case "violations":
			ok = compareInt(row.Violations, c)
		case "path":
			ok = compareString(row.Path, c)
		case "rule", "code":
			ok = c.Op == "!="
			for id := range row.Rules {
				value := string(id)
				if c.Field == "code" {
					value = codeOf(id)
				}
				if c.Op == "!=" {
					if strings.EqualFold(value, c.StrVal) {
						ok = false
						break
					}
					continue
				}
				if compareString(value, c) {
					ok = true
					break
				}
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func compareInt(value int, c CQLCondition) bool {
	switch c.Op {
	case "=":
		return value == c.IntVal
	case "!=":
		return value != c.IntVal
	case ">":
		return value > c.IntVal
	case ">=":
		return value >= c.IntVal
	case "<":
		return value < c.IntVal
	case "<=":
		return value <= c.IntVal
	}
	return false
}

// compareString is case-insensitive.
func compareString(value string, c CQLCondition) bool {
	switch c.Op {
	case "=":
		return strings.EqualFold(value, c.StrVal)
	case "!=":
		return !strings.EqualFold(value, c.StrVal)
	case "contains":
		return strings.Contains(strings.ToLower(value), strings.ToLower(c.StrVal))
	}
	return false
}

func codeOf(id rules.RuleID) string {
	if r, ok := rules.Lookup(id); ok {
		return r.Code
	}
	return ""
}
