// Package query implements a small SQL-like filter language over analysis
// results:
//
//	SELECT violations WHERE rule = 'UseThisPrefix' AND line > 10
//	SELECT files WHERE violations >= 3 AND path CONTAINS 'Services/'
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	TargetViolations = "violations"
	TargetFiles      = "files"
)

var (
	cqlSelectRE       = regexp.MustCompile(`(?i)^\s*SELECT\s+(violations|files)(?:\s+WHERE\s+(.+?))?(?:\s+LIMIT\s+([0-9]+))?\s*$`)
	cqlAndSplitRE     = regexp.MustCompile(`(?i)\s+AND\s+`)
	cqlNumericCondRE  = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(>=|<=|!=|=|>|<)\s*(-?[0-9]+)\s*$`)
	cqlContainsCondRE = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s+CONTAINS\s+['"]([^'"]+)['"]\s*$`)
	cqlStringCondRE   = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(=|!=)\s*['"]([^'"]+)['"]\s*$`)
)

type CQLQuery struct {
	Target     string
	Conditions []CQLCondition
	Limit      int
}

type CQLCondition struct {
	Field  string
	Op     string
	IntVal int
	StrVal string
	IsInt  bool
	IsStr  bool
}

func ParseCQL(raw string) (CQLQuery, error) {
	matches := cqlSelectRE.FindStringSubmatch(strings.TrimSpace(raw))
	if len(matches) == 0 {
		return CQLQuery{}, fmt.Errorf("invalid CQL query: expected SELECT violations|files [WHERE ...] [LIMIT n]")
	}

	query := CQLQuery{Target: strings.ToLower(matches[1])}
	if matches[3] != "" {
		limit, err := parseInt(matches[3])
		if err != nil {
			return CQLQuery{}, fmt.Errorf("invalid LIMIT %q: %w", matches[3], err)
		}
		query.Limit = limit
	}
	where := strings.TrimSpace(matches[2])
	if where == "" {
		return query, nil
	}

	parts := cqlAndSplitRE.Split(where, -1)
	query.Conditions = make([]CQLCondition, 0, len(parts))
	for _, part := range parts {
		condition, err := parseCQLCondition(part)
		if err != nil {
			return CQLQuery{}, err
		}
		if err := checkField(query.Target, condition); err != nil {
			return CQLQuery{}, err
		}
		query.Conditions = append(query.Conditions, condition)
	}
	return query, nil
}

func parseCQLCondition(raw string) (CQLCondition, error) {
	if match := cqlNumericCondRE.FindStringSubmatch(raw); len(match) == 4 {
		value, err := parseInt(match[3])
		if err != nil {
			return CQLCondition{}, fmt.Errorf("invalid numeric value %q: %w", match[3], err)
		}
		return CQLCondition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     strings.TrimSpace(match[2]),
			IntVal: value,
			IsInt:  true,
		}, nil
	}

	if match := cqlContainsCondRE.FindStringSubmatch(raw); len(match) == 3 {
		return CQLCondition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     "contains",
			StrVal: strings.TrimSpace(match[2]),
			IsStr:  true,
		}, nil
	}

	if match := cqlStringCondRE.FindStringSubmatch(raw); len(match) == 4 {
		return CQLCondition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     strings.TrimSpace(match[2]),
			StrVal: strings.TrimSpace(match[3]),
			IsStr:  true,
		}, nil
	}

	return CQLCondition{}, fmt.Errorf("invalid CQL condition %q", strings.TrimSpace(raw))
}

var (
	violationIntFields    = map[string]bool{"line": true, "column": true}
	violationStringFields = map[string]bool{"rule": true, "code": true, "path": true, "element": true, "message": true}
	fileIntFields         = map[string]bool{"violations": true}
	fileStringFields      = map[string]bool{"path": true, "rule": true, "code": true}
)

// checkField rejects fields the target does not have, or a value of the
// wrong kind for the field.
func checkField(target string, c CQLCondition) error {
	ints, strs := violationIntFields, violationStringFields
	if target == TargetFiles {
		ints, strs = fileIntFields, fileStringFields
	}
	switch {
	case ints[c.Field] && c.IsInt, strs[c.Field] && c.IsStr:
		return nil
	case ints[c.Field]:
		return fmt.Errorf("field %q of %s takes a number", c.Field, target)
	case strs[c.Field]:
		return fmt.Errorf("field %q of %s takes a quoted string", c.Field, target)
	default:
		return fmt.Errorf("unknown field %q for %s", c.Field, target)
	}
}

func parseInt(raw string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(raw))
}
