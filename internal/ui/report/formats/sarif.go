// # internal/ui/report/formats/sarif.go
package formats

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"csguard/internal/engine/rules"
	"csguard/internal/shared/version"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"
)

// sarifReport is the top-level SARIF document.
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex int             `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

// GenerateSARIF builds a SARIF v2.1.0 document from rule violations.
// All file URIs are made relative to projectRoot; absolute paths are never
// included so that reports are safe to share.
func GenerateSARIF(projectRoot string, violations []rules.Violation) ([]byte, error) {
	sarifRules, index := buildSARIFRules(violations)
	results := make([]sarifResult, 0, len(violations))

	for _, v := range violations {
		rule, _ := rules.Lookup(v.Rule)
		result := sarifResult{
			RuleID:    ruleCode(v.Rule),
			RuleIndex: index[v.Rule],
			Level:     levelOf(rule),
			Message:   sarifMessage{Text: v.Message},
		}
		if v.Path != "" {
			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{
						URI:       relativeURI(projectRoot, v.Path),
						URIBaseID: "%SRCROOT%",
					},
				},
			}
			if v.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{
					StartLine:   v.Line,
					StartColumn: v.Column,
				}
			}
			result.Locations = []sarifLocation{loc}
		}
		results = append(results, result)
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "csguard",
						Version: version.Version,
						Rules:   sarifRules,
					},
				},
				Results: results,
			},
		},
	}

	return json.MarshalIndent(report, "", "  ")
}

// buildSARIFRules returns one entry per rule that fired, ordered by code,
// and the index of each rule in that list.
func buildSARIFRules(violations []rules.Violation) ([]sarifRule, map[rules.RuleID]int) {
	fired := make(map[rules.RuleID]bool)
	for _, v := range violations {
		fired[v.Rule] = true
	}
	ids := make([]rules.RuleID, 0, len(fired))
	for id := range fired {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ruleCode(ids[i]) < ruleCode(ids[j]) })

	out := make([]sarifRule, 0, len(ids))
	index := make(map[rules.RuleID]int, len(ids))
	for i, id := range ids {
		rule, ok := rules.Lookup(id)
		desc := string(id)
		if ok {
			desc = rule.Description
		}
		out = append(out, sarifRule{
			ID:               ruleCode(id),
			Name:             string(id),
			ShortDescription: sarifMessage{Text: desc},
			DefaultConfig:    sarifRuleDefaultConfig{Level: levelOf(rule)},
		})
		index[id] = i
	}
	return out, index
}

func ruleCode(id rules.RuleID) string {
	if rule, ok := rules.Lookup(id); ok {
		return rule.Code
	}
	return string(id)
}

// levelOf maps a catalog level to a SARIF level.
func levelOf(rule rules.Rule) string {
	switch strings.ToLower(rule.Level) {
	case "error":
		return "error"
	case "note", "info":
		return "note"
	default:
		return "warning"
	}
}

// relativeURI converts an absolute file path to a forward-slash relative URI
// anchored at projectRoot. If the path is already relative or projectRoot is
// empty, the original path (with forward slashes) is returned.
func relativeURI(projectRoot, filePath string) string {
	if projectRoot != "" && filepath.IsAbs(filePath) {
		rel, err := filepath.Rel(projectRoot, filePath)
		if err == nil && !strings.HasPrefix(rel, "..") {
			filePath = rel
		}
	}
	// SARIF URIs use forward slashes.
	return filepath.ToSlash(filePath)
}
