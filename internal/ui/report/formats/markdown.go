package formats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"csguard/internal/core/ports"
	"csguard/internal/data/history"
	"csguard/internal/engine/rules"
)

type MarkdownReportData struct {
	TotalFiles int
	Skipped    int

	Violations []rules.Violation
	Failures   []ports.FileFailure
	Trend      *history.TrendReport
}

type MarkdownReportOptions struct {
	ProjectName         string
	ProjectRoot         string
	Version             string
	RunID               string
	GeneratedAt         time.Time
	Verbosity           string
	TableOfContents     bool
	CollapsibleSections bool
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (m *MarkdownGenerator) Generate(data MarkdownReportData, opts MarkdownReportOptions) (string, error) {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}
	verbosity := normalizeReportVerbosity(opts.Verbosity)

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: C# Style Report\n")
	b.WriteString("project: " + nonEmpty(opts.ProjectName, "unknown") + "\n")
	b.WriteString("generated_at: " + opts.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(opts.Version, "unknown") + "\n")
	if opts.RunID != "" {
		b.WriteString("run_id: " + opts.RunID + "\n")
	}
	b.WriteString("---\n\n")

	b.WriteString("# Style Report\n\n")
	if opts.TableOfContents {
		b.WriteString("## Table of Contents\n")
		b.WriteString("- [Executive Summary](#executive-summary)\n")
		b.WriteString("- [Violations by Rule](#violations-by-rule)\n")
		if verbosity != "summary" {
			b.WriteString("- [Violations](#violations)\n")
		}
		if len(data.Failures) > 0 {
			b.WriteString("- [Failed Files](#failed-files)\n")
		}
		if data.Trend != nil && len(data.Trend.Points) > 0 {
			b.WriteString("- [Trend](#trend)\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(SummaryTable(data))
	b.WriteString("\n")

	m.writeRuleCounts(&b, data.Violations)
	if verbosity != "summary" {
		m.writeViolations(&b, data.Violations, opts.ProjectRoot, opts.CollapsibleSections, verbosity)
	}
	m.writeFailures(&b, data.Failures, opts.ProjectRoot, opts.CollapsibleSections)
	if data.Trend != nil && len(data.Trend.Points) > 0 {
		m.writeTrend(&b, *data.Trend, opts.CollapsibleSections)
	}

	return b.String(), nil
}

// SummaryTable renders the executive summary on its own so it can be
// injected into an existing document.
func SummaryTable(data MarkdownReportData) string {
	var b strings.Builder
	b.WriteString("## Executive Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Files Analyzed | %d |\n", data.TotalFiles))
	b.WriteString(fmt.Sprintf("| Files Skipped | %d |\n", data.Skipped))
	b.WriteString(fmt.Sprintf("| Failed Files | %d |\n", len(data.Failures)))
	b.WriteString(fmt.Sprintf("| Violations | %d |\n", len(data.Violations)))
	files := make(map[string]bool)
	for _, v := range data.Violations {
		files[v.Path] = true
	}
	b.WriteString(fmt.Sprintf("| Files With Violations | %d |\n", len(files)))
	return b.String()
}

func (m *MarkdownGenerator) writeRuleCounts(b *strings.Builder, violations []rules.Violation) {
	b.WriteString("## Violations by Rule\n")
	if len(violations) == 0 {
		b.WriteString("No violations detected.\n\n")
		return
	}
	counts := make(map[rules.RuleID]int)
	for _, v := range violations {
		counts[v.Rule]++
	}
	b.WriteString("| Code | Rule | Count | Description |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, rule := range rules.Catalog() {
		n := counts[rule.ID]
		if n == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("| %s | `%s` | %d | %s |\n", rule.Code, rule.ID, n, escapeCell(rule.Description)))
	}
	b.WriteString("\n")
}

func (m *MarkdownGenerator) writeViolations(b *strings.Builder, violations []rules.Violation, projectRoot string, collapsible bool, verbosity string) {
	b.WriteString("## Violations\n")
	if len(violations) == 0 {
		b.WriteString("No violations detected.\n\n")
		return
	}
	sorted := append([]rules.Violation(nil), violations...)
	rules.SortViolations(sorted)

	rendered := make([]string, 0, len(sorted))
	for _, v := range sorted {
		location := fmt.Sprintf("%s:%d:%d", relPath(projectRoot, v.Path), v.Line, v.Column)
		if verbosity == "detailed" {
			rendered = append(rendered, fmt.Sprintf("| `%s` | %s | `%s` | %s |\n", location, ruleCode(v.Rule), v.Element, escapeCell(v.Message)))
			continue
		}
		rendered = append(rendered, fmt.Sprintf("| `%s` | %s | %s |\n", location, ruleCode(v.Rule), escapeCell(v.Message)))
	}
	header := []string{"| Location | Code | Message |\n", "| --- | --- | --- |\n"}
	if verbosity == "detailed" {
		header = []string{"| Location | Code | Element | Message |\n", "| --- | --- | --- | --- |\n"}
	}
	m.writeTableWithCollapse(b, "Violation details", collapsible, len(rendered) > 15, header, rendered)
}

func (m *MarkdownGenerator) writeFailures(b *strings.Builder, failures []ports.FileFailure, projectRoot string, collapsible bool) {
	if len(failures) == 0 {
		return
	}
	b.WriteString("## Failed Files\n")
	sorted := append([]ports.FileFailure(nil), failures...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	rendered := make([]string, 0, len(sorted))
	for _, f := range sorted {
		rendered = append(rendered, fmt.Sprintf("| `%s` | %s |\n", relPath(projectRoot, f.Path), escapeCell(f.Error)))
	}
	m.writeTableWithCollapse(
		b,
		"Failure details",
		collapsible,
		len(rendered) > 10,
		[]string{"| File | Error |\n", "| --- | --- |\n"},
		rendered,
	)
}

func (m *MarkdownGenerator) writeTrend(b *strings.Builder, trend history.TrendReport, collapsible bool) {
	b.WriteString("## Trend\n")
	b.WriteString(fmt.Sprintf("%d runs between %s and %s, moving average window %s.\n\n",
		trend.RunCount,
		trend.Since.UTC().Format(time.RFC3339),
		trend.Until.UTC().Format(time.RFC3339),
		trend.Window,
	))
	rendered := make([]string, 0, len(trend.Points))
	for _, p := range trend.Points {
		rendered = append(rendered, fmt.Sprintf("| %s | `%s` | %d | %d | %+d | %.2f | %.2f |\n",
			p.Timestamp.UTC().Format(time.RFC3339),
			nonEmpty(p.CommitHash, "-"),
			p.FileCount,
			p.ViolationCount,
			p.DeltaViolations,
			p.ViolationsPerFile,
			p.AvgViolations,
		))
	}
	m.writeTableWithCollapse(
		b,
		"Run history",
		collapsible,
		len(rendered) > 10,
		[]string{"| Run | Commit | Files | Violations | Delta | Per File | Moving Avg |\n", "| --- | --- | --- | --- | --- | --- | --- |\n"},
		rendered,
	)
}

func (m *MarkdownGenerator) writeTableWithCollapse(
	b *strings.Builder,
	summary string,
	collapsible bool,
	collapse bool,
	header []string,
	rows []string,
) {
	if collapsible && collapse {
		b.WriteString("<details>\n")
		b.WriteString("<summary>")
		b.WriteString(summary)
		b.WriteString("</summary>\n\n")
	}
	for _, line := range header {
		b.WriteString(line)
	}
	for _, line := range rows {
		b.WriteString(line)
	}
	b.WriteString("\n")
	if collapsible && collapse {
		b.WriteString("</details>\n\n")
	}
}
