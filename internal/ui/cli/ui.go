package cli

import (
	"fmt"
	"sort"
	"time"

	"csguard/internal/core/ports"
	"csguard/internal/data/history"
	"csguard/internal/engine/rules"
	"csguard/internal/shared/util"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	violationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// item is a list row. index points into the result's violations, or is -1.
type item struct {
	title, desc string
	index       int
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

// fileSummary is one row of the file panel.
type fileSummary struct {
	path       string
	violations int
	failed     bool
}

type panelMode int

const (
	panelViolations panelMode = iota
	panelFiles
)

type model struct {
	violationList list.Model
	fileList      list.Model
	mode          panelMode
	projectRoot   string
	rescan        func() (ports.ScanResult, error)
	trendReport   *history.TrendReport
	showTrend     bool
	showRules     bool

	result     ports.ScanResult
	files      []fileSummary
	changed    int
	lastUpdate time.Time
	scanning   bool
	statusLine string
}

type updateMsg struct {
	result  ports.ScanResult
	changed []string
}

type rescanResultMsg struct {
	result ports.ScanResult
	err    error
}

type sourceJumpResultMsg struct {
	target string
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 8
		if height < 5 {
			height = 5
		}
		m.violationList.SetSize(width, height)
		m.fileList.SetSize(width, height)
	case updateMsg:
		m = m.applyResult(msg.result)
		m.changed = len(msg.changed)
	case rescanResultMsg:
		m.scanning = false
		if msg.err != nil {
			m.statusLine = failureStyle.Render(fmt.Sprintf("Rescan failed: %v", msg.err))
		} else {
			m = m.applyResult(msg.result)
			m.changed = 0
			m.statusLine = statusStyle.Render(fmt.Sprintf("Rescanned %d files.", msg.result.Files))
		}
	case sourceJumpResultMsg:
		if msg.err != nil {
			m.statusLine = statusStyle.Render(fmt.Sprintf("Source jump failed: %v", msg.err))
		} else {
			m.statusLine = statusStyle.Render(fmt.Sprintf("Opened source: %s", msg.target))
		}
	}

	var cmd tea.Cmd
	if m.mode == panelViolations {
		m.violationList, cmd = m.violationList.Update(msg)
	} else {
		m.fileList, cmd = m.fileList.Update(msg)
	}
	return m, cmd
}

func (m model) applyResult(result ports.ScanResult) model {
	m.result = result
	m.lastUpdate = time.Now()

	items := make([]list.Item, 0, len(result.Violations))
	for i, v := range result.Violations {
		items = append(items, item{
			title: fmt.Sprintf("%s %s", ruleCode(v.Rule), v.Rule),
			desc:  fmt.Sprintf("%s:%d:%d %s", util.RelSlash(m.projectRoot, v.Path), v.Line, v.Column, v.Message),
			index: i,
		})
	}
	m.violationList.SetItems(items)

	m.files = summarizeFiles(result)
	fileItems := make([]list.Item, 0, len(m.files))
	for _, f := range m.files {
		desc := fmt.Sprintf("%d violation(s)", f.violations)
		if f.failed {
			desc += ", analysis failed"
		}
		fileItems = append(fileItems, item{title: util.RelSlash(m.projectRoot, f.path), desc: desc, index: -1})
	}
	m.fileList.SetItems(fileItems)
	return m
}

// summarizeFiles lists files with violations or failures, most violations
// first.
func summarizeFiles(result ports.ScanResult) []fileSummary {
	byPath := make(map[string]*fileSummary)
	get := func(path string) *fileSummary {
		if s, ok := byPath[path]; ok {
			return s
		}
		s := &fileSummary{path: path}
		byPath[path] = s
		return s
	}
	for _, v := range result.Violations {
		get(v.Path).violations++
	}
	for _, f := range result.Failures {
		get(f.Path).failed = true
	}
	out := make([]fileSummary, 0, len(byPath))
	for _, s := range byPath {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].violations != out[j].violations {
			return out[i].violations > out[j].violations
		}
		return out[i].path < out[j].path
	})
	return out
}

func ruleCode(id rules.RuleID) string {
	if r, ok := rules.Lookup(id); ok {
		return r.Code
	}
	return string(id)
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %s | %d files | %d changed | heap %d MB",
		m.lastUpdate.Format("15:04:05"), m.result.Files, m.changed, util.HeapAllocMB()))

	var summary string
	if len(m.result.Violations) == 0 && len(m.result.Failures) == 0 {
		summary = successStyle.Render("No violations")
	} else {
		summary = fmt.Sprintf("%s | %s",
			violationStyle.Render(fmt.Sprintf("%d violations", len(m.result.Violations))),
			failureStyle.Render(fmt.Sprintf("%d failed", len(m.result.Failures))))
	}
	if m.scanning {
		summary += " | " + statusStyle.Render("scanning...")
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("csguard"), status, summary)

	body := m.violationList.View()
	if m.mode == panelFiles {
		body = m.fileList.View()
	}
	if m.showRules {
		body += "\n\n" + renderRuleCounts(m.result)
	}
	if m.showTrend {
		body += "\n\n" + renderTrendOverlay(m.trendReport)
	}
	if m.statusLine != "" {
		body += "\n\n" + m.statusLine
	}

	return docStyle.Render(header + "\n" + renderHelp(m) + "\n\n" + body)
}

func initialModel(projectRoot string, rescan func() (ports.ScanResult, error), trendReport *history.TrendReport) model {
	violationList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	violationList.Title = "Violations"
	violationList.SetShowStatusBar(false)
	violationList.SetFilteringEnabled(true)

	fileList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	fileList.Title = "Files"
	fileList.SetShowStatusBar(false)
	fileList.SetFilteringEnabled(true)

	return model{
		violationList: violationList,
		fileList:      fileList,
		mode:          panelViolations,
		projectRoot:   projectRoot,
		rescan:        rescan,
		trendReport:   trendReport,
		lastUpdate:    time.Now(),
	}
}
