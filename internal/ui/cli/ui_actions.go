package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"csguard/internal/core/ports"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	// Keys go to the list while its filter input is open.
	if activeList(m).FilterState() == list.Filtering {
		return updateActiveList(msg, m)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.mode == panelViolations {
			m.mode = panelFiles
		} else {
			m.mode = panelViolations
		}
		return m, nil
	case "t":
		m.showTrend = !m.showTrend
		return m, nil
	case "c":
		m.showRules = !m.showRules
		return m, nil
	case "r":
		if m.rescan == nil || m.scanning {
			return m, nil
		}
		m.scanning = true
		return m, rescanCmd(m.rescan)
	case "enter":
		if m.mode == panelFiles {
			return focusFile(m), nil
		}
		target, ok := selectedSourceTarget(m)
		if !ok {
			m.statusLine = statusStyle.Render("No source target available.")
			return m, nil
		}
		return m, jumpToSourceCmd(target)
	}

	return updateActiveList(msg, m)
}

func activeList(m model) list.Model {
	if m.mode == panelFiles {
		return m.fileList
	}
	return m.violationList
}

func updateActiveList(msg tea.Msg, m model) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.mode == panelFiles {
		m.fileList, cmd = m.fileList.Update(msg)
	} else {
		m.violationList, cmd = m.violationList.Update(msg)
	}
	return m, cmd
}

func rescanCmd(rescan func() (ports.ScanResult, error)) tea.Cmd {
	return func() tea.Msg {
		result, err := rescan()
		return rescanResultMsg{result: result, err: err}
	}
}

// focusFile switches to the violation panel filtered to the selected file.
func focusFile(m model) model {
	selected, ok := m.fileList.SelectedItem().(item)
	if !ok {
		return m
	}
	m.mode = panelViolations
	m.violationList.SetFilterText(selected.title)
	m.violationList.SetFilterState(list.FilterApplied)
	return m
}

type sourceTarget struct {
	file string
	line int
}

func selectedSourceTarget(m model) (sourceTarget, bool) {
	selected, ok := m.violationList.SelectedItem().(item)
	if !ok || selected.index < 0 || selected.index >= len(m.result.Violations) {
		return sourceTarget{}, false
	}
	v := m.result.Violations[selected.index]
	return sourceTarget{file: v.Path, line: v.Line}, v.Path != ""
}

func jumpToSourceCmd(target sourceTarget) tea.Cmd {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	args := []string{target.file}
	if strings.Contains(editor, "vim") || strings.Contains(editor, "nvim") || strings.HasSuffix(editor, "/vi") || editor == "vi" {
		args = []string{fmt.Sprintf("+%d", target.line), target.file}
	} else if strings.Contains(editor, "code") {
		args = []string{"--goto", fmt.Sprintf("%s:%d", target.file, target.line)}
	}
	cmd := exec.Command(editor, args...)
	label := fmt.Sprintf("%s:%d", target.file, target.line)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return sourceJumpResultMsg{target: label, err: err}
	})
}
