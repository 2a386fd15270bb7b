package cli

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"csguard/internal/core/ports"
	"csguard/internal/data/history"
	"csguard/internal/engine/rules"

	tea "github.com/charmbracelet/bubbletea"
)

func sampleResult() ports.ScanResult {
	return ports.ScanResult{
		RunID: "run-1",
		Files: 3,
		Violations: []rules.Violation{
			{Rule: rules.RuleUnderscorePrefix, Path: "/src/A.cs", Line: 3, Column: 17, Element: "balance", Message: "Field 'balance' must begin with an underscore."},
			{Rule: rules.RuleUseThisPrefix, Path: "/src/A.cs", Line: 8, Column: 9, Element: "Deposit", Message: "Prefix 'balance' with 'this.'."},
			{Rule: rules.RuleLinqAliases, Path: "/src/B.cs", Line: 2, Column: 5, Element: "Query", Message: "Do not use the LINQ keyword 'from'."},
		},
		Failures: []ports.FileFailure{{Path: "/src/C.cs", Error: "[PARSE_ERROR] parse failed"}},
	}
}

func TestModel_UpdatePopulatesPanels(t *testing.T) {
	m := initialModel("/src", nil, nil)

	updated, _ := m.Update(updateMsg{result: sampleResult(), changed: []string{"/src/A.cs"}})
	state, ok := updated.(model)
	if !ok {
		t.Fatalf("expected model type, got %T", updated)
	}
	if len(state.violationList.Items()) != 3 {
		t.Fatalf("expected 3 violation items, got %d", len(state.violationList.Items()))
	}
	first := state.violationList.Items()[0].(item)
	if first.title != "CSG001 InstanceVariablesUnderscorePrefix" {
		t.Fatalf("unexpected title %q", first.title)
	}
	if !strings.HasPrefix(first.desc, "A.cs:3:17 ") {
		t.Fatalf("expected path relative to project root, got %q", first.desc)
	}

	files := state.fileList.Items()
	if len(files) != 3 {
		t.Fatalf("expected 3 file items, got %d", len(files))
	}
	if got := files[0].(item).title; got != "A.cs" {
		t.Fatalf("expected file with most violations first, got %q", got)
	}
	if got := files[2].(item).desc; got != "0 violation(s), analysis failed" {
		t.Fatalf("unexpected failed file description %q", got)
	}
	if state.changed != 1 {
		t.Fatalf("expected 1 changed file, got %d", state.changed)
	}
}

func TestModel_TabSwitchesPanels(t *testing.T) {
	m := initialModel("/src", nil, nil)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	state := updated.(model)
	if state.mode != panelFiles {
		t.Fatalf("expected files panel after tab, got %v", state.mode)
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(model)
	if state.mode != panelViolations {
		t.Fatalf("expected violations panel after second tab, got %v", state.mode)
	}
}

func TestModel_EnterOnFileFiltersViolations(t *testing.T) {
	m := initialModel("/src", nil, nil)
	updated, _ := m.Update(updateMsg{result: sampleResult()})
	updated, _ = updated.(model).Update(tea.KeyMsg{Type: tea.KeyTab})
	updated, _ = updated.(model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	state := updated.(model)

	if state.mode != panelViolations {
		t.Fatalf("expected violations panel after enter, got %v", state.mode)
	}
	if got := state.violationList.FilterValue(); got != "A.cs" {
		t.Fatalf("expected filter A.cs, got %q", got)
	}
}

func TestModel_SelectedSourceTarget(t *testing.T) {
	m := initialModel("/src", nil, nil)
	updated, _ := m.Update(updateMsg{result: sampleResult()})
	state := updated.(model)

	target, ok := selectedSourceTarget(state)
	if !ok {
		t.Fatal("expected a source target")
	}
	if target.file != "/src/A.cs" || target.line != 3 {
		t.Fatalf("unexpected target %+v", target)
	}

	empty := initialModel("/src", nil, nil)
	if _, ok := selectedSourceTarget(empty); ok {
		t.Fatal("expected no target without violations")
	}
}

func TestModel_RescanKey(t *testing.T) {
	calls := 0
	rescan := func() (ports.ScanResult, error) {
		calls++
		return sampleResult(), nil
	}
	m := initialModel("/src", rescan, nil)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	state := updated.(model)
	if !state.scanning {
		t.Fatal("expected scanning state after r")
	}
	if cmd == nil {
		t.Fatal("expected rescan command")
	}

	// A second r while scanning is ignored.
	if _, again := state.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); again != nil {
		t.Fatal("expected no command while a rescan is running")
	}

	updated, _ = state.Update(cmd())
	state = updated.(model)
	if calls != 1 {
		t.Fatalf("expected one rescan, got %d", calls)
	}
	if state.scanning {
		t.Fatal("expected scanning to end")
	}
	if len(state.violationList.Items()) != 3 {
		t.Fatalf("expected rescan result applied, got %d items", len(state.violationList.Items()))
	}

	updated, _ = state.Update(rescanResultMsg{err: fmt.Errorf("boom")})
	if !strings.Contains(updated.(model).statusLine, "Rescan failed: boom") {
		t.Fatalf("expected failure status, got %q", updated.(model).statusLine)
	}
}

func TestModel_ViewShowsCountsAndOverlays(t *testing.T) {
	report := &history.TrendReport{
		Window:   "24h0m0s",
		RunCount: 2,
		Points: []history.TrendPoint{
			{Timestamp: time.Now(), ViolationCount: 3, DeltaViolations: -2, FileCount: 3, RuleDeltas: map[string]int{"UseThisPrefix": -2}},
		},
	}
	m := initialModel("/src", nil, report)
	updated, _ := m.Update(updateMsg{result: sampleResult()})
	updated, _ = updated.(model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	updated, _ = updated.(model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	view := updated.(model).View()

	for _, want := range []string{"3 violations", "1 failed", "Violations: 3 (-2)", "UseThisPrefix -2", "Rule Counts", "CSG003"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q", want)
		}
	}
}

func TestRenderTrendOverlay_Unavailable(t *testing.T) {
	if got := renderTrendOverlay(nil); !strings.Contains(got, "Trend unavailable") {
		t.Fatalf("unexpected overlay %q", got)
	}
}

func TestModel_QuitKey(t *testing.T) {
	m := initialModel("/src", nil, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}
