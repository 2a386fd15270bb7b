package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"csguard/internal/core/config"
	"csguard/internal/core/errors"
	"csguard/internal/core/ports"
	"csguard/internal/data/history"
	"csguard/internal/engine/rules"
	"csguard/internal/engine/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubParser accepts .cs files and fails on sources containing #fail.
type stubParser struct{}

func (stubParser) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cs")
}

func (stubParser) ParseFile(path string, content []byte) (*syntax.Tree, error) {
	if bytes.Contains(content, []byte("#fail")) {
		return nil, errors.AddContext(errors.New(errors.CodeParse, "parse failed"), errors.CtxPath, path)
	}
	return syntax.NewBuilder(path).Build(), nil
}

// markerAnalyzer reports one violation per line containing BAD.
type markerAnalyzer struct{}

func (markerAnalyzer) Analyze(ctx context.Context, tree *syntax.Tree, sink rules.Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(tree.Path)
	if err != nil {
		return err
	}
	for i, line := range strings.Split(string(data), "\n") {
		if col := strings.Index(line, "BAD"); col >= 0 {
			sink.Report(rules.Violation{
				Rule:    rules.RuleUseThisPrefix,
				Path:    tree.Path,
				Line:    i + 1,
				Column:  col + 1,
				Message: "marker",
			})
		}
	}
	return nil
}

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.WatchPaths = []string{dir}
	cfg.Exclude.Files = []string{"skip*.cs"}
	cfg.Performance.Workers = 2
	cfg.Watch.Debounce = 20 * time.Millisecond
	return cfg
}

func testPaths(dir string) config.ResolvedPaths {
	state := filepath.Join(dir, ".state")
	return config.ResolvedPaths{
		ProjectRoot: dir,
		StateDir:    state,
		DBPath:      filepath.Join(state, "history.db"),
		SpoolPath:   filepath.Join(state, "spool.db"),
		LogPath:     filepath.Join(state, "csguard.log"),
	}
}

func newTestApp(t *testing.T, cfg *config.Config, dir string, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithParser(stubParser{}), WithAnalyzer(markerAnalyzer{})}, opts...)
	a, err := New(cfg, testPaths(dir), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func seedProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeSource(t, filepath.Join(dir, "A.cs"), "class A {\n  BAD\n  BAD\n}\n")
	writeSource(t, filepath.Join(dir, "sub", "B.cs"), "class B {}\n")
	writeSource(t, filepath.Join(dir, "obj", "Gen.cs"), "BAD\n")
	writeSource(t, filepath.Join(dir, "skipme.cs"), "BAD\n")
	writeSource(t, filepath.Join(dir, "notes.txt"), "BAD\n")
	return dir
}

func TestScan_DiscoversFilesAndReportsViolations(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)

	result, err := a.InitialScan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Violations, 2)
	assert.Equal(t, filepath.Join(dir, "A.cs"), result.Violations[0].Path)
	assert.Equal(t, 2, result.Violations[0].Line)
	assert.Equal(t, 3, result.Violations[1].Line)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, map[rules.RuleID]int{rules.RuleUseThisPrefix: 2}, result.RuleCounts())
	assert.Equal(t, result.RunID, a.Current().RunID)
}

func TestScan_SingleFileRoot(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)

	result, err := a.AnalysisService().RunScan(context.Background(), ports.ScanRequest{Paths: []string{filepath.Join(dir, "A.cs")}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)
	assert.Len(t, result.Violations, 2)
}

func TestScan_NestedRootsAreNotAnalyzedTwice(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)

	result, err := a.Scan(context.Background(), []string{dir, filepath.Join(dir, "sub"), dir})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Files)
	assert.Len(t, result.Violations, 2)
}

func TestScan_MissingRoot(t *testing.T) {
	dir := t.TempDir()
	a := newTestApp(t, testConfig(dir), dir)

	_, err := a.Scan(context.Background(), []string{filepath.Join(dir, "missing")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestScan_FailedFileDoesNotAbortRun(t *testing.T) {
	dir := seedProject(t)
	writeSource(t, filepath.Join(dir, "Broken.cs"), "#fail\nBAD\n")
	a := newTestApp(t, testConfig(dir), dir)

	result, err := a.InitialScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Files)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "Broken.cs"), result.Failures[0].Path)
	assert.Contains(t, result.Failures[0].Error, "PARSE_ERROR")
	assert.Len(t, result.Violations, 2)
}

func TestScan_CanceledContext(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := a.InitialScan(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Failures)
}

func TestScan_RateLimited(t *testing.T) {
	dir := seedProject(t)
	cfg := testConfig(dir)
	cfg.Performance.MaxFilesPerSecond = 1000
	a := newTestApp(t, cfg, dir)

	result, err := a.InitialScan(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Violations, 2)
}

func TestHandleChanges_MergesIncrementalResults(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)
	first, err := a.InitialScan(context.Background())
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		updates []ports.WatchUpdate
	)
	a.SetUpdateHandler(func(u ports.WatchUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	writeSource(t, filepath.Join(dir, "A.cs"), "class A {\n  BAD\n}\n")
	writeSource(t, filepath.Join(dir, "C.cs"), "BAD\n")
	require.NoError(t, os.Remove(filepath.Join(dir, "sub", "B.cs")))

	a.HandleChanges(context.Background(), []string{
		filepath.Join(dir, "A.cs"),
		filepath.Join(dir, "C.cs"),
		filepath.Join(dir, "sub", "B.cs"),
		filepath.Join(dir, "readme.md"),
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 1)
	result := updates[0].Result
	assert.NotEqual(t, first.RunID, result.RunID)
	assert.Equal(t, 2, result.Files)
	require.Len(t, result.Violations, 2)
	assert.Equal(t, filepath.Join(dir, "A.cs"), result.Violations[0].Path)
	assert.Equal(t, filepath.Join(dir, "C.cs"), result.Violations[1].Path)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "A.cs"),
		filepath.Join(dir, "C.cs"),
		filepath.Join(dir, "sub", "B.cs"),
	}, updates[0].Changed)
	assert.Equal(t, result.RunID, a.Current().RunID)
}

func TestHandleChanges_IgnoresUnknownDeletes(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)
	_, err := a.InitialScan(context.Background())
	require.NoError(t, err)

	called := false
	a.SetUpdateHandler(func(ports.WatchUpdate) { called = true })
	a.HandleChanges(context.Background(), []string{filepath.Join(dir, "Ghost.cs")})
	assert.False(t, called)
}

func TestWatch_ReanalyzesChangedFile(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)
	svc := a.AnalysisService()
	_, err := svc.RunScan(context.Background(), ports.ScanRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan ports.WatchUpdate, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, func(u ports.WatchUpdate) { updates <- u })
	}()

	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
	writeSource(t, filepath.Join(dir, "sub", "B.cs"), "class B {\n BAD\n}\n")

	select {
	case u := <-updates:
		assert.Contains(t, u.Changed, filepath.Join(dir, "sub", "B.cs"))
		assert.Len(t, u.Result.Violations, 3)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watch update")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestScan_RecordsHistory(t *testing.T) {
	dir := seedProject(t)
	cfg := testConfig(dir)
	cfg.DB.Enabled = true
	a, err := New(cfg, testPaths(dir), WithParser(stubParser{}), WithAnalyzer(markerAnalyzer{}))
	require.NoError(t, err)

	result, err := a.InitialScan(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))

	store, err := history.Open(testPaths(dir).DBPath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.LoadRuns(context.Background(), dir, time.Time{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].FileCount)
	assert.Equal(t, 2, runs[0].ViolationCount)
	assert.Equal(t, map[string]int{string(rules.RuleUseThisPrefix): 2}, runs[0].RuleCounts)

	stored, err := store.Violations(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRenderReport(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)
	result, err := a.InitialScan(context.Background())
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, a.RenderReport(context.Background(), &text, "text", result))
	assert.Contains(t, text.String(), "A.cs:2:3: CSG002 UseThisPrefix: marker")

	var sarif bytes.Buffer
	require.NoError(t, a.RenderReport(context.Background(), &sarif, "sarif", result))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(sarif.Bytes(), &doc))
	assert.Equal(t, "2.1.0", doc["version"])

	var md bytes.Buffer
	require.NoError(t, a.RenderReport(context.Background(), &md, "markdown", result))
	assert.Contains(t, md.String(), "| Violations | 2 |")

	err = a.RenderReport(context.Background(), &bytes.Buffer{}, "html", result)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestWriteReports(t *testing.T) {
	dir := seedProject(t)
	cfg := testConfig(dir)
	cfg.Output.SARIF = "out/report.sarif"
	cfg.Output.Markdown = "out/report.md"
	cfg.Output.Inject = "README.md"
	writeSource(t, filepath.Join(dir, "README.md"), "# Demo\n<!-- csguard:summary:start -->\n<!-- csguard:summary:end -->\n")
	a := newTestApp(t, cfg, dir)

	result, err := a.InitialScan(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.WriteReports(context.Background(), result))

	assert.FileExists(t, filepath.Join(dir, "out", "report.sarif"))
	assert.FileExists(t, filepath.Join(dir, "out", "report.md"))
	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "| Violations | 2 |")
}

func TestWriteReports_InjectWithoutMarkersFails(t *testing.T) {
	dir := seedProject(t)
	cfg := testConfig(dir)
	cfg.Output.Inject = "README.md"
	writeSource(t, filepath.Join(dir, "README.md"), "# Demo\n")
	a := newTestApp(t, cfg, dir)

	err := a.WriteReports(context.Background(), ports.ScanResult{})
	require.Error(t, err)
}

func TestTrendReport_DisabledHistory(t *testing.T) {
	dir := t.TempDir()
	a := newTestApp(t, testConfig(dir), dir)
	_, err := a.TrendReport(context.Background(), time.Time{}, time.Hour)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestHealthService(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)
	_, err := a.InitialScan(context.Background())
	require.NoError(t, err)

	status, ok := NewHealthService(a).Probe(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "ok (2 files, 2 violations, 0 failed)", status.(HealthStatus).Components["analysis"])
}

func TestAnalyzeFile_RealParser(t *testing.T) {
	dir := t.TempDir()
	src := "public class Account\n{\n    private int balance;\n}\n"
	writeSource(t, filepath.Join(dir, "Account.cs"), src)

	a, err := New(testConfig(dir), testPaths(dir))
	require.NoError(t, err)
	defer a.Close(context.Background())

	sink := &rules.ListSink{}
	require.NoError(t, a.AnalyzeFile(context.Background(), filepath.Join(dir, "Account.cs"), sink))
	var underscore []rules.Violation
	for _, v := range sink.Violations {
		if v.Rule == rules.RuleUnderscorePrefix {
			underscore = append(underscore, v)
		}
	}
	require.Len(t, underscore, 1)
	assert.Equal(t, "balance", underscore[0].Element)
	assert.Equal(t, 3, underscore[0].Line)
}

func TestReload_AppliesExcludesAndRescans(t *testing.T) {
	dir := seedProject(t)
	a := newTestApp(t, testConfig(dir), dir)
	_, err := a.InitialScan(context.Background())
	require.NoError(t, err)

	next := testConfig(dir)
	next.Exclude.Files = append(next.Exclude.Files, "A.cs")
	result, err := a.Reload(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, result.Violations)
}

func TestReload_RebuildsRuleAnalyzer(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, filepath.Join(dir, "Account.cs"), "public class Account\n{\n    private int balance;\n}\n")
	a, err := New(testConfig(dir), testPaths(dir))
	require.NoError(t, err)
	defer a.Close(context.Background())

	first, err := a.InitialScan(context.Background())
	require.NoError(t, err)
	require.Contains(t, first.RuleCounts(), rules.RuleUnderscorePrefix)

	next := testConfig(dir)
	off := false
	next.Rules.UnderscorePrefix.Enabled = &off
	result, err := a.Reload(context.Background(), next)
	require.NoError(t, err)
	assert.NotContains(t, result.RuleCounts(), rules.RuleUnderscorePrefix)
}
