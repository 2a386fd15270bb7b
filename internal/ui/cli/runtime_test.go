package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"csguard/internal/core/config"
	"csguard/internal/core/ports"
	"csguard/internal/engine/rules"
)

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := parseOptions(nil, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.configPath != defaultConfigPath {
		t.Fatalf("expected default config path, got %q", opts.configPath)
	}
	if opts.trendsWindow != "24h" {
		t.Fatalf("expected 24h trend window, got %q", opts.trendsWindow)
	}
}

func TestParseOptions_UnknownFlag(t *testing.T) {
	if _, err := parseOptions([]string{"-bogus"}, io.Discard); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestApplyOptions_OverridesWatchPathWithPositionalArg(t *testing.T) {
	opts := &cliOptions{args: []string{"./override"}}
	cfg := &config.Config{WatchPaths: []string{"./original"}}

	if err := applyOptions(opts, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.WatchPaths) != 1 || cfg.WatchPaths[0] != "./override" {
		t.Fatalf("unexpected watch paths: %v", cfg.WatchPaths)
	}
}

func TestApplyOptions_Rejections(t *testing.T) {
	tests := []struct {
		name string
		opts cliOptions
		db   bool
		want string
	}{
		{"two paths", cliOptions{args: []string{"a", "b"}}, false, "at most one path"},
		{"bad format", cliOptions{format: "html"}, false, "-format must be"},
		{"ui and once", cliOptions{ui: true, once: true}, false, "cannot be combined"},
		{"trends without db", cliOptions{trends: true}, false, "requires [db]"},
		{"trends and ui", cliOptions{trends: true, ui: true}, true, "cannot be combined"},
		{"tsv without trends", cliOptions{trendsTSV: "t.tsv"}, false, "require -trends"},
		{"bad since", cliOptions{trends: true, since: "yesterday"}, true, "-since must be"},
		{"bad window", cliOptions{trends: true, trendsWindow: "-1h"}, true, "must be > 0"},
		{"query and ui", cliOptions{query: "SELECT files", ui: true}, false, "-query cannot be combined"},
		{"bad query", cliOptions{query: "SELECT modules"}, false, "invalid CQL query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.DB.Enabled = tt.db
			opts := tt.opts
			err := applyOptions(&opts, cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyOptions_FormatAndMetricsOverride(t *testing.T) {
	cfg := config.Default()
	opts := &cliOptions{format: "SARIF", metricsAddr: ":9100"}
	if err := applyOptions(opts, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.Format != "sarif" {
		t.Fatalf("expected sarif format, got %q", cfg.Output.Format)
	}
	if cfg.Observability.MetricsAddr != ":9100" {
		t.Fatalf("expected metrics addr override, got %q", cfg.Observability.MetricsAddr)
	}
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("2026-02-13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", got)
	}
	got, err = parseSince("2026-02-13T10:30:00+02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 8 || got.Location() != time.UTC {
		t.Fatalf("expected UTC conversion, got %v", got)
	}
	if got, err := parseSince(""); err != nil || !got.IsZero() {
		t.Fatalf("expected zero time for empty input, got %v, %v", got, err)
	}
}

func TestParseWindow(t *testing.T) {
	if d, err := parseWindow(""); err != nil || d != 24*time.Hour {
		t.Fatalf("expected 24h default, got %v, %v", d, err)
	}
	if d, err := parseWindow("90m"); err != nil || d != 90*time.Minute {
		t.Fatalf("expected 90m, got %v, %v", d, err)
	}
	if _, err := parseWindow("soon"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadConfig_FallsBackToDefaults(t *testing.T) {
	cwd := t.TempDir()
	cfg, path, err := loadConfig(defaultConfigPath, cwd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no config path, got %q", path)
	}
	if cfg.Output.Format != "text" {
		t.Fatalf("expected default format, got %q", cfg.Output.Format)
	}
}

func TestLoadConfig_DiscoversCandidate(t *testing.T) {
	cwd := t.TempDir()
	path := filepath.Join(cwd, ".csguard.toml")
	if err := os.WriteFile(path, []byte("version = 1\n[output]\nformat = \"markdown\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, got, err := loadConfig(defaultConfigPath, cwd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path {
		t.Fatalf("expected %q, got %q", path, got)
	}
	if cfg.Output.Format != "markdown" {
		t.Fatalf("expected markdown format, got %q", cfg.Output.Format)
	}
}

func TestLoadConfig_ExplicitMissingPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), t.TempDir()); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestPrintUpdate_OnlyChangedFiles(t *testing.T) {
	update := ports.WatchUpdate{
		Changed: []string{"/src/B.cs"},
		Result: ports.ScanResult{
			Violations: []rules.Violation{
				{Rule: rules.RuleUseThisPrefix, Path: "/src/A.cs", Line: 1, Column: 1, Message: "old"},
				{Rule: rules.RuleLinqAliases, Path: "/src/B.cs", Line: 4, Column: 2, Message: "new"},
			},
		},
	}
	var out bytes.Buffer
	printUpdate("/src", update, &out)
	text := out.String()
	if !strings.Contains(text, "B.cs:4:2: CSG003 DoNotUseLinqAliases: new") {
		t.Fatalf("expected changed file violation, got:\n%s", text)
	}
	if strings.Contains(text, "old") {
		t.Fatalf("unchanged file should not be printed, got:\n%s", text)
	}
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := "public class Account\n{\n    private int balance;\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "Account.cs"), []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	cfg := "version = 1\n[paths]\nstate_dir = \".state\"\n"
	if err := os.WriteFile(filepath.Join(dir, "csguard.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	if code := run(context.Background(), []string{"-version"}, &stdout, io.Discard); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "csguard ") {
		t.Fatalf("unexpected version output %q", stdout.String())
	}
}

func TestRun_UsageError(t *testing.T) {
	if code := run(context.Background(), []string{"-format", "html"}, io.Discard, io.Discard); code != exitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
}

func TestRun_OnceReportsViolations(t *testing.T) {
	dir := writeProject(t)
	cfgPath := filepath.Join(dir, "csguard.toml")

	var stdout bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "-once", dir}, &stdout, io.Discard)
	if code != exitViolations {
		t.Fatalf("expected violations exit code, got %d\n%s", code, stdout.String())
	}
	if !strings.Contains(stdout.String(), "CSG001 InstanceVariablesUnderscorePrefix") {
		t.Fatalf("expected underscore violation in output, got:\n%s", stdout.String())
	}
}

func TestRun_OnceWritesSARIFToFile(t *testing.T) {
	dir := writeProject(t)
	out := filepath.Join(dir, "out", "report.sarif")

	code := run(context.Background(), []string{"-config", filepath.Join(dir, "csguard.toml"), "-once", "-format", "sarif", "-out", out, dir}, io.Discard, io.Discard)
	if code != exitViolations {
		t.Fatalf("expected violations exit code, got %d", code)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var doc struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if doc.Version != "2.1.0" {
		t.Fatalf("expected SARIF 2.1.0, got %q", doc.Version)
	}
}

func TestRun_QueryFiles(t *testing.T) {
	dir := writeProject(t)

	var stdout bytes.Buffer
	code := run(context.Background(), []string{"-config", filepath.Join(dir, "csguard.toml"), "-query", "SELECT files WHERE violations >= 1", dir}, &stdout, io.Discard)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	want := "Account.cs\t1\tInstanceVariablesUnderscorePrefix=1\n1 file(s)\n"
	if stdout.String() != want {
		t.Fatalf("unexpected query output:\n%q\nwant:\n%q", stdout.String(), want)
	}
}
