package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"csguard/internal/core/app"
	"csguard/internal/core/config"
	"csguard/internal/data/history"
	"csguard/internal/engine/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountSource = `namespace Bank
{
    public class Account
    {
        private int balance;
        private Int32 _count;

        public void Deposit(int amount)
        {
            balance += amount;
            this.balance += amount;
        }
    }
}
`

const generatedSource = `// <auto-generated />
namespace Bank
{
    public class Generated
    {
        private int raw;
    }
}
`

func createTestFiles(t *testing.T, tmpDir string) {
	t.Helper()
	files := map[string]string{
		"Bank.sln":                  "",
		"src/Account.cs":            accountSource,
		"src/Generated.cs":          generatedSource,
		"src/Model.g.cs":            "class Model { private int raw; }\n",
		"src/obj/Debug/Temp.cs":     "class Temp { private int raw; }\n",
		"src/Properties/README.txt": "not C#",
	}
	for rel, content := range files {
		path := filepath.Join(tmpDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestFullPipelineIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFiles(t, tmpDir)

	cfg := config.Default()
	cfg.WatchPaths = []string{tmpDir}
	cfg.Paths.StateDir = ".csguard"
	cfg.DB.Enabled = true
	cfg.Output.SARIF = "reports/csguard.sarif"
	cfg.Output.Markdown = "reports/csguard.md"

	paths, err := config.ResolvePaths(cfg, tmpDir)
	require.NoError(t, err)
	require.Equal(t, tmpDir, paths.ProjectRoot, "the .sln marks the project root")

	appInstance, err := app.New(cfg, paths)
	require.NoError(t, err)

	ctx := context.Background()
	result, err := appInstance.InitialScan(ctx)
	require.NoError(t, err)

	// obj/ is excluded by default; generated files are analyzed but silent.
	assert.Equal(t, 3, result.Files)
	assert.Empty(t, result.Failures)
	assert.Equal(t, map[rules.RuleID]int{
		rules.RuleUnderscorePrefix:   1,
		rules.RuleBuiltInTypeAliases: 1,
		rules.RuleUseThisPrefix:      1,
	}, result.RuleCounts())
	for _, v := range result.Violations {
		assert.Equal(t, filepath.Join(tmpDir, "src", "Account.cs"), v.Path)
	}

	require.NoError(t, appInstance.WriteReports(ctx, result))

	raw, err := os.ReadFile(filepath.Join(tmpDir, "reports", "csguard.sarif"))
	require.NoError(t, err)
	var sarif struct {
		Runs []struct {
			Results []struct {
				RuleID string `json:"ruleId"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(raw, &sarif))
	require.Len(t, sarif.Runs, 1)
	assert.Len(t, sarif.Runs[0].Results, 3)

	md, err := os.ReadFile(filepath.Join(tmpDir, "reports", "csguard.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "| Violations | 3 |")

	// Fix one violation and re-analyze through the watch path.
	fixed := strings.Replace(accountSource, "            balance += amount;\n", "", 1)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "src", "Account.cs"), []byte(fixed), 0o644))
	appInstance.HandleChanges(ctx, []string{filepath.Join(tmpDir, "src", "Account.cs")})
	second := appInstance.Current()
	assert.NotEqual(t, result.RunID, second.RunID)
	assert.Len(t, second.Violations, 2)

	require.NoError(t, appInstance.Close(ctx))

	store, err := history.Open(paths.DBPath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.LoadRuns(ctx, paths.ProjectRoot, time.Time{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].ViolationCount)
	assert.Equal(t, 2, runs[1].ViolationCount)

	trend, err := history.BuildTrendReport(paths.ProjectRoot, runs, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, trend.Points, 2)
	assert.Equal(t, -1, trend.Points[1].DeltaViolations)
	assert.Equal(t, -1, trend.Points[1].RuleDeltas[string(rules.RuleUseThisPrefix)])
}
