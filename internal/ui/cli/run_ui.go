package cli

import (
	"context"
	"errors"
	"log/slog"

	coreapp "csguard/internal/core/app"
	"csguard/internal/core/ports"
	"csguard/internal/data/history"

	tea "github.com/charmbracelet/bubbletea"
)

// runUI shows live results until the user quits or ctx is done. The
// watcher runs in the background and pushes each update into the program.
func runUI(ctx context.Context, app *coreapp.App, report *history.TrendReport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rescan := func() (ports.ScanResult, error) {
		return app.AnalysisService().RunScan(ctx, ports.ScanRequest{})
	}
	m := initialModel(app.Paths.ProjectRoot, rescan, report)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- app.AnalysisService().Watch(ctx, func(update ports.WatchUpdate) {
			p.Send(updateMsg{result: update.Result, changed: update.Changed})
		})
	}()
	go p.Send(updateMsg{result: app.Current()})

	_, err := p.Run()
	cancel()
	if werr := <-watchErr; werr != nil {
		slog.Warn("watcher stopped", "error", werr)
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
