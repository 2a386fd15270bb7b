package app

import (
	"context"
	"strings"
	"sync"

	"csguard/internal/core/config"
	"csguard/internal/core/errors"
	"csguard/internal/core/ports"
	"csguard/internal/core/watcher"
	"csguard/internal/data/history"
	"csguard/internal/engine/parser"
	"csguard/internal/engine/rules"
	"csguard/internal/shared/util"
)

// App wires the parser, the rule analyzer, the history writer and the file
// watcher around one configuration.
type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	parser   ports.SourceParser
	analyzer ports.TreeAnalyzer
	filter   *watcher.Filter
	limiter  *util.Limiter

	projectKey string

	history    ports.HistoryStore
	closeStore func() error
	writeQueue ports.WriteQueuePort
	writeSpool ports.WriteSpoolPort

	workerCancel context.CancelFunc
	workerDone   chan struct{}

	scanMu sync.Mutex

	cacheMu     sync.RWMutex
	byFile      map[string][]rules.Violation
	failures    map[string]string
	analyzed    map[string]bool
	skipped     int
	current     ports.ScanResult
	activeRoots []string

	updateMu sync.RWMutex
	onUpdate func(ports.WatchUpdate)

	activeWatcher *watcher.Watcher
}

// Option replaces a collaborator of the App, mainly for tests.
type Option func(*App)

func WithParser(p ports.SourceParser) Option {
	return func(a *App) { a.parser = p }
}

func WithAnalyzer(an ports.TreeAnalyzer) Option {
	return func(a *App) { a.analyzer = an }
}

// WithHistory uses store instead of opening the configured database.
func WithHistory(store ports.HistoryStore) Option {
	return func(a *App) { a.history = store }
}

func New(cfg *config.Config, paths config.ResolvedPaths, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	filter, err := watcher.NewFilter(cfg.Exclude.Dirs, cfg.Exclude.Files, parser.Extensions)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "compile exclude patterns")
	}

	a := &App{
		Config:     cfg,
		Paths:      paths,
		filter:     filter,
		limiter:    util.NewFileLimiter(cfg.Performance.MaxFilesPerSecond),
		projectKey: projectKey(paths),
		byFile:     make(map[string][]rules.Violation),
		failures:   make(map[string]string),
		analyzed:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.parser == nil {
		a.parser = parser.NewParser()
	}
	if a.analyzer == nil {
		a.analyzer = rules.NewAnalyzer(cfg.RuleOptions())
	}

	if a.history == nil && cfg.DB.Enabled {
		store, err := history.OpenWithTimeout(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "open history"), errors.CtxPath, paths.DBPath)
		}
		a.history = store
		a.closeStore = store.Close
	}
	if err := a.initWriteQueue(); err != nil {
		if a.closeStore != nil {
			_ = a.closeStore()
		}
		return nil, err
	}
	return a, nil
}

// projectKey scopes history rows to one project root.
func projectKey(paths config.ResolvedPaths) string {
	if key := strings.TrimSpace(paths.ProjectRoot); key != "" {
		return key
	}
	return "default"
}

func (a *App) ProjectKey() string {
	return a.projectKey
}

// History exposes the run store, or nil when history is disabled.
func (a *App) History() ports.HistoryStore {
	return a.history
}

func (a *App) SetUpdateHandler(handler func(ports.WatchUpdate)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update ports.WatchUpdate) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}
