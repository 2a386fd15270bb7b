package app

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"csguard/internal/core/errors"
	"csguard/internal/core/ports"
	"csguard/internal/engine/parser"
	"csguard/internal/engine/rules"
	"csguard/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AnalyzeFile reads, parses and checks one file, reporting to sink.
func (a *App) AnalyzeFile(ctx context.Context, path string, sink rules.Sink) error {
	ctx, span := observability.Tracer.Start(ctx, "app.AnalyzeFile", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	content, err := os.ReadFile(path)
	if err != nil {
		code := errors.CodeInternal
		if os.IsNotExist(err) {
			code = errors.CodeNotFound
		}
		err = errors.AddContext(errors.Wrap(err, code, "read source"), errors.CtxPath, path)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return err
	}

	start := time.Now()
	tree, err := a.parser.ParseFile(path, content)
	observability.ParsingDuration.Observe(time.Since(start).Seconds())
	a.observeParserLeases()
	if err != nil {
		err = errors.AddContext(err, errors.CtxPath, path)
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return err
	}
	span.SetAttributes(attribute.Int("tokens", tree.TokenCount()), attribute.Bool("generated", tree.Generated))

	counted := rules.SinkFunc(func(v rules.Violation) {
		observability.ViolationsTotal.WithLabelValues(string(v.Rule)).Inc()
		sink.Report(v)
	})
	if err := a.analyzer.Analyze(ctx, tree, counted); err != nil {
		return err
	}
	observability.FilesAnalyzedTotal.Inc()
	return nil
}

func (a *App) observeParserLeases() {
	if p, ok := a.parser.(*parser.Parser); ok {
		observability.ParserLeasesActive.Set(float64(p.Pool().Active()))
	}
}

// analyzeFiles runs AnalyzeFile over files on a bounded worker pool that
// shares one sink. A failing file is logged and recorded, never fatal. On
// cancellation the violations found so far are returned with ctx.Err().
func (a *App) analyzeFiles(ctx context.Context, files []string) ([]rules.Violation, []ports.FileFailure, error) {
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("analyze_files").Observe(time.Since(start).Seconds())
	}()

	workers := a.Config.Performance.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	sink := &rules.SyncSink{}
	var (
		failMu   sync.Mutex
		failures []ports.FileFailure
		wg       sync.WaitGroup
	)
	jobs := make(chan string)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := a.limiter.Wait(ctx, 1); err != nil {
					continue
				}
				err := a.AnalyzeFile(ctx, path, sink)
				if err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
					continue
				}
				slog.Warn("failed to analyze file", "path", path, "error", err)
				observability.FileFailuresTotal.Inc()
				failMu.Lock()
				failures = append(failures, ports.FileFailure{Path: path, Error: err.Error()})
				failMu.Unlock()
			}
		}()
	}

feed:
	for _, path := range files {
		select {
		case jobs <- path:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return sink.Violations(), failures, ctx.Err()
}
