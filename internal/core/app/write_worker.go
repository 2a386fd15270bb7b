package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"csguard/internal/core/ports"
	"csguard/internal/data/queue"
	"csguard/internal/shared/observability"
)

const (
	writeBatchSize       = 8
	writeFlushInterval   = 100 * time.Millisecond
	writeRetryBaseDelay  = 500 * time.Millisecond
	writeRetryMaxDelay   = 30 * time.Second
	shutdownDrainTimeout = 10 * time.Second
)

func (a *App) initWriteQueue() error {
	if a == nil || a.Config == nil || a.history == nil {
		return nil
	}

	a.writeQueue = queue.NewWriteQueue(a.Config.Performance.QueueSize)
	if spoolPath := strings.TrimSpace(a.Paths.SpoolPath); spoolPath != "" {
		spool, err := queue.OpenSQLiteSpool(spoolPath, a.projectKey)
		if err != nil {
			return err
		}
		a.writeSpool = spool
	}
	return a.startWriteWorker()
}

func (a *App) startWriteWorker() error {
	if a == nil || a.writeQueue == nil || a.workerCancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	a.workerDone = make(chan struct{})
	go a.runWriteWorker(ctx)
	return nil
}

func (a *App) runWriteWorker(ctx context.Context) {
	defer close(a.workerDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		memoryBatch, err := a.writeQueue.DequeueBatch(ctx, writeBatchSize, writeFlushInterval)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			slog.Warn("write queue dequeue failed", "error", err)
			continue
		}
		if errors.Is(err, context.Canceled) {
			return
		}

		requests := make([]ports.WriteRequest, 0, writeBatchSize)
		requests = append(requests, memoryBatch...)

		spooled := make([]ports.SpoolRow, 0)
		if len(requests) < writeBatchSize && a.writeSpool != nil {
			rows, spoolErr := a.writeSpool.DequeueBatch(ctx, writeBatchSize-len(requests))
			if spoolErr != nil {
				slog.Warn("write spool dequeue failed", "error", spoolErr)
			} else {
				for _, row := range rows {
					requests = append(requests, row.Request)
				}
				spooled = rows
			}
		}

		if len(requests) == 0 {
			a.updateQueueMetrics()
			if errors.Is(err, io.EOF) {
				return
			}
			continue
		}

		started := time.Now()
		if applyErr := a.applyWriteBatch(ctx, requests); applyErr != nil {
			slog.Warn("write worker apply failed", "error", applyErr, "batch_size", len(requests))
			a.handleWriteFailure(ctx, spooled, memoryBatch, applyErr)
		} else {
			observability.WriteQueueProcessedTotal.Add(float64(len(requests)))
			if a.writeSpool != nil && len(spooled) > 0 {
				if ackErr := a.writeSpool.Ack(ctx, spoolIDs(spooled)); ackErr != nil {
					slog.Warn("write spool ack failed", "error", ackErr, "count", len(spooled))
				}
			}
			observability.WriteQueueFlushLatencySeconds.Observe(time.Since(started).Seconds())
		}
		a.updateQueueMetrics()
	}
}

func spoolIDs(rows []ports.SpoolRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// handleWriteFailure spills the in-memory part of a failed batch to the
// spool and schedules the spooled part for a later retry.
func (a *App) handleWriteFailure(ctx context.Context, spooled []ports.SpoolRow, memoryBatch []ports.WriteRequest, applyErr error) {
	if a == nil || a.writeSpool == nil {
		return
	}
	for _, req := range memoryBatch {
		if err := a.writeSpool.Enqueue(req); err != nil {
			slog.Warn("failed to spill memory request to spool", "error", err, "run_id", req.Run.ID)
		} else {
			observability.WriteQueueSpilledTotal.Inc()
		}
	}
	if len(spooled) == 0 {
		return
	}

	maxAttempts := 0
	for _, row := range spooled {
		if row.Attempts > maxAttempts {
			maxAttempts = row.Attempts
		}
	}
	nextAttempt := time.Now().Add(backoffDelay(maxAttempts + 1))
	if err := a.writeSpool.Nack(ctx, spooled, nextAttempt, applyErr.Error()); err != nil {
		slog.Warn("write spool nack failed", "error", err, "count", len(spooled))
	}
}

func backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := writeRetryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= writeRetryMaxDelay {
			return writeRetryMaxDelay
		}
	}
	return delay
}

// enqueueHistoryWrite hands req to the writer. A full queue spills to the
// spool; without a spool the write is applied synchronously.
func (a *App) enqueueHistoryWrite(req ports.WriteRequest) error {
	if a == nil || a.history == nil {
		return nil
	}
	if a.writeQueue == nil {
		return a.applyWriteBatch(context.Background(), []ports.WriteRequest{req})
	}
	result := a.writeQueue.Enqueue(req)
	switch result {
	case ports.EnqueueAccepted:
		a.updateQueueMetrics()
		return nil
	case ports.EnqueueDropped:
		observability.WriteQueueDroppedTotal.Inc()
		if a.writeSpool != nil {
			if err := a.writeSpool.Enqueue(req); err == nil {
				observability.WriteQueueSpilledTotal.Inc()
				a.updateQueueMetrics()
				return nil
			}
		}
		return a.applyWriteBatch(context.Background(), []ports.WriteRequest{req})
	default:
		return fmt.Errorf("unknown enqueue result %q", result)
	}
}

// applyWriteBatch saves each run and trims the project's history to the
// configured retention.
func (a *App) applyWriteBatch(ctx context.Context, batch []ports.WriteRequest) error {
	if a == nil || a.history == nil || len(batch) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	for _, req := range batch {
		if err := a.history.SaveRun(ctx, req.Run, req.Violations); err != nil {
			return fmt.Errorf("save run %s: %w", req.Run.ID, err)
		}
	}
	if keep := a.Config.DB.Retention; keep > 0 {
		pruned, err := a.history.Prune(ctx, a.projectKey, keep)
		if err != nil {
			slog.Warn("history prune failed", "error", err)
		} else if pruned > 0 {
			slog.Debug("pruned history", "runs", pruned)
		}
	}
	return nil
}

func (a *App) stopWriteWorker(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.workerCancel != nil {
		a.workerCancel()
		a.workerCancel = nil
	}
	if a.workerDone != nil {
		select {
		case <-a.workerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.workerDone = nil
	}
	if err := a.drainWriteQueue(ctx); err != nil {
		return err
	}
	if a.writeQueue != nil {
		if err := a.writeQueue.Close(); err != nil {
			return err
		}
		a.writeQueue = nil
	}
	if a.writeSpool != nil {
		if err := a.writeSpool.Close(); err != nil {
			return err
		}
		a.writeSpool = nil
	}
	return nil
}

// drainWriteQueue applies what is left in memory. Due spool rows are
// applied too; rows that fail stay spooled for the next process.
func (a *App) drainWriteQueue(ctx context.Context) error {
	if a == nil {
		return nil
	}
	for {
		if a.writeQueue != nil {
			batch, err := a.writeQueue.DequeueBatch(ctx, writeBatchSize, 0)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if len(batch) > 0 {
				if err := a.applyWriteBatch(ctx, batch); err != nil {
					a.handleWriteFailure(ctx, nil, batch, err)
					return err
				}
				continue
			}
		}
		if a.writeSpool == nil {
			return nil
		}
		rows, err := a.writeSpool.DequeueBatch(ctx, writeBatchSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		batch := make([]ports.WriteRequest, 0, len(rows))
		for _, row := range rows {
			batch = append(batch, row.Request)
		}
		if err := a.applyWriteBatch(ctx, batch); err != nil {
			_ = a.writeSpool.Nack(ctx, rows, time.Now().Add(backoffDelay(1)), err.Error())
			return err
		}
		if err := a.writeSpool.Ack(ctx, spoolIDs(rows)); err != nil {
			return err
		}
	}
}

func (a *App) updateQueueMetrics() {
	if a == nil {
		return
	}
	if a.writeQueue != nil {
		observability.WriteQueueDepth.Set(float64(a.writeQueue.Len()))
	}
	if a.writeSpool != nil {
		if count, err := a.writeSpool.PendingCount(context.Background()); err == nil {
			observability.WriteSpoolDepth.Set(float64(count))
		}
	}
}

// Close flushes pending history writes and releases the store.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.activeWatcher != nil {
		_ = a.activeWatcher.Close()
		a.activeWatcher = nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownDrainTimeout)
		defer cancel()
	}
	if err := a.stopWriteWorker(ctx); err != nil {
		return err
	}
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			return err
		}
		a.closeStore = nil
	}
	return nil
}
