// Package worker implements the collection pipeline execution loop.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/collector"
	"github.com/parkmj/kbland-collector/internal/kb"
	"github.com/parkmj/kbland-collector/internal/metrics"
	"github.com/parkmj/kbland-collector/internal/publisher"
	"github.com/parkmj/kbland-collector/internal/queue"
	"github.com/parkmj/kbland-collector/internal/storage"
	"github.com/parkmj/kbland-collector/internal/store"

	"github.com/google/uuid"
)

// Config controls Worker behavior.
type Config struct {
	ContentType       string
	BlobPrefix        string
	Topic             string
	MaxRetries        int
	BackoffInitial    time.Duration
	RequestsPerMinute int
}

// Connectors bundles the per-source connectors the worker dispatches to.
// Each field is typed by the record the connector produces so the retry
// wrapper stays generic.
type Connectors struct {
	Price       collector.Connector[kb.Valuation]
	Transaction collector.Connector[kb.Transaction]
	Listing     collector.Connector[kb.Listing]
}

// runProgress tracks task completions for one in-flight run.
type runProgress struct {
	total     int
	succeeded int
	failed    int
}

// Worker consumes queue items and executes the collect pipeline: fetch and
// parse through a connector, persist normalized records, archive the raw
// payload, and account task and run completion.
type Worker struct {
	queue      queue.Queue
	runs       store.Runs
	records    store.Records
	blobStore  storage.BlobStore
	pub        publisher.Publisher
	connectors Connectors
	limiters   map[store.JobType]*collector.RateLimiter
	clock      collector.Clock
	cfg        Config
	logger     *zap.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]*runProgress
}

// New constructs a Worker.
func New(
	q queue.Queue,
	runs store.Runs,
	records store.Records,
	blobStore storage.BlobStore,
	pub publisher.Publisher,
	connectors Connectors,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	limiters := map[store.JobType]*collector.RateLimiter{
		store.JobPrice:       collector.NewRateLimiter(cfg.RequestsPerMinute),
		store.JobTransaction: collector.NewRateLimiter(cfg.RequestsPerMinute),
		store.JobListing:     collector.NewRateLimiter(cfg.RequestsPerMinute),
	}
	return &Worker{
		queue:      q,
		runs:       runs,
		records:    records,
		blobStore:  blobStore,
		pub:        pub,
		connectors: connectors,
		limiters:   limiters,
		clock:      collector.SystemClock{},
		cfg:        cfg,
		logger:     logger,
		inflight:   make(map[uuid.UUID]*runProgress),
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task",
			zap.String("task_id", item.TaskID.String()),
			zap.String("job_type", string(item.JobType)),
		)
		w.processItem(ctx, item)
	}
}

func (w *Worker) processItem(ctx context.Context, item queue.Item) {
	if err := w.runs.StartTask(ctx, item.TaskID, w.clock.Now().UTC()); err != nil {
		w.logger.Error("start task failed", zap.String("task_id", item.TaskID.String()), zap.Error(err))
		return
	}

	err := w.executeTask(ctx, item)
	finished := w.clock.Now().UTC()
	status := store.TaskSucceeded
	var errMsg *string
	if err != nil {
		status = store.TaskFailed
		text := err.Error()
		errMsg = &text
		w.logger.Error("task failed",
			zap.String("task_id", item.TaskID.String()),
			zap.String("job_type", string(item.JobType)),
			zap.Int64("complex_id", item.ComplexID),
			zap.Error(err),
		)
	}
	metrics.TaskOutcome(string(item.JobType), string(status))

	if err := w.runs.FinishTask(ctx, item.TaskID, finished, status, errMsg); err != nil {
		w.logger.Error("finish task failed", zap.String("task_id", item.TaskID.String()), zap.Error(err))
	}
	w.accountRun(ctx, item.RunID, status == store.TaskSucceeded)
}

func (w *Worker) executeTask(ctx context.Context, item queue.Item) error {
	target := collector.Target{ComplexID: item.ComplexID, AreaID: item.AreaID}

	switch item.JobType {
	case store.JobPrice:
		res, err := collector.Collect(ctx, w.connectors.Price, target, w.collectOptions(item.JobType))
		if err != nil {
			return err
		}
		records := make([]store.ValuationRecord, 0, len(res.Items))
		for _, v := range res.Items {
			records = append(records, store.ValuationRecord{
				ComplexID:    item.ComplexID,
				AreaID:       item.AreaID,
				AsOfDate:     v.AsOfDate,
				GeneralPrice: v.GeneralPrice,
				HighAvgPrice: v.HighAvgPrice,
				LowAvgPrice:  v.LowAvgPrice,
				Source:       v.Source,
				FetchMethod:  string(res.Metadata.Method),
				FetchedAt:    res.Metadata.FetchedAt,
			})
		}
		if err := w.records.SaveValuations(ctx, records); err != nil {
			return fmt.Errorf("save valuations: %w", err)
		}
		return w.archiveRaw(ctx, item, res.Raw, res.Metadata)

	case store.JobTransaction:
		res, err := collector.Collect(ctx, w.connectors.Transaction, target, w.collectOptions(item.JobType))
		if err != nil {
			return err
		}
		records := make([]store.TransactionRecord, 0, len(res.Items))
		for _, t := range res.Items {
			records = append(records, store.TransactionRecord{
				ComplexID:    item.ComplexID,
				AreaID:       item.AreaID,
				ContractDate: t.ContractDate,
				Price:        t.Price,
				ExclusiveM2:  t.ExclusiveM2,
				Floor:        t.Floor,
				IsCancelled:  t.IsCancelled,
				Source:       t.Source,
				FetchedAt:    res.Metadata.FetchedAt,
			})
		}
		if err := w.records.SaveTransactions(ctx, records); err != nil {
			return fmt.Errorf("save transactions: %w", err)
		}
		return w.archiveRaw(ctx, item, res.Raw, res.Metadata)

	case store.JobListing:
		res, err := collector.Collect(ctx, w.connectors.Listing, target, w.collectOptions(item.JobType))
		if err != nil {
			return err
		}
		seen := res.Metadata.FetchedAt
		records := make([]store.ListingRecord, 0, len(res.Items))
		for _, l := range res.Items {
			records = append(records, store.ListingRecord{
				ComplexID:       item.ComplexID,
				SourceListingID: l.SourceListingID,
				AskPrice:        l.AskPrice,
				ExclusiveM2:     l.ExclusiveM2,
				Floor:           l.Floor,
				Status:          string(l.Status),
				PostedAt:        l.PostedAt,
				TradeType:       l.TradeType,
				Source:          l.Source,
				FirstSeenAt:     seen,
				LastSeenAt:      seen,
			})
		}
		if err := w.records.UpsertListings(ctx, records); err != nil {
			return fmt.Errorf("upsert listings: %w", err)
		}
		return w.archiveRaw(ctx, item, res.Raw, res.Metadata)

	default:
		return fmt.Errorf("unknown job type %q", item.JobType)
	}
}

func (w *Worker) collectOptions(jobType store.JobType) collector.Options {
	return collector.Options{
		MaxRetries: w.cfg.MaxRetries,
		Backoff:    collector.BackoffPolicy{Base: w.cfg.BackoffInitial},
		Limiter:    w.limiters[jobType],
		Clock:      w.clock,
		Logger:     w.logger,
	}
}

// archiveRaw writes the untouched upstream payload to the blob store. The
// archive is the replay source for parser fixes, so a write failure fails
// the task.
func (w *Worker) archiveRaw(ctx context.Context, item queue.Item, raw any, meta collector.Metadata) error {
	if w.blobStore == nil {
		return nil
	}
	envelope := map[string]any{
		"metadata": meta,
		"payload":  raw,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal raw payload: %w", err)
	}
	key := storage.ArchiveKey(w.cfg.BlobPrefix, item.RunID, string(item.JobType), item.ComplexID, meta.FetchedAt)
	if _, err := w.blobStore.PutObject(ctx, key, w.cfg.ContentType, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("archive raw payload: %w", err)
	}
	return nil
}

// accountRun tallies a task completion against its run and finalizes the run
// once every task has reported in.
func (w *Worker) accountRun(ctx context.Context, runID uuid.UUID, succeeded bool) {
	w.mu.Lock()
	progress, ok := w.inflight[runID]
	if !ok {
		run, err := w.runs.GetRun(ctx, runID)
		if err != nil {
			w.mu.Unlock()
			w.logger.Error("load run for accounting failed", zap.String("run_id", runID.String()), zap.Error(err))
			return
		}
		progress = &runProgress{total: run.TotalTasks}
		w.inflight[runID] = progress
	}
	if succeeded {
		progress.succeeded++
	} else {
		progress.failed++
	}
	done := progress.succeeded+progress.failed >= progress.total
	snapshot := *progress
	if done {
		delete(w.inflight, runID)
	}
	w.mu.Unlock()

	if !done {
		return
	}
	w.finalizeRun(ctx, runID, snapshot)
}

func (w *Worker) finalizeRun(ctx context.Context, runID uuid.UUID, progress runProgress) {
	status := store.RunCompleted
	switch {
	case progress.succeeded == 0:
		status = store.RunFailed
	case progress.failed > 0:
		status = store.RunPartial
	}
	finishedAt := w.clock.Now().UTC()

	if err := w.runs.CompleteRun(ctx, runID, finishedAt, status, progress.succeeded, progress.failed); err != nil {
		w.logger.Error("complete run failed", zap.String("run_id", runID.String()), zap.Error(err))
	}
	w.logger.Info("run finished",
		zap.String("run_id", runID.String()),
		zap.String("status", string(status)),
		zap.Int("succeeded", progress.succeeded),
		zap.Int("failed", progress.failed),
	)

	if w.pub == nil || w.cfg.Topic == "" {
		return
	}
	event := publisher.RunCompleted{
		RunID:      runID,
		Status:     string(status),
		Total:      progress.total,
		Succeeded:  progress.succeeded,
		Failed:     progress.failed,
		FinishedAt: finishedAt,
	}
	if _, err := w.pub.Publish(ctx, w.cfg.Topic, event); err != nil {
		w.logger.Error("publish run event failed", zap.String("run_id", runID.String()), zap.Error(err))
	}
}
