package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/virajxp1/forkfolio/metric"
	"github.com/virajxp1/forkfolio/pkg/worker"
)

// BulkIngestor processes batches of raw texts on a worker pool. Items
// are fire-and-forget: failures are logged and counted, not returned.
type BulkIngestor struct {
	pipeline *Pipeline
	pool     *worker.Pool[string]
	logger   *slog.Logger
}

// BulkConfig sizes the worker pool.
type BulkConfig struct {
	Workers   int `json:"workers" yaml:"workers"`
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

// NewBulkIngestor creates a pool-backed bulk ingestor around the pipeline.
func NewBulkIngestor(pipeline *Pipeline, cfg BulkConfig, registrar metric.Registrar, logger *slog.Logger) *BulkIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ingest.bulk")

	b := &BulkIngestor{pipeline: pipeline, logger: logger}

	var opts []worker.Option[string]
	if registrar != nil {
		opts = append(opts, worker.WithMetrics[string](registrar, "ingest"))
	}
	b.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, b.process, opts...)
	return b
}

func (b *BulkIngestor) process(ctx context.Context, rawText string) error {
	result, err := b.pipeline.Ingest(ctx, rawText)
	if err != nil {
		b.logger.Warn("bulk ingest item failed", "error", err)
		return err
	}
	if result.Status == StatusDuplicate {
		b.logger.Debug("bulk ingest item was a duplicate", "duplicate_of", result.DuplicateOf)
	}
	return nil
}

// Start launches the pool workers.
func (b *BulkIngestor) Start(ctx context.Context) error {
	return b.pool.Start(ctx)
}

// Submit queues one raw text. Returns worker.ErrQueueFull under load.
func (b *BulkIngestor) Submit(rawText string) error {
	return b.pool.Submit(rawText)
}

// Stop drains the queue, waiting up to timeout.
func (b *BulkIngestor) Stop(timeout time.Duration) error {
	return b.pool.Stop(timeout)
}

// Stats returns the pool counters.
func (b *BulkIngestor) Stats() worker.PoolStats {
	return b.pool.Stats()
}
