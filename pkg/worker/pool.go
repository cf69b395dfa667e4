// Package worker provides a generic bounded worker pool, used by the
// ingestion pipeline to process bulk recipe submissions concurrently.
//
// Submit is non-blocking: a full queue drops the work item with
// ErrQueueFull rather than stalling the caller. Statistics are always
// collected; Prometheus export is optional.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/virajxp1/forkfolio/metric"
)

// Pool processes work items of type T on a fixed set of goroutines.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	wg       *sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted int64
	processed int64
	failed    int64
	dropped   int64

	metrics       *poolMetrics
	registrar     metric.Registrar
	metricsPrefix string
}

type poolMetrics struct {
	queueDepth prometheus.Gauge
	submitted  prometheus.Counter
	processed  prometheus.Counter
	failed     prometheus.Counter
	dropped    prometheus.Counter
}

// Option configures a pool.
type Option[T any] func(*Pool[T])

// WithMetrics registers pool metrics under the given prefix.
func WithMetrics[T any](registrar metric.Registrar, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.registrar = registrar
		p.metricsPrefix = prefix
	}
}

// NewPool creates a pool running processor on each submitted item.
// Non-positive workers or queueSize take defaults (4 workers, 256 queue).
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(pool)
	}

	if pool.registrar != nil && pool.metricsPrefix != "" {
		pool.initMetrics()
	}
	return pool
}

func (p *Pool[T]) initMetrics() {
	prefix := p.metricsPrefix
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_queue_depth",
			Help: "Current worker pool queue depth",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_submitted_total",
			Help: "Total work items submitted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_processed_total",
			Help: "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_failed_total",
			Help: "Total work items that failed processing",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_dropped_total",
			Help: "Total work items dropped due to a full queue",
		}),
	}

	component := "worker_pool"
	_ = p.registrar.Register(component, prefix+"_queue_depth", m.queueDepth)
	_ = p.registrar.Register(component, prefix+"_submitted_total", m.submitted)
	_ = p.registrar.Register(component, prefix+"_processed_total", m.processed)
	_ = p.registrar.Register(component, prefix+"_failed_total", m.failed)
	_ = p.registrar.Register(component, prefix+"_dropped_total", m.dropped)
	p.metrics = m
}

// Start launches the workers. Returns ErrPoolAlreadyStarted on a second call.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.wg = &sync.WaitGroup{}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.started = true
	return nil
}

// Submit queues a work item without blocking. A full queue drops the item.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- work:
		atomic.AddInt64(&p.submitted, 1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		atomic.AddInt64(&p.dropped, 1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for workers to drain it.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	close(p.workChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.stopped = true
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns a snapshot of pool counters.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}

			err := p.processor(ctx, work)

			atomic.AddInt64(&p.processed, 1)
			if err != nil {
				atomic.AddInt64(&p.failed, 1)
			}
			if p.metrics != nil {
				p.metrics.processed.Inc()
				if err != nil {
					p.metrics.failed.Inc()
				}
				p.metrics.queueDepth.Set(float64(len(p.workChan)))
			}
		}
	}
}
