// Package mandcluster provides the main API for dispatching Mandelbrot
// iteration requests onto an FPGA-resident core cluster.
package mandcluster

import (
	"context"
	"math/big"
	"time"

	"github.com/behrlich/mandcluster/internal/facade"
	"github.com/behrlich/mandcluster/internal/interfaces"
	"github.com/behrlich/mandcluster/internal/logging"
	"github.com/behrlich/mandcluster/internal/scheduler"
)

// Config configures a Scheduler.
type Config struct {
	// RetryBudget caps how many times a request is requeued after a
	// core-reset-mid-flight outcome before it is failed. Zero uses the
	// package default.
	RetryBudget uint64

	// IntakeCapacity bounds the submission intake channel. Requests the
	// worker has already moved into its backlog do not count against it.
	// Zero uses the package default.
	IntakeCapacity int

	// Logger receives structured lifecycle and protocol messages. Nil uses
	// the package default logger.
	Logger interfaces.Logger

	// Observer receives scheduler events for metrics collection. Nil
	// installs a MetricsObserver backed by a fresh Metrics instance,
	// retrievable via MetricsSnapshot.
	Observer interfaces.Observer

	// facadeOverride lets tests inject a mock facade instead of opening
	// the real memory-mapped register block.
	facadeOverride interfaces.Facade
}

// Scheduler owns the cluster's single worker goroutine and exposes a
// synchronous Submit API to callers such as an HTTP handler.
type Scheduler struct {
	worker  *scheduler.Worker
	facade  interfaces.Facade
	metrics *Metrics
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler opens the cluster facade, resets every core, and starts the
// worker loop in a dedicated goroutine. It blocks until the reset phase
// completes or fails.
func NewScheduler(ctx context.Context, cfg Config) (*Scheduler, error) {
	f := cfg.facadeOverride
	if f == nil {
		opened, err := facade.Open()
		if err != nil {
			return nil, WrapError("OPEN", err)
		}
		f = opened
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	var metrics *Metrics
	observer := cfg.Observer
	if observer == nil {
		metrics = NewMetrics()
		observer = NewMetricsObserver(metrics)
	}

	w := scheduler.NewWorker(f, logger, observer, scheduler.Config{
		RetryBudget:    cfg.RetryBudget,
		IntakeCapacity: cfg.IntakeCapacity,
	})

	runCtx, cancel := context.WithCancel(ctx)
	started := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(runCtx, started)
	}()

	if err := <-started; err != nil {
		cancel()
		<-done
		f.Close()
		return nil, WrapError("RESET", err)
	}

	return &Scheduler{
		worker:  w,
		facade:  f,
		metrics: metrics,
		cancel:  cancel,
		done:    done,
	}, nil
}

// Submit enqueues a calculation request and blocks until the cluster
// produces a result, the request is abandoned past its retry budget, or ctx
// is cancelled first.
func (s *Scheduler) Submit(ctx context.Context, x, y *big.Int, maxIterations uint64) (uint64, error) {
	req := &scheduler.CalculationRequest{
		X:             facade.OperandFromBigInt(x),
		Y:             facade.OperandFromBigInt(y),
		MaxIterations: maxIterations,
		Response:      make(chan scheduler.Result, 1),
	}

	select {
	case s.worker.Intake() <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-req.Response:
		if res.Err != nil {
			return 0, &Error{Op: "SUBMIT", Core: -1, Code: ErrCodeRetryExhausted, Msg: res.Err.Error(), Inner: res.Err}
		}
		return res.Iterations, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops the worker loop and releases the cluster facade. It is safe
// to call more than once.
func (s *Scheduler) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(5 * time.Second):
		}
	}
	if s.metrics != nil {
		s.metrics.Stop()
	}
	if s.facade != nil {
		return s.facade.Close()
	}
	return nil
}

// Info describes the running cluster for status reporting.
type Info struct {
	CoresCount uint64
}

// Info returns the cluster's static configuration as discovered at reset.
func (s *Scheduler) Info() Info {
	return Info{CoresCount: s.worker.CoresCount()}
}

// MetricsSnapshot returns a point-in-time snapshot of scheduler metrics. It
// returns a zero-value snapshot if the Scheduler was configured with a
// custom Observer instead of the built-in MetricsObserver.
func (s *Scheduler) MetricsSnapshot() MetricsSnapshot {
	if s.metrics == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.Snapshot()
}
