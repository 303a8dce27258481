// Package scheduler implements the single-owner worker that drives the
// cluster's register protocol, multiplexing concurrent calculation requests
// onto a finite pool of hardware cores.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/behrlich/mandcluster/internal/constants"
	"github.com/behrlich/mandcluster/internal/facade"
	"github.com/behrlich/mandcluster/internal/interfaces"
)

// Result is what the worker delivers on a request's response channel:
// either an iteration count or a terminal error.
type Result struct {
	Iterations uint64
	Err        error
}

// CalculationRequest is a unit of work submitted by an HTTP caller: a
// complex-plane point and an iteration cap, with a single-shot response
// channel back to the submitter. Attempts counts how many times the
// scheduler has requeued this request after observing a core-reset-mid-
// flight outcome.
type CalculationRequest struct {
	X, Y          facade.Operand
	MaxIterations uint64
	Attempts      uint64
	Response      chan Result

	received time.Time
}

// Config configures a Worker's retry and queueing behavior.
type Config struct {
	RetryBudget    uint64
	IntakeCapacity int
}

// Worker is the single-owner coordinator: it is the direct analogue of a
// dedicated I/O thread that owns a hardware resource exclusively and drives
// its protocol from a pinned OS thread, never sharing the thread with
// cooperative request handlers.
type Worker struct {
	f        interfaces.Facade
	logger   interfaces.Logger
	observer interfaces.Observer

	intake chan *CalculationRequest

	inFlight map[facade.CoreID]*CalculationRequest
	backlog  []*CalculationRequest

	retryBudget uint64
	coresCount  uint64
}

var (
	_ interfaces.Facade = (*facade.Facade)(nil)
	_ interfaces.Facade = (*facade.MockFacade)(nil)
)

// NewWorker constructs a Worker over f. It does not touch the hardware or
// start the loop; call Run to reset the cluster and begin serving.
func NewWorker(f interfaces.Facade, logger interfaces.Logger, observer interfaces.Observer, cfg Config) *Worker {
	if cfg.RetryBudget == 0 {
		cfg.RetryBudget = constants.DefaultRetryBudget
	}
	if cfg.IntakeCapacity <= 0 {
		cfg.IntakeCapacity = constants.IntakeQueueCapacity
	}
	return &Worker{
		f:           f,
		logger:      logger,
		observer:    observer,
		intake:      make(chan *CalculationRequest, cfg.IntakeCapacity),
		inFlight:    make(map[facade.CoreID]*CalculationRequest),
		retryBudget: cfg.RetryBudget,
	}
}

// Intake returns the channel submitters enqueue requests on. Closing it
// (owned by the caller of Run) makes the worker exit at the end of the cycle
// that observes the close; requests still in the backlog or in flight at
// that point receive no response.
func (w *Worker) Intake() chan<- *CalculationRequest { return w.intake }

// CoresCount reports the cluster's core count as read at the start of Run,
// before the reset phase. Zero until Run has read it.
func (w *Worker) CoresCount() uint64 { return w.coresCount }

// Run pins the calling goroutine to its OS thread, resets every core, and
// busy-polls the register protocol until ctx is cancelled or the intake
// channel is closed. It must be started in its own goroutine; the caller
// receives the reset-phase error (if any, else nil) on started before
// the loop begins serving requests.
func (w *Worker) Run(ctx context.Context, started chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.coresCount = w.f.CoresCount()

	w.logger.Info("cluster initialized",
		"cores_count", w.coresCount,
		"busy_flags_lo", w.f.CoresBusyFlags().Lo,
		"valid_flags_lo", w.f.CoresValidFlags().Lo,
	)

	if err := w.resetAllCores(); err != nil {
		if started != nil {
			started <- err
		}
		return
	}

	w.logger.Info("cluster reset complete",
		"busy_flags_lo", w.f.CoresBusyFlags().Lo,
		"valid_flags_lo", w.f.CoresValidFlags().Lo,
	)

	if started != nil {
		started <- nil
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("worker loop stopping, context cancelled")
			return
		default:
		}

		facade.CompilerBarrier()
		busy := w.f.CoresBusyFlags()
		valid := w.f.CoresValidFlags()

		w.harvestPass(busy, valid)
		w.dispatchPass(busy)

		if done := w.intakePass(); done {
			facade.CompilerBarrier()
			return
		}
		facade.CompilerBarrier()
	}
}

// resetAllCores issues a Reset command to every CoreId in [0, cores_count).
// A non-Success status from any core is a fatal initialization failure: the
// hardware is left in an unknown state and there is no safe partial start.
func (w *Worker) resetAllCores() error {
	for i := uint64(0); i < w.coresCount; i++ {
		w.f.LoadCoreAddress(i)
		w.f.LoadCommand(facade.CommandReset)
		if status := w.f.CommandStatus(); status != facade.StatusSuccess {
			return fmt.Errorf("reset core %d: status=%s", i, status)
		}
	}
	return nil
}

// harvestPass inspects every in-flight task against this cycle's busy/valid
// snapshot. A core whose busy bit has cleared has stopped; if its valid bit
// is also set, the result is read and delivered. Otherwise the core was
// reset mid-flight and the request is retried or, past the retry budget,
// terminated.
func (w *Worker) harvestPass(busy, valid facade.FlagWord) {
	cores := make([]facade.CoreID, 0, len(w.inFlight))
	for core := range w.inFlight {
		cores = append(cores, core)
	}
	sort.Slice(cores, func(i, j int) bool { return cores[i] < cores[j] })

	for _, core := range cores {
		if busy.Bit(uint(core)) {
			continue
		}

		req := w.inFlight[core]
		delete(w.inFlight, core)

		if valid.Bit(uint(core)) {
			w.f.LoadCoreAddress(core)
			w.f.LoadCommand(facade.CommandLoadResult)
			if w.f.CommandStatus() == facade.StatusSuccess {
				result := w.f.CoreResult()
				w.deliver(req, Result{Iterations: result})
				if w.observer != nil {
					w.observer.ObserveHarvestSuccess(uint64(time.Since(req.received)))
				}
				continue
			}
			// LoadResult itself failed: treat as core-reset-mid-flight.
		}

		w.handleCoreReset(req)
	}
}

// handleCoreReset implements the retry-or-terminate decision for a task
// whose core stopped without a valid result.
func (w *Worker) handleCoreReset(req *CalculationRequest) {
	if w.observer != nil {
		w.observer.ObserveCoreReset()
	}
	if req.Attempts < w.retryBudget {
		req.Attempts++
		w.backlog = append(w.backlog, req)
		return
	}
	if w.observer != nil {
		w.observer.ObserveRetryExhausted()
	}
	w.deliver(req, Result{Err: fmt.Errorf("core was reset")})
}

// dispatchPass assigns backlog work to idle cores, iterating CoreIds in
// ascending order and pairing each free core with the head of the backlog.
func (w *Worker) dispatchPass(busy facade.FlagWord) {
	for core := facade.CoreID(0); core < w.coresCount; core++ {
		if busy.Bit(uint(core)) {
			continue
		}
		if _, inFlight := w.inFlight[core]; inFlight {
			continue
		}
		if len(w.backlog) == 0 {
			return
		}

		req := w.backlog[0]
		w.backlog = w.backlog[1:]

		w.f.LoadCoreAddress(core)
		w.f.LoadCoreX(req.X)
		w.f.LoadCoreY(req.Y)
		w.f.LoadCoreIterationsMax(req.MaxIterations)
		w.f.LoadCommand(facade.CommandStart)

		if status := w.f.CommandStatus(); status == facade.StatusSuccess {
			w.inFlight[core] = req
		} else {
			w.logger.Warn("start rejected", "core", core, "status", status.String())
			if w.observer != nil {
				w.observer.ObserveDispatchRejected()
			}
			w.backlog = append(w.backlog, req)
		}
	}
}

// intakePass drains newly submitted requests into the backlog without
// blocking. It reports true when the intake channel has been closed and
// drained, signalling the worker to exit after this cycle.
func (w *Worker) intakePass() bool {
	for {
		select {
		case req, ok := <-w.intake:
			if !ok {
				return true
			}
			req.received = time.Now()
			if w.observer != nil {
				w.observer.ObserveSubmit()
			}
			w.backlog = append(w.backlog, req)
		default:
			return false
		}
	}
}

// deliver sends a result on the request's response channel without
// blocking, so the worker's single thread can never wedge on a send. A
// request whose channel has a free buffer slot (as every request built by
// Submit does) takes the result even if its submitter has stopped waiting;
// only a channel that cannot accept the value at once gets it logged and
// dropped.
func (w *Worker) deliver(req *CalculationRequest, res Result) {
	select {
	case req.Response <- res:
	default:
		w.logger.Warn("dropping response, receiver gone")
		if w.observer != nil {
			w.observer.ObserveResponseDropped()
		}
	}
}
