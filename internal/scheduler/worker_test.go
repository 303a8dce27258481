package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/mandcluster/internal/facade"
	"github.com/behrlich/mandcluster/internal/logging"
)

type countingObserver struct {
	mu               sync.Mutex
	submits          int
	harvestSuccesses int
	coreResets       int
	retryExhausted   int
	dispatchRejected int
	responseDropped  int
}

func (o *countingObserver) ObserveSubmit()              { o.mu.Lock(); o.submits++; o.mu.Unlock() }
func (o *countingObserver) ObserveHarvestSuccess(uint64) {
	o.mu.Lock()
	o.harvestSuccesses++
	o.mu.Unlock()
}
func (o *countingObserver) ObserveCoreReset()        { o.mu.Lock(); o.coreResets++; o.mu.Unlock() }
func (o *countingObserver) ObserveRetryExhausted()   { o.mu.Lock(); o.retryExhausted++; o.mu.Unlock() }
func (o *countingObserver) ObserveDispatchRejected() { o.mu.Lock(); o.dispatchRejected++; o.mu.Unlock() }
func (o *countingObserver) ObserveResponseDropped()  { o.mu.Lock(); o.responseDropped++; o.mu.Unlock() }

func newTestWorker(t *testing.T, cores uint64, cfg Config) (*Worker, *facade.MockFacade, *countingObserver) {
	t.Helper()
	mock := facade.NewMockFacade(cores)
	obs := &countingObserver{}
	w := NewWorker(mock, logging.NewLogger(nil), obs, cfg)
	return w, mock, obs
}

func runWorker(w *Worker) (context.CancelFunc, chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan error, 1)
	go w.Run(ctx, started)
	return cancel, started
}

func newRequest(maxIter uint64) *CalculationRequest {
	return &CalculationRequest{
		MaxIterations: maxIter,
		Response:      make(chan Result, 1),
	}
}

func TestScenarioSingleRequestImmediateSuccess(t *testing.T) {
	w, mock, _ := newTestWorker(t, 4, Config{})
	mock.ScriptCompletion(0, 2, true, 0x3E8)

	cancel, started := runWorker(w)
	defer cancel()
	require.NoError(t, <-started)

	req := newRequest(0x3E8)
	w.Intake() <- req

	select {
	case res := <-req.Response:
		require.NoError(t, res.Err)
		assert.Equal(t, uint64(0x3E8), res.Iterations)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestScenarioParallelDispatch(t *testing.T) {
	w, mock, _ := newTestWorker(t, 4, Config{})
	for i := uint64(0); i < 4; i++ {
		mock.ScriptCompletion(i, int(i)+1, true, i+1)
	}

	cancel, started := runWorker(w)
	defer cancel()
	require.NoError(t, <-started)

	reqs := make([]*CalculationRequest, 4)
	for i := range reqs {
		reqs[i] = newRequest(100)
		w.Intake() <- reqs[i]
	}

	seen := make(map[uint64]bool)
	for _, req := range reqs {
		select {
		case res := <-req.Response:
			require.NoError(t, res.Err)
			assert.True(t, res.Iterations >= 1 && res.Iterations <= 4)
			seen[res.Iterations] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for response")
		}
	}
	assert.Len(t, seen, 4)
}

func TestScenarioBacklogDrain(t *testing.T) {
	w, mock, _ := newTestWorker(t, 4, Config{})
	for i := uint64(0); i < 4; i++ {
		mock.ScriptCompletion(i, 0, true, i+100)
	}

	cancel, started := runWorker(w)
	defer cancel()
	require.NoError(t, <-started)

	const n = 10
	reqs := make([]*CalculationRequest, n)
	for i := range reqs {
		reqs[i] = newRequest(1)
		w.Intake() <- reqs[i]
	}

	for _, req := range reqs {
		select {
		case res := <-req.Response:
			require.NoError(t, res.Err)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for response")
		}
	}
}

func TestScenarioMidFlightReset(t *testing.T) {
	w, mock, obs := newTestWorker(t, 1, Config{})
	mock.ScriptCompletion(0, 0, false, 0)

	cancel, started := runWorker(w)
	defer cancel()
	require.NoError(t, <-started)

	req := newRequest(10)
	w.Intake() <- req

	require.Eventually(t, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return obs.coreResets >= 1
	}, time.Second, 10*time.Microsecond)
	mock.ScriptCompletion(0, 0, true, 42)

	select {
	case res := <-req.Response:
		require.NoError(t, res.Err)
		assert.Equal(t, uint64(42), res.Iterations)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for response")
	}
	assert.GreaterOrEqual(t, obs.coreResets, 1)
}

func TestScenarioResetExhaustion(t *testing.T) {
	w, mock, obs := newTestWorker(t, 1, Config{RetryBudget: 5})
	mock.ScriptCompletion(0, 0, false, 0)

	cancel, started := runWorker(w)
	defer cancel()
	require.NoError(t, <-started)

	req := newRequest(10)
	w.Intake() <- req

	select {
	case res := <-req.Response:
		require.Error(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")
	}
	assert.Equal(t, 1, obs.retryExhausted)
}

func TestScenarioStartRejectionLoop(t *testing.T) {
	w, mock, _ := newTestWorker(t, 1, Config{})
	mock.ScriptStartStatus(0, facade.StatusCoreBusy, 5)
	mock.ScriptCompletion(0, 1, true, 7)

	cancel, started := runWorker(w)
	defer cancel()
	require.NoError(t, <-started)

	req := newRequest(10)
	w.Intake() <- req

	select {
	case res := <-req.Response:
		require.NoError(t, res.Err)
		assert.Equal(t, uint64(7), res.Iterations)
		assert.Equal(t, uint64(0), req.Attempts)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}
