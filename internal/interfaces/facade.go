// Package interfaces provides internal interface definitions for mandcluster.
// These are separate from the concrete facade/scheduler packages to avoid
// circular imports between the module root and internal packages.
package interfaces

import "github.com/behrlich/mandcluster/internal/facade"

// Facade is the mockable contract the scheduler drives. A real
// implementation owns a memory-mapped register block; a mock implementation
// scripts per-core completion sequences for tests. Exactly one goroutine may
// call Facade methods over the facade's lifetime.
type Facade interface {
	CoresCount() uint64
	FixedSize() uint64
	FixedIntegerSize() uint64

	LoadCommand(cmd facade.ClusterCommand)
	LoadCoreAddress(core uint64)
	LoadCoreX(x facade.Operand)
	LoadCoreY(y facade.Operand)
	LoadCoreIterationsMax(max uint64)

	CommandStatus() facade.ClusterCommandStatus
	CoresBusyFlags() facade.FlagWord
	CoresValidFlags() facade.FlagWord
	CoreResult() uint64

	Close() error
}

// Logger is the subset of internal/logging's Logger that scheduler and
// facade code depend on, kept narrow so tests can supply trivial doubles.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives scheduler lifecycle events for metrics collection.
// Implementations must be safe to call from the worker's dedicated thread;
// they are never called concurrently from more than one goroutine.
type Observer interface {
	ObserveSubmit()
	ObserveHarvestSuccess(latencyNs uint64)
	ObserveCoreReset()
	ObserveRetryExhausted()
	ObserveDispatchRejected()
	ObserveResponseDropped()
}
