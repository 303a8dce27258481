// Package constants holds compile-time constants shared across the cluster
// facade and scheduler. The register layout, physical base address, and
// settle delay are fixed by the FPGA synthesis and must not drift between
// packages.
package constants

import "time"

// Hardware addressing. The FPGA cluster's register block is mapped at a
// fixed physical offset on the host-to-FPGA bridge; this is synthesis-time
// constant, not configuration.
const (
	// HPSFPGABridgeBase is the physical base address of the register block
	// on the host-to-FPGA bridge.
	HPSFPGABridgeBase = 0xC0000000

	// MemDevicePath is the kernel memory device the register block is
	// mapped through.
	MemDevicePath = "/dev/mem"
)

// SettleDelay is the fixed pause after every register write so the FPGA
// side latches the value before the next bus transaction. Not a timeout;
// every write operation in internal/facade sleeps this long before
// returning, regardless of load.
const SettleDelay = 20 * time.Nanosecond

// DefaultRetryBudget bounds how many times a task may be requeued after a
// core-reset-mid-flight outcome before it is surfaced as a terminal error.
// Chosen as a soft upper bound on transient core resets; not a timeout.
// Implementers may override it via scheduler.Config, but the documented
// default is 10000 for compatibility with the original hardware harness.
const DefaultRetryBudget = 10000

// IntakeQueueCapacity bounds the scheduler's submission intake channel.
// Submitters block (or their context is cancelled) once it is full — this
// is the system's only admission-control backpressure.
const IntakeQueueCapacity = 1000

// MaxCores is the largest cluster size this facade's flag bitmap width
// (128 bits) can address.
const MaxCores = 128
