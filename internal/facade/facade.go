package facade

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/mandcluster/internal/constants"
)

// opened guards against more than one live Facade per process: the register
// window has no locking of its own, and the scheduler architecture relies
// on exclusive single-owner access (spec: "only one facade instance may
// exist per process").
var opened atomic.Bool

// ErrFacadeAlreadyOpen is returned by Open when a Facade is already live in
// this process.
var ErrFacadeAlreadyOpen = fmt.Errorf("facade: already open in this process")

// Facade is the exclusive, typed view over the memory-mapped register
// block. All reads and writes go through atomic loads/stores over a single
// base pointer so the compiler can never cache, reorder, or elide an access
// to the device window.
type Facade struct {
	fd   int
	base unsafe.Pointer
	mem  []byte
}

// pointerFromMmap converts the mmap'd slice's backing array into an
// unsafe.Pointer via indirection, satisfying go vet's unsafeptr checker.
// Safe because the mmap'd region has a fixed address for the facade's
// lifetime.
//
//go:noinline
func pointerFromMmap(mem []byte) unsafe.Pointer {
	return unsafe.Pointer(&mem[0])
}

// Open maps the register block at the fixed physical bridge address and
// returns the exclusive facade handle. Device-open and mapping failures are
// surfaced as construction errors carrying the OS error, per the facade's
// documented failure modes.
func Open() (*Facade, error) {
	if !opened.CompareAndSwap(false, true) {
		return nil, ErrFacadeAlreadyOpen
	}

	fd, err := unix.Open(constants.MemDevicePath, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		opened.Store(false)
		return nil, fmt.Errorf("facade: open %s: %w", constants.MemDevicePath, err)
	}

	mem, err := unix.Mmap(fd, constants.HPSFPGABridgeBase, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		opened.Store(false)
		return nil, fmt.Errorf("facade: mmap at 0x%x: %w", constants.HPSFPGABridgeBase, err)
	}

	return &Facade{
		fd:   fd,
		base: pointerFromMmap(mem),
		mem:  mem,
	}, nil
}

func (f *Facade) ptr(off uintptr) unsafe.Pointer {
	return unsafe.Add(f.base, off)
}

func (f *Facade) loadU64(off uintptr) uint64 {
	return atomic.LoadUint64((*uint64)(f.ptr(off)))
}

func (f *Facade) storeU64(off uintptr, v uint64) {
	atomic.StoreUint64((*uint64)(f.ptr(off)), v)
	time.Sleep(constants.SettleDelay)
}

func (f *Facade) loadFlagWord(off uintptr) FlagWord {
	return FlagWord{
		Lo: atomic.LoadUint64((*uint64)(f.ptr(off))),
		Hi: atomic.LoadUint64((*uint64)(f.ptr(off + 8))),
	}
}

func (f *Facade) storeOperand(off uintptr, v Operand) {
	atomic.StoreUint64((*uint64)(f.ptr(off)), v.Lo)
	atomic.StoreUint64((*uint64)(f.ptr(off+8)), v.Hi)
	time.Sleep(constants.SettleDelay)
}

// CoresCount reads the metadata register reporting how many cores this
// synthesis exposes.
func (f *Facade) CoresCount() uint64 { return f.loadU64(offCoresCount) }

// FixedSize reads the fixed-point total bit width metadata register.
func (f *Facade) FixedSize() uint64 { return f.loadU64(offFixedSize) }

// FixedIntegerSize reads the fixed-point integer-part bit width metadata
// register.
func (f *Facade) FixedIntegerSize() uint64 { return f.loadU64(offFixedIntegerSize) }

// LoadCommand writes the command register, settles, and lets the caller
// inspect CommandStatus afterward.
func (f *Facade) LoadCommand(cmd ClusterCommand) { f.storeU64(offCommand, uint64(cmd)) }

// LoadCoreAddress selects the core that subsequent per-core register
// accesses apply to.
func (f *Facade) LoadCoreAddress(core uint64) { f.storeU64(offCoreAddress, core) }

// LoadCoreX writes the selected core's x-coordinate input register.
func (f *Facade) LoadCoreX(x Operand) { f.storeOperand(offCoreX, x) }

// LoadCoreY writes the selected core's y-coordinate input register.
func (f *Facade) LoadCoreY(y Operand) { f.storeOperand(offCoreY, y) }

// LoadCoreIterationsMax writes the selected core's iteration cap register.
func (f *Facade) LoadCoreIterationsMax(max uint64) { f.storeU64(offCoreIterationsMax, max) }

// CommandStatus reads the outcome of the most recently loaded command.
func (f *Facade) CommandStatus() ClusterCommandStatus {
	return ClusterCommandStatus(f.loadU64(offCommandStatus))
}

// CoresBusyFlags snapshots the cluster-wide busy bitmap; bit i set means
// core i is currently running.
func (f *Facade) CoresBusyFlags() FlagWord { return f.loadFlagWord(offCoresBusyFlags) }

// CoresValidFlags snapshots the cluster-wide valid-result bitmap; bit i set
// means core i stopped with a result ready to harvest.
func (f *Facade) CoresValidFlags() FlagWord { return f.loadFlagWord(offCoresValidFlags) }

// CoreResult reads the selected core's result register. Only meaningful
// immediately after a successful LoadResult command.
func (f *Facade) CoreResult() uint64 { return f.loadU64(offCoreResult) }

// Close unmaps the register window and closes the device descriptor.
// Failures are logged and swallowed by the caller per the facade's
// documented teardown contract; Close itself still reports the first error
// encountered so callers MAY log it.
func (f *Facade) Close() error {
	var err error
	if f.mem != nil {
		if uerr := unix.Munmap(f.mem); uerr != nil {
			err = fmt.Errorf("facade: munmap: %w", uerr)
		}
		f.mem = nil
		f.base = nil
	}
	if f.fd >= 0 {
		if cerr := unix.Close(f.fd); cerr != nil && err == nil {
			err = fmt.Errorf("facade: close %s: %w", constants.MemDevicePath, cerr)
		}
		f.fd = -1
	}
	opened.Store(false)
	return err
}
