//go:build linux && cgo

package facade

/*
#include <stdint.h>

// x86-64 full memory fence to ensure all prior memory operations are
// complete before any subsequent memory operations.
static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// CompilerBarrier issues a full memory fence (x86 MFENCE instruction) so the
// register accesses of one scheduler pass cannot be reordered across the
// pass boundary with the accesses of the next. Required because the
// register window is outside the cache-coherence domain; ordinary atomic
// orderings are not the right tool here.
func CompilerBarrier() {
	C.mfence_impl()
}
