//go:build !(linux && cgo)

package facade

// CompilerBarrier is a no-op outside linux+cgo builds (e.g. cross-compiling
// or CGO_ENABLED=0). The scheduler still runs; it simply loses the explicit
// fence, relying on the atomic loads/stores already used for every register
// access.
func CompilerBarrier() {}
