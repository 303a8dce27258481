// Package facade provides the typed, memory-mapped view of the FPGA
// cluster's register block. It is the exclusive property of the scheduler
// worker: exactly one instance may exist per process, and only the worker's
// dedicated thread may call its methods.
package facade

import "math/big"

// RegWord is the register-native unsigned word: command codes, counts,
// iteration caps, and core addresses are all this width.
type RegWord = uint64

// FlagWord is a 128-bit per-core bitmap, split across two machine words
// because Go has no native 128-bit integer. Bit i corresponds to CoreID i.
type FlagWord struct {
	Lo, Hi uint64
}

// Bit reports whether bit i is set, i in [0, 128).
func (f FlagWord) Bit(i uint) bool {
	if i < 64 {
		return f.Lo&(uint64(1)<<i) != 0
	}
	return f.Hi&(uint64(1)<<(i-64)) != 0
}

// Operand is a 128-bit two's-complement signed value, used for the core_x
// and core_y coordinate registers. math/big is used only at conversion
// boundaries (HTTP hex parsing); the register path never allocates.
type Operand struct {
	Lo, Hi uint64
}

// OperandFromBigInt converts a signed big.Int into its two's-complement
// 128-bit register representation. Values outside [-2^127, 2^127) are
// truncated to their low 128 bits, matching hardware register overflow
// behavior rather than returning an error.
func OperandFromBigInt(v *big.Int) Operand {
	var u big.Int
	if v.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		u.Add(mod, v)
	} else {
		u.Set(v)
	}

	mask64 := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(&u, mask64).Uint64()
	hi := new(big.Int).And(new(big.Int).Rsh(&u, 64), mask64).Uint64()
	return Operand{Lo: lo, Hi: hi}
}

// ToBigInt converts the 128-bit two's-complement register value back to a
// signed big.Int.
func (o Operand) ToBigInt() *big.Int {
	u := new(big.Int).Lsh(new(big.Int).SetUint64(o.Hi), 64)
	u.Or(u, new(big.Int).SetUint64(o.Lo))

	signBit := new(big.Int).Lsh(big.NewInt(1), 127)
	if u.Cmp(signBit) >= 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		u.Sub(u, mod)
	}
	return u
}

// CoreID is a small unsigned integer in [0, cores_count).
type CoreID = uint64

// Register block layout. Declaration order fixes byte offsets; this MUST
// match the FPGA synthesis bit-for-bit. N fields are 8 bytes, F and P
// fields are 16 bytes (two trailing uint64 words), with natural alignment
// and no implementer-inserted padding.
const (
	offCoresCount        = 0
	offFixedSize         = 8
	offFixedIntegerSize  = 16
	offCommand           = 24
	offCommandStatus     = 32
	offCoreAddress       = 40
	offCoresBusyFlags    = 48
	offCoresValidFlags   = 64
	offCoreResult        = 80
	offCoreBusy          = 88
	offCoreValid         = 96
	offCoreIterationsMax = 104
	offCoreX             = 112
	offCoreY             = 128

	// blockSize is the total mapped register window size in bytes.
	blockSize = 144
)
