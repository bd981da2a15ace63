// Package microabi describes calling conventions: the register pools the
// allocator draws from, which of those are callee-saved, the stack
// pointer, and the alignment required at a call boundary. It is kept
// separate from the encoder so the same amd64 target can be driven by more
// than one ABI shape.
package microabi

import (
	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/encoder/amd64"
)

// CallConv is the read-only ABI descriptor consumed by the register
// allocator and the prolog/epilog pass.
type CallConv struct {
	IntRegs           []micro.Reg
	FloatRegs         []micro.Reg
	IntPersistentRegs []micro.Reg
	FloatPersistentRegs []micro.Reg
	StackPointer      micro.Reg
	StackAlignment    uint64
}

func contains(regs []micro.Reg, r micro.Reg) bool {
	for _, c := range regs {
		if c == r {
			return true
		}
	}
	return false
}

// IsIntPersistentReg reports whether r is a callee-saved integer register
// under this convention.
func (c CallConv) IsIntPersistentReg(r micro.Reg) bool { return contains(c.IntPersistentRegs, r) }

// IsFloatPersistentReg reports whether r is a callee-saved float register
// under this convention.
func (c CallConv) IsFloatPersistentReg(r micro.Reg) bool { return contains(c.FloatPersistentRegs, r) }

// IntTransientRegs returns the integer registers not in IntPersistentRegs.
func (c CallConv) IntTransientRegs() []micro.Reg { return transientOf(c.IntRegs, c.IntPersistentRegs) }

// FloatTransientRegs returns the float registers not in FloatPersistentRegs.
func (c CallConv) FloatTransientRegs() []micro.Reg {
	return transientOf(c.FloatRegs, c.FloatPersistentRegs)
}

func transientOf(all, persistent []micro.Reg) []micro.Reg {
	out := make([]micro.Reg, 0, len(all))
	for _, r := range all {
		if !contains(persistent, r) {
			out = append(out, r)
		}
	}
	return out
}

// SysV is the x86-64 System V ABI: RBX/RBP/R12-R15 are callee-saved
// integers, no XMM register is callee-saved, and the stack must be 16-byte
// aligned at a call.
var SysV = CallConv{
	IntRegs:           amd64.IntRegs,
	FloatRegs:         amd64.FloatRegs,
	IntPersistentRegs: []micro.Reg{amd64.RegRBX, amd64.RegRBP, amd64.RegR12, amd64.RegR13, amd64.RegR14, amd64.RegR15},
	StackPointer:      amd64.RegRSP,
	StackAlignment:    16,
}

// Cdecl32 is a deliberately stack-only toy convention used to exercise the
// allocator and prolog/epilog pass against a shape with no persistent
// registers at all: every integer register is caller-saved, so any value
// live across a call must be spilled rather than parked in a callee-saved
// register.
var Cdecl32 = CallConv{
	IntRegs:        amd64.IntRegs,
	FloatRegs:      amd64.FloatRegs,
	StackPointer:   amd64.RegRSP,
	StackAlignment: 4,
}

// Registry resolves a CallConvKind to its CallConv descriptor.
func Registry(kind micro.CallConvKind) CallConv {
	switch kind {
	case micro.CallConvCdecl32:
		return Cdecl32
	default:
		return SysV
	}
}
