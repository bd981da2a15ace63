// Package amd64 is the x86-64 concrete Encoder: it turns legalized,
// fully-allocated micro-instructions into machine code and answers the
// capability queries the legalize, regalloc, and prolog/epilog passes
// depend on for this target.
package amd64

import "github.com/swag-lang/swc-sub002/micro"

// Physical general-purpose and XMM register indices, in x86-64 encoding
// order (the same order the REX.B/REX.R/REX.X extension bit picks up bit 3
// of an 0-15 index).
const (
	RAX = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

var (
	RegRAX = micro.MakePhysical(micro.RegClassInt, uint32(RAX))
	RegRCX = micro.MakePhysical(micro.RegClassInt, uint32(RCX))
	RegRDX = micro.MakePhysical(micro.RegClassInt, uint32(RDX))
	RegRBX = micro.MakePhysical(micro.RegClassInt, uint32(RBX))
	RegRSP = micro.MakePhysical(micro.RegClassInt, uint32(RSP))
	RegRBP = micro.MakePhysical(micro.RegClassInt, uint32(RBP))
	RegRSI = micro.MakePhysical(micro.RegClassInt, uint32(RSI))
	RegRDI = micro.MakePhysical(micro.RegClassInt, uint32(RDI))
	RegR8  = micro.MakePhysical(micro.RegClassInt, uint32(R8))
	RegR9  = micro.MakePhysical(micro.RegClassInt, uint32(R9))
	RegR10 = micro.MakePhysical(micro.RegClassInt, uint32(R10))
	RegR11 = micro.MakePhysical(micro.RegClassInt, uint32(R11))
	RegR12 = micro.MakePhysical(micro.RegClassInt, uint32(R12))
	RegR13 = micro.MakePhysical(micro.RegClassInt, uint32(R13))
	RegR14 = micro.MakePhysical(micro.RegClassInt, uint32(R14))
	RegR15 = micro.MakePhysical(micro.RegClassInt, uint32(R15))
)

// IntRegs is every general-purpose register the amd64 target exposes to
// the allocator, in encoding order. microabi conventions partition this
// (and FloatRegs below) into persistent/transient pools; the target itself
// does not pick a calling convention.
var IntRegs = []micro.Reg{
	RegRAX, RegRCX, RegRDX, RegRBX, RegRSI, RegRDI,
	RegR8, RegR9, RegR10, RegR11, RegR12, RegR13, RegR14, RegR15,
}

func floatReg(i int) micro.Reg { return micro.MakePhysical(micro.RegClassFloat, uint32(i)) }

// FloatRegs is all 16 XMM registers.
var FloatRegs = []micro.Reg{
	floatReg(0), floatReg(1), floatReg(2), floatReg(3),
	floatReg(4), floatReg(5), floatReg(6), floatReg(7),
	floatReg(8), floatReg(9), floatReg(10), floatReg(11),
	floatReg(12), floatReg(13), floatReg(14), floatReg(15),
}

// regEnc returns the 4-bit x86-64 register encoding (0-15) for a physical
// Reg, used to split into the 3-bit ModRM/SIB field plus the REX extension
// bit. Panics on a virtual register: by the time the encoder runs,
// register allocation must have resolved every operand to a physical reg.
func regEnc(r micro.Reg) byte {
	if r.IsVirtual() {
		panic("amd64: encoding a virtual register")
	}
	return byte(r.Index())
}

func rexBit(enc byte) byte { return enc >> 3 }
func modrmBits(enc byte) byte { return enc & 0x07 }
