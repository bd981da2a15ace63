package amd64

import (
	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/encoder"
)

func isShift(op micro.MicroOp) bool {
	return op == micro.OpShiftLeft || op == micro.OpShiftRightLogical || op == micro.OpShiftRightArith
}

func isDivide(op micro.MicroOp) bool {
	return op == micro.OpDivideSigned || op == micro.OpDivideUnsigned
}

func shiftCountMask(bits micro.OpBits) uint64 {
	if bits == micro.B64 {
		return 63
	}
	return 31
}

// QueryConformanceIssue reports the first amd64 encoding constraint inst
// violates. Order matters: each case below is checked independently, and
// none of a given instruction's rewrites re-triggers an earlier case for
// the same opcode, which is what keeps MicroLegalizePass's per-instruction
// fixup loop bounded.
func (*Encoder) QueryConformanceIssue(inst *micro.Instr, ops []micro.Operand) (encoder.ConformanceIssue, bool) {
	switch inst.Op {
	case micro.OpLoadRegImm, micro.OpLoadRegPtrImm:
		if ops[0].Reg().Class() == micro.RegClassFloat {
			return encoder.ConformanceIssue{Kind: encoder.RewriteLoadFloatRegImm}, true
		}

	case micro.OpLoadMemImm:
		if ops[1].OpBits() == micro.B64 {
			return encoder.ConformanceIssue{Kind: encoder.SplitLoadMemImm64}, true
		}

	case micro.OpLoadAmcMemImm:
		if ops[4].OpBits() == micro.B64 {
			return encoder.ConformanceIssue{Kind: encoder.SplitLoadAmcMemImm64}, true
		}

	case micro.OpBinaryRegImm:
		bits, op := ops[1].OpBits(), ops[2].MicroOp()
		if isShift(op) {
			limit := shiftCountMask(bits)
			if ops[3].U64() > limit {
				return encoder.ConformanceIssue{Kind: encoder.ClampImmediate, OperandIndex: 3, ValueLimit: limit}, true
			}
		}

	case micro.OpBinaryRegReg:
		op := ops[3].MicroOp()
		dst, src := ops[0].Reg(), ops[1].Reg()
		switch {
		case isShift(op):
			if src != RegRCX {
				return encoder.ConformanceIssue{
					Kind: encoder.RewriteRegRegOperandToFixedReg, OperandIndex: 1,
					RequiredReg: RegRCX, HelperReg: RegRAX,
				}, true
			}
		case isDivide(op):
			if src == RegRDX {
				return encoder.ConformanceIssue{
					Kind: encoder.RewriteRegRegOperandAwayFromFixedReg, OperandIndex: 1,
					ForbiddenReg: RegRDX, ScratchReg: RegR11,
				}, true
			}
			if dst != RegRAX {
				return encoder.ConformanceIssue{
					Kind: encoder.RewriteRegRegOperandToFixedReg, OperandIndex: 0,
					RequiredReg: RegRAX, HelperReg: RegR11,
				}, true
			}
		}

	}

	return encoder.ConformanceIssue{}, false
}

// UpdateRegUseDef adds the implicit register effects CollectUseDef's
// descriptor-driven pass cannot see: DIV/IDIV's RDX:RAX dividend pair has
// only RAX modeled as an explicit operand (see isDivide's conformance
// rewrites), so RDX is added by hand as both a use and a def.
func (*Encoder) UpdateRegUseDef(inst *micro.Instr, ops []micro.Operand, ud *micro.UseDef) {
	if inst.Op == micro.OpBinaryRegReg && isDivide(ops[3].MicroOp()) {
		ud.Defs = append(ud.Defs, RegRDX)
		ud.Uses = append(ud.Uses, RegRDX)
	}
}

// ConformInstruction performs the in-place operand-width canonicalizations
// that don't need any instruction inserted: CMOVcc has no byte-granularity
// form, and a bits-unspecified ALU immediate defaults to 32-bit.
func (*Encoder) ConformInstruction(inst *micro.Instr, ops []micro.Operand) {
	switch inst.Op {
	case micro.OpBinaryRegImm:
		if ops[1].OpBits() == micro.BitsZero {
			ops[1] = micro.OperandOpBits(micro.B32)
		}
	case micro.OpLoadCondRegReg:
		if ops[3].OpBits() == micro.BitsZero || ops[3].OpBits() == micro.B8 {
			ops[3] = micro.OperandOpBits(micro.B64)
		}
	}
}
