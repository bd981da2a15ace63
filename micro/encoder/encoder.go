// Package encoder defines the capability contract a target ISA must
// satisfy for the legalize and emit passes to run against it. The core
// never special-cases a target by name; every target-dependent decision
// goes through this interface.
package encoder

import "github.com/swag-lang/swc-sub002/micro"

// IssueKind enumerates the ways an instruction can fail to be directly
// encodable, each paired with one rewrite strategy in the legalize pass.
type IssueKind uint8

const (
	// ClampImmediate saturates the out-of-range immediate operand at
	// OperandIndex down to ValueLimit.
	ClampImmediate IssueKind = iota
	// SplitLoadMemImm64 breaks a 64-bit immediate memory store into two
	// 32-bit stores at offset and offset+4.
	SplitLoadMemImm64
	// SplitLoadAmcMemImm64 is SplitLoadMemImm64 for the AMC-addressed
	// memory-store shape.
	SplitLoadAmcMemImm64
	// RewriteLoadFloatRegImm routes a float-class immediate load through a
	// stack scratch slot, since no ISA this core targets can materialize a
	// float immediate directly into a register.
	RewriteLoadFloatRegImm
	// RewriteRegRegOperandToFixedReg forces OperandIndex's register onto
	// RequiredReg (e.g. a variable shift count must sit in CL on amd64),
	// saving/restoring through HelperReg if the other operand already
	// holds RequiredReg.
	RewriteRegRegOperandToFixedReg
	// RewriteRegRegOperandAwayFromFixedReg moves OperandIndex's register
	// off ForbiddenReg into ScratchReg because the instruction's other
	// fixed operand already claims ForbiddenReg.
	RewriteRegRegOperandAwayFromFixedReg
)

func (k IssueKind) String() string {
	switch k {
	case ClampImmediate:
		return "clamp_immediate"
	case SplitLoadMemImm64:
		return "split_load_mem_imm64"
	case SplitLoadAmcMemImm64:
		return "split_load_amc_mem_imm64"
	case RewriteLoadFloatRegImm:
		return "rewrite_load_float_reg_imm"
	case RewriteRegRegOperandToFixedReg:
		return "rewrite_reg_reg_operand_to_fixed_reg"
	case RewriteRegRegOperandAwayFromFixedReg:
		return "rewrite_reg_reg_operand_away_from_fixed_reg"
	default:
		return "issue?"
	}
}

// ConformanceIssue is the single non-encodable-form report an Encoder
// emits for one instruction. Only the fields relevant to Kind are
// meaningful; the legalize pass never reads a field Kind doesn't document.
type ConformanceIssue struct {
	Kind         IssueKind
	OperandIndex int
	ValueLimit   uint64
	RequiredReg  micro.Reg
	HelperReg    micro.Reg
	ForbiddenReg micro.Reg
	ScratchReg   micro.Reg
}

// EncodedInstr is the byte-level result of encoding one instruction: its
// machine code plus, if it produced one, the relocation the emitter should
// record against it.
type EncodedInstr struct {
	Bytes      []byte
	Relocation *micro.Relocation
}

// Encoder is the target-specific capability surface the legalize and emit
// passes are written against. A concrete ISA backend (amd64 today) supplies
// one value satisfying this interface; nothing else in the core depends on
// target internals.
type Encoder interface {
	// StackPointerReg returns the physical register used as the stack
	// pointer for this target (RSP on amd64), consulted by the legalize
	// pass's scratch-frame insertion. The prolog/epilog pass and the
	// register allocator take the stack pointer from microabi.CallConv.
	StackPointerReg() micro.Reg

	// StackAlignment is the target's required stack-pointer alignment. The
	// legalize pass does not call it: it rounds its scratch frame to its
	// own fixed 16-byte alignment. The ABI-level
	// call-boundary alignment (which can differ per calling convention)
	// comes from microabi.CallConv instead.
	StackAlignment() uint64

	// QueryConformanceIssue reports, at most, one reason inst cannot be
	// encoded as-is. A false return means inst is directly encodable.
	// Queried repeatedly by the legalize pass until it returns false,
	// since one rewrite can reveal (or introduce) another issue — the
	// pass relies on this reaching false in bounded steps (see
	// micro/pass.Legalize's iteration-cap guard).
	QueryConformanceIssue(inst *micro.Instr, ops []micro.Operand) (ConformanceIssue, bool)

	// Encode turns one fully-legalized, fully-allocated instruction into
	// machine code. codeOffset is the byte offset this instruction will
	// land at in the final buffer, needed to compute PC-relative
	// relocations inline rather than in a second patch phase.
	Encode(inst *micro.Instr, ops []micro.Operand, codeOffset int) (EncodedInstr, error)

	// EncodeJump emits a conditional or unconditional jump whose target is
	// a label rather than a resolved address. labelOffset is -1 if the
	// label has not been placed yet; the emitter calls EncodeJump once to
	// reserve the instruction's size and again (via PatchJump) once the
	// label position is known.
	EncodeJump(cond micro.Cond, bits micro.OpBits, codeOffset, labelOffset int) (EncodedInstr, error)

	// JumpSize returns the byte length EncodeJump produces for the given
	// shape, used by the emitter to size a reserved-but-unresolved jump
	// before the label placing it is reached.
	JumpSize(cond micro.Cond) int

	// PatchJump rewrites the relative-displacement bytes of an
	// already-emitted jump in place, once its label's final offset is
	// known. Returns the bytes to overwrite at jumpCodeOffset.
	PatchJump(cond micro.Cond, jumpCodeOffset, targetOffset int) []byte

	// UpdateRegUseDef adds target-specific implicit register uses/defs a
	// descriptor-driven CollectUseDef has no way to infer on its own (e.g.
	// amd64's DIV/IDIV clobbering RDX even though the micro-IR models the
	// instruction with only a dst/src operand pair). Called by the register
	// allocator and by the legalize pass's preserved-register scan, right
	// after each CollectUseDef call.
	UpdateRegUseDef(inst *micro.Instr, ops []micro.Operand, ud *micro.UseDef)

	// ConformInstruction performs in-place, non-structural canonicalization
	// an instruction needs before QueryConformanceIssue/Encode see it (no
	// instruction insertion, just operand-slot rewrites). Called by the
	// legalize pass on each instruction right before it queries
	// QueryConformanceIssue, in both its sizing scan and its rewrite pass.
	ConformInstruction(inst *micro.Instr, ops []micro.Operand)
}
