package pass

import (
	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/encoder"
	"github.com/swag-lang/swc-sub002/microerr"
)

const (
	floatStackScratch = 8
	regStackSlotSize  = 8
	legalizeStackAlign = 16
)

// isLocalDataflowBarrier reports whether inst ends the straight-line region
// a forward liveness scan can safely walk through: a label (a jump target
// may enter here from elsewhere), any call (control leaves and returns,
// clobbering per its convention rather than per the scanned stream), or any
// jump (control may not fall through to the next instruction at all).
// mustPreserveRegAfterInstruction stops at the first barrier and
// conservatively assumes the register must be preserved past it.
func isLocalDataflowBarrier(inst *micro.Instr) bool {
	switch inst.Op {
	case micro.OpLabel, micro.OpCallLocal, micro.OpCallExtern, micro.OpCallIndirect,
		micro.OpJumpCond, micro.OpJumpCondImm, micro.OpJumpReg, micro.OpJumpTable, micro.OpRet:
		return true
	default:
		return false
	}
}

func containsReg(regs []micro.Reg, r micro.Reg) bool {
	for _, v := range regs {
		if v == r {
			return true
		}
	}
	return false
}

// mustPreserveRegAfterInstruction scans forward from instRef (exclusive)
// and reports whether reg's current value is still needed: true if a later
// instruction uses it before any instruction redefines it, or if a
// dataflow barrier is reached before either; false if a redefinition comes
// first or the stream ends without a use or a barrier.
func mustPreserveRegAfterInstruction(ctx *Context, instRef micro.InstrRef, reg micro.Reg) bool {
	if !reg.Valid() {
		return false
	}

	it := ctx.Instructions.View()
	for it.Valid() && it.Ref() != instRef {
		it = it.Next()
	}
	if !it.Valid() {
		return true
	}
	it = it.Next()

	for it.Valid() {
		inst := it.Instr()
		if isLocalDataflowBarrier(inst) {
			return true
		}
		ud := micro.CollectUseDef(inst, ctx.Builder.Ops(inst))
		ctx.Encoder.UpdateRegUseDef(inst, ctx.Builder.Ops(inst), &ud)
		if containsReg(ud.Uses, reg) {
			return true
		}
		if containsReg(ud.Defs, reg) {
			return false
		}
		it = it.Next()
	}
	return false
}

// requiredScratchForIssue returns the scratch-stack bytes apply would need
// for issue, used during the sizing pre-scan to compute one frame big
// enough for every rewrite the stream will need.
func requiredScratchForIssue(ctx *Context, instRef micro.InstrRef, ops []micro.Operand, issue encoder.ConformanceIssue) uint64 {
	switch issue.Kind {
	case encoder.RewriteLoadFloatRegImm:
		return floatStackScratch

	case encoder.RewriteRegRegOperandAwayFromFixedReg:
		if mustPreserveRegAfterInstruction(ctx, instRef, issue.ScratchReg) {
			return regStackSlotSize
		}
		return 0

	case encoder.RewriteRegRegOperandToFixedReg:
		operandIsDst := issue.OperandIndex == 0
		var conflict bool
		if operandIsDst {
			conflict = ops[1].Reg() == issue.RequiredReg
		} else {
			conflict = ops[0].Reg() == issue.RequiredReg
		}
		var required uint64
		if mustPreserveRegAfterInstruction(ctx, instRef, issue.RequiredReg) {
			required += regStackSlotSize
		}
		if conflict {
			required += regStackSlotSize
		}
		return required

	default:
		return 0
	}
}

func insertScratchFrame(ctx *Context, frameSize uint64) {
	if frameSize == 0 {
		return
	}
	first := ctx.Instructions.View()
	if !first.Valid() {
		return
	}
	stackPointerReg := ctx.Encoder.StackPointerReg()

	_, subOps := ctx.Builder.InsertBefore(first.Ref(), micro.OpBinaryRegImm, 4)
	subOps[0] = micro.OperandReg(stackPointerReg)
	subOps[1] = micro.OperandOpBits(micro.B64)
	subOps[2] = micro.OperandMicroOp(micro.OpSubtract)
	subOps[3] = micro.OperandU64(frameSize)

	var retRefs []micro.InstrRef
	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		if it.Instr().Op == micro.OpRet {
			retRefs = append(retRefs, it.Ref())
		}
	}
	for _, retRef := range retRefs {
		_, addOps := ctx.Builder.InsertBefore(retRef, micro.OpBinaryRegImm, 4)
		addOps[0] = micro.OperandReg(stackPointerReg)
		addOps[1] = micro.OperandOpBits(micro.B64)
		addOps[2] = micro.OperandMicroOp(micro.OpAdd)
		addOps[3] = micro.OperandU64(frameSize)
	}
}

func applyClampImmediate(ops []micro.Operand, issue encoder.ConformanceIssue) {
	v := ops[issue.OperandIndex].U64()
	if v > issue.ValueLimit {
		v = issue.ValueLimit
	}
	ops[issue.OperandIndex] = micro.OperandU64(v)
}

func applySplitLoadMemImm64(ctx *Context, instRef micro.InstrRef, ops []micro.Operand) {
	memReg := ops[0].Reg()
	memOffset := ops[2].U64()
	value := ops[3].U64()
	lowU32 := uint32(value)
	highU32 := uint32(value >> 32)

	_, lowOps := ctx.Builder.InsertBefore(instRef, micro.OpLoadMemImm, 4)
	lowOps[0] = micro.OperandReg(memReg)
	lowOps[1] = micro.OperandOpBits(micro.B32)
	lowOps[2] = micro.OperandU64(memOffset)
	lowOps[3] = micro.OperandU64(uint64(lowU32))

	_, highOps := ctx.Builder.InsertBefore(instRef, micro.OpLoadMemImm, 4)
	highOps[0] = micro.OperandReg(memReg)
	highOps[1] = micro.OperandOpBits(micro.B32)
	highOps[2] = micro.OperandU64(memOffset + 4)
	highOps[3] = micro.OperandU64(uint64(highU32))

	ctx.Instructions.Erase(instRef)
}

func applySplitLoadAmcMemImm64(ctx *Context, instRef micro.InstrRef, ops []micro.Operand) {
	regBase := ops[0].Reg()
	regMul := ops[1].Reg()
	opBitsBaseMul := ops[3].OpBits()
	mulValue := ops[5].U64()
	addValue := ops[6].U64()
	value := ops[7].U64()
	lowU32 := uint32(value)
	highU32 := uint32(value >> 32)

	_, lowOps := ctx.Builder.InsertBefore(instRef, micro.OpLoadAmcMemImm, 8)
	lowOps[0] = micro.OperandReg(regBase)
	lowOps[1] = micro.OperandReg(regMul)
	lowOps[3] = micro.OperandOpBits(opBitsBaseMul)
	lowOps[4] = micro.OperandOpBits(micro.B32)
	lowOps[5] = micro.OperandU64(mulValue)
	lowOps[6] = micro.OperandU64(addValue)
	lowOps[7] = micro.OperandU64(uint64(lowU32))

	_, highOps := ctx.Builder.InsertBefore(instRef, micro.OpLoadAmcMemImm, 8)
	highOps[0] = micro.OperandReg(regBase)
	highOps[1] = micro.OperandReg(regMul)
	highOps[3] = micro.OperandOpBits(opBitsBaseMul)
	highOps[4] = micro.OperandOpBits(micro.B32)
	highOps[5] = micro.OperandU64(mulValue)
	highOps[6] = micro.OperandU64(addValue + 4)
	highOps[7] = micro.OperandU64(uint64(highU32))

	ctx.Instructions.Erase(instRef)
}

// applyRewriteLoadFloatRegImm routes a float-class immediate load through a
// scratch stack slot: no amd64 instruction materializes a float immediate
// directly into an XMM register, so the value is stored as an integer
// pattern at rsp+stackScratchBaseOffset and reloaded with a float-width
// load.
func applyRewriteLoadFloatRegImm(ctx *Context, instRef micro.InstrRef, ops []micro.Operand, stackScratchBaseOffset uint64) {
	dstReg := ops[0].Reg()
	opBits := ops[1].OpBits()
	immValue := ops[2].U64()
	rspReg := ctx.Encoder.StackPointerReg()
	if opBits != micro.B32 && opBits != micro.B64 {
		opBits = micro.B64
	}

	_, storeOps := ctx.Builder.InsertBefore(instRef, micro.OpLoadMemImm, 4)
	storeOps[0] = micro.OperandReg(rspReg)
	storeOps[1] = micro.OperandOpBits(opBits)
	storeOps[2] = micro.OperandU64(stackScratchBaseOffset)
	storeOps[3] = micro.OperandU64(immValue)

	_, loadOps := ctx.Builder.InsertBefore(instRef, micro.OpLoadRegMem, 4)
	loadOps[0] = micro.OperandReg(dstReg)
	loadOps[1] = micro.OperandReg(rspReg)
	loadOps[2] = micro.OperandOpBits(opBits)
	loadOps[3] = micro.OperandU64(stackScratchBaseOffset)

	ctx.Instructions.Erase(instRef)
}

func insertStoreRegToStack(ctx *Context, instRef micro.InstrRef, stackPointerReg micro.Reg, offset uint64, reg micro.Reg) {
	_, ops := ctx.Builder.InsertBefore(instRef, micro.OpLoadMemReg, 4)
	ops[0] = micro.OperandReg(stackPointerReg)
	ops[1] = micro.OperandReg(reg)
	ops[2] = micro.OperandOpBits(micro.B64)
	ops[3] = micro.OperandU64(offset)
}

func insertLoadRegFromStack(ctx *Context, instRef micro.InstrRef, reg, stackPointerReg micro.Reg, offset uint64) {
	_, ops := ctx.Builder.InsertBefore(instRef, micro.OpLoadRegMem, 4)
	ops[0] = micro.OperandReg(reg)
	ops[1] = micro.OperandReg(stackPointerReg)
	ops[2] = micro.OperandOpBits(micro.B64)
	ops[3] = micro.OperandU64(offset)
}

func insertMoveRegReg(ctx *Context, instRef micro.InstrRef, dstReg, srcReg micro.Reg, bits micro.OpBits) {
	_, ops := ctx.Builder.InsertBefore(instRef, micro.OpLoadRegReg, 3)
	ops[0] = micro.OperandReg(dstReg)
	ops[1] = micro.OperandReg(srcReg)
	ops[2] = micro.OperandOpBits(bits)
}

func insertBinaryRegReg(ctx *Context, instRef micro.InstrRef, dstReg, srcReg micro.Reg, op micro.MicroOp, bits micro.OpBits) {
	_, ops := ctx.Builder.InsertBefore(instRef, micro.OpBinaryRegReg, 4)
	ops[0] = micro.OperandReg(dstReg)
	ops[1] = micro.OperandReg(srcReg)
	ops[2] = micro.OperandOpBits(bits)
	ops[3] = micro.OperandMicroOp(op)
}

func applyRewriteRegRegOperandToFixedReg(ctx *Context, instRef micro.InstrRef, ops []micro.Operand, issue encoder.ConformanceIssue, stackScratchBaseOffset uint64) {
	originalDstReg := ops[0].Reg()
	originalSrcReg := ops[1].Reg()
	opBits := ops[2].OpBits()
	op := ops[3].MicroOp()
	requiredReg := issue.RequiredReg
	helperReg := issue.HelperReg

	stackPointerReg := ctx.Encoder.StackPointerReg()
	operandIsDst := issue.OperandIndex == 0
	var conflict bool
	if operandIsDst {
		conflict = originalSrcReg == requiredReg
	} else {
		conflict = originalDstReg == requiredReg
	}

	mustPreserveRequiredReg := mustPreserveRegAfterInstruction(ctx, instRef, requiredReg)
	helperStackOffset := stackScratchBaseOffset
	if mustPreserveRequiredReg {
		insertStoreRegToStack(ctx, instRef, stackPointerReg, stackScratchBaseOffset, requiredReg)
		helperStackOffset += regStackSlotSize
	}

	if conflict {
		insertStoreRegToStack(ctx, instRef, stackPointerReg, helperStackOffset, helperReg)
		insertMoveRegReg(ctx, instRef, helperReg, requiredReg, micro.B64)
	}

	if operandIsDst {
		insertMoveRegReg(ctx, instRef, requiredReg, originalDstReg, micro.B64)
	} else {
		insertMoveRegReg(ctx, instRef, requiredReg, originalSrcReg, micro.B64)
	}

	rewrittenDstReg, rewrittenSrcReg := originalDstReg, originalSrcReg
	if operandIsDst {
		rewrittenDstReg = requiredReg
	} else {
		rewrittenSrcReg = requiredReg
	}
	if conflict {
		if operandIsDst {
			rewrittenSrcReg = helperReg
		} else {
			rewrittenDstReg = helperReg
		}
	}

	insertBinaryRegReg(ctx, instRef, rewrittenDstReg, rewrittenSrcReg, op, opBits)
	if rewrittenDstReg != originalDstReg {
		insertMoveRegReg(ctx, instRef, originalDstReg, rewrittenDstReg, opBits)
	}

	if mustPreserveRequiredReg && requiredReg != originalDstReg {
		insertLoadRegFromStack(ctx, instRef, requiredReg, stackPointerReg, stackScratchBaseOffset)
	}
	if conflict && helperReg != originalDstReg {
		insertLoadRegFromStack(ctx, instRef, helperReg, stackPointerReg, helperStackOffset)
	}
	ctx.Instructions.Erase(instRef)
}

func applyRewriteRegRegOperandAwayFromFixedReg(ctx *Context, instRef micro.InstrRef, ops []micro.Operand, issue encoder.ConformanceIssue, stackScratchBaseOffset uint64) {
	originalDstReg := ops[0].Reg()
	originalSrcReg := ops[1].Reg()
	opBits := ops[2].OpBits()
	op := ops[3].MicroOp()
	scratchReg := issue.ScratchReg

	stackPointerReg := ctx.Encoder.StackPointerReg()
	mustPreserveScratchReg := mustPreserveRegAfterInstruction(ctx, instRef, scratchReg)

	if mustPreserveScratchReg {
		insertStoreRegToStack(ctx, instRef, stackPointerReg, stackScratchBaseOffset, scratchReg)
	}
	if issue.OperandIndex == 0 {
		insertMoveRegReg(ctx, instRef, scratchReg, originalDstReg, micro.B64)
	} else {
		insertMoveRegReg(ctx, instRef, scratchReg, originalSrcReg, micro.B64)
	}

	rewrittenDstReg, rewrittenSrcReg := originalDstReg, originalSrcReg
	if issue.OperandIndex == 0 {
		rewrittenDstReg = scratchReg
	} else {
		rewrittenSrcReg = scratchReg
	}

	insertBinaryRegReg(ctx, instRef, rewrittenDstReg, rewrittenSrcReg, op, opBits)
	if rewrittenDstReg != originalDstReg {
		insertMoveRegReg(ctx, instRef, originalDstReg, rewrittenDstReg, opBits)
	}

	if mustPreserveScratchReg && scratchReg != originalDstReg {
		insertLoadRegFromStack(ctx, instRef, scratchReg, stackPointerReg, stackScratchBaseOffset)
	}
	ctx.Instructions.Erase(instRef)
}

func applyLegalizeIssue(ctx *Context, instRef micro.InstrRef, ops []micro.Operand, issue encoder.ConformanceIssue, stackScratchBaseOffset uint64) {
	switch issue.Kind {
	case encoder.ClampImmediate:
		applyClampImmediate(ops, issue)
	case encoder.SplitLoadMemImm64:
		applySplitLoadMemImm64(ctx, instRef, ops)
	case encoder.SplitLoadAmcMemImm64:
		applySplitLoadAmcMemImm64(ctx, instRef, ops)
	case encoder.RewriteLoadFloatRegImm:
		applyRewriteLoadFloatRegImm(ctx, instRef, ops, stackScratchBaseOffset)
	case encoder.RewriteRegRegOperandToFixedReg:
		applyRewriteRegRegOperandToFixedReg(ctx, instRef, ops, issue, stackScratchBaseOffset)
	case encoder.RewriteRegRegOperandAwayFromFixedReg:
		applyRewriteRegRegOperandAwayFromFixedReg(ctx, instRef, ops, issue, stackScratchBaseOffset)
	default:
		ctx.FailAt(microerr.ProgrammingError, instRef, "unhandled legalize issue kind %v", issue.Kind)
	}
}

// Legalize rewrites non-encodable instruction forms into ones the target
// encoder accepts, in two phases: first a non-mutating scan computes the
// single scratch-stack frame every rewrite in the stream will need and
// inserts it once; then a second pass applies, per instruction, one
// rewrite at a time until the encoder reports no remaining issue. Every
// apply call after the frame is sized passes stackScratchBaseOffset 0: the
// frame is reused across instructions, never fought over, because at most
// one instruction is mid-rewrite at a time and its temporaries don't
// survive past it.
type Legalize struct{}

func (Legalize) Kind() Kind { return KindLegalize }

func (Legalize) Run(ctx *Context) bool {
	var stackScratchFrameSize uint64
	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		ops := ctx.Builder.Ops(inst)
		ctx.Encoder.ConformInstruction(inst, ops)
		issue, ok := ctx.Encoder.QueryConformanceIssue(inst, ops)
		if !ok {
			continue
		}
		if need := requiredScratchForIssue(ctx, it.Ref(), ops, issue); need > stackScratchFrameSize {
			stackScratchFrameSize = need
		}
	}

	if stackScratchFrameSize > 0 {
		stackScratchFrameSize = alignUp(stackScratchFrameSize, legalizeStackAlign)
		insertScratchFrame(ctx, stackScratchFrameSize)
	}

	const defaultIterationLimit = 16
	limit := ctx.OptimizationIterationLimit
	if limit == 0 {
		limit = defaultIterationLimit
	}

	changed := false
	it := ctx.Instructions.View()
	for it.Valid() {
		instRef := it.Ref()
		it = it.Next()

		inst := ctx.Instructions.Ptr(instRef)
		if inst == nil {
			continue
		}
		ops := ctx.Builder.Ops(inst)
		ctx.Encoder.ConformInstruction(inst, ops)
		issue, ok := ctx.Encoder.QueryConformanceIssue(inst, ops)
		if !ok {
			continue
		}

		for iteration := uint32(0); ; iteration++ {
			if iteration == limit {
				ctx.FailAt(microerr.LegalizationImpossible, instRef, "%v still reported after %d rewrites", issue.Kind, limit)
			}
			changed = true
			applyLegalizeIssue(ctx, instRef, ops, issue, 0)

			currentInst := ctx.Instructions.Ptr(instRef)
			if currentInst == nil {
				break
			}
			currentOps := ctx.Builder.Ops(currentInst)
			issue, ok = ctx.Encoder.QueryConformanceIssue(currentInst, currentOps)
			if !ok {
				break
			}
		}
	}

	return changed
}
