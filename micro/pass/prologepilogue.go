package pass

import (
	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/microabi"
)

// savedRegSlot is a callee-saved float register's stack-slot assignment.
type savedRegSlot struct {
	reg    micro.Reg
	offset uint64
}

// PrologEpilog inserts ABI-mandated save/restore code around the function
// body: used callee-saved integer registers are push/pop'd, used
// callee-saved float registers are stored to/loaded from stack slots (amd64
// has no push/pop form for XMM), and the slot area is reserved with a
// single sub/add bracketing the body. It is a no-op unless
// Context.PreservePersistentRegs is set, mirroring the original's
// caller-controlled opt-in.
type PrologEpilog struct {
	pushedRegs     []micro.Reg
	savedRegSlots  []savedRegSlot
	stackSubSize   uint64
}

func (*PrologEpilog) Kind() Kind { return KindPrologEpilog }

func (p *PrologEpilog) containsPushedReg(reg micro.Reg) bool {
	for _, r := range p.pushedRegs {
		if r == reg {
			return true
		}
	}
	return false
}

func (p *PrologEpilog) containsSavedSlot(reg micro.Reg) bool {
	for _, s := range p.savedRegSlots {
		if s.reg == reg {
			return true
		}
	}
	return false
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

func (p *PrologEpilog) buildPlan(ctx *Context, conv microabi.CallConv) {
	p.pushedRegs = p.pushedRegs[:0]
	p.savedRegSlots = p.savedRegSlots[:0]
	p.stackSubSize = 0

	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		ops := ctx.Builder.Ops(inst)
		for _, ref := range micro.CollectRegOperands(inst, ops) {
			reg := ref.Reg()
			if !reg.Valid() || reg.IsNoBase() || reg.IsVirtual() {
				continue
			}
			switch reg.Class() {
			case micro.RegClassInt:
				if conv.IsIntPersistentReg(reg) && !p.containsPushedReg(reg) {
					p.pushedRegs = append(p.pushedRegs, reg)
				}
			case micro.RegClassFloat:
				if conv.IsFloatPersistentReg(reg) && !p.containsSavedSlot(reg) {
					p.savedRegSlots = append(p.savedRegSlots, savedRegSlot{reg: reg})
				}
			}
		}
	}

	if len(p.pushedRegs) == 0 && len(p.savedRegSlots) == 0 {
		return
	}

	var frameOffset uint64
	for i := range p.savedRegSlots {
		const slotSize = 16 // XMM slot width regardless of the value's logical width
		frameOffset = alignUp(frameOffset, slotSize)
		p.savedRegSlots[i].offset = frameOffset
		frameOffset += slotSize
	}

	pushedRegsSize := uint64(len(p.pushedRegs)) * 8
	align := conv.StackAlignment
	if align == 0 {
		align = 16
	}
	total := alignUp(pushedRegsSize+frameOffset, align)
	if total > pushedRegsSize {
		p.stackSubSize = total - pushedRegsSize
	}
}

func (p *PrologEpilog) insertPrologue(ctx *Context, conv microabi.CallConv, before micro.InstrRef) {
	for _, reg := range p.pushedRegs {
		_, ops := ctx.Builder.InsertBefore(before, micro.OpPush, 1)
		ops[0] = micro.OperandReg(reg)
	}
	if p.stackSubSize > 0 {
		_, ops := ctx.Builder.InsertBefore(before, micro.OpBinaryRegImm, 4)
		ops[0] = micro.OperandReg(conv.StackPointer)
		ops[1] = micro.OperandOpBits(micro.B64)
		ops[2] = micro.OperandMicroOp(micro.OpSubtract)
		ops[3] = micro.OperandU64(p.stackSubSize)
	}
	for _, slot := range p.savedRegSlots {
		_, ops := ctx.Builder.InsertBefore(before, micro.OpLoadMemReg, 4)
		ops[0] = micro.OperandReg(conv.StackPointer)
		ops[1] = micro.OperandReg(slot.reg)
		ops[2] = micro.OperandOpBits(micro.B128)
		ops[3] = micro.OperandU64(slot.offset)
	}
}

func (p *PrologEpilog) insertEpilogue(ctx *Context, conv microabi.CallConv, before micro.InstrRef) {
	for _, slot := range p.savedRegSlots {
		_, ops := ctx.Builder.InsertBefore(before, micro.OpLoadRegMem, 4)
		ops[0] = micro.OperandReg(slot.reg)
		ops[1] = micro.OperandReg(conv.StackPointer)
		ops[2] = micro.OperandOpBits(micro.B128)
		ops[3] = micro.OperandU64(slot.offset)
	}
	if p.stackSubSize > 0 {
		_, ops := ctx.Builder.InsertBefore(before, micro.OpBinaryRegImm, 4)
		ops[0] = micro.OperandReg(conv.StackPointer)
		ops[1] = micro.OperandOpBits(micro.B64)
		ops[2] = micro.OperandMicroOp(micro.OpAdd)
		ops[3] = micro.OperandU64(p.stackSubSize)
	}
	for i := len(p.pushedRegs) - 1; i >= 0; i-- {
		_, ops := ctx.Builder.InsertBefore(before, micro.OpPop, 1)
		ops[0] = micro.OperandReg(p.pushedRegs[i])
	}
}

func (p *PrologEpilog) Run(ctx *Context) bool {
	if !ctx.PreservePersistentRegs {
		p.pushedRegs = nil
		p.savedRegSlots = nil
		p.stackSubSize = 0
		return false
	}

	conv := ctx.CallConv()
	p.buildPlan(ctx, conv)
	if len(p.pushedRegs) == 0 && p.stackSubSize == 0 {
		return false
	}

	first := micro.InstrRefInvalid
	var retRefs []micro.InstrRef
	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		if first == micro.InstrRefInvalid {
			first = it.Ref()
		}
		if it.Instr().Op == micro.OpRet {
			retRefs = append(retRefs, it.Ref())
		}
	}

	if first == micro.InstrRefInvalid {
		return false
	}
	p.insertPrologue(ctx, conv, first)
	for _, ret := range retRefs {
		p.insertEpilogue(ctx, conv, ret)
	}
	return true
}
