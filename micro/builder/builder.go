// Package builder is the only supported way to construct a function's
// micro-instruction stream. Every emit* method appends one instruction to
// the owning Store/OperandStore pair and fills its operand slots in the
// exact order the opcode's descriptor (see micro.DescriptorOf) expects.
package builder

import (
	"github.com/swag-lang/swc-sub002/micro"
)

// DebugInfo is the builder-scoped source location attached to the
// instruction currently being emitted, when debug info is enabled.
type DebugInfo struct {
	File   micro.NameRef
	Line   uint32
	Column uint32
}

func (d DebugInfo) hasData() bool { return d.File != micro.NameRefInvalid }

// Builder accumulates one function's worth of micro-instructions. It owns
// the instruction/operand storage, the label table, the relocation list
// collected during emission, and any register-allocation hints recorded
// ahead of the regalloc pass.
type Builder struct {
	instructions *micro.Store
	operands     *micro.OperandStore

	debugEnabled bool
	currentDebug DebugInfo
	debugInfos   map[micro.InstrRef]DebugInfo

	labels []micro.InstrRef

	relocations []micro.Relocation

	forbidden map[uint32][]micro.Reg
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{
		instructions: micro.NewStore(),
		operands:     micro.NewOperandStore(),
		debugInfos:   make(map[micro.InstrRef]DebugInfo),
		forbidden:    make(map[uint32][]micro.Reg),
	}
}

// Instructions returns the backing instruction store.
func (b *Builder) Instructions() *micro.Store { return b.instructions }

// Operands returns the backing operand store.
func (b *Builder) Operands() *micro.OperandStore { return b.operands }

// SetDebugEnabled toggles whether emit* calls record CurrentDebugInfo
// against each new instruction.
func (b *Builder) SetDebugEnabled(v bool) { b.debugEnabled = v }

// SetCurrentDebugInfo sets the source location newly emitted instructions
// are tagged with until the next call.
func (b *Builder) SetCurrentDebugInfo(d DebugInfo) { b.currentDebug = d }

// DebugInfoFor returns the recorded debug info for ref, or false if none
// was recorded (debug info disabled, or ref predates any SetCurrentDebugInfo
// call with data).
func (b *Builder) DebugInfoFor(ref micro.InstrRef) (DebugInfo, bool) {
	d, ok := b.debugInfos[ref]
	return d, ok
}

// ClearRelocations empties the relocation list. No pass in this module
// calls it.
func (b *Builder) ClearRelocations() { b.relocations = b.relocations[:0] }

// AddRelocation records a patch request produced during emission.
func (b *Builder) AddRelocation(r micro.Relocation) { b.relocations = append(b.relocations, r) }

// Relocations returns the relocation list accumulated so far.
func (b *Builder) Relocations() []micro.Relocation { return b.relocations }

// AddVirtualRegForbiddenPhysReg records that virtual must never be
// allocated to forbidden. The list is readable through IsForbidden;
// micro/regalloc.Allocate does not consult it when picking a register.
func (b *Builder) AddVirtualRegForbiddenPhysReg(virtual, forbidden micro.Reg) {
	key := uint32(virtual)
	b.forbidden[key] = append(b.forbidden[key], forbidden)
}

// IsForbidden reports whether phys is on virtual's forbidden list.
func (b *Builder) IsForbidden(virtual, phys micro.Reg) bool {
	for _, r := range b.forbidden[uint32(virtual)] {
		if r == phys {
			return true
		}
	}
	return false
}

func (b *Builder) addInstr(op micro.Opcode, numOperands int) (micro.InstrRef, []micro.Operand) {
	ref, inst := b.instructions.EmplaceUninit()
	inst.Op = op
	inst.NumOperands = uint8(numOperands)
	if numOperands > 0 {
		opsRef, ops := b.operands.EmplaceUninitArray(numOperands)
		inst.Ops = opsRef
		if b.debugEnabled && b.currentDebug.hasData() {
			b.debugInfos[ref] = b.currentDebug
		}
		return ref, ops
	}
	inst.Ops = micro.OpsRefInvalid
	if b.debugEnabled && b.currentDebug.hasData() {
		b.debugInfos[ref] = b.currentDebug
	}
	return ref, nil
}

// InsertBefore splices a new instruction immediately before beforeRef and
// returns its reference plus the operand slice to fill. Used by passes that
// insert code into an already-built stream (prolog/epilog saves, legalize
// rewrites, spill code) rather than appending at the current tail.
func (b *Builder) InsertBefore(beforeRef micro.InstrRef, op micro.Opcode, numOperands int) (micro.InstrRef, []micro.Operand) {
	opsRef := micro.OpsRefInvalid
	var ops []micro.Operand
	if numOperands > 0 {
		opsRef, ops = b.operands.EmplaceUninitArray(numOperands)
	}
	ref := b.instructions.InsertBefore(beforeRef, op, opsRef, uint8(numOperands))
	return ref, ops
}

// EmitRaw appends an instruction directly from a pre-built operand slice,
// bypassing the per-opcode Emit* helpers. Used by tooling (micro/textfmt)
// that constructs instructions from a generic, descriptor-driven text form
// rather than from Go call sites that know each opcode's operand shape.
func (b *Builder) EmitRaw(op micro.Opcode, operands []micro.Operand) micro.InstrRef {
	ref, ops := b.addInstr(op, len(operands))
	copy(ops, operands)
	return ref
}

// Ops returns the operand slice belonging to a live instruction.
func (b *Builder) Ops(inst *micro.Instr) []micro.Operand {
	if inst.NumOperands == 0 {
		return nil
	}
	return b.operands.Slice(inst.Ops, int(inst.NumOperands))
}

// CreateLabel reserves a not-yet-placed label.
func (b *Builder) CreateLabel() micro.LabelRef {
	ref := micro.LabelRef(len(b.labels))
	b.labels = append(b.labels, micro.InstrRefInvalid)
	return ref
}

// PlaceLabel emits the OpLabel marker at the current position and binds
// labelRef to it. Placing the same label twice is a builder misuse and
// panics, matching the debug-assert the original builder carries.
func (b *Builder) PlaceLabel(labelRef micro.LabelRef) {
	if b.labels[labelRef] != micro.InstrRefInvalid {
		panic("builder: label already placed")
	}
	ref, ops := b.addInstr(micro.OpLabel, 1)
	ops[0] = micro.OperandLabel(labelRef)
	b.labels[labelRef] = ref
}

// LabelInstr returns the instruction reference a placed label resolves to,
// or InstrRefInvalid if it has not been placed yet.
func (b *Builder) LabelInstr(labelRef micro.LabelRef) micro.InstrRef { return b.labels[labelRef] }

func (b *Builder) EmitPush(reg micro.Reg) {
	_, ops := b.addInstr(micro.OpPush, 1)
	ops[0] = micro.OperandReg(reg)
}

func (b *Builder) EmitPop(reg micro.Reg) {
	_, ops := b.addInstr(micro.OpPop, 1)
	ops[0] = micro.OperandReg(reg)
}

func (b *Builder) EmitNop() { b.addInstr(micro.OpNop, 0) }

func (b *Builder) EmitRet() { b.addInstr(micro.OpRet, 0) }

func (b *Builder) EmitCallLocal(target micro.NameRef, cc micro.CallConvKind) {
	_, ops := b.addInstr(micro.OpCallLocal, 2)
	ops[0] = micro.OperandName(target)
	ops[1] = micro.OperandCallConv(cc)
}

func (b *Builder) EmitCallExtern(target micro.NameRef, cc micro.CallConvKind) {
	_, ops := b.addInstr(micro.OpCallExtern, 2)
	ops[0] = micro.OperandName(target)
	ops[1] = micro.OperandCallConv(cc)
}

func (b *Builder) EmitCallIndirect(reg micro.Reg, cc micro.CallConvKind) {
	_, ops := b.addInstr(micro.OpCallIndirect, 2)
	ops[0] = micro.OperandReg(reg)
	ops[1] = micro.OperandCallConv(cc)
}

func (b *Builder) EmitJumpTable(idxReg, baseReg micro.Reg, disp int32, entryCount, entrySize uint32) {
	_, ops := b.addInstr(micro.OpJumpTable, 5)
	ops[0] = micro.OperandReg(idxReg)
	ops[1] = micro.OperandReg(baseReg)
	ops[2] = micro.OperandI32(disp)
	ops[3] = micro.OperandU32(entryCount)
	ops[4] = micro.OperandU32(entrySize)
}

func (b *Builder) EmitJumpToLabel(cond micro.Cond, bits micro.OpBits, labelRef micro.LabelRef) {
	_, ops := b.addInstr(micro.OpJumpCond, 3)
	ops[0] = micro.OperandCond(cond)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandLabel(labelRef)
}

func (b *Builder) EmitJumpCondImm(cond micro.Cond, bits micro.OpBits, targetAddr uint64) {
	_, ops := b.addInstr(micro.OpJumpCondImm, 3)
	ops[0] = micro.OperandCond(cond)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandU64(targetAddr)
}

func (b *Builder) EmitJumpReg(reg micro.Reg) {
	_, ops := b.addInstr(micro.OpJumpReg, 1)
	ops[0] = micro.OperandReg(reg)
}

func (b *Builder) EmitLoadRegReg(dst, src micro.Reg, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadRegReg, 3)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(src)
	ops[2] = micro.OperandOpBits(bits)
}

func (b *Builder) EmitLoadRegImm(dst micro.Reg, value uint64, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadRegImm, 3)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandU64(value)
}

// EmitLoadRegPtrImm loads a pointer-sized immediate that the emit pass must
// patch in the final byte buffer, tying it to a constant-pool entry rather
// than trusting the literal to still be correct by the time code lands at
// its final address. A RelocAbs64 entry is recorded immediately, with
// CodeOffset left at 0; the emit pass fills it in once it knows where the
// 8-byte immediate ends up in the encoded stream.
func (b *Builder) EmitLoadRegPtrImm(dst micro.Reg, value uint64, constant micro.ConstantRef) {
	ref, ops := b.addInstr(micro.OpLoadRegPtrImm, 4)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandOpBits(micro.B64)
	ops[2] = micro.OperandU64(value)
	ops[3] = micro.OperandConstant(constant)
	b.AddRelocation(micro.Relocation{
		Kind:          micro.RelocAbs64,
		InstrRef:      ref,
		TargetAddress: value,
		Constant:      constant,
	})
}

func (b *Builder) EmitLoadRegMem(dst, memReg micro.Reg, offset uint64, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadRegMem, 4)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(memReg)
	ops[2] = micro.OperandOpBits(bits)
	ops[3] = micro.OperandU64(offset)
}

func (b *Builder) EmitLoadMemReg(memReg micro.Reg, offset uint64, src micro.Reg, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadMemReg, 4)
	ops[0] = micro.OperandReg(memReg)
	ops[1] = micro.OperandReg(src)
	ops[2] = micro.OperandOpBits(bits)
	ops[3] = micro.OperandU64(offset)
}

func (b *Builder) EmitLoadMemImm(memReg micro.Reg, offset, value uint64, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadMemImm, 4)
	ops[0] = micro.OperandReg(memReg)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandU64(offset)
	ops[3] = micro.OperandU64(value)
}

func (b *Builder) EmitLoadSignedExtRegReg(dst, src micro.Reg, bitsDst, bitsSrc micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadSignedExtRegReg, 4)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(src)
	ops[2] = micro.OperandOpBits(bitsDst)
	ops[3] = micro.OperandOpBits(bitsSrc)
}

func (b *Builder) EmitLoadSignedExtRegMem(dst, memReg micro.Reg, offset uint64, bitsDst, bitsSrc micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadSignedExtRegMem, 5)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(memReg)
	ops[2] = micro.OperandOpBits(bitsDst)
	ops[3] = micro.OperandOpBits(bitsSrc)
	ops[4] = micro.OperandU64(offset)
}

func (b *Builder) EmitLoadZeroExtRegReg(dst, src micro.Reg, bitsDst, bitsSrc micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadZeroExtRegReg, 4)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(src)
	ops[2] = micro.OperandOpBits(bitsDst)
	ops[3] = micro.OperandOpBits(bitsSrc)
}

func (b *Builder) EmitLoadZeroExtRegMem(dst, memReg micro.Reg, offset uint64, bitsDst, bitsSrc micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadZeroExtRegMem, 5)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(memReg)
	ops[2] = micro.OperandOpBits(bitsDst)
	ops[3] = micro.OperandOpBits(bitsSrc)
	ops[4] = micro.OperandU64(offset)
}

func (b *Builder) EmitLoadAddrRegMem(dst, memReg micro.Reg, offset uint64, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadAddrRegMem, 4)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(memReg)
	ops[2] = micro.OperandOpBits(bits)
	ops[3] = micro.OperandU64(offset)
}

// EmitLoadAmcRegMem loads from an address-mode-calculation (base + index*mul
// + add) memory location into dst.
func (b *Builder) EmitLoadAmcRegMem(dst micro.Reg, bitsDst micro.OpBits, base, index micro.Reg, mulValue, addValue uint64, bitsSrc micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadAmcRegMem, 7)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(base)
	ops[2] = micro.OperandReg(index)
	ops[3] = micro.OperandOpBits(bitsDst)
	ops[4] = micro.OperandOpBits(bitsSrc)
	ops[5] = micro.OperandU64(mulValue)
	ops[6] = micro.OperandU64(addValue)
}

func (b *Builder) EmitLoadAmcMemReg(base, index micro.Reg, mulValue, addValue uint64, bitsBaseMul micro.OpBits, src micro.Reg, bitsSrc micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadAmcMemReg, 7)
	ops[0] = micro.OperandReg(base)
	ops[1] = micro.OperandReg(index)
	ops[2] = micro.OperandReg(src)
	ops[3] = micro.OperandOpBits(bitsBaseMul)
	ops[4] = micro.OperandOpBits(bitsSrc)
	ops[5] = micro.OperandU64(mulValue)
	ops[6] = micro.OperandU64(addValue)
}

// EmitLoadAmcMemImm stores an immediate to an AMC memory location. Slot 2 of
// the descriptor is deliberately left unset: see micro.DescriptorOf's
// comment on OpLoadAmcMemImm.
func (b *Builder) EmitLoadAmcMemImm(base, index micro.Reg, mulValue, addValue uint64, bitsBaseMul micro.OpBits, value uint64, bitsValue micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadAmcMemImm, 8)
	ops[0] = micro.OperandReg(base)
	ops[1] = micro.OperandReg(index)
	ops[3] = micro.OperandOpBits(bitsBaseMul)
	ops[4] = micro.OperandOpBits(bitsValue)
	ops[5] = micro.OperandU64(mulValue)
	ops[6] = micro.OperandU64(addValue)
	ops[7] = micro.OperandU64(value)
}

func (b *Builder) EmitLoadAddrAmcRegMem(dst micro.Reg, bitsDst micro.OpBits, base, index micro.Reg, mulValue, addValue uint64, bitsValue micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadAddrAmcRegMem, 7)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(base)
	ops[2] = micro.OperandReg(index)
	ops[3] = micro.OperandOpBits(bitsDst)
	ops[4] = micro.OperandOpBits(bitsValue)
	ops[5] = micro.OperandU64(mulValue)
	ops[6] = micro.OperandU64(addValue)
}

// EmitSymbolRelocAddr loads the resolved absolute address of symbol (plus
// addend) into dst. Unlike EmitLoadRegPtrImm's constant-pool relocation,
// the encoder itself computes this Abs64 relocation at Encode time (its
// offset is already known there), so no AddRelocation call happens here.
func (b *Builder) EmitSymbolRelocAddr(dst micro.Reg, symbol micro.NameRef, addend uint32) {
	_, ops := b.addInstr(micro.OpSymbolRelocAddr, 3)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandU32(uint32(symbol))
	ops[2] = micro.OperandU32(addend)
}

// EmitSymbolRelocValue loads the value stored at symbol's resolved address
// (plus addend), at the given width, into dst.
func (b *Builder) EmitSymbolRelocValue(dst micro.Reg, bits micro.OpBits, symbol micro.NameRef, addend uint32) {
	_, ops := b.addInstr(micro.OpSymbolRelocValue, 4)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandU32(uint32(symbol))
	ops[3] = micro.OperandU32(addend)
}

func (b *Builder) EmitCmpRegReg(a, c micro.Reg, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpCmpRegReg, 3)
	ops[0] = micro.OperandReg(a)
	ops[1] = micro.OperandReg(c)
	ops[2] = micro.OperandOpBits(bits)
}

func (b *Builder) EmitCmpMemReg(memReg micro.Reg, offset uint64, reg micro.Reg, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpCmpMemReg, 4)
	ops[0] = micro.OperandReg(memReg)
	ops[1] = micro.OperandReg(reg)
	ops[2] = micro.OperandOpBits(bits)
	ops[3] = micro.OperandU64(offset)
}

func (b *Builder) EmitCmpMemImm(memReg micro.Reg, offset, value uint64, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpCmpMemImm, 4)
	ops[0] = micro.OperandReg(memReg)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandU64(offset)
	ops[3] = micro.OperandU64(value)
}

func (b *Builder) EmitCmpRegImm(reg micro.Reg, value uint64, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpCmpRegImm, 3)
	ops[0] = micro.OperandReg(reg)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandU64(value)
}

func (b *Builder) EmitCmpRegZero(reg micro.Reg, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpCmpRegZero, 2)
	ops[0] = micro.OperandReg(reg)
	ops[1] = micro.OperandOpBits(bits)
}

func (b *Builder) EmitSetCondReg(reg micro.Reg, cond micro.Cond) {
	_, ops := b.addInstr(micro.OpSetCondReg, 2)
	ops[0] = micro.OperandReg(reg)
	ops[1] = micro.OperandCond(cond)
}

func (b *Builder) EmitLoadCondRegReg(dst, src micro.Reg, cond micro.Cond, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpLoadCondRegReg, 4)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(src)
	ops[2] = micro.OperandCond(cond)
	ops[3] = micro.OperandOpBits(bits)
}

func (b *Builder) EmitClearReg(reg micro.Reg, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpClearReg, 2)
	ops[0] = micro.OperandReg(reg)
	ops[1] = micro.OperandOpBits(bits)
}

func (b *Builder) EmitUnaryMem(memReg micro.Reg, offset uint64, op micro.MicroOp, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpUnaryMem, 4)
	ops[0] = micro.OperandReg(memReg)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandMicroOp(op)
	ops[3] = micro.OperandU64(offset)
}

func (b *Builder) EmitUnaryReg(reg micro.Reg, op micro.MicroOp, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpUnaryReg, 3)
	ops[0] = micro.OperandReg(reg)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandMicroOp(op)
}

func (b *Builder) EmitBinaryRegReg(dst, src micro.Reg, op micro.MicroOp, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpBinaryRegReg, 4)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(src)
	ops[2] = micro.OperandOpBits(bits)
	ops[3] = micro.OperandMicroOp(op)
}

func (b *Builder) EmitBinaryRegMem(dst, memReg micro.Reg, offset uint64, op micro.MicroOp, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpBinaryRegMem, 5)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(memReg)
	ops[2] = micro.OperandOpBits(bits)
	ops[3] = micro.OperandMicroOp(op)
	ops[4] = micro.OperandU64(offset)
}

func (b *Builder) EmitBinaryMemReg(memReg micro.Reg, offset uint64, reg micro.Reg, op micro.MicroOp, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpBinaryMemReg, 5)
	ops[0] = micro.OperandReg(memReg)
	ops[1] = micro.OperandReg(reg)
	ops[2] = micro.OperandOpBits(bits)
	ops[3] = micro.OperandMicroOp(op)
	ops[4] = micro.OperandU64(offset)
}

func (b *Builder) EmitBinaryRegImm(reg micro.Reg, value uint64, op micro.MicroOp, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpBinaryRegImm, 4)
	ops[0] = micro.OperandReg(reg)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandMicroOp(op)
	ops[3] = micro.OperandU64(value)
}

func (b *Builder) EmitBinaryMemImm(memReg micro.Reg, offset, value uint64, op micro.MicroOp, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpBinaryMemImm, 5)
	ops[0] = micro.OperandReg(memReg)
	ops[1] = micro.OperandOpBits(bits)
	ops[2] = micro.OperandMicroOp(op)
	ops[3] = micro.OperandU64(offset)
	ops[4] = micro.OperandU64(value)
}

func (b *Builder) EmitTernaryRegRegReg(dst, src0, src1 micro.Reg, op micro.MicroOp, bits micro.OpBits) {
	_, ops := b.addInstr(micro.OpTernaryRegRegReg, 5)
	ops[0] = micro.OperandReg(dst)
	ops[1] = micro.OperandReg(src0)
	ops[2] = micro.OperandReg(src1)
	ops[3] = micro.OperandOpBits(bits)
	ops[4] = micro.OperandMicroOp(op)
}
