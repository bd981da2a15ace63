package pass

import (
	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/microerr"
)

type pendingLabelJump struct {
	codeOffset int
	cond       micro.Cond
	labelRef   micro.LabelRef
}

// Emit encodes every legalized, fully-allocated instruction to machine
// code in one forward pass, then resolves label-relative jumps in a second
// pass once every label's final offset is known. It never reports having
// changed the instruction stream: its output is the Code/DebugRanges it
// leaves on the Context, not a mutation other passes would see.
type Emit struct {
	labelOffsets map[micro.LabelRef]int
	pending      []pendingLabelJump
	relocByInstr map[micro.InstrRef]int
}

func (*Emit) Kind() Kind { return KindEmit }

func (e *Emit) encodeInstruction(ctx *Context, instRef micro.InstrRef, inst *micro.Instr, ops []micro.Operand, code *[]byte) {
	switch inst.Op {
	case micro.OpEnd, micro.OpIgnore, micro.OpDebug:
		return

	case micro.OpLabel:
		e.labelOffsets[ops[0].Label()] = len(*code)
		return

	case micro.OpJumpCond:
		enc, err := ctx.Encoder.EncodeJump(ops[0].Cond(), ops[1].OpBits(), len(*code), -1)
		if err != nil {
			ctx.FailAt(microerr.CapabilityMissing, instRef, "%v", err)
		}
		e.pending = append(e.pending, pendingLabelJump{codeOffset: len(*code), cond: ops[0].Cond(), labelRef: ops[2].Label()})
		*code = append(*code, enc.Bytes...)
		return

	case micro.OpJumpCondImm:
		bits := ops[1].OpBits()
		if bits == micro.BitsZero {
			bits = micro.B32
		}
		enc, err := ctx.Encoder.EncodeJump(ops[0].Cond(), bits, len(*code), int(ops[2].U64()))
		if err != nil {
			ctx.FailAt(microerr.CapabilityMissing, instRef, "%v", err)
		}
		*code = append(*code, enc.Bytes...)
		return
	}

	codeStartOffset := len(*code)
	enc, err := ctx.Encoder.Encode(inst, ops, codeStartOffset)
	if err != nil {
		ctx.FailAt(microerr.CapabilityMissing, instRef, "%v", err)
	}
	*code = append(*code, enc.Bytes...)

	if inst.Op == micro.OpLoadRegPtrImm && ops[1].OpBits() == micro.B64 {
		e.bindAbs64RelocationOffset(ctx, instRef, codeStartOffset, len(*code))
	}

	if enc.Relocation != nil {
		reloc := *enc.Relocation
		reloc.InstrRef = instRef
		ctx.Builder.AddRelocation(reloc)
	}

	if d, ok := ctx.Builder.DebugInfoFor(instRef); ok {
		ctx.DebugRanges = append(ctx.DebugRanges, DebugRange{
			CodeOffset: codeStartOffset, File: d.File, Line: d.Line, Column: d.Column,
		})
	}
}

// bindAbs64RelocationOffset fills in the CodeOffset of the Abs64
// relocation LoadRegPtrImm registered at build time, now that the
// instruction's encoded position is known. The relocated immediate is
// always the trailing 8 bytes of the instruction.
func (e *Emit) bindAbs64RelocationOffset(ctx *Context, instRef micro.InstrRef, codeStartOffset, codeEndOffset int) {
	idx, ok := e.relocByInstr[instRef]
	if !ok {
		ctx.FailAt(microerr.ProgrammingError, instRef, "B64 LoadRegPtrImm has no matching relocation")
	}
	if codeEndOffset < codeStartOffset+8 {
		ctx.FailAt(microerr.ProgrammingError, instRef, "LoadRegPtrImm encoded shorter than the 8-byte immediate it relocates")
	}
	ctx.Builder.Relocations()[idx].CodeOffset = codeEndOffset - 8
}

func (e *Emit) Run(ctx *Context) bool {
	e.labelOffsets = make(map[micro.LabelRef]int)
	e.pending = e.pending[:0]
	e.relocByInstr = make(map[micro.InstrRef]int)
	ctx.DebugRanges = nil

	for idx, reloc := range ctx.Builder.Relocations() {
		if reloc.InstrRef == micro.InstrRefInvalid {
			continue
		}
		e.relocByInstr[reloc.InstrRef] = idx
	}

	var code []byte
	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		ops := ctx.Builder.Ops(inst)
		e.encodeInstruction(ctx, it.Ref(), inst, ops, &code)
	}

	for _, p := range e.pending {
		target, ok := e.labelOffsets[p.labelRef]
		if !ok {
			ctx.Fail(microerr.ProgrammingError, "jump to label %v that was never placed", p.labelRef)
		}
		size := ctx.Encoder.JumpSize(p.cond)
		patch := ctx.Encoder.PatchJump(p.cond, p.codeOffset, target)
		copy(code[p.codeOffset+size-4:p.codeOffset+size], patch)
	}

	ctx.Code = code
	return false
}
