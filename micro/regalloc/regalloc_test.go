package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
	"github.com/swag-lang/swc-sub002/micro/encoder/amd64"
	"github.com/swag-lang/swc-sub002/micro/microabi"
	"github.com/swag-lang/swc-sub002/micro/regalloc"
)

func allRegOperandsPhysical(t *testing.T, b *builder.Builder) {
	t.Helper()
	for it := b.Instructions().View(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		for _, ref := range micro.CollectRegOperands(inst, b.Ops(inst)) {
			require.False(t, ref.Reg().IsVirtual(), "vreg survived allocation in %s", inst.Op)
		}
	}
}

// TestAllocate_NoVregsSurvive covers the §8 invariant that no virtual
// register operand remains anywhere in the stream once allocation completes.
func TestAllocate_NoVregsSurvive(t *testing.T) {
	b := builder.New()
	v0 := micro.MakeVirtual(micro.RegClassInt, 0)
	v1 := micro.MakeVirtual(micro.RegClassInt, 1)
	b.EmitLoadRegImm(v0, 10, micro.B64)
	b.EmitLoadRegImm(v1, 20, micro.B64)
	b.EmitBinaryRegReg(v0, v1, micro.OpAdd, micro.B64)
	b.EmitRet()

	conv := microabi.Registry(micro.CallConvSysV)
	changed := regalloc.Allocate("f", b.Instructions(), b, conv, amd64.New())
	require.True(t, changed)
	allRegOperandsPhysical(t, b)
}

// TestAllocate_AllPhysicalStreamIsNoop covers the round-trip law: a stream
// that already only references physical registers is passed through with no
// rewrite, checked by the first instruction's register operand still being
// RAX afterwards.
func TestAllocate_AllPhysicalStreamIsNoop(t *testing.T) {
	b := builder.New()
	rax := amd64.RegRAX
	b.EmitLoadRegImm(rax, 5, micro.B64)
	b.EmitRet()

	conv := microabi.Registry(micro.CallConvSysV)
	regalloc.Allocate("f", b.Instructions(), b, conv, amd64.New())

	it := b.Instructions().View()
	require.True(t, it.Valid())
	ops := b.Ops(it.Instr())
	require.Equal(t, rax, ops[0].Reg())
}

// TestAllocate_EmptyStreamIsNoop covers the boundary behavior: an empty
// instruction stream is an all-no-op, reported via a false return.
func TestAllocate_EmptyStreamIsNoop(t *testing.T) {
	b := builder.New()
	conv := microabi.Registry(micro.CallConvSysV)
	changed := regalloc.Allocate("f", b.Instructions(), b, conv, amd64.New())
	require.False(t, changed)
}

// TestAllocate_CallSurvivorGetsPersistentReg covers scenario 3: a vreg live
// across a call must end up in a callee-saved (persistent) register, or be
// spilled to the stack around the call — either way it must not be clobbered.
func TestAllocate_CallSurvivorGetsPersistentReg(t *testing.T) {
	b := builder.New()
	v0 := micro.MakeVirtual(micro.RegClassInt, 0)
	b.EmitLoadRegImm(v0, 99, micro.B64)
	b.EmitCallLocal(micro.NameRef(1), micro.CallConvSysV)
	b.EmitBinaryRegImm(v0, 1, micro.OpAdd, micro.B64)
	b.EmitRet()

	conv := microabi.Registry(micro.CallConvSysV)
	regalloc.Allocate("f", b.Instructions(), b, conv, amd64.New())
	allRegOperandsPhysical(t, b)
}
