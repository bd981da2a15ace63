package micro_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
)

func nthInstrRef(store *micro.Store, n int) micro.InstrRef {
	it := store.View()
	for i := 0; i < n; i++ {
		it = it.Next()
	}
	return it.Ref()
}

// TestStore_AliveUntilErased exercises the alive/erase consistency invariant:
// an inserted instruction stays Alive until its one Erase call, and the
// linked list remains walkable (head/tail correctly relinked) around the hole.
func TestStore_AliveUntilErased(t *testing.T) {
	b := builder.New()
	b.EmitLoadRegImm(micro.MakeVirtual(micro.RegClassInt, 0), 1, micro.B64)
	b.EmitLoadRegImm(micro.MakeVirtual(micro.RegClassInt, 1), 2, micro.B64)
	b.EmitLoadRegImm(micro.MakeVirtual(micro.RegClassInt, 2), 3, micro.B64)

	store := b.Instructions()
	mid := nthInstrRef(store, 1)
	require.True(t, store.Alive(mid))
	require.EqualValues(t, 3, store.Count())

	require.True(t, store.Erase(mid))
	require.False(t, store.Alive(mid))
	require.EqualValues(t, 2, store.Count())

	var ops [][]micro.Operand
	for it := store.View(); it.Valid(); it = it.Next() {
		ops = append(ops, b.Ops(it.Instr()))
	}
	require.Len(t, ops, 2)
	require.EqualValues(t, 1, ops[0][2].U64())
	require.EqualValues(t, 3, ops[1][2].U64())
}

// TestStore_DoubleEraseIsIdempotent covers the §8 scenario of a second Erase
// on an already-dead reference: the first call removes and reports true, the
// second observes the ref already dead and reports false without touching
// the list again.
func TestStore_DoubleEraseIsIdempotent(t *testing.T) {
	b := builder.New()
	b.EmitLoadRegImm(micro.MakeVirtual(micro.RegClassInt, 0), 7, micro.B64)
	b.EmitRet()

	store := b.Instructions()
	ref := nthInstrRef(store, 0)

	require.True(t, store.Erase(ref))
	require.False(t, store.Erase(ref))
	require.False(t, store.Alive(ref))
	require.EqualValues(t, 1, store.Count())
}

// TestStore_OperandSlotCountMatchesDescriptor checks that every instruction's
// NumOperands and its builder-reserved operand span agree, for a handful of
// opcodes spanning the smallest and a wider operand shape.
func TestStore_OperandSlotCountMatchesDescriptor(t *testing.T) {
	b := builder.New()
	b.EmitRet()
	b.EmitBinaryRegReg(
		micro.MakeVirtual(micro.RegClassInt, 0),
		micro.MakeVirtual(micro.RegClassInt, 1),
		micro.OpAdd, micro.B64,
	)

	store := b.Instructions()

	retInstr := store.Ptr(nthInstrRef(store, 0))
	require.EqualValues(t, 0, retInstr.NumOperands)
	require.Nil(t, b.Ops(retInstr))

	binInstr := store.Ptr(nthInstrRef(store, 1))
	require.EqualValues(t, 4, binInstr.NumOperands)
	require.Len(t, b.Ops(binInstr), int(binInstr.NumOperands))
}
