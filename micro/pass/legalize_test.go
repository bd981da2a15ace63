package pass_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
	"github.com/swag-lang/swc-sub002/micro/encoder/amd64"
	"github.com/swag-lang/swc-sub002/micro/pass"
)

func newLegalizeCtx(b *builder.Builder) *pass.Context {
	return &pass.Context{
		FunctionName: "f",
		Encoder:      amd64.New(),
		Builder:      b,
		Instructions: b.Instructions(),
		Operands:     b.Operands(),
		CallConvKind: micro.CallConvSysV,
	}
}

func noConformanceIssueRemains(t *testing.T, ctx *pass.Context) {
	t.Helper()
	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		ops := ctx.Builder.Ops(inst)
		_, hasIssue := ctx.Encoder.QueryConformanceIssue(inst, ops)
		require.False(t, hasIssue, "instruction %s still reports a conformance issue after legalize", inst.Op)
	}
}

// TestLegalize_SplitsSixtyFourBitMemImm covers scenario 1: a 64-bit
// immediate memory store has no direct x86-64 encoding and must be split
// into a pair of 32-bit stores at offset and offset+4.
func TestLegalize_SplitsSixtyFourBitMemImm(t *testing.T) {
	b := builder.New()
	rbx := amd64.RegRBX
	b.EmitLoadMemImm(rbx, 16, 0x1122334455667788, micro.B64)
	b.EmitRet()

	ctx := newLegalizeCtx(b)
	changed := pass.Legalize{}.Run(ctx)
	require.True(t, changed)

	var stores []micro.Instr
	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		if it.Instr().Op == micro.OpLoadMemImm {
			stores = append(stores, *it.Instr())
		}
	}
	require.Len(t, stores, 2)

	firstOps := ctx.Builder.Ops(&stores[0])
	secondOps := ctx.Builder.Ops(&stores[1])
	require.Equal(t, micro.B32, firstOps[1].OpBits())
	require.EqualValues(t, 16, firstOps[2].U64())
	require.EqualValues(t, 0x55667788, firstOps[3].U64())
	require.Equal(t, micro.B32, secondOps[1].OpBits())
	require.EqualValues(t, 20, secondOps[2].U64())
	require.EqualValues(t, 0x11223344, secondOps[3].U64())

	noConformanceIssueRemains(t, ctx)
}

// TestLegalize_RewritesVariableShiftCountToRCX covers scenario 2: a
// register-register shift whose count operand is not already in RCX must be
// rewritten so it is, since 0xD3's reg/mem shift form hardwires its count to
// CL.
func TestLegalize_RewritesVariableShiftCountToRCX(t *testing.T) {
	b := builder.New()
	dst := amd64.RegRBX
	count := amd64.RegRDX
	b.EmitBinaryRegReg(dst, count, micro.OpShiftLeft, micro.B64)
	b.EmitRet()

	ctx := newLegalizeCtx(b)
	changed := pass.Legalize{}.Run(ctx)
	require.True(t, changed)

	found := false
	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		if inst.Op != micro.OpBinaryRegReg {
			continue
		}
		ops := ctx.Builder.Ops(inst)
		if ops[3].MicroOp() == micro.OpShiftLeft {
			require.Equal(t, amd64.RegRCX, ops[1].Reg())
			found = true
		}
	}
	require.True(t, found, "no shift instruction survived legalize")

	noConformanceIssueRemains(t, ctx)
}

// TestLegalize_IdempotentOnSecondRun covers the round-trip law: running
// Legalize again on its own output reports no further change and leaves the
// stream byte-for-byte identical.
func TestLegalize_IdempotentOnSecondRun(t *testing.T) {
	b := builder.New()
	b.EmitLoadMemImm(amd64.RegRBX, 0, 0xdeadbeefcafebabe, micro.B64)
	b.EmitBinaryRegReg(amd64.RegRBX, amd64.RegRDX, micro.OpShiftLeft, micro.B64)
	b.EmitRet()

	ctx := newLegalizeCtx(b)
	pass.Legalize{}.Run(ctx)

	before := snapshotOps(ctx)
	changed := pass.Legalize{}.Run(ctx)
	require.False(t, changed)
	require.Equal(t, before, snapshotOps(ctx))
}

// TestLegalize_ImmediateAtClampLimitIsNoop covers the boundary behavior: a
// shift count immediate already at the mask limit needs no rewrite.
func TestLegalize_ImmediateAtClampLimitIsNoop(t *testing.T) {
	b := builder.New()
	b.EmitBinaryRegImm(amd64.RegRBX, 63, micro.OpShiftLeft, micro.B64)
	b.EmitRet()

	ctx := newLegalizeCtx(b)
	changed := pass.Legalize{}.Run(ctx)
	require.False(t, changed)
}

func snapshotOps(ctx *pass.Context) [][]micro.Operand {
	var out [][]micro.Operand
	for it := ctx.Instructions.View(); it.Valid(); it = it.Next() {
		ops := ctx.Builder.Ops(it.Instr())
		cp := make([]micro.Operand, len(ops))
		copy(cp, ops)
		out = append(out, cp)
	}
	return out
}
