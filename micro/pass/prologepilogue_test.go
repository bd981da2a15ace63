package pass_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
	"github.com/swag-lang/swc-sub002/micro/encoder/amd64"
	"github.com/swag-lang/swc-sub002/micro/pass"
)

func newPrologEpilogCtx(b *builder.Builder, preserve bool) *pass.Context {
	return &pass.Context{
		FunctionName:           "f",
		Encoder:                amd64.New(),
		Builder:                b,
		Instructions:           b.Instructions(),
		Operands:               b.Operands(),
		CallConvKind:           micro.CallConvSysV,
		PreservePersistentRegs: preserve,
	}
}

func countOps(b *builder.Builder, op micro.Opcode) int {
	n := 0
	for it := b.Instructions().View(); it.Valid(); it = it.Next() {
		if it.Instr().Op == op {
			n++
		}
	}
	return n
}

// TestPrologEpilog_SingleRetUnusedPersistentRegsIsNoop covers the boundary
// behavior: a function body that never touches a callee-saved register
// needs no save/restore, even with PreservePersistentRegs on.
func TestPrologEpilog_SingleRetUnusedPersistentRegsIsNoop(t *testing.T) {
	b := builder.New()
	b.EmitLoadRegImm(amd64.RegRAX, 1, micro.B64)
	b.EmitRet()

	ctx := newPrologEpilogCtx(b, true)
	changed := (&pass.PrologEpilog{}).Run(ctx)
	require.False(t, changed)
	require.Zero(t, countOps(b, micro.OpPush))
	require.Zero(t, countOps(b, micro.OpPop))
}

// TestPrologEpilog_DisabledIsNoop covers the documented opt-in: with
// PreservePersistentRegs unset, the pass never inserts anything, regardless
// of what the body touches.
func TestPrologEpilog_DisabledIsNoop(t *testing.T) {
	b := builder.New()
	b.EmitLoadRegImm(amd64.RegRBX, 1, micro.B64)
	b.EmitRet()

	ctx := newPrologEpilogCtx(b, false)
	changed := (&pass.PrologEpilog{}).Run(ctx)
	require.False(t, changed)
	require.Zero(t, countOps(b, micro.OpPush))
}

// TestPrologEpilog_OneRestoreSequencePerRet covers invariant 4: a function
// with two return points that both touch a callee-saved register gets
// exactly one push (at entry) and one pop per Ret, never more.
func TestPrologEpilog_OneRestoreSequencePerRet(t *testing.T) {
	b := builder.New()
	label := b.CreateLabel()
	b.EmitLoadRegImm(amd64.RegRBX, 1, micro.B64)
	b.EmitJumpToLabel(micro.CondEqual, micro.B64, label)
	b.EmitRet()
	b.PlaceLabel(label)
	b.EmitRet()

	ctx := newPrologEpilogCtx(b, true)
	changed := (&pass.PrologEpilog{}).Run(ctx)
	require.True(t, changed)

	require.Equal(t, 1, countOps(b, micro.OpPush))
	require.Equal(t, 2, countOps(b, micro.OpPop))
	require.Equal(t, 2, countOps(b, micro.OpRet))
}
