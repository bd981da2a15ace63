package pass_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
	"github.com/swag-lang/swc-sub002/micro/encoder/amd64"
	"github.com/swag-lang/swc-sub002/micro/pass"
)

func newEmitCtx(b *builder.Builder) *pass.Context {
	return &pass.Context{
		FunctionName: "f",
		Encoder:      amd64.New(),
		Builder:      b,
		Instructions: b.Instructions(),
		Operands:     b.Operands(),
		CallConvKind: micro.CallConvSysV,
	}
}

// TestEmit_ForwardConditionalJumpDisplacement covers scenario 4: a
// conditional jump emitted before its target label is placed must still end
// up with the correct rel32 displacement once the label's offset is known.
func TestEmit_ForwardConditionalJumpDisplacement(t *testing.T) {
	b := builder.New()
	label := b.CreateLabel()
	b.EmitJumpToLabel(micro.CondEqual, micro.B64, label)
	b.EmitNop()
	b.PlaceLabel(label)
	b.EmitRet()

	ctx := newEmitCtx(b)
	(&pass.Emit{}).Run(ctx)

	require.Equal(t, []byte{0x0F, 0x84, 0x01, 0x00, 0x00, 0x00, 0x90, 0xC3}, ctx.Code)
}

// TestEmit_LoadRegPtrImmRelocationOffset covers scenario 5: the Abs64
// relocation LoadRegPtrImm registers at build time must end up pointing at
// the trailing 8 bytes of the encoded instruction, not its start.
func TestEmit_LoadRegPtrImmRelocationOffset(t *testing.T) {
	b := builder.New()
	b.EmitLoadRegPtrImm(amd64.RegRAX, 0x1122334455667788, micro.ConstantRef(3))
	b.EmitRet()

	ctx := newEmitCtx(b)
	(&pass.Emit{}).Run(ctx)

	require.Len(t, ctx.Code, 11) // REX.W + 0xB8-opcode + 8-byte immediate, then 1-byte ret
	relocs := ctx.Builder.Relocations()
	require.Len(t, relocs, 1)
	require.Equal(t, len(ctx.Code)-1-8, relocs[0].CodeOffset)
}

// TestEmit_EmptyStreamProducesNoBytes covers the boundary behavior: an empty
// instruction stream emits zero bytes and records no relocations.
func TestEmit_EmptyStreamProducesNoBytes(t *testing.T) {
	b := builder.New()
	ctx := newEmitCtx(b)
	(&pass.Emit{}).Run(ctx)

	require.Empty(t, ctx.Code)
	require.Empty(t, ctx.Builder.Relocations())
}
