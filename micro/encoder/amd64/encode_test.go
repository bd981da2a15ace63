package amd64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
	"github.com/swag-lang/swc-sub002/micro/encoder/amd64"
)

func encodeOne(t *testing.T, b *builder.Builder, codeOffset int) []byte {
	t.Helper()
	it := b.Instructions().View()
	require.True(t, it.Valid())
	enc, err := amd64.New().Encode(it.Instr(), b.Ops(it.Instr()), codeOffset)
	require.NoError(t, err)
	return enc.Bytes
}

// TestEncode_BinaryRegReg_NonAluForms covers scenario 2 / Comment 1: every
// MicroOp the micro-IR declares for OpBinaryRegReg must encode without
// panicking, not just the plain ALU ops that reuse binaryOpcodeRegReg.
func TestEncode_BinaryRegReg_NonAluForms(t *testing.T) {
	cases := []struct {
		name     string
		dst, src micro.Reg
		op       micro.MicroOp
		want     []byte
	}{
		{"exchange", amd64.RegRAX, amd64.RegRCX, micro.OpExchange, []byte{0x48, 0x87, 0xC8}},
		{"multiply", amd64.RegRAX, amd64.RegRCX, micro.OpMultiply, []byte{0x48, 0x0F, 0xAF, 0xC1}},
		{"shift_left", amd64.RegRBX, amd64.RegRCX, micro.OpShiftLeft, []byte{0x48, 0xD3, 0xE3}},
		{"divide_signed", amd64.RegRAX, amd64.RegRBX, micro.OpDivideSigned, []byte{0x48, 0x99, 0x48, 0xF7, 0xFB}},
		{"divide_unsigned", amd64.RegRAX, amd64.RegRBX, micro.OpDivideUnsigned, []byte{0x48, 0x31, 0xD2, 0x48, 0xF7, 0xF3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := builder.New()
			b.EmitBinaryRegReg(tc.dst, tc.src, tc.op, micro.B64)
			require.Equal(t, tc.want, encodeOne(t, b, 0))
		})
	}
}

// TestEncode_BinaryRegReg_ShiftRightForms confirms the remaining two shift
// variants also reach a /digit extension rather than falling into the
// default ALU path.
func TestEncode_BinaryRegReg_ShiftRightForms(t *testing.T) {
	for _, tc := range []struct {
		op  micro.MicroOp
		ext byte
	}{
		{micro.OpShiftRightLogical, 5},
		{micro.OpShiftRightArith, 7},
	} {
		b := builder.New()
		b.EmitBinaryRegReg(amd64.RegRBX, amd64.RegRCX, tc.op, micro.B64)
		bytes := encodeOne(t, b, 0)
		require.Equal(t, byte(0xD3), bytes[1])
		wantModRM := byte(0b11<<6) | tc.ext<<3 | 0x03 // rm field = RBX's encoding (3)
		require.Equal(t, wantModRM, bytes[2])
	}
}

func TestEncode_LoadSignedExtRegReg(t *testing.T) {
	b := builder.New()
	b.EmitLoadSignedExtRegReg(amd64.RegRAX, amd64.RegRCX, micro.B64, micro.B32)
	bytes := encodeOne(t, b, 0)
	require.Equal(t, []byte{0x48, 0x63, 0xC1}, bytes) // movsxd rax, ecx
}

func TestEncode_LoadZeroExtRegMem(t *testing.T) {
	b := builder.New()
	b.EmitLoadZeroExtRegMem(amd64.RegRAX, amd64.RegRBX, 4, micro.B64, micro.B8)
	bytes := encodeOne(t, b, 0)
	require.Equal(t, []byte{0x48, 0x0F, 0xB6, 0x43, 0x04}, bytes)
}

func TestEncode_LoadAddrRegMem(t *testing.T) {
	b := builder.New()
	b.EmitLoadAddrRegMem(amd64.RegRAX, amd64.RegRBX, 8, micro.B64)
	bytes := encodeOne(t, b, 0)
	require.Equal(t, []byte{0x48, 0x8D, 0x43, 0x08}, bytes)
}

func TestEncode_LoadAmcRegMem(t *testing.T) {
	b := builder.New()
	b.EmitLoadAmcRegMem(amd64.RegRCX, micro.B64, amd64.RegRBX, amd64.RegRDX, 4, 8, micro.B64)
	bytes := encodeOne(t, b, 0)
	require.Equal(t, []byte{0x48, 0x8B, 0x4C, 0x93, 0x08}, bytes)
}

func TestEncode_TernaryRegRegReg_CompareExchange(t *testing.T) {
	b := builder.New()
	b.EmitTernaryRegRegReg(amd64.RegRBX, amd64.RegRAX, amd64.RegRCX, micro.OpCompareExchange, micro.B64)
	bytes := encodeOne(t, b, 0)
	require.Equal(t, []byte{0x48, 0x0F, 0xB1, 0xCB}, bytes)
}

func TestEncode_SymbolRelocAddr(t *testing.T) {
	b := builder.New()
	b.EmitSymbolRelocAddr(amd64.RegRAX, micro.NameRef(5), 16)

	it := b.Instructions().View()
	enc, err := amd64.New().Encode(it.Instr(), b.Ops(it.Instr()), 100)
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0xB8, 0, 0, 0, 0, 0, 0, 0, 0}, enc.Bytes)
	require.NotNil(t, enc.Relocation)
	require.Equal(t, micro.RelocAbs64, enc.Relocation.Kind)
	require.Equal(t, micro.NameRef(5), enc.Relocation.TargetSymbol)
	require.EqualValues(t, 16, enc.Relocation.TargetAddress)
	require.Equal(t, 102, enc.Relocation.CodeOffset)
}
