package textfmt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
)

func TestParsePrint_RoundTrip(t *testing.T) {
	b := builder.New()
	b.EmitPush(micro.MakePhysical(micro.RegClassInt, 3))
	b.EmitLoadRegImm(micro.MakeVirtual(micro.RegClassInt, 0), 42, micro.B64)
	b.EmitBinaryRegImm(micro.MakeVirtual(micro.RegClassInt, 0), 1, micro.OpAdd, micro.B64)
	b.EmitRet()

	text := Print(b.Instructions(), b.Operands())

	b2 := builder.New()
	require.NoError(t, Parse(text, b2))

	require.Equal(t, text, Print(b2.Instructions(), b2.Operands()))
}

func TestParse_UnknownOpcode(t *testing.T) {
	b := builder.New()
	err := Parse("frobnicate %v0.int", b)
	require.Error(t, err)
}

func TestParse_WrongOperandCount(t *testing.T) {
	b := builder.New()
	err := Parse("ret %v0.int", b)
	require.Error(t, err)
}

func TestFormatOperand_Register(t *testing.T) {
	require.Equal(t, "%v3.int", formatOperand(micro.SlotReg, micro.OperandReg(micro.MakeVirtual(micro.RegClassInt, 3))))
	require.Equal(t, "%p1.float", formatOperand(micro.SlotReg, micro.OperandReg(micro.MakePhysical(micro.RegClassFloat, 1))))
}

func TestParseReg_Sentinels(t *testing.T) {
	r, err := parseReg("<nobase>")
	require.NoError(t, err)
	require.Equal(t, micro.RegNoBase, r)

	r, err = parseReg("<invalid>")
	require.NoError(t, err)
	require.Equal(t, micro.RegInvalid, r)
}
