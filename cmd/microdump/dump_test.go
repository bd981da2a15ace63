package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// A tiny function: move an immediate into a virtual register, add one,
// return. Exercises textfmt parsing, register allocation, legalize (which
// finds nothing to rewrite here: the B64 add's immediate 1 is encoded as a
// sign-extended 32-bit immediate), and the emitter's end-to-end byte output.
const sampleProgram = `
load_reg_imm %v0.int, b64, 41
op_binary_reg_imm %v0.int, b64, add, 1
ret
`

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sample.mir"
	require.NoError(t, writeFile(path, sampleProgram))

	var out bytes.Buffer
	require.NoError(t, run(path, "sysv", false, &out))
	require.NotEmpty(t, out.String())
}

func TestRun_UnknownCallConv(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sample.mir"
	require.NoError(t, writeFile(path, sampleProgram))

	var out bytes.Buffer
	err := run(path, "made-up-abi", false, &out)
	require.Error(t, err)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
