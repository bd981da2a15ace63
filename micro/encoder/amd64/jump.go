package amd64

import (
	"encoding/binary"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/encoder"
)

// A jump's size depends only on whether it is conditional, never on its
// displacement: every conditional jump is a 6-byte
// long (0x0F 0x8x rel32) form so the displacement never
// needs re-sizing once a label's final offset is known, and an
// unconditional jump (CondNone) is a 5-byte 0xE9 rel32.
const (
	condJumpSize = 6
	uncondJumpSize = 5
)

func (*Encoder) JumpSize(cond micro.Cond) int {
	if cond == micro.CondNone {
		return uncondJumpSize
	}
	return condJumpSize
}

// EncodeJump emits a jump with a placeholder 0 displacement; the caller
// (the emit pass) either already knows the target offset (labelOffset>=0,
// in which case the displacement is correct immediately) or patches it
// later via PatchJump once labelOffset becomes known.
func (e *Encoder) EncodeJump(cond micro.Cond, bits micro.OpBits, codeOffset, labelOffset int) (encoder.EncodedInstr, error) {
	var w buf
	if cond == micro.CondNone {
		w.byte(0xE9)
	} else {
		w.byte(0x0F)
		w.byte(0x80 + condTttn(cond))
	}
	disp := int32(0)
	if labelOffset >= 0 {
		disp = int32(labelOffset - (codeOffset + e.JumpSize(cond)))
	}
	w.u32(uint32(disp))
	return encoder.EncodedInstr{Bytes: w.b}, nil
}

// PatchJump overwrites the rel32 field of an already-emitted jump at
// jumpCodeOffset once targetOffset is known. The rel32 field is always the
// last 4 bytes of the instruction, whether it's a 5-byte unconditional or
// 6-byte conditional form, so the caller doesn't need to pass the opcode
// again — only where the instruction started and the size it was emitted
// with (implied by the two constants above, recovered from the fixed
// 4-byte trailing window).
func (e *Encoder) PatchJump(cond micro.Cond, jumpCodeOffset, targetOffset int) []byte {
	size := e.JumpSize(cond)
	disp := int32(targetOffset - (jumpCodeOffset + size))
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], uint32(disp))
	return out[:]
}
