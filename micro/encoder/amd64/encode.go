package amd64

import (
	"encoding/binary"
	"fmt"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/encoder"
)

// buf accumulates the bytes of one instruction, matching the original
// encoder's per-instruction emission style (no shared cursor state beyond
// the running code offset the pass loop tracks externally).
type buf struct {
	b []byte
}

func (w *buf) byte(v byte) { w.b = append(w.b, v) }

func (w *buf) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *buf) u64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

const modRegDirect = 0b11

func modRM(mod, reg, rm byte) byte { return mod<<6 | reg<<3 | rm }

// rex emits a REX prefix iff one of w/r/x/b is set or force is true (force
// is needed to address the low byte of RSP/RBP/RSI/RDI, which otherwise
// collide with the no-REX AH/CH/DH/BH encodings).
func (w *buf) rex(wBit bool, r, x, b byte, force bool) {
	var rexByte byte = 0x40
	if wBit {
		rexByte |= 0x08
	}
	rexByte |= rexBit(r) << 2
	rexByte |= rexBit(x) << 1
	rexByte |= rexBit(b)
	if rexByte != 0x40 || force {
		w.byte(rexByte)
	}
}

// regRegModRM emits the ModRM byte for a direct register-to-register form.
func (w *buf) regRegModRM(regField, rmField byte) {
	w.byte(modRM(modRegDirect, modrmBits(regField), modrmBits(rmField)))
}

// memModRM emits ModRM (+ SIB + displacement) addressing [base + disp], or
// [base + index*scale + disp] when index is valid. RBP/R13 as a base with
// zero displacement still needs an explicit disp8=0 since mod=00,rm=101 is
// the RIP-relative escape on amd64.
func (w *buf) memModRM(regField byte, base, index micro.Reg, scale byte, disp int32) {
	baseEnc := regEnc(base)
	hasIndex := index.Valid() && !index.IsNoBase()

	needsSIB := modrmBits(baseEnc) == 0b100 || hasIndex
	forceDisp8 := modrmBits(baseEnc) == 0b101 && disp == 0

	var mod byte
	switch {
	case disp == 0 && !forceDisp8:
		mod = 0b00
	case disp >= -128 && disp <= 127:
		mod = 0b01
	default:
		mod = 0b10
	}

	rm := modrmBits(baseEnc)
	if needsSIB {
		rm = 0b100
	}
	w.byte(modRM(mod, modrmBits(regField), rm))
	if needsSIB {
		var indexField byte = 0b100
		if hasIndex {
			indexField = modrmBits(regEnc(index))
		}
		w.byte(scale<<6 | indexField<<3 | modrmBits(baseEnc))
	}
	switch mod {
	case 0b01:
		w.byte(byte(int8(disp)))
	case 0b10:
		w.u32(uint32(disp))
	}
}

// sibScaleFor converts a jump-table entry size into the SIB scale field
// (0=*1, 1=*2, 2=*4, 3=*8); entry sizes outside that set have no indexed
// addressing form on amd64.
func sibScaleFor(entrySize uint32) (byte, error) {
	switch entrySize {
	case 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 8:
		return 3, nil
	default:
		return 0, fmt.Errorf("amd64: jump table entry size %d has no SIB scale", entrySize)
	}
}

func immForBits(bits micro.OpBits, value uint64) (imm []byte) {
	switch bits {
	case micro.B8:
		return []byte{byte(value)}
	case micro.B16:
		var t [2]byte
		binary.LittleEndian.PutUint16(t[:], uint16(value))
		return t[:]
	default:
		var t [4]byte
		binary.LittleEndian.PutUint32(t[:], uint32(value))
		return t[:]
	}
}

// Encoder is the x86-64 implementation of encoder.Encoder.
type Encoder struct{}

// New returns the stateless amd64 encoder singleton.
func New() *Encoder { return &Encoder{} }

func (*Encoder) StackPointerReg() micro.Reg { return RegRSP }
func (*Encoder) StackAlignment() uint64     { return 16 }

func wBitFor(bits micro.OpBits) bool { return bits == micro.B64 }

func opSizePrefix(w *buf, bits micro.OpBits) {
	if bits == micro.B16 {
		w.byte(0x66)
	}
}

// Encode dispatches on inst.Op, following the same operand-slot layout the
// builder filled in at build time (micro.DescriptorOf).
func (e *Encoder) Encode(inst *micro.Instr, ops []micro.Operand, codeOffset int) (encoder.EncodedInstr, error) {
	var w buf
	var reloc *micro.Relocation

	switch inst.Op {
	case micro.OpEnd, micro.OpIgnore, micro.OpDebug:
		// No bytes.

	case micro.OpPush:
		r := regEnc(ops[0].Reg())
		w.rex(false, 0, 0, r, false)
		w.byte(0x50 + modrmBits(r))

	case micro.OpPop:
		r := regEnc(ops[0].Reg())
		w.rex(false, 0, 0, r, false)
		w.byte(0x58 + modrmBits(r))

	case micro.OpNop:
		w.byte(0x90)

	case micro.OpRet:
		w.byte(0xC3)

	case micro.OpLoadRegReg:
		dst, src, bits := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(src), 0, regEnc(dst), bits == micro.B8)
		w.byte(0x89)
		w.regRegModRM(regEnc(src), regEnc(dst))

	case micro.OpLoadRegImm, micro.OpLoadRegPtrImm:
		// LoadRegPtrImm encodes byte-for-byte like LoadRegImm (same
		// register-immediate move); the emit pass is responsible for
		// separately binding the trailing 8 bytes of a B64 form to an
		// Abs64 relocation once it knows the instruction's final offsets,
		// since that bookkeeping has nothing to do with the encoding
		// itself.
		dst, bits, value := ops[0].Reg(), ops[1].OpBits(), ops[2].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), 0, 0, regEnc(dst), bits == micro.B8)
		if bits == micro.B64 {
			w.byte(0xB8 + modrmBits(regEnc(dst)))
			w.u64(value)
		} else if bits == micro.B8 {
			w.byte(0xB0 + modrmBits(regEnc(dst)))
			w.byte(byte(value))
		} else {
			w.byte(0xB8 + modrmBits(regEnc(dst)))
			w.b = append(w.b, immForBits(bits, value)...)
		}

	case micro.OpLoadRegMem:
		dst, base, bits, off := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(dst), 0, regEnc(base), bits == micro.B8)
		w.byte(0x8B)
		w.memModRM(regEnc(dst), base, micro.RegNoBase, 0, int32(off))

	case micro.OpLoadMemReg:
		base, src, bits, off := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(src), 0, regEnc(base), bits == micro.B8)
		w.byte(0x89)
		w.memModRM(regEnc(src), base, micro.RegNoBase, 0, int32(off))

	case micro.OpLoadMemImm:
		base, bits, off, value := ops[0].Reg(), ops[1].OpBits(), ops[2].U64(), ops[3].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), 0, 0, regEnc(base), false)
		w.byte(0xC7)
		w.memModRM(0, base, micro.RegNoBase, 0, int32(off))
		w.b = append(w.b, immForBits(min32Bits(bits), value)...)

	case micro.OpCmpRegReg:
		a, c, bits := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(c), 0, regEnc(a), bits == micro.B8)
		w.byte(0x39)
		w.regRegModRM(regEnc(c), regEnc(a))

	case micro.OpCmpRegImm:
		r, bits, value := ops[0].Reg(), ops[1].OpBits(), ops[2].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), 0, 0, regEnc(r), bits == micro.B8)
		w.byte(0x81)
		w.regRegModRM(7, regEnc(r))
		w.b = append(w.b, immForBits(min32Bits(bits), value)...)

	case micro.OpCmpMemReg:
		base, r, bits, off := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(r), 0, regEnc(base), false)
		w.byte(0x39)
		w.memModRM(regEnc(r), base, micro.RegNoBase, 0, int32(off))

	case micro.OpCmpMemImm:
		base, bits, off, value := ops[0].Reg(), ops[1].OpBits(), ops[2].U64(), ops[3].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), 0, 0, regEnc(base), false)
		w.byte(0x81)
		w.memModRM(7, base, micro.RegNoBase, 0, int32(off))
		w.b = append(w.b, immForBits(min32Bits(bits), value)...)

	case micro.OpCmpRegZero:
		r, bits := ops[0].Reg(), ops[1].OpBits()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(r), 0, regEnc(r), bits == micro.B8)
		w.byte(0x85)
		w.regRegModRM(regEnc(r), regEnc(r))

	case micro.OpSetCondReg:
		r, cond := ops[0].Reg(), ops[1].Cond()
		w.rex(false, 0, 0, regEnc(r), true)
		w.byte(0x0F)
		w.byte(setccOpcode(cond))
		w.regRegModRM(0, regEnc(r))

	case micro.OpLoadCondRegReg:
		dst, src, cond, bits := ops[0].Reg(), ops[1].Reg(), ops[2].Cond(), ops[3].OpBits()
		w.rex(wBitFor(bits), regEnc(dst), 0, regEnc(src), false)
		w.byte(0x0F)
		w.byte(cmovOpcode(cond))
		w.regRegModRM(regEnc(dst), regEnc(src))

	case micro.OpClearReg:
		r, _ := ops[0].Reg(), ops[1].OpBits()
		w.rex(false, regEnc(r), 0, regEnc(r), false)
		w.byte(0x31)
		w.regRegModRM(regEnc(r), regEnc(r))

	case micro.OpBinaryRegReg:
		dst, src, bits, op := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].MicroOp()
		switch {
		case op == micro.OpMultiply:
			// IMUL dst, src (0F AF /r) is an RM-form encoding: ModRM.reg is
			// the destination and ModRM.rm the source, the reverse of the
			// MR convention the other ALU ops use. Low bits of signed and
			// unsigned multiplication are identical, so IMUL covers both.
			opSizePrefix(&w, bits)
			w.rex(wBitFor(bits), regEnc(dst), 0, regEnc(src), bits == micro.B8)
			w.byte(0x0F)
			w.byte(0xAF)
			w.regRegModRM(regEnc(dst), regEnc(src))

		case isShift(op):
			// conformance.go's isShift rewrite has already forced src into
			// RCX, so only dst's encoding matters here; the count is always
			// implicit CL.
			opSizePrefix(&w, bits)
			w.rex(wBitFor(bits), 0, 0, regEnc(dst), bits == micro.B8)
			w.byte(0xD3)
			w.regRegModRM(shiftOpcodeExt(op), regEnc(dst))

		case isDivide(op):
			// conformance.go's isDivide rewrites have already forced
			// dst == RAX and src != RDX; the dividend is the implicit
			// RDX:RAX pair, so RDX must be prepared before the divide
			// itself (sign-extended from RAX for IDIV, zeroed for DIV).
			if op == micro.OpDivideSigned {
				opSizePrefix(&w, bits)
				if bits == micro.B64 {
					w.byte(0x48)
				}
				w.byte(0x99) // cwd/cdq/cqo
			} else {
				opSizePrefix(&w, bits)
				w.rex(wBitFor(bits), regEnc(RegRDX), 0, regEnc(RegRDX), false)
				w.byte(0x31) // xor edx, edx
				w.regRegModRM(regEnc(RegRDX), regEnc(RegRDX))
			}
			opSizePrefix(&w, bits)
			w.rex(wBitFor(bits), 0, 0, regEnc(src), bits == micro.B8)
			w.byte(0xF7)
			w.regRegModRM(divOpcodeExt(op), regEnc(src))

		default:
			opSizePrefix(&w, bits)
			w.rex(wBitFor(bits), regEnc(src), 0, regEnc(dst), bits == micro.B8)
			w.byte(binaryOpcodeRegReg(op, bits))
			w.regRegModRM(regEnc(src), regEnc(dst))
		}

	case micro.OpBinaryRegImm:
		r, bits, op, value := ops[0].Reg(), ops[1].OpBits(), ops[2].MicroOp(), ops[3].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), 0, 0, regEnc(r), bits == micro.B8)
		w.byte(0x81)
		w.regRegModRM(arithOpcodeExt(op), regEnc(r))
		w.b = append(w.b, immForBits(min32Bits(bits), value)...)

	case micro.OpBinaryRegMem:
		dst, base, bits, op, off := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].MicroOp(), ops[4].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(dst), 0, regEnc(base), false)
		w.byte(binaryOpcodeRegReg(op, bits))
		w.memModRM(regEnc(dst), base, micro.RegNoBase, 0, int32(off))

	case micro.OpBinaryMemReg:
		base, r, bits, op, off := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].MicroOp(), ops[4].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(r), 0, regEnc(base), false)
		w.byte(binaryOpcodeRegRegToMem(op, bits))
		w.memModRM(regEnc(r), base, micro.RegNoBase, 0, int32(off))

	case micro.OpBinaryMemImm:
		base, bits, op, off, value := ops[0].Reg(), ops[1].OpBits(), ops[2].MicroOp(), ops[3].U64(), ops[4].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), 0, 0, regEnc(base), false)
		w.byte(0x81)
		w.memModRM(arithOpcodeExt(op), base, micro.RegNoBase, 0, int32(off))
		w.b = append(w.b, immForBits(min32Bits(bits), value)...)

	case micro.OpUnaryReg:
		r, bits, op := ops[0].Reg(), ops[1].OpBits(), ops[2].MicroOp()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), 0, 0, regEnc(r), bits == micro.B8)
		w.byte(0xF7)
		w.regRegModRM(unaryOpcodeExt(op), regEnc(r))

	case micro.OpUnaryMem:
		base, bits, op, off := ops[0].Reg(), ops[1].OpBits(), ops[2].MicroOp(), ops[3].U64()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), 0, 0, regEnc(base), false)
		w.byte(0xF7)
		w.memModRM(unaryOpcodeExt(op), base, micro.RegNoBase, 0, int32(off))

	case micro.OpLoadSignedExtRegReg:
		dst, src, bitsDst, bitsSrc := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].OpBits()
		opSizePrefix(&w, bitsDst)
		w.rex(wBitFor(bitsDst), regEnc(dst), 0, regEnc(src), bitsSrc == micro.B8)
		if bitsSrc == micro.B32 {
			w.byte(0x63) // movsxd
		} else {
			w.byte(0x0F)
			w.byte(movsxOpcode(bitsSrc))
		}
		w.regRegModRM(regEnc(dst), regEnc(src))

	case micro.OpLoadSignedExtRegMem:
		dst, base, bitsDst, bitsSrc, off := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].OpBits(), ops[4].U64()
		opSizePrefix(&w, bitsDst)
		w.rex(wBitFor(bitsDst), regEnc(dst), 0, regEnc(base), false)
		if bitsSrc == micro.B32 {
			w.byte(0x63) // movsxd
		} else {
			w.byte(0x0F)
			w.byte(movsxOpcode(bitsSrc))
		}
		w.memModRM(regEnc(dst), base, micro.RegNoBase, 0, int32(off))

	case micro.OpLoadZeroExtRegReg:
		dst, src, bitsDst, bitsSrc := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].OpBits()
		if bitsSrc == micro.B32 {
			// A plain 32-bit move already zeroes the upper 32 bits.
			w.rex(false, regEnc(dst), 0, regEnc(src), false)
			w.byte(0x8B)
			w.regRegModRM(regEnc(dst), regEnc(src))
		} else {
			w.rex(wBitFor(bitsDst), regEnc(dst), 0, regEnc(src), bitsSrc == micro.B8)
			w.byte(0x0F)
			w.byte(movzxOpcode(bitsSrc))
			w.regRegModRM(regEnc(dst), regEnc(src))
		}

	case micro.OpLoadZeroExtRegMem:
		dst, base, bitsDst, bitsSrc, off := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].OpBits(), ops[4].U64()
		if bitsSrc == micro.B32 {
			// A plain 32-bit load already zeroes the upper 32 bits.
			w.rex(false, regEnc(dst), 0, regEnc(base), false)
			w.byte(0x8B)
			w.memModRM(regEnc(dst), base, micro.RegNoBase, 0, int32(off))
		} else {
			w.rex(wBitFor(bitsDst), regEnc(dst), 0, regEnc(base), false)
			w.byte(0x0F)
			w.byte(movzxOpcode(bitsSrc))
			w.memModRM(regEnc(dst), base, micro.RegNoBase, 0, int32(off))
		}

	case micro.OpLoadAddrRegMem:
		dst, base, bits, off := ops[0].Reg(), ops[1].Reg(), ops[2].OpBits(), ops[3].U64()
		w.rex(wBitFor(bits), regEnc(dst), 0, regEnc(base), false)
		w.byte(0x8D)
		w.memModRM(regEnc(dst), base, micro.RegNoBase, 0, int32(off))

	case micro.OpLoadAmcRegMem:
		dst, base, index, bitsDst, bitsSrc, mul, add := ops[0].Reg(), ops[1].Reg(), ops[2].Reg(), ops[3].OpBits(), ops[4].OpBits(), ops[5].U64(), ops[6].U64()
		_ = bitsDst // the memory access width is bitsSrc; dst/src are assumed same-width
		scale, serr := sibScaleFor(uint32(mul))
		if serr != nil {
			return encoder.EncodedInstr{}, serr
		}
		opSizePrefix(&w, bitsSrc)
		w.rex(wBitFor(bitsSrc), regEnc(dst), regEnc(index), regEnc(base), false)
		w.byte(0x8B)
		w.memModRM(regEnc(dst), base, index, scale, int32(add))

	case micro.OpLoadAmcMemReg:
		base, index, src, bitsBaseMul, bitsSrc, mul, add := ops[0].Reg(), ops[1].Reg(), ops[2].Reg(), ops[3].OpBits(), ops[4].OpBits(), ops[5].U64(), ops[6].U64()
		_ = bitsBaseMul
		scale, serr := sibScaleFor(uint32(mul))
		if serr != nil {
			return encoder.EncodedInstr{}, serr
		}
		opSizePrefix(&w, bitsSrc)
		w.rex(wBitFor(bitsSrc), regEnc(src), regEnc(index), regEnc(base), false)
		w.byte(0x89)
		w.memModRM(regEnc(src), base, index, scale, int32(add))

	case micro.OpLoadAmcMemImm:
		base, index, bitsBaseMul, bitsValue, mul, add, value := ops[0].Reg(), ops[1].Reg(), ops[3].OpBits(), ops[4].OpBits(), ops[5].U64(), ops[6].U64(), ops[7].U64()
		_ = bitsBaseMul
		scale, serr := sibScaleFor(uint32(mul))
		if serr != nil {
			return encoder.EncodedInstr{}, serr
		}
		opSizePrefix(&w, bitsValue)
		w.rex(wBitFor(bitsValue), 0, regEnc(index), regEnc(base), false)
		w.byte(0xC7)
		w.memModRM(0, base, index, scale, int32(add))
		w.b = append(w.b, immForBits(min32Bits(bitsValue), value)...)

	case micro.OpLoadAddrAmcRegMem:
		dst, base, index, bitsDst, mul, add := ops[0].Reg(), ops[1].Reg(), ops[2].Reg(), ops[3].OpBits(), ops[5].U64(), ops[6].U64()
		scale, serr := sibScaleFor(uint32(mul))
		if serr != nil {
			return encoder.EncodedInstr{}, serr
		}
		w.rex(wBitFor(bitsDst), regEnc(dst), regEnc(index), regEnc(base), false)
		w.byte(0x8D)
		w.memModRM(regEnc(dst), base, index, scale, int32(add))

	case micro.OpTernaryRegRegReg:
		// Only CompareExchange has a ternary form today. CMPXCHG's
		// comparand accumulator is hardwired to RAX by the CPU; src0 (ops[1])
		// must already be allocated there: QueryConformanceIssue has no
		// case for OpTernaryRegRegReg, so nothing moves it. ModRM.reg is the
		// "new value" operand, ModRM.rm the comparand target.
		dst, src1, bits := ops[0].Reg(), ops[2].Reg(), ops[3].OpBits()
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(src1), 0, regEnc(dst), bits == micro.B8)
		w.byte(0x0F)
		if bits == micro.B8 {
			w.byte(0xB0)
		} else {
			w.byte(0xB1)
		}
		w.regRegModRM(regEnc(src1), regEnc(dst))

	case micro.OpSymbolRelocAddr:
		dst, symbol, addend := ops[0].Reg(), ops[1].U32(), ops[2].U32()
		w.rex(true, 0, 0, regEnc(dst), false)
		w.byte(0xB8 + modrmBits(regEnc(dst)))
		relocOffset := codeOffset + len(w.b)
		w.u64(0)
		reloc = &micro.Relocation{
			Kind:          micro.RelocAbs64,
			CodeOffset:    relocOffset,
			TargetSymbol:  micro.NameRef(symbol),
			TargetAddress: uint64(addend),
		}

	case micro.OpSymbolRelocValue:
		dst, bits, symbol, addend := ops[0].Reg(), ops[1].OpBits(), ops[2].U32(), ops[3].U32()
		w.rex(true, 0, 0, regEnc(dst), false)
		w.byte(0xB8 + modrmBits(regEnc(dst)))
		relocOffset := codeOffset + len(w.b)
		w.u64(0)
		reloc = &micro.Relocation{
			Kind:          micro.RelocAbs64,
			CodeOffset:    relocOffset,
			TargetSymbol:  micro.NameRef(symbol),
			TargetAddress: uint64(addend),
		}
		opSizePrefix(&w, bits)
		w.rex(wBitFor(bits), regEnc(dst), 0, regEnc(dst), bits == micro.B8)
		w.byte(0x8B)
		w.memModRM(regEnc(dst), dst, micro.RegNoBase, 0, 0)

	case micro.OpJumpReg:
		r := ops[0].Reg()
		w.rex(false, 0, 0, regEnc(r), false)
		w.byte(0xFF)
		w.regRegModRM(4, regEnc(r))

	case micro.OpCallIndirect:
		r := ops[0].Reg()
		w.rex(false, 0, 0, regEnc(r), false)
		w.byte(0xFF)
		w.regRegModRM(2, regEnc(r))

	case micro.OpJumpTable:
		// jmp [base + idx*entrySize + disp]. entryCount (ops[3]) bounds the
		// table at build time and carries no weight in the byte encoding
		// itself, so it's unused here.
		idx, base, disp, entrySize := ops[0].Reg(), ops[1].Reg(), ops[2].I32(), ops[4].U32()
		scale, serr := sibScaleFor(entrySize)
		if serr != nil {
			return encoder.EncodedInstr{}, serr
		}
		w.rex(false, 0, regEnc(idx), regEnc(base), false)
		w.byte(0xFF)
		w.memModRM(4, base, idx, scale, disp)

	default:
		return encoder.EncodedInstr{}, fmt.Errorf("amd64: unsupported opcode %s for direct encoding", inst.Op)
	}

	return encoder.EncodedInstr{Bytes: w.b, Relocation: reloc}, nil
}

// min32Bits clamps an immediate width to the widest directly-encodable
// 32-bit immediate form. 64-bit immediate stores to memory are split by the
// legalize pass (SplitLoadMemImm64/SplitLoadAmcMemImm64) before reaching the
// encoder; a B64 binary-op or compare immediate is encoded as its low 32
// bits, which the CPU sign-extends to 64.
func min32Bits(bits micro.OpBits) micro.OpBits {
	if bits == micro.B64 {
		return micro.B32
	}
	return bits
}

