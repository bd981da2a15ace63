package micro

// Operand is a single micro-instruction operand slot. Its interpretation is
// fixed by the owning instruction's opcode and slot position — there is no
// runtime tag, matching the opcode descriptor table being the only source
// of truth for "what is slot i of opcode X". A Operand is a packed uint64
// payload rather than a tagged union: the opcode is the tag.
type Operand struct {
	bits uint64
}

// OperandReg builds a register operand.
func OperandReg(r Reg) Operand { return Operand{bits: uint64(r)} }

// Reg reinterprets the payload as a Reg.
func (o Operand) Reg() Reg { return Reg(o.bits) }

// SetReg rewrites the payload in place as a Reg, used by legalization and
// register allocation to patch an operand without reallocating the slot.
func (o *Operand) SetReg(r Reg) { o.bits = uint64(r) }

// OperandOpBits builds an op-bits operand.
func OperandOpBits(b OpBits) Operand { return Operand{bits: uint64(b)} }

func (o Operand) OpBits() OpBits    { return OpBits(o.bits) }
func (o *Operand) SetOpBits(b OpBits) { o.bits = uint64(b) }

// OperandCond builds a condition-code operand.
func OperandCond(c Cond) Operand { return Operand{bits: uint64(c)} }
func (o Operand) Cond() Cond     { return Cond(o.bits) }

// OperandMicroOp builds a micro-op operand.
func OperandMicroOp(m MicroOp) Operand { return Operand{bits: uint64(m)} }
func (o Operand) MicroOp() MicroOp     { return MicroOp(o.bits) }

// OperandCallConv builds a call-convention-kind operand.
func OperandCallConv(k CallConvKind) Operand { return Operand{bits: uint64(k)} }
func (o Operand) CallConv() CallConvKind     { return CallConvKind(o.bits) }

// OperandName builds a name-reference operand.
func OperandName(n NameRef) Operand { return Operand{bits: uint64(n)} }
func (o Operand) Name() NameRef     { return NameRef(o.bits) }

// OperandLabel builds a label-reference operand (used by the Label opcode
// and by jump targets resolved before emission).
func OperandLabel(l LabelRef) Operand { return Operand{bits: uint64(l)} }
func (o Operand) Label() LabelRef     { return LabelRef(o.bits) }

// OperandConstant builds a constant-pool-reference operand.
func OperandConstant(c ConstantRef) Operand { return Operand{bits: uint64(c)} }
func (o Operand) Constant() ConstantRef     { return ConstantRef(o.bits) }

// OperandU64 builds a raw 64-bit immediate operand.
func OperandU64(v uint64) Operand { return Operand{bits: v} }
func (o Operand) U64() uint64     { return o.bits }
func (o *Operand) SetU64(v uint64) { o.bits = v }

// OperandU32 builds a 32-bit unsigned immediate operand.
func OperandU32(v uint32) Operand { return Operand{bits: uint64(v)} }
func (o Operand) U32() uint32     { return uint32(o.bits) }

// OperandI32 builds a 32-bit signed immediate operand.
func OperandI32(v int32) Operand { return Operand{bits: uint64(uint32(v))} }
func (o Operand) I32() int32     { return int32(uint32(o.bits)) }

// InstrRef is a stable reference to a node in the instruction store. It
// remains valid for the lifetime of the builder it came from, i.e. until
// the slot is erased and subsequently reused.
type InstrRef int32

// InstrRefInvalid is the label-table "not yet placed" sentinel.
const InstrRefInvalid InstrRef = -1

// OpsRef is a reference into the operand store: a span of n consecutive
// operand slots starting at an index, where n is the owning instruction's
// NumOperands.
type OpsRef int32

const OpsRefInvalid OpsRef = -1
