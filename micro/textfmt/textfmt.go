// Package textfmt parses and prints the line-per-instruction text form
// ("opname op1, op2, ...") of a micro-instruction stream used by
// cmd/microdump. Formatting is driven entirely by micro.DescriptorOf, the same
// operand-slot table the encoder and use/def collector already key off —
// there is deliberately no opcode-by-opcode switch here, since every slot
// already knows its own Kind.
package textfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
)

// Print renders every live instruction in store, one per line, in its
// descriptor's textual form: "opname op1, op2, ...".
func Print(store *micro.Store, ops *micro.OperandStore) string {
	var sb strings.Builder
	for it := store.View(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		var operands []micro.Operand
		if inst.NumOperands > 0 {
			operands = ops.Slice(inst.Ops, int(inst.NumOperands))
		}
		sb.WriteString(FormatInstr(inst.Op, operands))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatInstr renders one instruction's opcode and operands.
func FormatInstr(op micro.Opcode, operands []micro.Operand) string {
	desc := micro.DescriptorOf(op)
	tokens := make([]string, len(operands))
	for i, o := range operands {
		tokens[i] = formatOperand(desc.Slots[i].Kind, o)
	}
	if len(tokens) == 0 {
		return op.String()
	}
	return op.String() + " " + strings.Join(tokens, ", ")
}

func formatOperand(kind micro.SlotKind, o micro.Operand) string {
	switch kind {
	case micro.SlotReg:
		return o.Reg().String()
	case micro.SlotOpBits:
		return o.OpBits().String()
	case micro.SlotCond:
		return o.Cond().String()
	case micro.SlotMicroOp:
		return o.MicroOp().String()
	case micro.SlotCallConv:
		return o.CallConv().String()
	case micro.SlotName:
		return fmt.Sprintf("n%d", o.Name())
	case micro.SlotLabel:
		return fmt.Sprintf("l%d", o.Label())
	case micro.SlotConstant:
		return fmt.Sprintf("c%d", o.Constant())
	case micro.SlotU32:
		return strconv.FormatUint(uint64(o.U32()), 10)
	case micro.SlotI32:
		return strconv.FormatInt(int64(o.I32()), 10)
	default: // SlotU64
		return strconv.FormatUint(o.U64(), 10)
	}
}

// Parse reads a text-form instruction stream and appends every instruction
// it describes to b, in order. Blank lines and lines starting with '#' are
// ignored.
func Parse(text string, b *builder.Builder) error {
	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := parseLine(line, b); err != nil {
			return fmt.Errorf("textfmt: line %d: %w", lineNo+1, err)
		}
	}
	return nil
}

func parseLine(line string, b *builder.Builder) error {
	name, rest, _ := strings.Cut(line, " ")
	op, ok := micro.OpcodeByName(name)
	if !ok {
		return fmt.Errorf("unknown opcode %q", name)
	}
	desc := micro.DescriptorOf(op)

	var toks []string
	rest = strings.TrimSpace(rest)
	if rest != "" {
		for _, t := range strings.Split(rest, ",") {
			toks = append(toks, strings.TrimSpace(t))
		}
	}
	if len(toks) != desc.NumOperands {
		return fmt.Errorf("%s: expected %d operands, got %d", name, desc.NumOperands, len(toks))
	}

	operands := make([]micro.Operand, len(toks))
	for i, t := range toks {
		o, err := parseOperand(desc.Slots[i].Kind, t)
		if err != nil {
			return fmt.Errorf("%s: operand %d (%q): %w", name, i, t, err)
		}
		operands[i] = o
	}
	b.EmitRaw(op, operands)
	return nil
}

func parseOperand(kind micro.SlotKind, tok string) (micro.Operand, error) {
	switch kind {
	case micro.SlotReg:
		r, err := parseReg(tok)
		if err != nil {
			return micro.Operand{}, err
		}
		return micro.OperandReg(r), nil
	case micro.SlotOpBits:
		b, ok := opBitsNames[tok]
		if !ok {
			return micro.Operand{}, fmt.Errorf("unknown opbits %q", tok)
		}
		return micro.OperandOpBits(b), nil
	case micro.SlotCond:
		c, ok := condNames[tok]
		if !ok {
			return micro.Operand{}, fmt.Errorf("unknown cond %q", tok)
		}
		return micro.OperandCond(c), nil
	case micro.SlotMicroOp:
		m, ok := microOpNames[tok]
		if !ok {
			return micro.Operand{}, fmt.Errorf("unknown op %q", tok)
		}
		return micro.OperandMicroOp(m), nil
	case micro.SlotCallConv:
		k, ok := callConvNames[tok]
		if !ok {
			return micro.Operand{}, fmt.Errorf("unknown callconv %q", tok)
		}
		return micro.OperandCallConv(k), nil
	case micro.SlotName:
		v, err := parsePrefixedUint(tok, 'n')
		if err != nil {
			return micro.Operand{}, err
		}
		return micro.OperandName(micro.NameRef(v)), nil
	case micro.SlotLabel:
		v, err := parsePrefixedUint(tok, 'l')
		if err != nil {
			return micro.Operand{}, err
		}
		return micro.OperandLabel(micro.LabelRef(v)), nil
	case micro.SlotConstant:
		v, err := parsePrefixedUint(tok, 'c')
		if err != nil {
			return micro.Operand{}, err
		}
		return micro.OperandConstant(micro.ConstantRef(v)), nil
	case micro.SlotU32:
		v, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return micro.Operand{}, err
		}
		return micro.OperandU32(uint32(v)), nil
	case micro.SlotI32:
		v, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return micro.Operand{}, err
		}
		return micro.OperandI32(int32(v)), nil
	default: // SlotU64
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return micro.Operand{}, err
		}
		return micro.OperandU64(v), nil
	}
}

func parsePrefixedUint(tok string, prefix byte) (uint64, error) {
	if len(tok) == 0 || tok[0] != prefix {
		return 0, fmt.Errorf("expected %q prefix", string(prefix))
	}
	return strconv.ParseUint(tok[1:], 10, 32)
}

// parseReg parses the exact form Reg.String() produces: %v3.int, %p0.float,
// <invalid>, or <nobase>.
func parseReg(tok string) (micro.Reg, error) {
	switch tok {
	case "<invalid>":
		return micro.RegInvalid, nil
	case "<nobase>":
		return micro.RegNoBase, nil
	}
	if len(tok) < 4 || tok[0] != '%' {
		return 0, fmt.Errorf("malformed register %q", tok)
	}
	virtual := tok[1] == 'v'
	if !virtual && tok[1] != 'p' {
		return 0, fmt.Errorf("malformed register %q", tok)
	}
	body := tok[2:]
	idxStr, className, ok := strings.Cut(body, ".")
	if !ok {
		return 0, fmt.Errorf("malformed register %q", tok)
	}
	idx, err := strconv.ParseUint(idxStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed register index %q", tok)
	}
	class, ok := regClassNames[className]
	if !ok {
		return 0, fmt.Errorf("unknown register class %q", className)
	}
	return micro.MakeReg(class, virtual, uint32(idx)), nil
}

var regClassNames = map[string]micro.RegClass{
	"int":     micro.RegClassInt,
	"float":   micro.RegClassFloat,
	"special": micro.RegClassSpecial,
}

var opBitsNames = map[string]micro.OpBits{
	"b0": micro.BitsZero, "b8": micro.B8, "b16": micro.B16,
	"b32": micro.B32, "b64": micro.B64, "b128": micro.B128,
}

var condNames = map[string]micro.Cond{
	"none": micro.CondNone, "eq": micro.CondEqual, "ne": micro.CondNotEqual,
	"lt": micro.CondLess, "le": micro.CondLessEqual, "gt": micro.CondGreater, "ge": micro.CondGreaterEqual,
	"above": micro.CondAbove, "aboveeq": micro.CondAboveEqual,
	"below": micro.CondBelow, "beloweq": micro.CondBelowEqual,
	"overflow": micro.CondOverflow, "noverflow": micro.CondNoOverflow,
	"sign": micro.CondSign, "nosign": micro.CondNoSign,
}

var microOpNames = map[string]micro.MicroOp{
	"none": micro.OpNone, "add": micro.OpAdd, "sub": micro.OpSubtract,
	"and": micro.OpAnd, "or": micro.OpOr, "xor": micro.OpXor, "mul": micro.OpMultiply,
	"idiv": micro.OpDivideSigned, "div": micro.OpDivideUnsigned,
	"shl": micro.OpShiftLeft, "shr": micro.OpShiftRightLogical, "sar": micro.OpShiftRightArith,
	"neg": micro.OpNegate, "not": micro.OpNot, "xchg": micro.OpExchange, "cmpxchg": micro.OpCompareExchange,
}

var callConvNames = map[string]micro.CallConvKind{
	"sysv": micro.CallConvSysV, "cdecl32": micro.CallConvCdecl32,
}
