package micro

// UseDef is the per-instruction result of collectUseDef: which registers
// the instruction reads and writes, and — if it is a call — which calling
// convention governs its clobber set.
type UseDef struct {
	Uses     []Reg
	Defs     []Reg
	IsCall   bool
	CallConv CallConvKind
}

func addUse(ud *UseDef, r Reg) {
	if r.Valid() && !r.IsNoBase() {
		ud.Uses = append(ud.Uses, r)
	}
}

func addDef(ud *UseDef, r Reg) {
	if r.Valid() && !r.IsNoBase() {
		ud.Defs = append(ud.Defs, r)
	}
}

func addUseDef(ud *UseDef, r Reg) {
	addUse(ud, r)
	addDef(ud, r)
}

// CollectUseDef applies the opcode's static descriptor (after resolving any
// micro-op-dependent special case) and returns the set of registers used
// and defined by inst.
func CollectUseDef(inst *Instr, ops []Operand) UseDef {
	d := DescriptorOf(inst.Op)
	slots := d.Slots
	if d.SpecialCaseRole != nil {
		d.SpecialCaseRole(ops, &slots, d.NumOperands)
	}

	var ud UseDef
	if d.IsCall {
		ud.IsCall = true
		ud.CallConv = ops[d.CallConvSlot].CallConv()
	}
	for i := 0; i < d.NumOperands; i++ {
		if slots[i].Kind != SlotReg {
			continue
		}
		switch slots[i].Role {
		case RoleUse:
			addUse(&ud, ops[i].Reg())
		case RoleDef:
			addDef(&ud, ops[i].Reg())
		case RoleUseDef:
			addUseDef(&ud, ops[i].Reg())
		}
	}
	return ud
}

// RegOperandRef is a mutable handle onto one register-typed operand slot,
// used by the register allocator and legalizer to rewrite virtual
// registers into physical ones in place.
type RegOperandRef struct {
	Ops   []Operand
	Index int
	Use   bool
	Def   bool
}

// Reg returns the current value of the referenced slot.
func (r RegOperandRef) Reg() Reg { return r.Ops[r.Index].Reg() }

// SetReg rewrites the referenced slot in place.
func (r RegOperandRef) SetReg(reg Reg) { r.Ops[r.Index].SetReg(reg) }

// CollectRegOperands returns a mutable handle for every register-typed
// operand slot of inst, after resolving micro-op-dependent role flips.
// Order matches Opcode descriptor order (low index first), which is what
// the register allocator's deterministic protected-set ordering relies on.
func CollectRegOperands(inst *Instr, ops []Operand) []RegOperandRef {
	d := DescriptorOf(inst.Op)
	slots := d.Slots
	if d.SpecialCaseRole != nil {
		d.SpecialCaseRole(ops, &slots, d.NumOperands)
	}

	var out []RegOperandRef
	for i := 0; i < d.NumOperands; i++ {
		if slots[i].Kind != SlotReg {
			continue
		}
		reg := ops[i].Reg()
		if !reg.Valid() || reg.IsNoBase() {
			continue
		}
		role := slots[i].Role
		if role == RoleNone {
			continue
		}
		out = append(out, RegOperandRef{
			Ops: ops, Index: i,
			Use: role == RoleUse || role == RoleUseDef,
			Def: role == RoleDef || role == RoleUseDef,
		})
	}
	return out
}
