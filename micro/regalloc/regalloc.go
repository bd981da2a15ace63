// Package regalloc assigns a physical register to every virtual register
// operand in a micro-instruction stream: a linear-scan pass over the final
// instruction ordering, with spill-to-stack fallback once a register class's
// free pool runs dry.
package regalloc

import (
	"math"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
	"github.com/swag-lang/swc-sub002/micro/encoder"
	"github.com/swag-lang/swc-sub002/micro/microabi"
	"github.com/swag-lang/swc-sub002/microerr"
)

const (
	intSpillSlotSize   = 8
	floatSpillSlotSize = 16
	stackAlign         = 16
)

type regMapping struct {
	phys  micro.Reg
	dirty bool
}

type spillSlotInfo struct {
	offset    uint64
	allocated bool
}

func instrOrder(instructions *micro.Store) []micro.InstrRef {
	var order []micro.InstrRef
	for it := instructions.View(); it.Valid(); it = it.Next() {
		order = append(order, it.Ref())
	}
	return order
}

func poolOf(all, persistentSet []micro.Reg, wantPersistent bool) []micro.Reg {
	isPersistent := func(r micro.Reg) bool {
		for _, p := range persistentSet {
			if p == r {
				return true
			}
		}
		return false
	}
	var out []micro.Reg
	for _, r := range all {
		if isPersistent(r) == wantPersistent {
			out = append(out, r)
		}
	}
	return out
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// insertSpillFrame reserves frameSize bytes of stack for the function body,
// bracketing it with a sub before the first instruction and an add before
// every Ret — the same shape the legalizer and prolog/epilog passes use for
// their own stack reservations, kept as a separate frame since the three
// passes run independently and none knows the others' sizing ahead of time.
func insertSpillFrame(instructions *micro.Store, b *builder.Builder, sp micro.Reg, frameSize uint64) {
	first := instructions.View()
	if !first.Valid() {
		return
	}
	_, subOps := b.InsertBefore(first.Ref(), micro.OpBinaryRegImm, 4)
	subOps[0] = micro.OperandReg(sp)
	subOps[1] = micro.OperandOpBits(micro.B64)
	subOps[2] = micro.OperandMicroOp(micro.OpSubtract)
	subOps[3] = micro.OperandU64(frameSize)

	var retRefs []micro.InstrRef
	for it := instructions.View(); it.Valid(); it = it.Next() {
		if it.Instr().Op == micro.OpRet {
			retRefs = append(retRefs, it.Ref())
		}
	}
	for _, ref := range retRefs {
		_, addOps := b.InsertBefore(ref, micro.OpBinaryRegImm, 4)
		addOps[0] = micro.OperandReg(sp)
		addOps[1] = micro.OperandOpBits(micro.B64)
		addOps[2] = micro.OperandMicroOp(micro.OpAdd)
		addOps[3] = micro.OperandU64(frameSize)
	}
}

// Allocate rewrites every virtual register operand in instructions to a
// physical register drawn from conv's pools, inserting spill stores/loads
// and a bracketing stack frame as needed. It reports whether it changed the
// stream: false for an empty stream or one with no virtual register operand.
// funcName is used only to attribute a *microerr.Fatal if the allocator
// cannot make progress; it does not affect allocation itself. enc supplies
// the target's implicit register effects (see Encoder.UpdateRegUseDef) that
// the opcode descriptor alone cannot express.
func Allocate(funcName string, instructions *micro.Store, b *builder.Builder, conv microabi.CallConv, enc encoder.Encoder) bool {
	order := instrOrder(instructions)
	n := len(order)
	if n == 0 {
		return false
	}

	liveOut := make([]map[micro.Reg]struct{}, n)
	liveAcrossCall := make(map[micro.Reg]bool)
	live := make(map[micro.Reg]struct{})

	for i := n - 1; i >= 0; i-- {
		inst := instructions.Ptr(order[i])
		ud := micro.CollectUseDef(inst, b.Ops(inst))
		enc.UpdateRegUseDef(inst, b.Ops(inst), &ud)

		out := make(map[micro.Reg]struct{}, len(live))
		for r := range live {
			out[r] = struct{}{}
		}
		liveOut[i] = out

		if ud.IsCall {
			for r := range live {
				liveAcrossCall[r] = true
			}
		}
		for _, r := range ud.Defs {
			if r.IsVirtual() {
				delete(live, r)
			}
		}
		for _, r := range ud.Uses {
			if r.IsVirtual() {
				live[r] = struct{}{}
			}
		}
	}

	usePositions := make(map[micro.Reg][]int)
	for i := 0; i < n; i++ {
		inst := instructions.Ptr(order[i])
		ud := micro.CollectUseDef(inst, b.Ops(inst))
		enc.UpdateRegUseDef(inst, b.Ops(inst), &ud)
		for _, r := range ud.Uses {
			if r.IsVirtual() {
				usePositions[r] = append(usePositions[r], i)
			}
		}
	}
	nextUseDistance := func(key micro.Reg, idx int) int {
		for _, p := range usePositions[key] {
			if p > idx {
				return p - idx
			}
		}
		return math.MaxInt64
	}

	freeIntTransient := poolOf(conv.IntRegs, conv.IntPersistentRegs, false)
	freeIntPersistent := poolOf(conv.IntRegs, conv.IntPersistentRegs, true)
	freeFloatTransient := poolOf(conv.FloatRegs, conv.FloatPersistentRegs, false)
	freeFloatPersistent := poolOf(conv.FloatRegs, conv.FloatPersistentRegs, true)

	isPersistentPhys := func(r micro.Reg) bool {
		set := conv.IntPersistentRegs
		if r.Class() == micro.RegClassFloat {
			set = conv.FloatPersistentRegs
		}
		for _, p := range set {
			if p == r {
				return true
			}
		}
		return false
	}

	popBack := func(pool *[]micro.Reg) micro.Reg {
		p := *pool
		r := p[len(p)-1]
		*pool = p[:len(p)-1]
		return r
	}

	freePhysical := func(r micro.Reg) {
		persistent := isPersistentPhys(r)
		switch r.Class() {
		case micro.RegClassInt:
			if persistent {
				freeIntPersistent = append(freeIntPersistent, r)
			} else {
				freeIntTransient = append(freeIntTransient, r)
			}
		case micro.RegClassFloat:
			if persistent {
				freeFloatPersistent = append(freeFloatPersistent, r)
			} else {
				freeFloatTransient = append(freeFloatTransient, r)
			}
		}
	}

	mapping := make(map[micro.Reg]*regMapping)
	spillSlots := make(map[micro.Reg]spillSlotInfo)
	var spillFrameUsed uint64

	allocSpillSlot := func(key micro.Reg) uint64 {
		if info, ok := spillSlots[key]; ok {
			return info.offset
		}
		size := uint64(intSpillSlotSize)
		if key.Class() == micro.RegClassFloat {
			size = floatSpillSlotSize
		}
		spillFrameUsed = alignUp(spillFrameUsed, size)
		offset := spillFrameUsed
		spillFrameUsed += size
		spillSlots[key] = spillSlotInfo{offset: offset, allocated: true}
		return offset
	}

	spillBits := func(key micro.Reg) micro.OpBits {
		if key.Class() == micro.RegClassFloat {
			return micro.B128
		}
		return micro.B64
	}

	emitSpillStore := func(before micro.InstrRef, key, phys micro.Reg) {
		offset := allocSpillSlot(key)
		_, ops := b.InsertBefore(before, micro.OpLoadMemReg, 4)
		ops[0] = micro.OperandReg(conv.StackPointer)
		ops[1] = micro.OperandReg(phys)
		ops[2] = micro.OperandOpBits(spillBits(key))
		ops[3] = micro.OperandU64(offset)
	}

	emitSpillLoad := func(before micro.InstrRef, key, phys micro.Reg) {
		info := spillSlots[key]
		_, ops := b.InsertBefore(before, micro.OpLoadRegMem, 4)
		ops[0] = micro.OperandReg(phys)
		ops[1] = micro.OperandReg(conv.StackPointer)
		ops[2] = micro.OperandOpBits(spillBits(key))
		ops[3] = micro.OperandU64(info.offset)
	}

	// evict picks the currently-mapped vreg of class with the highest
	// badness among those whose physical register sits in wantPersistent's
	// sub-pool (falling back to the other sub-pool if that one holds no
	// mapping), spills it if its value isn't already safely on the stack,
	// and returns its freed physical register. Badness order: dead (not
	// live-out here) beats live, a clean existing spill slot beats a dirty
	// or absent one, a farther next use beats a nearer one, and a larger
	// vreg key breaks any remaining tie — a deterministic total order, so
	// Go's randomized map iteration below never affects the outcome.
	evict := func(before micro.InstrRef, idx int, class micro.RegClass, wantPersistent bool, protected map[micro.Reg]bool) micro.Reg {
		var bestKey micro.Reg
		var bestMap *regMapping
		found := false

		better := func(key micro.Reg, m *regMapping) bool {
			if !found {
				return true
			}
			_, keyLive := liveOut[idx][key]
			_, bestLive := liveOut[idx][bestKey]
			deadA, deadB := !keyLive, !bestLive
			if deadA != deadB {
				return deadA
			}
			cleanA := spillSlots[key].allocated && !m.dirty
			cleanB := spillSlots[bestKey].allocated && !bestMap.dirty
			if cleanA != cleanB {
				return cleanA
			}
			distA, distB := nextUseDistance(key, idx), nextUseDistance(bestKey, idx)
			if distA != distB {
				return distA > distB
			}
			return key > bestKey
		}

		scan := func(wantP bool) {
			for key, m := range mapping {
				if protected[key] || key.Class() != class {
					continue
				}
				if isPersistentPhys(m.phys) != wantP {
					continue
				}
				if better(key, m) {
					bestKey, bestMap, found = key, m, true
				}
			}
		}

		scan(wantPersistent)
		if !found {
			scan(!wantPersistent)
		}
		if !found {
			panic(microerr.New(funcName, microerr.ProgrammingError, "no mapping available to evict"))
		}

		_, isLive := liveOut[idx][bestKey]
		dirtyOrUnspilled := bestMap.dirty || !spillSlots[bestKey].allocated
		if isLive && dirtyOrUnspilled {
			emitSpillStore(before, bestKey, bestMap.phys)
		}
		freed := bestMap.phys
		delete(mapping, bestKey)
		return freed
	}

	allocatePhysical := func(before micro.InstrRef, idx int, class micro.RegClass, needsPersistent bool, protected map[micro.Reg]bool) micro.Reg {
		var primary, secondary *[]micro.Reg
		switch class {
		case micro.RegClassInt:
			if needsPersistent {
				primary = &freeIntPersistent
			} else {
				primary, secondary = &freeIntTransient, &freeIntPersistent
			}
		case micro.RegClassFloat:
			if needsPersistent {
				primary = &freeFloatPersistent
			} else {
				primary, secondary = &freeFloatTransient, &freeFloatPersistent
			}
		}
		if len(*primary) > 0 {
			return popBack(primary)
		}
		if secondary != nil && len(*secondary) > 0 {
			return popBack(secondary)
		}
		return evict(before, idx, class, needsPersistent, protected)
	}

	hasPersistentPool := func(class micro.RegClass) bool {
		if class == micro.RegClassFloat {
			return len(conv.FloatPersistentRegs) > 0
		}
		return len(conv.IntPersistentRegs) > 0
	}

	changed := false
	for i := 0; i < n; i++ {
		instRef := order[i]
		inst := instructions.Ptr(instRef)
		ops := b.Ops(inst)
		ud := micro.CollectUseDef(inst, ops)
		enc.UpdateRegUseDef(inst, ops, &ud)

		protected := make(map[micro.Reg]bool)
		for _, r := range ud.Uses {
			if r.IsVirtual() {
				protected[r] = true
			}
		}
		for _, r := range ud.Defs {
			if r.IsVirtual() {
				protected[r] = true
			}
		}

		for _, ref := range micro.CollectRegOperands(inst, ops) {
			reg := ref.Reg()
			if !reg.IsVirtual() {
				continue
			}
			m, mapped := mapping[reg]
			if !mapped {
				needsPersistent := liveAcrossCall[reg] && hasPersistentPool(reg.Class())
				phys := allocatePhysical(instRef, i, reg.Class(), needsPersistent, protected)
				m = &regMapping{phys: phys}
				mapping[reg] = m
				if ref.Use {
					if _, hasSlot := spillSlots[reg]; hasSlot {
						emitSpillLoad(instRef, reg, phys)
					}
				}
			}
			ref.SetReg(m.phys)
			changed = true
			if ref.Def {
				m.dirty = true
			}
		}

		if ud.IsCall {
			for key, m := range mapping {
				if _, isLive := liveOut[i][key]; !isLive {
					continue
				}
				if isPersistentPhys(m.phys) {
					continue
				}
				emitSpillStore(instRef, key, m.phys)
				freePhysical(m.phys)
				delete(mapping, key)
			}
		}

		for key, m := range mapping {
			if _, isLive := liveOut[i][key]; !isLive {
				freePhysical(m.phys)
				delete(mapping, key)
			}
		}
	}

	if spillFrameUsed > 0 {
		insertSpillFrame(instructions, b, conv.StackPointer, alignUp(spillFrameUsed, stackAlign))
	}

	return changed
}
