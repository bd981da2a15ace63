package micro

import "fmt"

// RegClass partitions registers into allocation pools. Special-class
// registers (e.g. the stack pointer) are never handed out by the register
// allocator; they only ever appear as physical operands.
type RegClass uint8

const (
	RegClassInt RegClass = iota
	RegClassFloat
	RegClassSpecial
	numRegClass
)

func (c RegClass) String() string {
	switch c {
	case RegClassInt:
		return "int"
	case RegClassFloat:
		return "float"
	case RegClassSpecial:
		return "special"
	default:
		return "invalid"
	}
}

// Reg is a packed register value: 2 bits of class, 1 bit marking whether it
// is still virtual (unassigned) or already physical, and a class-local
// index in the remaining bits. Comparison and hashing operate directly on
// the packed integer, so a Reg is a plain comparable value usable as a map
// key.
type Reg uint32

const (
	regClassShift   = 30
	regVirtualShift = 29
	regIndexMask    = (1 << regVirtualShift) - 1

	// RegInvalid is the sentinel for "no register here".
	RegInvalid Reg = 0xFFFF_FFFF
	// RegNoBase is distinct from RegInvalid: it marks a memory operand's
	// base register as deliberately absent (e.g. an absolute address),
	// as opposed to an operand slot that simply isn't a register.
	RegNoBase Reg = 0xFFFF_FFFE
)

// MakeReg packs a class, virtuality, and class-local index into a Reg.
func MakeReg(class RegClass, virtual bool, index uint32) Reg {
	if index > regIndexMask {
		panic(fmt.Sprintf("micro: register index %d overflows %d bits", index, regVirtualShift))
	}
	v := uint32(0)
	if virtual {
		v = 1
	}
	return Reg(uint32(class)<<regClassShift | v<<regVirtualShift | index)
}

// MakeVirtual returns a fresh virtual register of the given class.
func MakeVirtual(class RegClass, index uint32) Reg { return MakeReg(class, true, index) }

// MakePhysical returns a physical register of the given class.
func MakePhysical(class RegClass, index uint32) Reg { return MakeReg(class, false, index) }

// Class returns the register's class.
func (r Reg) Class() RegClass { return RegClass(uint32(r) >> regClassShift) }

// IsVirtual returns true if r has not yet been assigned a physical register.
func (r Reg) IsVirtual() bool { return (uint32(r)>>regVirtualShift)&1 == 1 }

// Index returns the class-local index: the virtual-register identifier when
// IsVirtual is true, or the physical register number otherwise.
func (r Reg) Index() uint32 { return uint32(r) & regIndexMask }

// Valid reports whether r is not the RegInvalid sentinel. Note that
// RegNoBase is Valid; use IsNoBase to distinguish it.
func (r Reg) Valid() bool { return r != RegInvalid }

// IsNoBase reports whether r is the "absent memory base" marker.
func (r Reg) IsNoBase() bool { return r == RegNoBase }

func (r Reg) String() string {
	switch r {
	case RegInvalid:
		return "<invalid>"
	case RegNoBase:
		return "<nobase>"
	}
	kind := "v"
	if !r.IsVirtual() {
		kind = "p"
	}
	return fmt.Sprintf("%%%s%d.%s", kind, r.Index(), r.Class())
}
