// Package pass implements the micro-instruction pass pipeline: register
// allocation, prolog/epilog insertion, legalization, and final encoding.
// Passes run in the fixed order a Manager wires together, each mutating the
// Store/OperandStore a Context points at in place.
package pass

import (
	"fmt"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
	"github.com/swag-lang/swc-sub002/micro/encoder"
	"github.com/swag-lang/swc-sub002/micro/microabi"
	"github.com/swag-lang/swc-sub002/microerr"
)

// Kind identifies a pass for logging/diagnostics and for the
// passPrintOptions filter in Context.
type Kind uint8

const (
	KindRegisterAllocation Kind = iota
	KindPrologEpilog
	KindLegalize
	KindEmit
)

func (k Kind) String() string {
	switch k {
	case KindRegisterAllocation:
		return "regalloc"
	case KindPrologEpilog:
		return "prologepilog"
	case KindLegalize:
		return "legalize"
	case KindEmit:
		return "emit"
	default:
		return "pass?"
	}
}

// Context is the shared state every pass reads and mutates. One Context is
// built per function compilation and threaded through the Manager's
// pipeline in order.
type Context struct {
	// FunctionName identifies the function being compiled, for attributing
	// a microerr.Fatal raised while running the pipeline against it.
	FunctionName string

	Encoder      encoder.Encoder
	Builder      *builder.Builder
	Instructions *micro.Store
	Operands     *micro.OperandStore

	// PassPrintOptions lists pass names for ShouldPrint to match. Manager
	// and the passes in this package never consult it and print nothing.
	PassPrintOptions []string

	CallConvKind micro.CallConvKind

	// PreservePersistentRegs enables PrologEpilog: when set, it saves and
	// restores the callee-saved registers the function body actually
	// touches; when unset, PrologEpilog does nothing.
	PreservePersistentRegs bool

	// OptimizationIterationLimit caps any fixed-point loop a pass runs
	// internally (legalize's per-instruction rewrite loop included); 0
	// means the pass picks its own default.
	OptimizationIterationLimit uint32

	// Code is the final encoded byte stream, populated once Emit has run.
	Code []byte

	// DebugRanges pairs an encoded instruction's starting code offset with
	// its source location, for instructions the builder recorded one for.
	DebugRanges []DebugRange
}

// DebugRange is one instruction's code-offset-to-source-location mapping,
// emitted only when the builder had debug info enabled for that
// instruction.
type DebugRange struct {
	CodeOffset int
	File       micro.NameRef
	Line       uint32
	Column     uint32
}

// CallConv resolves the Context's CallConvKind to its descriptor.
func (c *Context) CallConv() microabi.CallConv { return microabi.Registry(c.CallConvKind) }

// ShouldPrint reports whether name appears in PassPrintOptions.
func (c *Context) ShouldPrint(name string) bool {
	for _, n := range c.PassPrintOptions {
		if n == name {
			return true
		}
	}
	return false
}

// Fail panics with a *microerr.Fatal not tied to a particular instruction.
// Passes use this instead of a bare panic so Manager.Run can recover it into
// a returned error.
func (c *Context) Fail(kind microerr.Kind, format string, args ...any) {
	panic(microerr.New(c.FunctionName, kind, fmt.Sprintf(format, args...)))
}

// FailAt panics with a *microerr.Fatal tied to instrRef.
func (c *Context) FailAt(kind microerr.Kind, instrRef micro.InstrRef, format string, args ...any) {
	panic(microerr.NewAt(c.FunctionName, kind, int32(instrRef), fmt.Sprintf(format, args...)))
}

// Pass is one stage of the pipeline. Run reports whether it mutated the
// instruction stream, mirroring the original's fixed-point convention where
// optimization passes re-run until every pass in a stage reports no change.
type Pass interface {
	Kind() Kind
	Run(ctx *Context) bool
}
