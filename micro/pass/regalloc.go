package pass

import "github.com/swag-lang/swc-sub002/micro/regalloc"

// RegAlloc is the pipeline stage wrapping micro/regalloc.Allocate: it runs
// first in the mandatory stage, before PrologEpilog and Legalize need
// concrete physical register operands to scan and rewrite.
type RegAlloc struct{}

func (RegAlloc) Kind() Kind { return KindRegisterAllocation }

func (RegAlloc) Run(ctx *Context) bool {
	return regalloc.Allocate(ctx.FunctionName, ctx.Instructions, ctx.Builder, ctx.CallConv(), ctx.Encoder)
}
