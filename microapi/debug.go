package microapi

// These consts are switches for verbose pass tracing; no pass reads them,
// and the passes contain no tracing code. They live in one place so nobody
// has to go hunting for "where would backend debug logging live" while
// chasing a miscompile. All must stay false by default: the passes run on
// a hot compile path and are not allowed to pay for string formatting.

const (
	// PrintRegAllocSteps traces each register-allocation rewrite decision.
	PrintRegAllocSteps = false
	// PrintLegalizeRewrites traces each legalization rewrite applied.
	PrintLegalizeRewrites = false
	// PrintEncodedBytes dumps the encoded byte stream per function after emission.
	PrintEncodedBytes = false
)

// RegAllocValidationEnabled is a switch for allocator consistency checks.
// No code reads it: regalloc.Allocate runs no post-allocation validation.
const RegAllocValidationEnabled = true
