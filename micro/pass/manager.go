package pass

import "github.com/swag-lang/swc-sub002/microerr"

// Manager is a small orchestration container with four ordered stages:
// pre-optimization, mandatory, post-optimization, and final. Run executes
// every pass in each stage, in stage order, against one Context.
type Manager struct {
	preOptimization  []Pass
	mandatory        []Pass
	postOptimization []Pass
	final            []Pass
}

// Add appends to the mandatory stage; kept alongside AddMandatory as the
// common case doesn't need to name the stage explicitly.
func (m *Manager) Add(p Pass) { m.AddMandatory(p) }

func (m *Manager) AddPreOptimization(p Pass)  { m.preOptimization = append(m.preOptimization, p) }
func (m *Manager) AddMandatory(p Pass)        { m.mandatory = append(m.mandatory, p) }
func (m *Manager) AddPostOptimization(p Pass) { m.postOptimization = append(m.postOptimization, p) }
func (m *Manager) AddFinal(p Pass)            { m.final = append(m.final, p) }

// NewDefaultManager wires the four passes this module ships in their
// required order: register allocation must run before PrologEpilog (which
// scans for concrete physical register operands) and before Legalize (which
// rewrites around concrete registers too); Emit always runs last.
func NewDefaultManager() *Manager {
	m := &Manager{}
	m.AddMandatory(RegAlloc{})
	m.AddMandatory(&PrologEpilog{})
	m.AddMandatory(Legalize{})
	m.AddFinal(&Emit{})
	return m
}

// Run executes every stage in order against ctx. A pass that panics with a
// *microerr.Fatal (via Context.Fail/FailAt) has that panic converted into
// the returned error; any other panic value propagates unchanged, since it
// signals a bug in the Manager or a pass itself rather than a condition the
// backend is designed to report.
func (m *Manager) Run(ctx *Context) (err error) {
	defer microerr.Recover(&err)
	runStage(ctx, m.preOptimization)
	runStage(ctx, m.mandatory)
	runStage(ctx, m.postOptimization)
	runStage(ctx, m.final)
	return nil
}

func runStage(ctx *Context, passes []Pass) {
	for _, p := range passes {
		p.Run(ctx)
	}
}
