package availsim

import (
	"github.com/quentel/availsim/automaton"
	"github.com/quentel/availsim/reactive"
)

// logicMode is the aggregation applied to an inbound reference.
type logicMode int

const (
	logicOr logicMode = iota
	logicAnd
)

func parseLogic(comp, flow, s string) (logicMode, error) {
	switch s {
	case "", "or":
		return logicOr, nil
	case "and":
		return logicAnd, nil
	default:
		return 0, &BuildError{
			Code:      ErrCodeInvalidLogicMode,
			Component: comp,
			Flow:      flow,
			Detail:    "logic must be \"and\" or \"or\", got " + s,
		}
	}
}

// LawSpec selects the occurrence law of a declared transition. When Param
// names an existing parameter cell of the component, the law reads that
// cell; otherwise a parameter cell is created holding Value.
type LawSpec struct {
	Kind  automaton.LawKind
	Value float64
	Param string
}

// FlowInSpec declares an input flow.
type FlowInSpec struct {
	// Name is the flow name, unique among the component's input flows.
	Name string

	// Logic aggregates the inbound connections: "or" (default) or "and".
	Logic string

	// InDefault is the inbound value when nothing is connected.
	InDefault bool

	// AvailableInDefault is the inbound availability when nothing is
	// connected to the availability port. Nil means true.
	AvailableInDefault *bool
}

// FlowIn is an input port. Its fed cell aggregates every connected
// producer and every connected availability signal.
type FlowIn struct {
	name               string
	comp               *Component
	logic              logicMode
	inDefault          bool
	availableInDefault bool

	in           *reactive.Reference // {flow}_in
	fedAvailable *reactive.Reference // {flow}_fed_available_in
	fed          *reactive.Cell[bool]
}

// Name returns the flow name.
func (f *FlowIn) Name() string { return f.name }

// Fed returns the flow's fed cell.
func (f *FlowIn) Fed() *reactive.Cell[bool] { return f.fed }

// ListenerName implements reactive.Listener.
func (f *FlowIn) ListenerName() string { return "set_" + f.name + "_fed_in" }

// React recomputes fed from the inbound references.
func (f *FlowIn) React() {
	var in, avail bool
	if f.logic == logicAnd {
		in = f.in.AndValue(f.inDefault)
		avail = f.fedAvailable.AndValue(f.availableInDefault)
	} else {
		in = f.in.OrValue(f.inDefault)
		avail = f.fedAvailable.OrValue(f.availableInDefault)
	}
	f.fed.Set(in && avail)
}

// FlowOutSpec declares a plain output flow.
type FlowOutSpec struct {
	// Name is the flow name, unique among the component's output flows.
	Name string

	// ProdCond is the production condition in two-level normal form over
	// sibling flow names. With the default inner mode the outer level is a
	// conjunction and each inner group a disjunction.
	ProdCond [][]string

	// InnerMode swaps the normal form: "or" (default, AND of ORs) or
	// "and" (OR of ANDs).
	InnerMode string

	// ProdDefault is the initial production value, used until the first
	// condition evaluation (and forever when ProdCond is empty).
	ProdDefault bool

	// Negate inverts the exported fed value.
	Negate bool
}

// FlowOutTempoSpec declares an output flow whose production is gated by a
// private enable/disable automaton instead of following the production
// condition instantaneously.
type FlowOutTempoSpec struct {
	FlowOutSpec

	// Enable times the disabled → enabled transition, armed while the
	// production condition holds. Zero value is an immediate delay.
	Enable LawSpec

	// Disable times the enabled → disabled transition, armed while the
	// production condition fails.
	Disable LawSpec

	// InitEnabled starts the automaton in the enabled state.
	InitEnabled bool
}

// FlowOutOnTriggerSpec declares an output flow gated by an external
// trigger input: production requires the private up state, reached only
// while the trigger is released.
type FlowOutOnTriggerSpec struct {
	FlowOutSpec

	// TimeUp is the fixed delay of the down → up transition.
	TimeUp float64

	// TimeDown is the fixed delay of the up → down transition.
	TimeDown float64

	// TriggerLogic aggregates the trigger connections: "or" (default) or
	// "and".
	TriggerLogic string
}

type outKind int

const (
	outPlain outKind = iota
	outTempo
	outTrigger
)

// FlowOut is an output port. Production follows the production condition,
// possibly routed through a private automaton (tempo and trigger kinds),
// and the exported fed value couples production with availability.
type FlowOut struct {
	name   string
	comp   *Component
	kind   outKind
	negate bool

	prodCond  [][]*reactive.Cell[bool]
	innerMode logicMode

	fed           *reactive.Cell[bool] // {flow}_fed_out
	fedAvailable  *reactive.Cell[bool] // {flow}_fed_available_out
	prod          *reactive.Cell[bool]
	prodAvailable *reactive.Cell[bool]

	aut       *automaton.Automaton
	gateState int                 // enabled / up state index
	triggerIn *reactive.Reference // trigger kind only
}

// Name returns the flow name.
func (f *FlowOut) Name() string { return f.name }

// Fed returns the flow's exported fed cell.
func (f *FlowOut) Fed() *reactive.Cell[bool] { return f.fed }

// FedAvailable returns the availability cell failure-mode effects target.
func (f *FlowOut) FedAvailable() *reactive.Cell[bool] { return f.fedAvailable }

// ProdAvailable returns the production-condition cell.
func (f *FlowOut) ProdAvailable() *reactive.Cell[bool] { return f.prodAvailable }

// evalProdCond reduces the production condition over current fed values.
func (f *FlowOut) evalProdCond() bool {
	if f.innerMode == logicAnd {
		// OR of ANDs.
		for _, group := range f.prodCond {
			all := true
			for _, c := range group {
				if !c.Value() {
					all = false
					break
				}
			}
			if all {
				return true
			}
		}
		return false
	}
	// AND of ORs.
	for _, group := range f.prodCond {
		any := false
		for _, c := range group {
			if c.Value() {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

// prodAvailableRule recomputes prod_available when a referenced fed value
// changes. Not registered for flows without a production condition.
type prodAvailableRule struct{ f *FlowOut }

func (r prodAvailableRule) ListenerName() string {
	return "set_" + r.f.name + "_prod_available"
}

func (r prodAvailableRule) React() {
	r.f.prodAvailable.Set(r.f.evalProdCond())
}

// fedOutRule recomputes prod and fed. It listens on prod_available,
// fed_available and, for gated kinds, the private automaton.
type fedOutRule struct{ f *FlowOut }

func (r fedOutRule) ListenerName() string {
	return "set_" + r.f.name + "_fed_out"
}

func (r fedOutRule) React() {
	f := r.f
	var prod bool
	switch f.kind {
	case outTempo:
		prod = f.aut.IsActive(f.gateState)
	case outTrigger:
		prod = f.aut.IsActive(f.gateState) && f.prodAvailable.Value()
	default:
		prod = f.prodAvailable.Value()
	}
	f.prod.Set(prod)

	v := f.prod.Value() && f.fedAvailable.Value()
	if f.negate {
		v = !v
	}
	f.fed.Set(v)
}
