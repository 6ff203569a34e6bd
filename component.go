package availsim

import (
	"regexp"

	"github.com/quentel/availsim/automaton"
	"github.com/quentel/availsim/reactive"
)

// defaultOutFailureRate is the negligible rate of the ok/nok automata
// created by WithDefaultOutAutomata.
const defaultOutFailureRate = 1e-100

// ComponentOption configures a component at creation.
type ComponentOption func(*Component)

// WithDefaultOutAutomata gives every output flow of the component a
// two-state ok/nok exponential automaton at a negligible rate whose
// failure drops the flow's availability.
func WithDefaultOutAutomata() ComponentOption {
	return func(c *Component) { c.defaultOutAutomata = true }
}

// Component is a named model element owning flows, automata and
// parameter cells. Components are created through System.AddComponent.
type Component struct {
	sys  *System
	name string

	flowsIn  map[string]*FlowIn
	flowsOut map[string]*FlowOut
	inOrder  []string
	outOrder []string

	automata []*automaton.Automaton

	boolCells map[string]*reactive.Cell[bool]
	boolOrder []string
	params    map[string]*reactive.Cell[float64]

	defaultOutAutomata bool
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// FlowIn returns the named input flow.
func (c *Component) FlowIn(name string) (*FlowIn, bool) {
	f, ok := c.flowsIn[name]
	return f, ok
}

// FlowOut returns the named output flow.
func (c *Component) FlowOut(name string) (*FlowOut, bool) {
	f, ok := c.flowsOut[name]
	return f, ok
}

// Param returns the named parameter cell. Parameter cells are not
// reinitialized between runs, so retuning one affects every later run.
func (c *Component) Param(name string) (*reactive.Cell[float64], bool) {
	p, ok := c.params[name]
	return p, ok
}

// newBoolCell declares a reinitialized boolean cell registered for
// pattern matching (effects, watches).
func (c *Component) newBoolCell(basename string, def bool) *reactive.Cell[bool] {
	cell := reactive.NewCell(c.sys.prop, c.name+"."+basename, def, true)
	c.boolCells[basename] = cell
	c.boolOrder = append(c.boolOrder, basename)
	c.sys.resetters = append(c.sys.resetters, cell)
	return cell
}

// newParamCell declares (or returns the existing) float parameter cell.
func (c *Component) newParamCell(name string, def float64) *reactive.Cell[float64] {
	if p, ok := c.params[name]; ok {
		return p
	}
	cell := reactive.NewCell(c.sys.prop, c.name+"."+name, def, false)
	c.params[name] = cell
	return cell
}

// resolveLaw turns a law spec into an occurrence law. Without an explicit
// Param the parameter cell is created under the owning transition's name.
func (c *Component) resolveLaw(owner string, spec LawSpec) (automaton.Law, error) {
	var cell *reactive.Cell[float64]
	if spec.Param != "" {
		p, ok := c.params[spec.Param]
		if !ok {
			return automaton.Law{}, &BuildError{
				Code:      ErrCodeUnknownFlow,
				Component: c.name,
				Detail:    "unknown parameter cell " + spec.Param,
			}
		}
		cell = p
	} else {
		suffix := "_time"
		if spec.Kind == automaton.LawExponential {
			suffix = "_rate"
		}
		cell = c.newParamCell(owner+suffix, spec.Value)
	}
	if spec.Kind == automaton.LawExponential {
		return automaton.Exponential(cell), nil
	}
	return automaton.Delay(cell), nil
}

// AddFlowIn declares an input flow on the component.
func (c *Component) AddFlowIn(spec FlowInSpec) (*FlowIn, error) {
	if _, dup := c.flowsIn[spec.Name]; dup {
		return nil, &BuildError{
			Code:      ErrCodeDuplicateFlow,
			Component: c.name,
			Flow:      spec.Name,
			Detail:    "input flow already declared",
		}
	}
	logic, err := parseLogic(c.name, spec.Name, spec.Logic)
	if err != nil {
		return nil, err
	}
	availDefault := true
	if spec.AvailableInDefault != nil {
		availDefault = *spec.AvailableInDefault
	}

	f := &FlowIn{
		name:               spec.Name,
		comp:               c,
		logic:              logic,
		inDefault:          spec.InDefault,
		availableInDefault: availDefault,
		in:                 reactive.NewReference(spec.Name + "_in"),
		fedAvailable:       reactive.NewReference(spec.Name + "_fed_available_in"),
		fed:                c.newBoolCell(spec.Name+"_fed_in", false),
	}
	f.in.Subscribe(f)
	f.fedAvailable.Subscribe(f)

	c.flowsIn[spec.Name] = f
	c.inOrder = append(c.inOrder, spec.Name)
	c.sys.startRules = append(c.sys.startRules, f)
	c.sys.graph.AddNode(f.fed.Name())
	return f, nil
}

// newFlowOut builds the cells and rules shared by all output flow kinds.
func (c *Component) newFlowOut(kind outKind, spec FlowOutSpec) (*FlowOut, error) {
	if _, dup := c.flowsOut[spec.Name]; dup {
		return nil, &BuildError{
			Code:      ErrCodeDuplicateFlow,
			Component: c.name,
			Flow:      spec.Name,
			Detail:    "output flow already declared",
		}
	}
	innerMode, err := parseLogic(c.name, spec.Name, spec.InnerMode)
	if err != nil {
		return nil, err
	}

	// Resolve production-condition leaves against already-declared flows.
	prodCond := make([][]*reactive.Cell[bool], 0, len(spec.ProdCond))
	for _, group := range spec.ProdCond {
		cells := make([]*reactive.Cell[bool], 0, len(group))
		for _, ref := range group {
			if fi, ok := c.flowsIn[ref]; ok {
				cells = append(cells, fi.fed)
			} else if fo, ok := c.flowsOut[ref]; ok {
				cells = append(cells, fo.fed)
			} else {
				return nil, &BuildError{
					Code:      ErrCodeUnknownFlow,
					Component: c.name,
					Flow:      spec.Name,
					Detail:    "production condition references undeclared flow " + ref,
				}
			}
		}
		prodCond = append(prodCond, cells)
	}

	f := &FlowOut{
		name:          spec.Name,
		comp:          c,
		kind:          kind,
		negate:        spec.Negate,
		prodCond:      prodCond,
		innerMode:     innerMode,
		fed:           c.newBoolCell(spec.Name+"_fed_out", false),
		fedAvailable:  c.newBoolCell(spec.Name+"_fed_available_out", true),
		prod:          c.newBoolCell(spec.Name+"_prod", spec.ProdDefault),
		prodAvailable: c.newBoolCell(spec.Name+"_prod_available", spec.ProdDefault),
	}

	fr := fedOutRule{f}
	f.prodAvailable.Subscribe(fr)
	f.fedAvailable.Subscribe(fr)

	if len(prodCond) > 0 {
		pr := prodAvailableRule{f}
		for _, group := range prodCond {
			for _, cell := range group {
				cell.Subscribe(pr)
				c.sys.graph.AddEdge(cell.Name(), f.prodAvailable.Name())
			}
		}
		c.sys.startRules = append(c.sys.startRules, pr)
	}
	c.sys.startRules = append(c.sys.startRules, fr)

	c.sys.graph.AddEdge(f.fedAvailable.Name(), f.fed.Name())
	if kind != outTempo {
		// Tempo production crosses an automaton; the scheduler breaks that
		// dependency in time, so it is not a synchronous edge.
		c.sys.graph.AddEdge(f.prodAvailable.Name(), f.fed.Name())
	}

	c.flowsOut[spec.Name] = f
	c.outOrder = append(c.outOrder, spec.Name)
	return f, nil
}

// AddFlowOut declares a plain output flow whose production follows the
// production condition instantaneously.
func (c *Component) AddFlowOut(spec FlowOutSpec) (*FlowOut, error) {
	f, err := c.newFlowOut(outPlain, spec)
	if err != nil {
		return nil, err
	}
	if err := c.maybeAddDefaultOutAutomaton(f); err != nil {
		return nil, err
	}
	return f, nil
}

// AddFlowOutTempo declares an output flow gated by a private
// enable/disable automaton timed by the given laws.
func (c *Component) AddFlowOutTempo(spec FlowOutTempoSpec) (*FlowOut, error) {
	f, err := c.newFlowOut(outTempo, spec.FlowOutSpec)
	if err != nil {
		return nil, err
	}

	states := []string{"disabled", "enabled"}
	initial := "disabled"
	if spec.InitEnabled {
		initial = "enabled"
	}
	aut, err := automaton.New(c.sys.prop, c.name+"_"+f.name+"_out_tempo", states, initial)
	if err != nil {
		return nil, err
	}
	disabled, _ := aut.StateIndex("disabled")
	enabled, _ := aut.StateIndex("enabled")

	enableLaw, err := c.resolveLaw(f.name+"_enable", spec.Enable)
	if err != nil {
		return nil, err
	}
	disableLaw, err := c.resolveLaw(f.name+"_disable", spec.Disable)
	if err != nil {
		return nil, err
	}
	aut.AddTransition(&automaton.Transition{
		Name:          f.name + "_enable",
		Source:        disabled,
		Target:        enabled,
		Guard:         automaton.CellIs(f.prodAvailable, true),
		Law:           enableLaw,
		Interruptible: true,
	})
	aut.AddTransition(&automaton.Transition{
		Name:          f.name + "_disable",
		Source:        enabled,
		Target:        disabled,
		Guard:         automaton.CellIs(f.prodAvailable, false),
		Law:           disableLaw,
		Interruptible: true,
	})
	aut.Subscribe(fedOutRule{f})

	// An immediate tempo automaton relays production changes within the
	// same instant, so the dependency is synchronous after all.
	if immediateDelay(spec.Enable) && immediateDelay(spec.Disable) {
		c.sys.graph.AddEdge(f.prodAvailable.Name(), f.fed.Name())
	}

	f.aut = aut
	f.gateState = enabled
	c.automata = append(c.automata, aut)

	if err := c.maybeAddDefaultOutAutomaton(f); err != nil {
		return nil, err
	}
	return f, nil
}

func immediateDelay(spec LawSpec) bool {
	return spec.Kind == automaton.LawDelay && spec.Param == "" && spec.Value == 0
}

// AddFlowOutOnTrigger declares an output flow gated by an external
// trigger input. Production requires the private up state, reached after
// TimeUp once every trigger source is released and left after TimeDown
// once one engages.
func (c *Component) AddFlowOutOnTrigger(spec FlowOutOnTriggerSpec) (*FlowOut, error) {
	f, err := c.newFlowOut(outTrigger, spec.FlowOutSpec)
	if err != nil {
		return nil, err
	}
	logic, err := parseLogic(c.name, spec.Name, spec.TriggerLogic)
	if err != nil {
		return nil, err
	}
	f.triggerIn = reactive.NewReference(spec.Name + "_trigger_in")

	refLogic := automaton.RefOr
	if logic == logicAnd {
		refLogic = automaton.RefAnd
	}

	aut, err := automaton.New(c.sys.prop, c.name+"_"+f.name+"_trigger", []string{"down", "up"}, "down")
	if err != nil {
		return nil, err
	}
	down, _ := aut.StateIndex("down")
	up, _ := aut.StateIndex("up")

	upLaw, err := c.resolveLaw(f.name+"_trigger_up", LawSpec{Kind: automaton.LawDelay, Value: spec.TimeUp})
	if err != nil {
		return nil, err
	}
	downLaw, err := c.resolveLaw(f.name+"_trigger_down", LawSpec{Kind: automaton.LawDelay, Value: spec.TimeDown})
	if err != nil {
		return nil, err
	}
	aut.AddTransition(&automaton.Transition{
		Name:          f.name + "_trigger_up",
		Source:        down,
		Target:        up,
		Guard:         automaton.RefIs(f.triggerIn, refLogic, false).Negated(),
		Law:           upLaw,
		Interruptible: true,
	})
	aut.AddTransition(&automaton.Transition{
		Name:          f.name + "_trigger_down",
		Source:        up,
		Target:        down,
		Guard:         automaton.RefIs(f.triggerIn, refLogic, false),
		Law:           downLaw,
		Interruptible: true,
	})
	aut.Subscribe(fedOutRule{f})

	f.aut = aut
	f.gateState = up
	c.automata = append(c.automata, aut)

	if err := c.maybeAddDefaultOutAutomaton(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Component) maybeAddDefaultOutAutomaton(f *FlowOut) error {
	if !c.defaultOutAutomata {
		return nil
	}
	_, err := c.AddTwoStateAutomaton(TwoStateAutomatonSpec{
		Name:            f.name,
		State1:          "ok",
		State2:          "nok",
		Law12:           LawSpec{Kind: automaton.LawExponential, Value: defaultOutFailureRate},
		Law21:           LawSpec{Kind: automaton.LawExponential, Value: defaultOutFailureRate},
		Interruptible12: true,
		Interruptible21: true,
		Effects12:       []string{"!" + regexp.QuoteMeta(f.name+"_fed_available_out")},
	})
	return err
}

// TwoStateAutomatonSpec declares a two-state automaton on a component.
// The zero value of each law is an immediate fixed delay.
type TwoStateAutomatonSpec struct {
	// Name is the automaton's base name; cells and transitions derive
	// their names from it.
	Name string

	// State1 and State2 name the two states. Defaults: absent, present.
	State1 string
	State2 string

	// InitState2 starts the automaton in State2.
	InitState2 bool

	// Cond12 and Cond21 gate the transitions with a boolean cell basename.
	// Empty means always enabled; a "!" prefix requires the cell false.
	Cond12 string
	Cond21 string

	// Law12 and Law21 time the transitions.
	Law12 LawSpec
	Law21 LawSpec

	// Interruptible12 and Interruptible21 select cancel-and-redraw
	// semantics on guard toggles. When false the remaining delay is kept
	// across guard-false intervals.
	Interruptible12 bool
	Interruptible21 bool

	// Effects12 and Effects21 list anchored regular expressions over the
	// component's boolean cell basenames. Matching cells are set true on
	// firing; a "!" prefix sets them false.
	Effects12 []string
	Effects21 []string
}

// AddTwoStateAutomaton declares a two-state automaton with guarded, timed
// transitions in both directions.
func (c *Component) AddTwoStateAutomaton(spec TwoStateAutomatonSpec) (*automaton.Automaton, error) {
	st1 := spec.State1
	if st1 == "" {
		st1 = "absent"
	}
	st2 := spec.State2
	if st2 == "" {
		st2 = "present"
	}
	st1Name := spec.Name + "_" + st1
	st2Name := spec.Name + "_" + st2
	initial := st1Name
	if spec.InitState2 {
		initial = st2Name
	}

	aut, err := automaton.New(c.sys.prop, c.name+"_"+spec.Name, []string{st1Name, st2Name}, initial)
	if err != nil {
		return nil, err
	}
	idx1, _ := aut.StateIndex(st1Name)
	idx2, _ := aut.StateIndex(st2Name)

	guard12, err := c.condGuard(spec.Cond12)
	if err != nil {
		return nil, err
	}
	guard21, err := c.condGuard(spec.Cond21)
	if err != nil {
		return nil, err
	}

	name12 := spec.Name + "_" + st1 + "_" + st2
	name21 := spec.Name + "_" + st2 + "_" + st1
	law12, err := c.resolveLaw(name12, spec.Law12)
	if err != nil {
		return nil, err
	}
	law21, err := c.resolveLaw(name21, spec.Law21)
	if err != nil {
		return nil, err
	}
	effects12, err := c.patternEffects(spec.Effects12)
	if err != nil {
		return nil, err
	}
	effects21, err := c.patternEffects(spec.Effects21)
	if err != nil {
		return nil, err
	}

	aut.AddTransition(&automaton.Transition{
		Name:          name12,
		Source:        idx1,
		Target:        idx2,
		Guard:         guard12,
		Law:           law12,
		Interruptible: spec.Interruptible12,
		Effects:       effects12,
	})
	aut.AddTransition(&automaton.Transition{
		Name:          name21,
		Source:        idx2,
		Target:        idx1,
		Guard:         guard21,
		Law:           law21,
		Interruptible: spec.Interruptible21,
		Effects:       effects21,
	})

	c.automata = append(c.automata, aut)
	return aut, nil
}

// condGuard resolves a condition spelling ("cell", "!cell" or empty)
// into a guard.
func (c *Component) condGuard(cond string) (automaton.Guard, error) {
	if cond == "" {
		return automaton.Always(true), nil
	}
	want := true
	if cond[0] == '!' {
		want = false
		cond = cond[1:]
	}
	cell, ok := c.boolCells[cond]
	if !ok {
		return automaton.Guard{}, &BuildError{
			Code:      ErrCodeUnknownFlow,
			Component: c.name,
			Detail:    "condition references unknown cell " + cond,
		}
	}
	return automaton.CellIs(cell, want), nil
}

// patternEffects expands effect patterns over the component's boolean
// cells, in cell declaration order. Patterns are anchored; a "!" prefix
// sets matched cells to false. A pattern matching no cell contributes
// nothing.
func (c *Component) patternEffects(patterns []string) ([]automaton.Effect, error) {
	var effects []automaton.Effect
	for _, pat := range patterns {
		value := true
		if len(pat) > 0 && pat[0] == '!' {
			value = false
			pat = pat[1:]
		}
		re, err := regexp.Compile("^(" + pat + ")$")
		if err != nil {
			return nil, &BuildError{
				Code:      ErrCodeUnknownFlow,
				Component: c.name,
				Detail:    "invalid effect pattern " + pat + ": " + err.Error(),
			}
		}
		for _, basename := range c.boolOrder {
			if re.MatchString(basename) {
				effects = append(effects, automaton.Effect{
					Cell:  c.boolCells[basename],
					Value: value,
				})
			}
		}
	}
	return effects, nil
}

// AddExpFailureMode adds an exponential failure/repair automaton local to
// the component. The rates live in the {name}_lambda and {name}_mu
// parameter cells.
func (c *Component) AddExpFailureMode(name string, failureRate, repairRate float64, failureEffects, repairEffects []string) (*automaton.Automaton, error) {
	c.newParamCell(name+"_lambda", failureRate)
	c.newParamCell(name+"_mu", repairRate)
	return c.AddTwoStateAutomaton(TwoStateAutomatonSpec{
		Name:            name,
		State1:          "rep",
		State2:          "occ",
		Law12:           LawSpec{Kind: automaton.LawExponential, Param: name + "_lambda"},
		Law21:           LawSpec{Kind: automaton.LawExponential, Param: name + "_mu"},
		Interruptible12: true,
		Interruptible21: true,
		Effects12:       failureEffects,
		Effects21:       repairEffects,
	})
}

// AddDelayFailureMode adds a fixed-delay failure/repair automaton local
// to the component. The times live in the {name}_ttf and {name}_ttr
// parameter cells.
func (c *Component) AddDelayFailureMode(name string, failureTime, repairTime float64, failureEffects, repairEffects []string) (*automaton.Automaton, error) {
	c.newParamCell(name+"_ttf", failureTime)
	c.newParamCell(name+"_ttr", repairTime)
	return c.AddTwoStateAutomaton(TwoStateAutomatonSpec{
		Name:            name,
		State1:          "rep",
		State2:          "occ",
		Law12:           LawSpec{Kind: automaton.LawDelay, Param: name + "_ttf"},
		Law21:           LawSpec{Kind: automaton.LawDelay, Param: name + "_ttr"},
		Interruptible12: true,
		Interruptible21: true,
		Effects12:       failureEffects,
		Effects21:       repairEffects,
	})
}
