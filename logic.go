package availsim

// LogicInput names one wired input of a logic gate: an output flow of an
// existing component.
type LogicInput struct {
	Component string
	Flow      string
}

// AddLogicOr declares a gate component whose "flow" output produces when
// every distinct input flow is fed by at least one of its producers.
// Each distinct flow name becomes an or-aggregated input; the production
// condition conjoins them.
func (s *System) AddLogicOr(name string, inputs []LogicInput) (*Component, error) {
	return s.addLogic(name, inputs, "or")
}

// AddLogicAnd is AddLogicOr with and-aggregated inputs: every producer
// wired to an input flow must feed it.
func (s *System) AddLogicAnd(name string, inputs []LogicInput) (*Component, error) {
	return s.addLogic(name, inputs, "and")
}

func (s *System) addLogic(name string, inputs []LogicInput, logic string) (*Component, error) {
	c, err := s.AddComponent(name)
	if err != nil {
		return nil, err
	}

	// One input flow per distinct flow name, in first-seen order.
	var flowNames []string
	seen := make(map[string]bool)
	for _, in := range inputs {
		if seen[in.Flow] {
			continue
		}
		seen[in.Flow] = true
		flowNames = append(flowNames, in.Flow)
	}
	prodCond := make([][]string, 0, len(flowNames))
	for _, flow := range flowNames {
		if _, err := c.AddFlowIn(FlowInSpec{Name: flow, Logic: logic}); err != nil {
			return nil, err
		}
		prodCond = append(prodCond, []string{flow})
	}

	if _, err := c.AddFlowOutTempo(FlowOutTempoSpec{
		FlowOutSpec: FlowOutSpec{Name: "flow", ProdCond: prodCond},
		InitEnabled: true,
	}); err != nil {
		return nil, err
	}

	for _, in := range inputs {
		if err := s.Connect(in.Component, in.Flow, name, in.Flow); err != nil {
			return nil, err
		}
	}
	return c, nil
}
