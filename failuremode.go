package availsim

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/quentel/availsim/automaton"
)

// FailureModeSpec declares a common-cause failure mode over one or more
// target components. The generator expands it into one two-state
// automaton per non-empty subset of the targets (2^n - 1 automata),
// grouped on a pseudo-component named after the factorized target names.
type FailureModeSpec struct {
	// Name is the failure mode's base name.
	Name string

	// Targets lists the affected components in order. The subset order
	// (1..len) indexes the parameter lists.
	Targets []string

	// TargetName overrides the factorized pseudo-component base name.
	TargetName string

	// Law selects the occurrence-law family for both directions:
	// exponential (lambda/mu rates) or fixed delay (ttf/ttr times).
	Law automaton.LawKind

	// FailureState and RepairState name the automaton states.
	// Defaults: occ, rep.
	FailureState string
	RepairState  string

	// FailureEffects and RepairEffects map anchored name patterns over
	// the targets' output flows to the availability value applied on
	// firing.
	FailureEffects map[string]bool
	RepairEffects  map[string]bool

	// FailureParams and RepairParams hold one parameter per order. Entry
	// i parameterizes every subset of size i+1.
	FailureParams []float64
	RepairParams  []float64

	// FailureCond and RepairCond gate the transitions: every subset
	// member's named input flow must hold the given fed value. Nil means
	// always enabled.
	FailureCond map[string]bool
	RepairCond  map[string]bool

	// PadDefaultParams fills missing parameters with zero instead of
	// rejecting the declaration.
	PadDefaultParams bool
}

// AddFailureMode expands a common-cause failure mode into its subset
// automata and returns the owning pseudo-component.
func (s *System) AddFailureMode(spec FailureModeSpec) (*Component, error) {
	if len(spec.Targets) == 0 {
		return nil, &BuildError{
			Code:   ErrCodeInsufficientParameters,
			Detail: "failure mode " + spec.Name + " has no targets",
		}
	}
	targets := make([]*Component, 0, len(spec.Targets))
	for _, name := range spec.Targets {
		tc, ok := s.comps[name]
		if !ok {
			return nil, &BuildError{
				Code:      ErrCodeUnknownComponent,
				Component: name,
				Detail:    "failure mode " + spec.Name + " targets undeclared component",
			}
		}
		targets = append(targets, tc)
	}

	n := len(targets)
	failureParams, err := s.normalizeParams(spec.Name, "failure", spec.FailureParams, n, spec.PadDefaultParams)
	if err != nil {
		return nil, err
	}
	repairParams, err := s.normalizeParams(spec.Name, "repair", spec.RepairParams, n, spec.PadDefaultParams)
	if err != nil {
		return nil, err
	}

	targetName := spec.TargetName
	if targetName == "" {
		targetName = factorizeTargetNames(spec.Targets)
	}
	failureState := spec.FailureState
	if failureState == "" {
		failureState = "occ"
	}
	repairState := spec.RepairState
	if repairState == "" {
		repairState = "rep"
	}
	failureParamName, repairParamName := "lambda", "mu"
	if spec.Law == automaton.LawDelay {
		failureParamName, repairParamName = "ttf", "ttr"
	}

	c, err := s.AddComponent(targetName + "__" + spec.Name)
	if err != nil {
		return nil, err
	}

	for order := 1; order <= n; order++ {
		failureParamCell := failureParamName
		repairParamCell := repairParamName
		if n > 1 {
			suffix := fmt.Sprintf("__%d_o_%d", order, n)
			failureParamCell += suffix
			repairParamCell += suffix
		}
		failureCell := c.newParamCell(failureParamCell, failureParams[order-1])
		repairCell := c.newParamCell(repairParamCell, repairParams[order-1])

		var failureLaw, repairLaw automaton.Law
		if spec.Law == automaton.LawDelay {
			failureLaw = automaton.Delay(failureCell)
			repairLaw = automaton.Delay(repairCell)
		} else {
			failureLaw = automaton.Exponential(failureCell)
			repairLaw = automaton.Exponential(repairCell)
		}

		for subset := range combinations(n, order) {
			name := spec.Name
			if n > 1 {
				digits := ""
				for _, idx := range subset {
					digits += strconv.Itoa(idx + 1)
				}
				name += "__cc_" + digits
			}

			failureEffects, err := subsetEffects(targets, subset, spec.FailureEffects)
			if err != nil {
				return nil, err
			}
			repairEffects, err := subsetEffects(targets, subset, spec.RepairEffects)
			if err != nil {
				return nil, err
			}
			failureGuard, err := subsetGuard(targets, subset, spec.FailureCond)
			if err != nil {
				return nil, err
			}
			repairGuard, err := subsetGuard(targets, subset, spec.RepairCond)
			if err != nil {
				return nil, err
			}

			repName := name + "_" + repairState
			occName := name + "_" + failureState
			aut, err := automaton.New(s.prop, c.name+"_"+name, []string{repName, occName}, repName)
			if err != nil {
				return nil, err
			}
			repIdx, _ := aut.StateIndex(repName)
			occIdx, _ := aut.StateIndex(occName)
			aut.AddTransition(&automaton.Transition{
				Name:          name + "__" + failureState,
				Source:        repIdx,
				Target:        occIdx,
				Guard:         failureGuard,
				Law:           failureLaw,
				Interruptible: true,
				Effects:       failureEffects,
			})
			aut.AddTransition(&automaton.Transition{
				Name:          name + "__" + repairState,
				Source:        occIdx,
				Target:        repIdx,
				Guard:         repairGuard,
				Law:           repairLaw,
				Interruptible: true,
				Effects:       repairEffects,
			})
			c.automata = append(c.automata, aut)
		}
	}
	return c, nil
}

// normalizeParams pads or rejects a per-order parameter list.
func (s *System) normalizeParams(fm, role string, params []float64, n int, pad bool) ([]float64, error) {
	if len(params) > n {
		return nil, &BuildError{
			Code: ErrCodeInsufficientParameters,
			Detail: fmt.Sprintf("failure mode %s of order %d but %d %s parameters given",
				fm, n, len(params), role),
		}
	}
	if len(params) < n && !pad {
		return nil, &BuildError{
			Code: ErrCodeInsufficientParameters,
			Detail: fmt.Sprintf("failure mode %s of order %d but only %d %s parameters given",
				fm, n, len(params), role),
		}
	}
	out := make([]float64, n)
	copy(out, params)
	return out, nil
}

// subsetEffects expands effect patterns over the subset members' output
// flows. Patterns are anchored against flow names and applied to the
// matching flows' availability cells, in declaration order.
func subsetEffects(targets []*Component, subset []int, patterns map[string]bool) ([]automaton.Effect, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	pats := make([]string, 0, len(patterns))
	for pat := range patterns {
		pats = append(pats, pat)
	}
	sort.Strings(pats)

	var effects []automaton.Effect
	for _, idx := range subset {
		tc := targets[idx]
		for _, pat := range pats {
			re, err := regexp.Compile("^(" + pat + ")$")
			if err != nil {
				return nil, &BuildError{
					Code:      ErrCodeUnknownFlow,
					Component: tc.name,
					Detail:    "invalid effect pattern " + pat + ": " + err.Error(),
				}
			}
			for _, flowName := range tc.outOrder {
				if re.MatchString(flowName) {
					effects = append(effects, automaton.Effect{
						Cell:  tc.flowsOut[flowName].fedAvailable,
						Value: patterns[pat],
					})
				}
			}
		}
	}
	return effects, nil
}

// subsetGuard builds the conjunction of (input flow fed == value) terms
// over every subset member.
func subsetGuard(targets []*Component, subset []int, cond map[string]bool) (automaton.Guard, error) {
	if len(cond) == 0 {
		return automaton.Always(true), nil
	}
	flows := make([]string, 0, len(cond))
	for flow := range cond {
		flows = append(flows, flow)
	}
	sort.Strings(flows)

	var terms []automaton.Term
	for _, idx := range subset {
		tc := targets[idx]
		for _, flow := range flows {
			fi, ok := tc.flowsIn[flow]
			if !ok {
				return automaton.Guard{}, &BuildError{
					Code:      ErrCodeUnknownFlow,
					Component: tc.name,
					Flow:      flow,
					Detail:    "failure mode condition references undeclared input flow",
				}
			}
			terms = append(terms, automaton.Term{Cell: fi.fed, Want: cond[flow]})
		}
	}
	return automaton.AllOf(terms), nil
}

// combinations yields every size-k index subset of {0..n-1} in
// lexicographic order.
func combinations(n, k int) func(yield func([]int) bool) {
	return func(yield func([]int) bool) {
		idx := make([]int, k)
		for i := range idx {
			idx[i] = i
		}
		for {
			out := make([]int, k)
			copy(out, idx)
			if !yield(out) {
				return
			}
			// Advance the rightmost index that can still move.
			i := k - 1
			for i >= 0 && idx[i] == n-k+i {
				i--
			}
			if i < 0 {
				return
			}
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
}

// factorizeTargetNames derives the pseudo-component base name from the
// target names. Same-length names keep the characters common to all
// targets and replace differing positions with "X" (underscores pass
// through); different-length names are joined with "__". Names are
// NFC-normalized first so composed and decomposed spellings factorize
// identically.
func factorizeTargetNames(targets []string) string {
	if len(targets) == 0 {
		return ""
	}
	runes := make([][]rune, len(targets))
	for i, t := range targets {
		runes[i] = []rune(norm.NFC.String(t))
	}
	if len(targets) == 1 {
		return string(runes[0])
	}

	width := len(runes[0])
	for _, r := range runes[1:] {
		if len(r) != width {
			joined := string(runes[0])
			for _, rr := range runes[1:] {
				joined += "__" + string(rr)
			}
			return joined
		}
	}

	out := make([]rune, width)
	for i := 0; i < width; i++ {
		ref := runes[0][i]
		if ref == '_' {
			out[i] = ref
			continue
		}
		common := true
		for _, r := range runes[1:] {
			if r[i] != ref {
				common = false
				break
			}
		}
		if common {
			out[i] = ref
		} else {
			out[i] = 'X'
		}
	}
	return string(out)
}
