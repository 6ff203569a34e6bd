package automaton

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/quentel/availsim/reactive"
)

// LawKind discriminates the occurrence-law union.
type LawKind int

const (
	// LawDelay fires after a fixed delay read from the time cell.
	LawDelay LawKind = iota
	// LawExponential fires after an exponentially distributed delay with a
	// rate read from the rate cell.
	LawExponential
)

// String returns the configuration spelling of the law kind.
func (k LawKind) String() string {
	if k == LawExponential {
		return "exp"
	}
	return "delay"
}

// Law is the occurrence law timing a transition. The parameter is a cell,
// not a constant: external tooling may retune rates between runs without
// rebuilding the model.
type Law struct {
	Kind  LawKind
	Param *reactive.Cell[float64]
}

// Delay returns a fixed-delay law reading the given time cell.
func Delay(timeCell *reactive.Cell[float64]) Law {
	return Law{Kind: LawDelay, Param: timeCell}
}

// Exponential returns an exponential law reading the given rate cell.
func Exponential(rateCell *reactive.Cell[float64]) Law {
	return Law{Kind: LawExponential, Param: rateCell}
}

// Sample draws the firing delay counted from the moment the transition
// became fireable. A non-positive exponential rate means the transition
// never fires (+Inf). A negative fixed delay is a modeling defect and
// returns an error.
func (l Law) Sample(rng *rand.Rand) (float64, error) {
	switch l.Kind {
	case LawExponential:
		rate := l.Param.Value()
		if rate <= 0 {
			return math.Inf(1), nil
		}
		return rng.ExpFloat64() / rate, nil
	default:
		d := l.Param.Value()
		if d < 0 {
			return 0, fmt.Errorf("negative delay %g from %s", d, l.Param.Name())
		}
		return d, nil
	}
}
