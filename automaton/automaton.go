package automaton

import (
	"fmt"

	"github.com/quentel/availsim/reactive"
)

// Effect sets one boolean cell to a fixed value when a transition fires.
type Effect struct {
	Cell  *reactive.Cell[bool]
	Value bool
}

// Transition is a guarded, law-timed jump between two states of one
// automaton. Source and Target are state indices of the owning automaton.
type Transition struct {
	Name          string
	Source        int
	Target        int
	Guard         Guard
	Law           Law
	Interruptible bool
	Effects       []Effect
}

// Automaton is a finite-state machine with exactly one active state.
//
// INVARIANTS:
//   - active is always a valid state index
//   - only transitions whose Source equals the active state may fire
//   - transition order never changes after construction (deterministic
//     fireability scans)
type Automaton struct {
	Name        string
	states      []string
	initial     int
	active      int
	Transitions []*Transition
	listeners   []reactive.Listener
	prop        *reactive.Propagator
}

// New creates an automaton in the given initial state.
func New(prop *reactive.Propagator, name string, states []string, initial string) (*Automaton, error) {
	a := &Automaton{Name: name, states: states, prop: prop}
	idx, ok := a.StateIndex(initial)
	if !ok {
		return nil, fmt.Errorf("automaton %s: unknown initial state %q", name, initial)
	}
	a.initial = idx
	a.active = idx
	return a, nil
}

// StateIndex resolves a state name to its index.
func (a *Automaton) StateIndex(name string) (int, bool) {
	for i, s := range a.states {
		if s == name {
			return i, true
		}
	}
	return 0, false
}

// States returns the state names in declaration order.
func (a *Automaton) States() []string { return a.states }

// Active returns the name of the active state.
func (a *Automaton) Active() string { return a.states[a.active] }

// ActiveIndex returns the index of the active state.
func (a *Automaton) ActiveIndex() int { return a.active }

// IsActive reports whether the given state index is the active one.
func (a *Automaton) IsActive(state int) bool { return a.active == state }

// AddTransition appends a transition. Declaration order is scan order.
func (a *Automaton) AddTransition(t *Transition) {
	a.Transitions = append(a.Transitions, t)
}

// Subscribe registers a listener notified after every firing. Used by
// output-flow wrappers whose production value reads the active state.
func (a *Automaton) Subscribe(l reactive.Listener) {
	a.listeners = append(a.listeners, l)
}

// Reset restores the initial state without notification.
func (a *Automaton) Reset() { a.active = a.initial }

// Fire executes the transition: the active state moves to the target, the
// effects are applied as one atomic batch, and listeners are notified in
// registration order. Propagation triggered by the effects completes
// before Fire returns.
func (a *Automaton) Fire(t *Transition) {
	a.active = t.Target
	a.prop.Batch(func() {
		for _, e := range t.Effects {
			e.Cell.Set(e.Value)
		}
		a.prop.Notify(a.listeners)
	})
}
