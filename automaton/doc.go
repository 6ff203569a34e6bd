// Package automaton implements the finite-state machines that drive all
// timed behavior in a model: failure/repair cycles, flow temporization and
// trigger gating.
//
// An automaton has exactly one active state at all times. A transition is
// fireable when its source state is active and its guard evaluates true;
// the delay before firing is drawn from the transition's occurrence law
// (exponential with a rate read from a cell, or a fixed delay read from a
// cell). Firing moves the active state, applies the transition's cell
// effects as one atomic batch, and notifies listeners (typically the
// update rule of a wrapping output flow).
//
// Guards, laws and effects are closed tagged unions over cell references
// rather than captured closures: a generic interpreter evaluates them,
// which keeps transitions comparable, loggable and allocation-free on the
// hot path.
package automaton
