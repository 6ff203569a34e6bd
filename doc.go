// Package availsim models reliability and availability of engineered
// systems as networks of flow components driven by stochastic and
// deterministic failure-repair automata, simulated over many independent
// Monte Carlo runs.
//
// ARCHITECTURE:
//
// A System is assembled once and simulated many times. Components declare
// named flows: inputs that aggregate upstream connections, and outputs
// gated by production conditions over sibling flows. Flow values live in
// reactive cells (package reactive); changing one cell re-evaluates every
// downstream flow synchronously, in one deterministic propagation pass.
//
// Failure and repair dynamics are finite-state automata (package
// automaton) whose transitions are timed by exponential or fixed-delay
// occurrence laws and gated by flow values. Firing a transition flips
// availability cells, which propagates through the flow network before
// the event loop continues. Common-cause failure modes expand into one
// automaton per non-empty subset of their target components.
//
// The discrete-event scheduler (package engine) pops the earliest pending
// firing, advances the virtual clock, fires, and reconciles which
// transitions are armed. Runs are independent: each owns an isolated
// model copy and a random stream derived from the global seed plus the
// run index, so a campaign is reproducible regardless of worker count.
//
// INVARIANTS:
//   - model assembly is complete before Build; no topology change after
//   - every build-time defect surfaces as a *BuildError before any run
//   - a run either completes or aborts alone with a RuntimeInvariantError
package availsim
