// Package engine implements the per-run discrete-event scheduler at the
// heart of the Monte Carlo core.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// A Scheduler owns one isolated model copy and processes one run in a
// single goroutine. All mutation happens inside the loop:
//  1. Reset cells and automata, run the start rules (initial flow
//     evaluation), compute initial fireability and seed the event heap.
//  2. Pop the earliest pending firing, advance the virtual clock, fire it.
//     Cell effects propagate synchronously (see package reactive) before
//     the loop continues.
//  3. Reconcile fireability: transitions whose guard turned false are
//     cancelled, newly fireable ones draw a delay and enter the heap.
//  4. Stop when the heap is empty or the clock would pass the horizon.
//
// Events are ordered by absolute firing time with a monotonic sequence
// number as tie-break. Wall-clock time is never consulted: for a fixed
// seed a run is bit-for-bit reproducible.
//
// Monte Carlo runs are independent. Each run derives its random stream
// from the global seed plus the run index, so a run's result does not
// depend on which worker executed it or in which order.
package engine
