// Package reactive provides the value-propagation substrate of the
// simulation core: typed mutable cells that notify registered listeners
// when their value changes, references that aggregate remote cells with
// AND/OR logic, and a build-time dependency graph used to reject cyclic
// update rules before a run starts.
//
// ARCHITECTURE:
//
// Deferred Synchronous Propagation:
// A cell change triggers its listeners before Set returns, but listeners
// triggered *while* the propagation queue is draining are appended to the
// queue rather than invoked recursively. This gives a single, FIFO-ordered
// propagation pass per external mutation:
//   - Listeners observe a consistent, fully-applied upstream value
//   - Call depth is bounded regardless of dependency chain length
//   - Event ordering is deterministic for a fixed model
//
// Declared cycles among update rules are a modeling error. They are
// detected at model-assembly time by Tarjan SCC over the dependency graph
// (see Graph), never tolerated at run time.
package reactive
