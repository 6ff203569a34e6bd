package reactive

// Listener is a named reaction to an upstream change. Flow update rules and
// automaton wrappers implement it; the name is used in diagnostics only.
//
// Listeners are registered on cells and references, never owned by them:
// the declaring component keeps ownership of the underlying state.
type Listener interface {
	// ListenerName identifies the reaction for logs and error messages.
	ListenerName() string
	// React recomputes whatever the listener derives from its inputs.
	React()
}

// Propagator owns the deferred propagation queue shared by every cell of a
// model. It is strictly single-threaded: one propagator belongs to exactly
// one model instance, and concurrency isolation happens at the model level
// (one model copy per Monte Carlo worker), not here.
type Propagator struct {
	queue    []Listener
	draining bool
}

// NewPropagator creates an empty propagation queue.
func NewPropagator() *Propagator {
	return &Propagator{queue: make([]Listener, 0, 16)}
}

// Notify enqueues the given listeners in order and, unless a drain is
// already in progress higher up the call stack, drains the queue before
// returning. Listeners enqueued during the drain run in the same pass,
// after the ones already queued (no recursion).
func (p *Propagator) Notify(listeners []Listener) {
	p.queue = append(p.queue, listeners...)
	if !p.draining {
		p.drain()
	}
}

// Batch runs fn with draining suppressed, then performs a single drain.
// Used to apply a group of cell mutations atomically: no listener observes
// a partially-applied group.
func (p *Propagator) Batch(fn func()) {
	if p.draining {
		// Already inside a propagation pass: mutations defer naturally.
		fn()
		return
	}
	p.draining = true
	fn()
	p.draining = false
	p.drain()
}

func (p *Propagator) drain() {
	p.draining = true
	for len(p.queue) > 0 {
		l := p.queue[0]
		// Clear the slot so the backing array does not retain the listener.
		p.queue[0] = nil
		p.queue = p.queue[1:]
		l.React()
	}
	// Reset to reclaim the consumed prefix of the backing array.
	p.queue = p.queue[:0]
	p.draining = false
}

// Cell is a typed mutable value with change notification. Cells are the
// only mutable state of a model: flow values, availability bits and law
// parameters are all cells.
type Cell[T comparable] struct {
	name      string
	value     T
	def       T
	reinit    bool
	listeners []Listener
	prop      *Propagator
}

// NewCell declares a cell with its default value. When reinit is true the
// cell is restored to def at the start of every run.
func NewCell[T comparable](prop *Propagator, name string, def T, reinit bool) *Cell[T] {
	return &Cell[T]{
		name:   name,
		value:  def,
		def:    def,
		reinit: reinit,
		prop:   prop,
	}
}

// Name returns the cell's declared name.
func (c *Cell[T]) Name() string { return c.name }

// Value returns the current value.
func (c *Cell[T]) Value() T { return c.value }

// Default returns the run-start default.
func (c *Cell[T]) Default() T { return c.def }

// Reinitialized reports whether the cell resets at run start.
func (c *Cell[T]) Reinitialized() bool { return c.reinit }

// Set updates the value. If the value actually changes, every registered
// listener is notified exactly once, in registration order, before the
// outermost Set returns (see Propagator).
func (c *Cell[T]) Set(v T) {
	if v == c.value {
		return
	}
	c.value = v
	if len(c.listeners) > 0 {
		c.prop.Notify(c.listeners)
	}
}

// Reset restores the default value without notification. Only meaningful
// between runs, when the scheduler re-seeds the whole model anyway.
func (c *Cell[T]) Reset() {
	if c.reinit {
		c.value = c.def
	}
}

// Subscribe registers a listener. Registration order is notification order.
func (c *Cell[T]) Subscribe(l Listener) {
	c.listeners = append(c.listeners, l)
}
