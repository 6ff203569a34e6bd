package reactive

// Reference aggregates zero or more remote boolean cells. A component
// declares a reference for each inbound port; connections append source
// cells in wiring order. Evaluation is pure: AndValue and OrValue read the
// sources without side effects, and an unconnected reference yields the
// caller-supplied default.
type Reference struct {
	name      string
	sources   []*Cell[bool]
	listeners []Listener
}

// NewReference declares an empty reference.
func NewReference(name string) *Reference {
	return &Reference{name: name}
}

// Name returns the reference's declared name.
func (r *Reference) Name() string { return r.name }

// Len returns the number of connected sources.
func (r *Reference) Len() int { return len(r.sources) }

// Connect appends a source cell. It returns false when the cell is already
// connected (the caller turns that into a duplicate-connection error).
// Listeners already subscribed to the reference start observing the new
// source immediately.
func (r *Reference) Connect(src *Cell[bool]) bool {
	for _, s := range r.sources {
		if s == src {
			return false
		}
	}
	r.sources = append(r.sources, src)
	for _, l := range r.listeners {
		src.Subscribe(l)
	}
	return true
}

// Subscribe registers a listener on the reference, i.e. on every current
// and future source cell.
func (r *Reference) Subscribe(l Listener) {
	r.listeners = append(r.listeners, l)
	for _, s := range r.sources {
		s.Subscribe(l)
	}
}

// AndValue returns the conjunction of all source values, or def when the
// reference is unconnected.
func (r *Reference) AndValue(def bool) bool {
	if len(r.sources) == 0 {
		return def
	}
	for _, s := range r.sources {
		if !s.Value() {
			return false
		}
	}
	return true
}

// OrValue returns the disjunction of all source values, or def when the
// reference is unconnected.
func (r *Reference) OrValue(def bool) bool {
	if len(r.sources) == 0 {
		return def
	}
	for _, s := range r.sources {
		if s.Value() {
			return true
		}
	}
	return false
}
