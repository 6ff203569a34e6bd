package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a listener that logs its own firings and optionally runs a
// side effect, to observe propagation order.
type recorder struct {
	name   string
	log    *[]string
	effect func()
}

func (r *recorder) ListenerName() string { return r.name }

func (r *recorder) React() {
	*r.log = append(*r.log, r.name)
	if r.effect != nil {
		r.effect()
	}
}

func TestCell_Set_NotifiesInRegistrationOrder(t *testing.T) {
	prop := NewPropagator()
	c := NewCell(prop, "c", false, true)

	var log []string
	c.Subscribe(&recorder{name: "first", log: &log})
	c.Subscribe(&recorder{name: "second", log: &log})

	c.Set(true)
	assert.Equal(t, []string{"first", "second"}, log)
}

func TestCell_Set_SameValueIsNoOp(t *testing.T) {
	prop := NewPropagator()
	c := NewCell(prop, "c", true, true)

	var log []string
	c.Subscribe(&recorder{name: "l", log: &log})

	c.Set(true)
	assert.Empty(t, log, "setting the current value must not notify")
}

func TestCell_Set_NestedSetsAreDeferred(t *testing.T) {
	prop := NewPropagator()
	a := NewCell(prop, "a", false, true)
	b := NewCell(prop, "b", false, true)

	var log []string
	// a's first listener flips b; b's listener must run after a's second
	// listener, not in between.
	a.Subscribe(&recorder{name: "a1", log: &log, effect: func() { b.Set(true) }})
	a.Subscribe(&recorder{name: "a2", log: &log})
	b.Subscribe(&recorder{name: "b1", log: &log})

	a.Set(true)
	assert.Equal(t, []string{"a1", "a2", "b1"}, log)
	assert.True(t, b.Value())
}

func TestCell_Reset_RestoresDefaultOnlyWhenReinitialized(t *testing.T) {
	prop := NewPropagator()
	reinit := NewCell(prop, "r", false, true)
	sticky := NewCell(prop, "s", 1.5, false)

	reinit.Set(true)
	sticky.Set(2.5)
	reinit.Reset()
	sticky.Reset()

	assert.False(t, reinit.Value())
	assert.Equal(t, 2.5, sticky.Value(), "non-reinitialized cell keeps its value")
}

func TestCell_Reset_DoesNotNotify(t *testing.T) {
	prop := NewPropagator()
	c := NewCell(prop, "c", false, true)

	var log []string
	c.Subscribe(&recorder{name: "l", log: &log})
	c.Set(true)
	log = nil

	c.Reset()
	assert.Empty(t, log)
	assert.False(t, c.Value())
}

func TestPropagator_Batch_AppliesEffectsAtomically(t *testing.T) {
	prop := NewPropagator()
	a := NewCell(prop, "a", false, true)
	b := NewCell(prop, "b", false, true)

	var seen [][2]bool
	observe := &recorder{name: "obs", log: new([]string), effect: nil}
	observe.effect = func() { seen = append(seen, [2]bool{a.Value(), b.Value()}) }
	a.Subscribe(observe)
	b.Subscribe(observe)

	prop.Batch(func() {
		a.Set(true)
		b.Set(true)
	})

	require.Len(t, seen, 2)
	// Both observations happen after both mutations.
	assert.Equal(t, [2]bool{true, true}, seen[0])
	assert.Equal(t, [2]bool{true, true}, seen[1])
}

func TestReference_Unconnected_ReturnsDefault(t *testing.T) {
	r := NewReference("in")

	assert.True(t, r.AndValue(true))
	assert.False(t, r.AndValue(false))
	assert.True(t, r.OrValue(true))
	assert.False(t, r.OrValue(false))
}

func TestReference_AndOrValue(t *testing.T) {
	prop := NewPropagator()
	r := NewReference("in")
	a := NewCell(prop, "a", true, true)
	b := NewCell(prop, "b", false, true)
	require.True(t, r.Connect(a))
	require.True(t, r.Connect(b))

	assert.False(t, r.AndValue(true))
	assert.True(t, r.OrValue(false))

	b.Set(true)
	assert.True(t, r.AndValue(false))
}

func TestReference_Connect_RejectsDuplicate(t *testing.T) {
	prop := NewPropagator()
	r := NewReference("in")
	a := NewCell(prop, "a", false, true)

	require.True(t, r.Connect(a))
	assert.False(t, r.Connect(a))
	assert.Equal(t, 1, r.Len())
}

func TestReference_Subscribe_CoversLaterSources(t *testing.T) {
	prop := NewPropagator()
	r := NewReference("in")

	var log []string
	r.Subscribe(&recorder{name: "rule", log: &log})

	// Connected after the subscription; the listener must still fire.
	a := NewCell(prop, "a", false, true)
	require.True(t, r.Connect(a))
	a.Set(true)

	assert.Equal(t, []string{"rule"}, log)
}
