package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentel/availsim/automaton"
	"github.com/quentel/availsim/reactive"
)

// delayCycleModel is a single failure/repair automaton on a fixed 4/2
// cycle whose failure drops an availability cell.
func delayCycleModel(t *testing.T, prop *reactive.Propagator) (*Model, *reactive.Cell[bool]) {
	t.Helper()
	avail := reactive.NewCell(prop, "block.is_ok_fed_available_out", true, true)
	ttf := reactive.NewCell(prop, "block.frun_ttf", 4.0, false)
	ttr := reactive.NewCell(prop, "block.frun_ttr", 2.0, false)

	aut, err := automaton.New(prop, "block_frun", []string{"frun_rep", "frun_occ"}, "frun_rep")
	require.NoError(t, err)
	rep, _ := aut.StateIndex("frun_rep")
	occ, _ := aut.StateIndex("frun_occ")
	aut.AddTransition(&automaton.Transition{
		Name:          "frun_rep_occ",
		Source:        rep,
		Target:        occ,
		Guard:         automaton.Always(true),
		Law:           automaton.Delay(ttf),
		Interruptible: true,
		Effects:       []automaton.Effect{{Cell: avail, Value: false}},
	})
	aut.AddTransition(&automaton.Transition{
		Name:          "frun_occ_rep",
		Source:        occ,
		Target:        rep,
		Guard:         automaton.Always(true),
		Law:           automaton.Delay(ttr),
		Interruptible: true,
		Effects:       []automaton.Effect{{Cell: avail, Value: true}},
	})

	m := &Model{
		Automata:    []*automaton.Automaton{aut},
		ResetState:  func() { avail.Reset() },
		Start:       func() {},
		Observables: []Observable{{Name: "block.is_ok_fed_available_out", Cell: avail}},
	}
	return m, avail
}

func TestScheduler_Run_DeterministicDelayCycle(t *testing.T) {
	prop := reactive.NewPropagator()
	m, _ := delayCycleModel(t, prop)
	cfg := &Config{Runs: 1, Schedule: []Window{{Start: 0, End: 24, NValues: 12}}}
	require.NoError(t, cfg.Validate())

	res, err := NewScheduler(m, nil).Run(0, 1, cfg)
	require.NoError(t, err)

	times := make([]float64, len(res.Firings))
	for i, f := range res.Firings {
		times[i] = f.Time
	}
	// Period 6: failure after 4, repair after 2 more. The repair at
	// exactly the horizon still fires.
	assert.Equal(t, []float64{4, 6, 10, 12, 16, 18, 22, 24}, times)
	assert.Equal(t, "frun_rep_occ", res.Firings[0].Transition)
	assert.Equal(t, "frun_occ_rep", res.Firings[1].Transition)
	assert.Equal(t, "block_frun", res.Firings[0].Automaton)
}

func TestScheduler_Run_SamplesObserveStateAfterCoincidentFiring(t *testing.T) {
	prop := reactive.NewPropagator()
	m, _ := delayCycleModel(t, prop)
	cfg := &Config{Runs: 1, Schedule: []Window{{Start: 0, End: 24, NValues: 12}}}
	require.NoError(t, cfg.Validate())

	res, err := NewScheduler(m, nil).Run(0, 1, cfg)
	require.NoError(t, err)
	require.Len(t, res.Samples, 12)

	want := map[float64]float64{
		0: 1, 2: 1,
		4: 0, // failed at exactly this instant: post-firing state
		6: 1, // repaired at exactly this instant
		8: 1,
		10: 0, 12: 1, 14: 1,
		16: 0, 18: 1, 20: 1,
		22: 0,
	}
	for _, s := range res.Samples {
		assert.Equal(t, want[s.Time], s.Value, "sample at t=%g", s.Time)
	}
}

func TestScheduler_Run_IsReusableAcrossRuns(t *testing.T) {
	prop := reactive.NewPropagator()
	m, _ := delayCycleModel(t, prop)
	cfg := &Config{Runs: 2, Schedule: []Window{{Start: 0, End: 24, NValues: 12}}}
	require.NoError(t, cfg.Validate())

	sched := NewScheduler(m, nil)
	first, err := sched.Run(0, 7, cfg)
	require.NoError(t, err)
	second, err := sched.Run(1, 7, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Firings, second.Firings, "deterministic model must repeat exactly")
	assert.Equal(t, first.Samples, second.Samples)
}

// guardedModel builds one guarded transition plus a one-way toggler that
// drops the guard at t=2 and restores it at t=6.
func guardedModel(t *testing.T, prop *reactive.Propagator, interruptible bool) *Model {
	t.Helper()
	g := reactive.NewCell(prop, "g", true, true)
	delay := reactive.NewCell(prop, "delay", 5.0, false)
	two := reactive.NewCell(prop, "two", 2.0, false)
	four := reactive.NewCell(prop, "four", 4.0, false)

	main, err := automaton.New(prop, "main", []string{"s1", "s2"}, "s1")
	require.NoError(t, err)
	main.AddTransition(&automaton.Transition{
		Name:          "jump",
		Source:        0,
		Target:        1,
		Guard:         automaton.CellIs(g, true),
		Law:           automaton.Delay(delay),
		Interruptible: interruptible,
	})

	toggler, err := automaton.New(prop, "toggler", []string{"x0", "x1", "x2"}, "x0")
	require.NoError(t, err)
	toggler.AddTransition(&automaton.Transition{
		Name:          "drop",
		Source:        0,
		Target:        1,
		Guard:         automaton.Always(true),
		Law:           automaton.Delay(two),
		Interruptible: true,
		Effects:       []automaton.Effect{{Cell: g, Value: false}},
	})
	toggler.AddTransition(&automaton.Transition{
		Name:          "restore",
		Source:        1,
		Target:        2,
		Guard:         automaton.Always(true),
		Law:           automaton.Delay(four),
		Interruptible: true,
		Effects:       []automaton.Effect{{Cell: g, Value: true}},
	})

	return &Model{
		Automata:   []*automaton.Automaton{main, toggler},
		ResetState: func() { g.Reset() },
		Start:      func() {},
	}
}

func TestScheduler_Reconcile_InterruptibleRedrawsFullDelay(t *testing.T) {
	prop := reactive.NewPropagator()
	m := guardedModel(t, prop, true)
	cfg := &Config{Runs: 1, Schedule: []Window{{Start: 0, End: 20, NValues: 1}}}
	require.NoError(t, cfg.Validate())

	res, err := NewScheduler(m, nil).Run(0, 1, cfg)
	require.NoError(t, err)

	// Armed at 0 for t=5, cancelled at 2, rearmed at 6 with a fresh
	// 5-unit delay: fires at 11.
	require.Len(t, res.Firings, 3)
	assert.Equal(t, "drop", res.Firings[0].Transition)
	assert.Equal(t, "restore", res.Firings[1].Transition)
	assert.Equal(t, "jump", res.Firings[2].Transition)
	assert.Equal(t, 11.0, res.Firings[2].Time)
}

func TestScheduler_Reconcile_NonInterruptibleKeepsRemainingDelay(t *testing.T) {
	prop := reactive.NewPropagator()
	m := guardedModel(t, prop, false)
	cfg := &Config{Runs: 1, Schedule: []Window{{Start: 0, End: 20, NValues: 1}}}
	require.NoError(t, cfg.Validate())

	res, err := NewScheduler(m, nil).Run(0, 1, cfg)
	require.NoError(t, err)

	// 2 of 5 units elapsed before the guard dropped; the remaining 3
	// resume at 6: fires at 9.
	require.Len(t, res.Firings, 3)
	assert.Equal(t, "jump", res.Firings[2].Transition)
	assert.Equal(t, 9.0, res.Firings[2].Time)
}

func TestScheduler_Run_SameInstantCascadeSettlesBeforeSample(t *testing.T) {
	prop := reactive.NewPropagator()
	availA := reactive.NewCell(prop, "a.avail", true, true)
	availB := reactive.NewCell(prop, "b.avail", true, true)
	four := reactive.NewCell(prop, "four", 4.0, false)

	failAt4 := func(name string, avail *reactive.Cell[bool]) *automaton.Automaton {
		aut, err := automaton.New(prop, name, []string{"rep", "occ"}, "rep")
		require.NoError(t, err)
		aut.AddTransition(&automaton.Transition{
			Name:          name + "_occ",
			Source:        0,
			Target:        1,
			Guard:         automaton.Always(true),
			Law:           automaton.Delay(four),
			Interruptible: true,
			Effects:       []automaton.Effect{{Cell: avail, Value: false}},
		})
		return aut
	}
	a := failAt4("a", availA)
	b := failAt4("b", availB)

	m := &Model{
		Automata:   []*automaton.Automaton{a, b},
		ResetState: func() { availA.Reset(); availB.Reset() },
		Start:      func() {},
		Observables: []Observable{
			{Name: "a.avail", Cell: availA},
			{Name: "b.avail", Cell: availB},
		},
	}
	cfg := &Config{Runs: 1, Schedule: []Window{{Start: 0, End: 8, NValues: 2}}}
	require.NoError(t, cfg.Validate())

	res, err := NewScheduler(m, nil).Run(0, 1, cfg)
	require.NoError(t, err)
	require.Len(t, res.Firings, 2)
	require.Len(t, res.Samples, 4)

	// Both automata fire at t=4; the coincident sample must see the whole
	// cascade applied, not just the first firing.
	for _, s := range res.Samples {
		if s.Time == 4 {
			assert.Equal(t, 0.0, s.Value, "%s at t=4", s.Name)
		} else {
			assert.Equal(t, 1.0, s.Value, "%s at t=%g", s.Name, s.Time)
		}
	}
}

func TestScheduler_Reconcile_LeavingSourceForfeitsFrozenDelay(t *testing.T) {
	prop := reactive.NewPropagator()
	g := reactive.NewCell(prop, "g", true, true)
	once := reactive.NewCell(prop, "once", true, true)
	one := reactive.NewCell(prop, "one", 1.0, false)
	two := reactive.NewCell(prop, "two", 2.0, false)
	three := reactive.NewCell(prop, "three", 3.0, false)
	four := reactive.NewCell(prop, "four", 4.0, false)
	five := reactive.NewCell(prop, "five", 5.0, false)

	m, err := automaton.New(prop, "m", []string{"s1", "s2", "s3"}, "s1")
	require.NoError(t, err)
	m.AddTransition(&automaton.Transition{
		Name: "jump", Source: 0, Target: 2,
		Guard: automaton.CellIs(g, true), Law: automaton.Delay(five),
	})
	// One-shot excursion out of s1 and back while jump's guard is down.
	m.AddTransition(&automaton.Transition{
		Name: "leave", Source: 0, Target: 1,
		Guard: automaton.CellIs(once, true), Law: automaton.Delay(three),
		Interruptible: true,
		Effects:       []automaton.Effect{{Cell: once, Value: false}},
	})
	m.AddTransition(&automaton.Transition{
		Name: "return", Source: 1, Target: 0,
		Guard: automaton.Always(true), Law: automaton.Delay(one),
		Interruptible: true,
	})

	toggler, err := automaton.New(prop, "toggler", []string{"x0", "x1", "x2"}, "x0")
	require.NoError(t, err)
	toggler.AddTransition(&automaton.Transition{
		Name: "drop", Source: 0, Target: 1,
		Guard: automaton.Always(true), Law: automaton.Delay(two),
		Interruptible: true,
		Effects:       []automaton.Effect{{Cell: g, Value: false}},
	})
	toggler.AddTransition(&automaton.Transition{
		Name: "restore", Source: 1, Target: 2,
		Guard: automaton.Always(true), Law: automaton.Delay(four),
		Interruptible: true,
		Effects:       []automaton.Effect{{Cell: g, Value: true}},
	})

	model := &Model{
		Automata:   []*automaton.Automaton{m, toggler},
		ResetState: func() { g.Reset(); once.Reset() },
		Start:      func() {},
	}
	cfg := &Config{Runs: 1, Schedule: []Window{{Start: 0, End: 20, NValues: 1}}}
	require.NoError(t, cfg.Validate())

	res, err := NewScheduler(model, nil).Run(0, 1, cfg)
	require.NoError(t, err)

	// jump froze 3 of 5 units when the guard dropped at 2, but the s2
	// excursion (leave at 3, return at 4) discards that remainder: once
	// the guard returns at 6, a fresh 5-unit delay runs, firing at 11
	// rather than resuming the stale 3 at 9.
	require.Len(t, res.Firings, 5)
	last := res.Firings[4]
	assert.Equal(t, "jump", last.Transition)
	assert.Equal(t, 11.0, last.Time)
}

func TestScheduler_Run_QuotaAbortsZeroDelayLivelock(t *testing.T) {
	prop := reactive.NewPropagator()
	zero := reactive.NewCell(prop, "zero", 0.0, false)

	aut, err := automaton.New(prop, "pingpong", []string{"a", "b"}, "a")
	require.NoError(t, err)
	aut.AddTransition(&automaton.Transition{
		Name: "ping", Source: 0, Target: 1,
		Guard: automaton.Always(true), Law: automaton.Delay(zero), Interruptible: true,
	})
	aut.AddTransition(&automaton.Transition{
		Name: "pong", Source: 1, Target: 0,
		Guard: automaton.Always(true), Law: automaton.Delay(zero), Interruptible: true,
	})

	m := &Model{
		Automata:   []*automaton.Automaton{aut},
		ResetState: func() {},
		Start:      func() {},
	}
	cfg := &Config{
		Runs:         1,
		Schedule:     []Window{{Start: 0, End: 10, NValues: 1}},
		InstantQuota: 50,
	}
	require.NoError(t, cfg.Validate())

	_, err = NewScheduler(m, nil).Run(0, 1, cfg)
	require.Error(t, err)
	assert.True(t, IsRuntimeInvariantError(err))

	var re *RuntimeInvariantError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "pingpong", re.Automaton)
	assert.Equal(t, 0.0, re.Time)
}

func TestScheduler_Run_ExponentialDeterministicForFixedSeed(t *testing.T) {
	prop := reactive.NewPropagator()
	rate := reactive.NewCell(prop, "rate", 0.5, false)

	aut, err := automaton.New(prop, "exp", []string{"rep", "occ"}, "rep")
	require.NoError(t, err)
	aut.AddTransition(&automaton.Transition{
		Name: "fail", Source: 0, Target: 1,
		Guard: automaton.Always(true), Law: automaton.Exponential(rate), Interruptible: true,
	})
	aut.AddTransition(&automaton.Transition{
		Name: "repair", Source: 1, Target: 0,
		Guard: automaton.Always(true), Law: automaton.Exponential(rate), Interruptible: true,
	})
	m := &Model{
		Automata:   []*automaton.Automaton{aut},
		ResetState: func() {},
		Start:      func() {},
	}
	cfg := &Config{Runs: 1, Schedule: []Window{{Start: 0, End: 100, NValues: 10}}}
	require.NoError(t, cfg.Validate())

	sched := NewScheduler(m, nil)
	first, err := sched.Run(0, 99, cfg)
	require.NoError(t, err)
	second, err := sched.Run(0, 99, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Firings, second.Firings)

	other, err := sched.Run(0, 100, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first.Firings, other.Firings, "different seed should shift the trace")
}
