package engine

import (
	"container/heap"
	"log/slog"
	"math"
	"math/rand"

	"github.com/quentel/availsim/automaton"
	"github.com/quentel/availsim/reactive"
)

// Observable is one boolean indicator sampled at the schedule instants.
type Observable struct {
	Name string
	Cell *reactive.Cell[bool]
}

// Model is the scheduler's view of a built system: its automata, the hook
// that re-seeds all mutable state between runs, the hook that performs
// the initial flow evaluation, and the indicators to sample.
//
// A Model must not be shared between concurrent schedulers. Parallel
// Monte Carlo builds one model per worker.
type Model struct {
	Automata    []*automaton.Automaton
	ResetState  func()
	Start       func()
	Observables []Observable
}

// Sample is one observed indicator value at one schedule instant.
type Sample struct {
	Time  float64
	Name  string
	Value float64
}

// Firing records one transition firing of a run.
type Firing struct {
	Time       float64
	Automaton  string
	Transition string
}

// RunResult is the complete outcome of one Monte Carlo run.
type RunResult struct {
	Run     int
	Seed    int64
	Samples []Sample
	Firings []Firing
}

// Scheduler executes runs against one model. It is single-threaded and
// reusable: Run fully re-seeds the model before every run.
type Scheduler struct {
	model   *Model
	logger  *slog.Logger
	heap    eventHeap
	seq     int64
	pending map[*automaton.Transition]*pending
	frozen  map[*automaton.Transition]float64
	quota   *instantQuota
	clock   float64
	rng     *rand.Rand
}

// NewScheduler creates a scheduler over the given model.
func NewScheduler(m *Model, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		model:   m,
		logger:  logger,
		pending: make(map[*automaton.Transition]*pending),
		frozen:  make(map[*automaton.Transition]float64),
	}
}

// Run executes one run and returns its samples and firing trace.
//
// The run ends when no pending firing remains or the next firing lies
// strictly beyond the horizon. A firing scheduled exactly at the horizon
// still fires, and sampling instants that coincide with a firing time
// observe the post-firing state.
func (s *Scheduler) Run(run int, seed int64, cfg *Config) (RunResult, error) {
	res := RunResult{Run: run, Seed: seed}
	s.reset(seed, cfg.InstantQuota)

	s.model.ResetState()
	for _, a := range s.model.Automata {
		a.Reset()
	}
	s.model.Start()
	if err := s.reconcile(); err != nil {
		return res, err
	}

	instants := cfg.Instants()
	horizon := cfg.Horizon()
	next := 0

	for {
		p := s.heap.popValid()
		if p == nil || p.time > horizon {
			break
		}

		// Instants strictly before the firing observe the pre-firing state.
		for next < len(instants) && instants[next] < p.time {
			s.sample(&res, instants[next])
			next++
		}

		s.clock = p.time

		// Fire the whole same-instant cascade before sampling, so an
		// instant that coincides with several firings never observes a
		// half-applied state.
		for p != nil {
			delete(s.pending, p.tr)
			if !s.quota.admit(p.time) {
				return res, &RuntimeInvariantError{
					Automaton:  p.aut.Name,
					Transition: p.tr.Name,
					Time:       p.time,
					Message:    "instant firing quota exceeded, zero-delay cycle suspected",
				}
			}

			s.logger.Debug("transition fired",
				slog.Float64("time", p.time),
				slog.String("automaton", p.aut.Name),
				slog.String("transition", p.tr.Name),
				slog.Int("run", run))
			p.aut.Fire(p.tr)
			res.Firings = append(res.Firings, Firing{
				Time:       p.time,
				Automaton:  p.aut.Name,
				Transition: p.tr.Name,
			})
			if err := s.reconcile(); err != nil {
				return res, err
			}

			q := s.heap.peekValid()
			if q == nil || q.time != s.clock {
				break
			}
			p = s.heap.popValid()
		}

		// Instants that coincide with the firings observe the settled state.
		for next < len(instants) && instants[next] == s.clock {
			s.sample(&res, instants[next])
			next++
		}
	}

	for next < len(instants) {
		s.sample(&res, instants[next])
		next++
	}
	return res, nil
}

func (s *Scheduler) reset(seed int64, quota int) {
	s.heap = s.heap[:0]
	s.seq = 0
	s.clock = 0
	clear(s.pending)
	clear(s.frozen)
	s.quota = newInstantQuota(quota)
	s.rng = rand.New(rand.NewSource(seed))
}

// reconcile realigns the event heap with current fireability. A
// transition whose guard just turned true draws a delay and enters the
// heap; one whose guard turned false (or whose automaton left its source
// state) is cancelled. Non-interruptible transitions keep their remaining
// delay across guard-false intervals and resume from it.
func (s *Scheduler) reconcile() error {
	for _, a := range s.model.Automata {
		for _, tr := range a.Transitions {
			inSource := a.IsActive(tr.Source)
			if !inSource {
				// Leaving the source state forfeits any frozen remainder; a
				// later re-entry draws a fresh delay.
				delete(s.frozen, tr)
			}
			fireable := inSource && tr.Guard.Eval()
			p, scheduled := s.pending[tr]

			switch {
			case fireable && !scheduled:
				delay, ok := s.frozen[tr]
				if ok {
					delete(s.frozen, tr)
				} else {
					var err error
					delay, err = tr.Law.Sample(s.rng)
					if err != nil {
						return &RuntimeInvariantError{
							Automaton:  a.Name,
							Transition: tr.Name,
							Time:       s.clock,
							Message:    err.Error(),
						}
					}
				}
				if math.IsInf(delay, 1) {
					continue
				}
				np := &pending{time: s.clock + delay, seq: s.seq, aut: a, tr: tr}
				s.seq++
				s.pending[tr] = np
				heap.Push(&s.heap, np)

			case !fireable && scheduled:
				p.cancelled = true
				delete(s.pending, tr)
				if !tr.Interruptible && inSource {
					s.frozen[tr] = p.time - s.clock
				}
			}
		}
	}
	return nil
}

func (s *Scheduler) sample(res *RunResult, t float64) {
	for _, o := range s.model.Observables {
		v := 0.0
		if o.Cell.Value() {
			v = 1.0
		}
		res.Samples = append(res.Samples, Sample{Time: t, Name: o.Name, Value: v})
	}
}
