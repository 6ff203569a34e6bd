package availsim

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quentel/availsim/automaton"
	"github.com/quentel/availsim/engine"
	"github.com/quentel/availsim/reactive"
)

// Recorder persists simulation output as it is produced. The store
// package provides a SQLite implementation.
type Recorder interface {
	// BeginSimulation registers a simulation before its first run.
	BeginSimulation(ctx context.Context, id uuid.UUID, system string, cfg *engine.Config) error

	// RecordRun persists one completed run.
	RecordRun(ctx context.Context, id uuid.UUID, run engine.RunResult) error
}

// SystemOption configures a system at creation.
type SystemOption func(*System)

// WithLogger sets the logger used during assembly and simulation.
func WithLogger(l *slog.Logger) SystemOption {
	return func(s *System) { s.logger = l }
}

// WithRecorder sets the recorder Simulate feeds after every run.
func WithRecorder(r Recorder) SystemOption {
	return func(s *System) { s.recorder = r }
}

type resetter interface{ Reset() }

type watchPattern struct {
	comp *regexp.Regexp
	cell *regexp.Regexp
}

// System is a model under assembly, then a simulation target. Assembly
// (components, flows, connections, failure modes, watches) must finish
// with Build before Simulate runs.
//
// A System is not safe for concurrent use. Parallel campaigns build one
// System per worker through a factory (SimulateParallel).
type System struct {
	name string
	prop *reactive.Propagator

	comps map[string]*Component
	order []string

	graph      *reactive.Graph
	startRules []reactive.Listener
	resetters  []resetter

	watches     []watchPattern
	observables []engine.Observable
	automata    []*automaton.Automaton

	built    bool
	logger   *slog.Logger
	recorder Recorder
}

// NewSystem creates an empty system.
func NewSystem(name string, opts ...SystemOption) *System {
	s := &System{
		name:   name,
		prop:   reactive.NewPropagator(),
		comps:  make(map[string]*Component),
		graph:  reactive.NewGraph(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the system name.
func (s *System) Name() string { return s.name }

// Component returns the named component.
func (s *System) Component(name string) (*Component, bool) {
	c, ok := s.comps[name]
	return c, ok
}

// AddComponent declares a component.
func (s *System) AddComponent(name string, opts ...ComponentOption) (*Component, error) {
	if _, dup := s.comps[name]; dup {
		return nil, &BuildError{
			Code:      ErrCodeDuplicateComponent,
			Component: name,
			Detail:    "component already declared",
		}
	}
	c := &Component{
		sys:       s,
		name:      name,
		flowsIn:   make(map[string]*FlowIn),
		flowsOut:  make(map[string]*FlowOut),
		boolCells: make(map[string]*reactive.Cell[bool]),
		params:    make(map[string]*reactive.Cell[float64]),
	}
	for _, opt := range opts {
		opt(c)
	}
	s.comps[name] = c
	s.order = append(s.order, name)
	return c, nil
}

func (s *System) flowOut(comp, flow string) (*FlowOut, error) {
	c, ok := s.comps[comp]
	if !ok {
		return nil, &BuildError{Code: ErrCodeUnknownComponent, Component: comp}
	}
	f, ok := c.flowsOut[flow]
	if !ok {
		return nil, &BuildError{
			Code:      ErrCodeUnknownFlow,
			Component: comp,
			Flow:      flow,
			Detail:    "no such output flow",
		}
	}
	return f, nil
}

func (s *System) flowIn(comp, flow string) (*FlowIn, error) {
	c, ok := s.comps[comp]
	if !ok {
		return nil, &BuildError{Code: ErrCodeUnknownComponent, Component: comp}
	}
	f, ok := c.flowsIn[flow]
	if !ok {
		return nil, &BuildError{
			Code:      ErrCodeUnknownFlow,
			Component: comp,
			Flow:      flow,
			Detail:    "no such input flow",
		}
	}
	return f, nil
}

// Connect wires a producer's fed value into a consumer's inbound
// reference.
func (s *System) Connect(srcComp, srcFlow, dstComp, dstFlow string) error {
	src, err := s.flowOut(srcComp, srcFlow)
	if err != nil {
		return err
	}
	dst, err := s.flowIn(dstComp, dstFlow)
	if err != nil {
		return err
	}
	if !dst.in.Connect(src.fed) {
		return &BuildError{
			Code:      ErrCodeDuplicateConnection,
			Component: dstComp,
			Flow:      dstFlow,
			Detail:    fmt.Sprintf("already connected to %s.%s", srcComp, srcFlow),
		}
	}
	s.graph.AddEdge(src.fed.Name(), dst.fed.Name())
	return nil
}

// ConnectAvailable wires a producer's availability into a consumer's
// inbound availability reference.
func (s *System) ConnectAvailable(srcComp, srcFlow, dstComp, dstFlow string) error {
	src, err := s.flowOut(srcComp, srcFlow)
	if err != nil {
		return err
	}
	dst, err := s.flowIn(dstComp, dstFlow)
	if err != nil {
		return err
	}
	if !dst.fedAvailable.Connect(src.fedAvailable) {
		return &BuildError{
			Code:      ErrCodeDuplicateConnection,
			Component: dstComp,
			Flow:      dstFlow,
			Detail:    fmt.Sprintf("availability already connected to %s.%s", srcComp, srcFlow),
		}
	}
	s.graph.AddEdge(src.fedAvailable.Name(), dst.fed.Name())
	return nil
}

// ConnectTrigger wires a producer's fed value into a triggered output
// flow's trigger reference.
func (s *System) ConnectTrigger(srcComp, srcFlow, dstComp, dstFlow string) error {
	src, err := s.flowOut(srcComp, srcFlow)
	if err != nil {
		return err
	}
	dst, err := s.flowOut(dstComp, dstFlow)
	if err != nil {
		return err
	}
	if dst.triggerIn == nil {
		return &BuildError{
			Code:      ErrCodeUnknownFlow,
			Component: dstComp,
			Flow:      dstFlow,
			Detail:    "flow has no trigger input",
		}
	}
	if !dst.triggerIn.Connect(src.fed) {
		return &BuildError{
			Code:      ErrCodeDuplicateConnection,
			Component: dstComp,
			Flow:      dstFlow,
			Detail:    fmt.Sprintf("trigger already connected to %s.%s", srcComp, srcFlow),
		}
	}
	// The trigger only gates timed transitions, so no synchronous edge.
	return nil
}

// Watch marks cells as simulation indicators. Both arguments are
// anchored regular expressions, matched against component names and cell
// basenames respectively. Matching cells are sampled at every schedule
// instant under the name "component.cell".
func (s *System) Watch(compPattern, cellPattern string) error {
	compRe, err := regexp.Compile("^(" + compPattern + ")$")
	if err != nil {
		return fmt.Errorf("watch component pattern: %w", err)
	}
	cellRe, err := regexp.Compile("^(" + cellPattern + ")$")
	if err != nil {
		return fmt.Errorf("watch cell pattern: %w", err)
	}
	s.watches = append(s.watches, watchPattern{comp: compRe, cell: cellRe})
	return nil
}

// Build finalizes assembly: it rejects synchronous dependency cycles,
// freezes the automaton list and resolves watches into observables. No
// topology change is allowed afterwards.
func (s *System) Build() error {
	if s.built {
		return fmt.Errorf("system %s already built", s.name)
	}
	if cycle := s.graph.FindCycle(); cycle != nil {
		return &BuildError{
			Code:   ErrCodeCyclicDependency,
			Detail: strings.Join(cycle, " -> "),
		}
	}

	for _, name := range s.order {
		s.automata = append(s.automata, s.comps[name].automata...)
	}

	seen := make(map[string]bool)
	for _, name := range s.order {
		c := s.comps[name]
		for _, basename := range c.boolOrder {
			full := name + "." + basename
			if seen[full] {
				continue
			}
			for _, w := range s.watches {
				if w.comp.MatchString(name) && w.cell.MatchString(basename) {
					s.observables = append(s.observables, engine.Observable{
						Name: full,
						Cell: c.boolCells[basename],
					})
					seen[full] = true
					break
				}
			}
		}
	}

	s.built = true
	s.logger.Debug("system built",
		slog.String("system", s.name),
		slog.Int("components", len(s.order)),
		slog.Int("automata", len(s.automata)),
		slog.Int("observables", len(s.observables)))
	return nil
}

// model exposes the built system to the scheduler.
func (s *System) model() *engine.Model {
	return &engine.Model{
		Automata:    s.automata,
		ResetState:  s.resetState,
		Start:       s.start,
		Observables: s.observables,
	}
}

func (s *System) resetState() {
	for _, r := range s.resetters {
		r.Reset()
	}
}

// start runs the initial flow evaluation: every update rule fires once,
// in declaration order, and propagation settles before the scheduler
// arms any transition.
func (s *System) start() {
	s.prop.Notify(s.startRules)
}

// Results holds the output of a simulation campaign.
type Results struct {
	// SimulationID identifies the campaign (UUIDv7, so chronologically
	// sortable).
	SimulationID uuid.UUID

	// System is the simulated system's name.
	System string

	// Runs holds the completed runs in run-index order. Runs aborted by a
	// runtime invariant violation are absent.
	Runs []engine.RunResult
}

// Samples iterates over every sample of every run, keyed by run index.
func (r *Results) Samples() iter.Seq2[int, engine.Sample] {
	return func(yield func(int, engine.Sample) bool) {
		for _, run := range r.Runs {
			for _, sample := range run.Samples {
				if !yield(run.Run, sample) {
					return
				}
			}
		}
	}
}

// Simulate executes the configured Monte Carlo runs sequentially.
//
// A RuntimeInvariantError aborts only the run that raised it; remaining
// runs still execute and the joined run errors are returned alongside
// the partial results. Any other error aborts the campaign.
func (s *System) Simulate(ctx context.Context, cfg *engine.Config) (*Results, error) {
	if !s.built {
		return nil, fmt.Errorf("system %s: Build must complete before Simulate", s.name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("simulation id: %w", err)
	}
	res := &Results{SimulationID: id, System: s.name}

	if s.recorder != nil {
		if err := s.recorder.BeginSimulation(ctx, id, s.name, cfg); err != nil {
			return nil, fmt.Errorf("begin simulation: %w", err)
		}
	}

	sched := engine.NewScheduler(s.model(), s.logger)
	var runErrs []error
	for i := 0; i < cfg.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		run, err := sched.Run(i, cfg.Seed+int64(i), cfg)
		if err != nil {
			if engine.IsRuntimeInvariantError(err) {
				s.logger.Warn("run aborted",
					slog.Int("run", i),
					slog.String("error", err.Error()))
				runErrs = append(runErrs, err)
				continue
			}
			return res, err
		}
		res.Runs = append(res.Runs, run)
		if s.recorder != nil {
			if err := s.recorder.RecordRun(ctx, id, run); err != nil {
				return res, fmt.Errorf("record run %d: %w", i, err)
			}
		}
	}
	return res, errors.Join(runErrs...)
}

// SimulateParallel executes the campaign across workers. Each worker
// owns a complete System built by the factory, so no model state is
// shared; run i always uses seed cfg.Seed+i regardless of which worker
// picks it up, making the merged results identical to a sequential
// campaign. The first factory system's recorder, when set, receives the
// merged results.
func SimulateParallel(ctx context.Context, factory func() (*System, error), cfg *engine.Config) (*Results, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > cfg.Runs {
		workers = cfg.Runs
	}

	first, err := factory()
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	if !first.built {
		return nil, fmt.Errorf("system %s: factory must return a built system", first.name)
	}

	// Every worker system is built up front: a factory failure surfaces
	// before any goroutine starts, so an error never leaves a producer or
	// worker running behind the caller's back.
	systems := make([]*System, workers)
	systems[0] = first
	for w := 1; w < workers; w++ {
		sys, err := factory()
		if err != nil {
			return nil, fmt.Errorf("factory: %w", err)
		}
		if !sys.built {
			return nil, fmt.Errorf("system %s: factory must return a built system", sys.name)
		}
		systems[w] = sys
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("simulation id: %w", err)
	}
	res := &Results{SimulationID: id, System: first.name}

	var (
		mu      sync.Mutex
		runs    []engine.RunResult
		runErrs []error
	)
	indices := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(indices)
		for i := 0; i < cfg.Runs; i++ {
			select {
			case indices <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for _, sys := range systems {
		g.Go(func() error {
			sched := engine.NewScheduler(sys.model(), sys.logger)
			for i := range indices {
				run, err := sched.Run(i, cfg.Seed+int64(i), cfg)
				if err != nil {
					if engine.IsRuntimeInvariantError(err) {
						mu.Lock()
						runErrs = append(runErrs, err)
						mu.Unlock()
						continue
					}
					return err
				}
				mu.Lock()
				runs = append(runs, run)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Run < runs[j].Run })
	res.Runs = runs

	if first.recorder != nil {
		if err := first.recorder.BeginSimulation(ctx, id, first.name, cfg); err != nil {
			return res, fmt.Errorf("begin simulation: %w", err)
		}
		for _, run := range res.Runs {
			if err := first.recorder.RecordRun(ctx, id, run); err != nil {
				return res, fmt.Errorf("record run %d: %w", run.Run, err)
			}
		}
	}
	return res, errors.Join(runErrs...)
}
