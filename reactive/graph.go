package reactive

// Graph is the build-time dependency graph over synchronous update rules.
// Nodes are flow identifiers ("component.flow"); an edge A → B means B's
// update rule reads a value that A's update rule writes.
//
// The graph only covers synchronous propagation. Dependencies that cross an
// automaton (a temporized output gated by a timed transition) are not
// edges: the scheduler breaks them in time, so they cannot recurse.
type Graph struct {
	order []string
	edges map[string][]string
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string][]string)}
}

// AddNode registers a node. Adding the same node twice is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.edges[id]; ok {
		return
	}
	g.edges[id] = []string{}
	g.order = append(g.order, id)
}

// AddEdge records that `to` depends on `from`. Both endpoints are
// registered implicitly.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.edges[from] = append(g.edges[from], to)
}

// FindCycle returns one dependency cycle as a node path (first node
// repeated at the end), or nil when the graph is acyclic.
//
// Uses Tarjan's strongly-connected-components algorithm; any SCC larger
// than one node, or a single node with a self-loop, is a cycle.
func (g *Graph) FindCycle() []string {
	t := &tarjan{
		graph:   g,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, n := range g.order {
		if _, visited := t.index[n]; !visited {
			t.strongConnect(n)
		}
	}
	for _, scc := range t.sccs {
		if len(scc) > 1 {
			return append(scc, scc[0])
		}
		if len(scc) == 1 && g.hasSelfLoop(scc[0]) {
			return []string{scc[0], scc[0]}
		}
	}
	return nil
}

func (g *Graph) hasSelfLoop(n string) bool {
	for _, m := range g.edges[n] {
		if m == n {
			return true
		}
	}
	return false
}

// tarjan holds the traversal state for Tarjan's SCC algorithm.
type tarjan struct {
	graph   *Graph
	counter int
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph.edges[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
