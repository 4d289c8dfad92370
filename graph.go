package querycache

import "sync"

// graph tracks upstream -> downstream edges between keys and the gate that
// owns each downstream key. It only ever holds acyclic edge sets.
type graph struct {
	mu    sync.Mutex
	down  map[string][]string // upstream id -> downstream ids
	gates map[string]*Gate    // downstream id -> gate
}

func newGraph() *graph {
	return &graph{
		down:  make(map[string][]string),
		gates: make(map[string]*Gate),
	}
}

// attach registers g unless a live gate already owns g.key, in which case
// that gate is returned with its reference count bumped. Gates from an
// earlier store epoch lost their subscriptions to Store.Reset; they are
// dropped first.
func (gr *graph) attach(g *Gate) (*Gate, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	for _, old := range gr.gates {
		if old.epoch < g.epoch {
			gr.removeLocked(old)
		}
	}
	if existing, ok := gr.gates[g.key.id]; ok {
		existing.refs++
		return existing, nil
	}
	for _, up := range g.upstreams {
		if up.id == g.key.id || gr.reachableLocked(g.key.id, up.id) {
			return nil, ErrDependencyCycle
		}
	}
	for _, up := range g.upstreams {
		gr.down[up.id] = append(gr.down[up.id], g.key.id)
	}
	g.refs = 1
	gr.gates[g.key.id] = g
	return g, nil
}

// detach drops one reference to g and reports whether it was the last.
func (gr *graph) detach(g *Gate) bool {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	if gr.gates[g.key.id] != g {
		return false
	}
	g.refs--
	if g.refs > 0 {
		return false
	}
	gr.removeLocked(g)
	return true
}

// reset forgets every gate and edge.
func (gr *graph) reset() {
	gr.mu.Lock()
	gr.down = make(map[string][]string)
	gr.gates = make(map[string]*Gate)
	gr.mu.Unlock()
}

func (gr *graph) removeLocked(g *Gate) {
	delete(gr.gates, g.key.id)
	for _, up := range g.upstreams {
		ds := gr.down[up.id]
		for i, d := range ds {
			if d == g.key.id {
				ds = append(ds[:i], ds[i+1:]...)
				break
			}
		}
		if len(ds) == 0 {
			delete(gr.down, up.id)
		} else {
			gr.down[up.id] = ds
		}
	}
}

func (gr *graph) reachableLocked(from, to string) bool {
	seen := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, gr.down[n]...)
	}
	return false
}
