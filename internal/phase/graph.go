package phase

import (
	"fmt"
	"sort"
)

// Graph is a dependency DAG over a fixed set of phases. It is built once at
// load time and never mutated; State (in state.go) tracks the mutable
// per-phase execution state layered on top of it.
type Graph struct {
	phases map[string]Phase
	order  []string // insertion order, for deterministic iteration
}

// NewGraph builds a Graph from a phase slice, validating that every phase is
// individually well-formed, every dependency reference resolves, and the
// dependency relation is acyclic. Returns ErrCyclicDependency or
// ErrUnknownPhase on failure.
func NewGraph(phases []Phase) (*Graph, error) {
	g := &Graph{
		phases: make(map[string]Phase, len(phases)),
		order:  make([]string, 0, len(phases)),
	}

	for _, p := range phases {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, exists := g.phases[p.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate phase id %q", ErrConfiguration, p.ID)
		}
		g.phases[p.ID] = p
		g.order = append(g.order, p.ID)
	}

	for _, p := range phases {
		for _, dep := range p.DependsOn {
			if _, ok := g.phases[dep]; !ok {
				return nil, fmt.Errorf("%w: phase %q depends on unknown phase %q", ErrUnknownPhase, p.ID, dep)
			}
		}
	}

	if _, err := g.topoOrder(); err != nil {
		return nil, err
	}

	return g, nil
}

// Phase returns the phase with the given id.
func (g *Graph) Phase(id string) (Phase, bool) {
	p, ok := g.phases[id]
	return p, ok
}

// Phases returns all phases in load order.
func (g *Graph) Phases() []Phase {
	out := make([]Phase, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.phases[id])
	}
	return out
}

// Dependents returns the ids of phases that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, p := range g.Phases() {
		for _, dep := range p.DependsOn {
			if dep == id {
				out = append(out, p.ID)
				break
			}
		}
	}
	return out
}

// topoOrder performs Kahn's algorithm, returning a valid topological order
// or ErrCyclicDependency if one does not exist.
func (g *Graph) topoOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.phases))
	for _, id := range g.order {
		indegree[id] = 0
	}
	for _, p := range g.phases {
		for range p.DependsOn {
			indegree[p.ID]++
		}
	}

	queue := make([]string, 0)
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		var newlyReady []string
		for _, dep := range g.Dependents(id) {
			indegree[dep]--
			if indegree[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		sort.Strings(newlyReady)
		queue = append(queue, newlyReady...)
	}

	if len(result) != len(g.phases) {
		return nil, fmt.Errorf("%w: dependency cycle involving %d phase(s)", ErrCyclicDependency, len(g.phases)-len(result))
	}
	return result, nil
}

// Waves computes the Kahn-layered wave decomposition: wave(p) = 1 +
// max(wave(d) for d in deps(p)), wave(p) = 0 for dependency-less phases.
// This is purely informational (status/UI/audit) — the scheduler itself is
// continuous, not wave-synchronous.
func (g *Graph) Waves() map[string]int {
	wave := make(map[string]int, len(g.phases))

	var computeWave func(id string) int
	computeWave = func(id string) int {
		if w, ok := wave[id]; ok {
			return w
		}
		p := g.phases[id]
		if len(p.DependsOn) == 0 {
			wave[id] = 0
			return 0
		}
		max := -1
		for _, dep := range p.DependsOn {
			if w := computeWave(dep); w > max {
				max = w
			}
		}
		wave[id] = max + 1
		return max + 1
	}

	for _, id := range g.order {
		computeWave(id)
	}
	return wave
}

// WaveGroups returns phase ids grouped by wave number, sorted within each
// wave for determinism.
func (g *Graph) WaveGroups() [][]string {
	waves := g.Waves()
	maxWave := -1
	for _, w := range waves {
		if w > maxWave {
			maxWave = w
		}
	}
	groups := make([][]string, maxWave+1)
	for id, w := range waves {
		groups[w] = append(groups[w], id)
	}
	for _, group := range groups {
		sort.Strings(group)
	}
	return groups
}
