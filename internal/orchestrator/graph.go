package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Input is the result of a dependency node, delivered to a node that Needs it.
type Input struct {
	From string
	Text string
}

// NodeFunc runs one node. inputs holds the results of the node's Needs, in
// declaration order, and nothing else.
type NodeFunc func(ctx context.Context, inputs []Input) (string, error)

// Node is a unit of work in a Graph.
type Node struct {
	Name string
	// Needs are context edges: the node receives these nodes' results and runs after them.
	Needs []string
	// After are ordering edges: the node runs after these nodes but sees none of their output.
	After []string
	Run   NodeFunc
}

// Graph executes nodes as a directed acyclic graph. Nodes start in insertion
// order as soon as all their edges are satisfied, with at most MaxParallel
// running at once. The first failure cancels the remaining work.
type Graph struct {
	// MaxParallel bounds concurrently running nodes. Values below 1 mean 1.
	MaxParallel int

	nodes []*Node
	index map[string]int
}

// NewGraph creates an empty graph.
func NewGraph(maxParallel int) *Graph {
	return &Graph{MaxParallel: maxParallel, index: make(map[string]int)}
}

// Add appends a node. Names must be unique.
func (g *Graph) Add(n Node) error {
	if n.Name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if n.Run == nil {
		return fmt.Errorf("node %s has no run function", n.Name)
	}
	if _, exists := g.index[n.Name]; exists {
		return fmt.Errorf("duplicate node %s", n.Name)
	}
	g.index[n.Name] = len(g.nodes)
	node := n
	g.nodes = append(g.nodes, &node)
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Validate checks that every edge names a known node and that there are no cycles.
func (g *Graph) Validate() error {
	for _, n := range g.nodes {
		for _, dep := range n.deps() {
			if _, ok := g.index[dep]; !ok {
				return fmt.Errorf("node %s depends on unknown node %s", n.Name, dep)
			}
			if dep == n.Name {
				return fmt.Errorf("node %s depends on itself", n.Name)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(g.nodes))
	var stack []string

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visiting:
			return fmt.Errorf("dependency cycle: %s -> %s", strings.Join(stack, " -> "), g.nodes[i].Name)
		case visited:
			return nil
		}
		state[i] = visiting
		stack = append(stack, g.nodes[i].Name)
		for _, dep := range g.nodes[i].deps() {
			if err := visit(g.index[dep]); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = visited
		return nil
	}

	for i := range g.nodes {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

type nodeDone struct {
	index int
	err   error
}

// Run executes the graph and returns every completed node's result by name.
// On failure the results of nodes that did complete are still returned.
func (g *Graph) Run(ctx context.Context) (map[string]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	maxParallel := g.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}

	results := make(map[string]string, len(g.nodes))
	var mu sync.Mutex

	pending := make([]int, len(g.nodes))
	dependents := make([][]int, len(g.nodes))
	var ready []int
	for i, n := range g.nodes {
		deps := n.deps()
		pending[i] = len(deps)
		for _, dep := range deps {
			d := g.index[dep]
			dependents[d] = append(dependents[d], i)
		}
		if len(deps) == 0 {
			ready = append(ready, i)
		}
	}

	p := pool.New().WithMaxGoroutines(maxParallel).WithContext(ctx).WithCancelOnError().WithFirstError()
	finished := make(chan nodeDone, len(g.nodes))
	running := 0

	launch := func() {
		sort.Ints(ready)
		for len(ready) > 0 && running < maxParallel {
			i := ready[0]
			ready = ready[1:]
			running++

			node := g.nodes[i]
			mu.Lock()
			inputs := make([]Input, 0, len(node.Needs))
			for _, need := range node.Needs {
				inputs = append(inputs, Input{From: need, Text: results[need]})
			}
			mu.Unlock()

			p.Go(func(ctx context.Context) error {
				out, err := node.Run(ctx, inputs)
				if err == nil {
					mu.Lock()
					results[node.Name] = out
					mu.Unlock()
				}
				finished <- nodeDone{index: i, err: err}
				return err
			})
		}
	}

	var runErr error
	launch()
	for completed := 0; completed < len(g.nodes) && running > 0; completed++ {
		done := <-finished
		running--
		if done.err != nil {
			runErr = done.err
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		for _, dependent := range dependents[done.index] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		launch()
	}

	if err := p.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]string, len(results))
	for k, v := range results {
		out[k] = v
	}
	return out, runErr
}

func (n *Node) deps() []string {
	deps := make([]string, 0, len(n.Needs)+len(n.After))
	seen := make(map[string]bool)
	for _, d := range append(append([]string{}, n.Needs...), n.After...) {
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
	}
	return deps
}
