package testutil

import (
	"strconv"

	"github.com/hupe1980/referralmesh/core"
)

// GraphBuilder provides a fluent helper for constructing graph node lists in tests.
// Example:
//
//	nodes := NewGraphBuilder().
//		Node("default").Expertise(0, 0, 0, 0).Neighbor("helper", V(1, 1, 1, 1), V(1, 1, 1, 1)).
//		Node("helper").Expertise(1, 1, 1, 1).
//		Build()
//
// Chain only the parts you need; vectors stay unset unless given.
type GraphBuilder struct {
	nodes []core.NodeSpec
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder() *GraphBuilder { return &GraphBuilder{} }

// V is shorthand for a vector literal.
func V(xs ...float64) core.Vector { return core.Vector(xs) }

// Node starts a new node (chainable). Subsequent calls configure it.
func (b *GraphBuilder) Node(name string) *GraphBuilder {
	b.nodes = append(b.nodes, core.NodeSpec{Name: name})
	return b
}

func (b *GraphBuilder) current() *core.NodeSpec {
	if len(b.nodes) == 0 {
		b.Node(core.DefaultAgentName)
	}
	return &b.nodes[len(b.nodes)-1]
}

// Expertise sets the expertise of the current node (chainable).
func (b *GraphBuilder) Expertise(xs ...float64) *GraphBuilder {
	b.current().Expertise = V(xs...)
	return b
}

// Needs sets the needs of the current node (chainable).
func (b *GraphBuilder) Needs(xs ...float64) *GraphBuilder {
	b.current().Needs = V(xs...)
	return b
}

// Neighbor appends a link to the current node (chainable).
func (b *GraphBuilder) Neighbor(name string, expertise, sociability core.Vector) *GraphBuilder {
	n := b.current()
	n.Neighbors = append(n.Neighbors, core.NeighborLink{Name: name, Expertise: expertise, Sociability: sociability})
	return b
}

// Build returns a deep copy of the accumulated nodes.
func (b *GraphBuilder) Build() []core.NodeSpec {
	out := make([]core.NodeSpec, len(b.nodes))
	for i, n := range b.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Ring builds n agents named "default", "a1", ... "a<n-1>" linked in a cycle.
// Every agent has the given expertise and believes its successor is an
// expert on query, so queries nobody matches travel the whole ring.
func Ring(n int, expertise, belief core.Vector) []core.NodeSpec {
	names := make([]string, n)
	names[0] = core.DefaultAgentName
	for i := 1; i < n; i++ {
		names[i] = "a" + strconv.Itoa(i)
	}
	b := NewGraphBuilder()
	for i, name := range names {
		b.Node(name).Expertise(expertise...)
		b.Neighbor(names[(i+1)%n], belief.Clone(), nil)
	}
	return b.Build()
}
