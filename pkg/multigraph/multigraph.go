// Package multigraph is a directed multigraph with attributed nodes and edges
// where parallel edges between the same ordered pair carry keys 0, 1, 2...
// in insertion order.
package multigraph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
)

// Attrs is a free-form attribute map.
type Attrs map[string]any

// Node is a vertex identified by its database id.
type Node struct {
	id    int64
	Attrs Attrs
}

func (n *Node) ID() int64 { return n.id }

// Edge is a keyed line between two nodes. Its gonum line ID is the key, which
// is only unique within its (from, to) pair.
type Edge struct {
	F, T  graph.Node
	Key   int64
	Attrs Attrs
}

func (e *Edge) From() graph.Node { return e.F }
func (e *Edge) To() graph.Node   { return e.T }
func (e *Edge) ID() int64        { return e.Key }

func (e *Edge) ReversedLine() graph.Line {
	return &Edge{F: e.T, T: e.F, Key: e.Key, Attrs: e.Attrs}
}

// Graph keeps insertion order next to the gonum storage so exports are stable.
type Graph struct {
	g     *multi.DirectedGraph
	Attrs Attrs
	nodes []int64
	edges []*Edge
}

func New(attrs Attrs) *Graph {
	if attrs == nil {
		attrs = Attrs{}
	}
	return &Graph{
		g:     multi.NewDirectedGraph(),
		Attrs: attrs,
	}
}

// AddNode inserts a node or merges attrs into an existing one.
func (g *Graph) AddNode(id int64, attrs Attrs) *Node {
	if n, ok := g.Node(id); ok {
		for k, v := range attrs {
			n.Attrs[k] = v
		}
		return n
	}
	if attrs == nil {
		attrs = Attrs{}
	}
	n := &Node{id: id, Attrs: attrs}
	g.g.AddNode(n)
	g.nodes = append(g.nodes, id)
	return n
}

// AddEdge appends an edge u->v, creating bare endpoints when missing, and
// returns its key.
func (g *Graph) AddEdge(u, v int64, attrs Attrs) int64 {
	from := g.AddNode(u, nil)
	to := g.AddNode(v, nil)
	if attrs == nil {
		attrs = Attrs{}
	}

	key := int64(g.g.Lines(u, v).Len())
	e := &Edge{F: from, T: to, Key: key, Attrs: attrs}
	g.g.SetLine(e)
	g.edges = append(g.edges, e)
	return key
}

func (g *Graph) Node(id int64) (*Node, bool) {
	n := g.g.Node(id)
	if n == nil {
		return nil, false
	}
	return n.(*Node), true
}

func (g *Graph) HasNode(id int64) bool {
	return g.g.Node(id) != nil
}

// Edges returns the parallel edges u->v ordered by key.
func (g *Graph) Edges(u, v int64) []*Edge {
	lines := graph.LinesOf(g.g.Lines(u, v))
	out := make([]*Edge, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.(*Edge))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Successors returns the ids reachable over one edge from id, ascending.
func (g *Graph) Successors(id int64) []int64 {
	nodes := graph.NodesOf(g.g.From(id))
	out := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Graph) NumNodes() int { return len(g.nodes) }
func (g *Graph) NumEdges() int { return len(g.edges) }

// Underlying exposes the gonum graph for analysis algorithms.
func (g *Graph) Underlying() graph.Multigraph {
	return g.g
}
