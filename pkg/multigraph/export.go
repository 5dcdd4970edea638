package multigraph

// NodeLink is the node-link document: graph attributes, nodes with an "id"
// field and links with "source", "target" and "key" fields.
type NodeLink struct {
	Directed   bool             `json:"directed"`
	Multigraph bool             `json:"multigraph"`
	Graph      Attrs            `json:"graph"`
	Nodes      []map[string]any `json:"nodes"`
	Links      []map[string]any `json:"links"`
}

// Export renders the graph in insertion order.
func (g *Graph) Export() NodeLink {
	out := NodeLink{
		Directed:   true,
		Multigraph: true,
		Graph:      g.Attrs,
		Nodes:      make([]map[string]any, 0, len(g.nodes)),
		Links:      make([]map[string]any, 0, len(g.edges)),
	}
	for _, id := range g.nodes {
		n, _ := g.Node(id)
		m := make(map[string]any, len(n.Attrs)+1)
		for k, v := range n.Attrs {
			m[k] = v
		}
		m["id"] = id
		out.Nodes = append(out.Nodes, m)
	}
	for _, e := range g.edges {
		m := make(map[string]any, len(e.Attrs)+3)
		for k, v := range e.Attrs {
			m[k] = v
		}
		m["source"] = e.F.ID()
		m["target"] = e.T.ID()
		m["key"] = e.Key
		out.Links = append(out.Links, m)
	}
	return out
}
