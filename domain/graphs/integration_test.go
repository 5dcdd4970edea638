package graphs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"

	"github.com/soldey/graph-api/domain/edges"
	"github.com/soldey/graph-api/domain/nodes"
	"github.com/soldey/graph-api/internal/testutil"
	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
)

type GraphsSuite struct {
	testutil.BaseSuite
	nodes  *nodes.Service
	edges  *edges.Service
	graphs *Service
}

func TestGraphsSuite(t *testing.T) {
	suite.Run(t, new(GraphsSuite))
}

func (s *GraphsSuite) SetupSuite() {
	s.SetDBSuffix("graphs")
	s.BaseSuite.SetupSuite()

	db := s.DB()
	s.nodes = nodes.NewService(nodes.NewRepository(db, s.Log), s.Loader, s.Log)
	s.edges = edges.NewService(edges.NewRepository(db, s.Log), s.nodes, s.Loader, s.Log)
	s.graphs = NewService(NewRepository(db, s.Log), s.nodes, s.edges, s.Loader, s.Log)
}

func (s *GraphsSuite) createGraph(name string) *Graph {
	req := &CreateGraphRequest{Name: name, Type: TypeRoad}
	s.Require().NoError(req.Validate())
	g, err := s.graphs.Create(s.Ctx, req)
	s.Require().NoError(err)
	return g
}

func point(x, y float64) *nodes.CreateNodeRequest {
	return &nodes.CreateNodeRequest{Type: nodes.TypeCrossroad, Point: geometry.New(orb.Point{x, y})}
}

func (s *GraphsSuite) TestRingRoad() {
	g := s.createGraph("ring-road")

	a, err := s.nodes.Create(s.Ctx, point(30.0, 59.9))
	s.Require().NoError(err)
	b, err := s.nodes.Create(s.Ctx, point(30.1, 59.9))
	s.Require().NoError(err)

	req := &AddEdgeRequest{CreateEdgeRequest: edges.CreateEdgeRequest{
		U:     edges.NodeRef{ID: a.ID},
		V:     edges.NodeRef{ID: b.ID},
		Graph: &g.ID,
		Attributes: edges.Attributes{
			Type:     edges.TypeDrive,
			Weight:   1.0,
			Speed:    60,
			Geometry: geometry.New(orb.LineString{{30.0, 59.9}, {30.1, 59.9}}),
		},
	}}
	s.Require().NoError(req.Validate())

	link, err := s.graphs.AddEdge(s.Ctx, req)
	s.Require().NoError(err)
	s.Equal(g.ID, link.Graph)

	again, err := s.graphs.AddEdge(s.Ctx, req)
	s.Require().NoError(err)
	s.Equal(link.ID, again.ID, "linking twice returns the existing link")
	s.Equal(link.Edge, again.Edge, "re-creating the edge returns the same id")

	mg, err := s.graphs.Build(s.Ctx, Selector{IDOrName: "ring-road", Mode: ModeDrive})
	s.Require().NoError(err)
	s.Equal(2, mg.NumNodes())
	s.Equal(1, mg.NumEdges())
	s.Equal("ring-road", mg.Attrs["name"])

	walk, err := s.graphs.Build(s.Ctx, Selector{IDOrName: "ring-road", Mode: ModeWalk})
	s.Require().NoError(err)
	s.Zero(walk.NumEdges())
}

func (s *GraphsSuite) TestNodeCreateIsIdempotent() {
	first, err := s.nodes.Create(s.Ctx, point(1, 2))
	s.Require().NoError(err)
	second, err := s.nodes.Create(s.Ctx, point(1, 2))
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	other := point(1, 2)
	other.Route = "7"
	third, err := s.nodes.Create(s.Ctx, other)
	s.Require().NoError(err)
	s.NotEqual(first.ID, third.ID, "route is part of node identity")
}

func (s *GraphsSuite) TestConcurrentNodeCreatesResolveToOneRow() {
	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := s.nodes.Create(s.Ctx, point(5, 5))
			errs[i] = err
			if n != nil {
				ids[i] = n.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
	count, err := s.DB().NewSelect().Table("nodes").Count(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

// uploadFixture lays nodes out on a 10x10 grid and connects consecutive
// nodes with distinct two-point lines.
func uploadFixture(nodeCount, edgeCount int) *UploadRequest {
	req := &UploadRequest{}
	for i := 0; i < nodeCount; i++ {
		req.Nodes = append(req.Nodes, *point(float64(i%10), float64(i/10)))
	}
	for i := 0; i < edgeCount; i++ {
		u, v := i%nodeCount, (i+1)%nodeCount
		from := req.Nodes[u].Point.Geometry.(orb.Point)
		to := req.Nodes[v].Point.Geometry.(orb.Point)
		mid := orb.Point{(from[0] + to[0]) / 2, (from[1]+to[1])/2 + float64(i)/1000}
		req.Edges = append(req.Edges, UploadEdge{
			U: u,
			V: v,
			Attributes: edges.Attributes{
				Type:     edges.TypeWalk,
				Weight:   float64(i),
				Route:    fmt.Sprintf("r%d", i%3),
				Geometry: geometry.New(orb.LineString{from, mid, to}),
			},
		})
	}
	return req
}

func (s *GraphsSuite) TestBulkUploadWithPersistedDuplicates() {
	g := s.createGraph("bulk")
	req := uploadFixture(100, 150)
	s.Require().NoError(req.Validate())

	// Persist 10 of the edges beforehand, outside the graph.
	for i := 0; i < 10; i++ {
		e := req.Edges[i*15]
		u, err := s.nodes.Create(s.Ctx, &req.Nodes[e.U])
		s.Require().NoError(err)
		v, err := s.nodes.Create(s.Ctx, &req.Nodes[e.V])
		s.Require().NoError(err)
		_, err = s.edges.Create(s.Ctx, &edges.CreateEdgeRequest{
			U: edges.NodeRef{ID: u.ID}, V: edges.NodeRef{ID: v.ID}, Attributes: e.Attributes,
		})
		s.Require().NoError(err)
	}

	summary, err := s.graphs.BulkUpload(s.Ctx, g.ID, req)
	s.Require().NoError(err)
	s.Equal(140, summary.Edges)
	s.Equal(150, summary.Relationships)
	s.Zero(summary.Dropped)

	edgeCount, err := s.DB().NewSelect().Table("edges").Count(s.Ctx)
	s.Require().NoError(err)
	s.Equal(150, edgeCount)

	nodeCount, err := s.DB().NewSelect().Table("nodes").Count(s.Ctx)
	s.Require().NoError(err)
	s.Equal(100, nodeCount)

	// A second identical upload writes nothing new.
	again, err := s.graphs.BulkUpload(s.Ctx, g.ID, uploadFixture(100, 150))
	s.Require().NoError(err)
	s.Zero(again.Nodes)
	s.Zero(again.Edges)
	s.Equal(150, again.Relationships)

	linkCount, err := s.DB().NewSelect().Table("graph_edges").Count(s.Ctx)
	s.Require().NoError(err)
	s.Equal(150, linkCount)
}

func (s *GraphsSuite) TestBulkUploadWithoutEdges() {
	g := s.createGraph("only-nodes")
	req := uploadFixture(5, 0)

	summary, err := s.graphs.BulkUpload(s.Ctx, g.ID, req)
	s.Require().NoError(err)
	s.Equal(5, summary.Nodes)
	s.Zero(summary.Edges)
	s.Zero(summary.Relationships)
}

func (s *GraphsSuite) TestBulkUploadUnknownGraph() {
	_, err := s.graphs.BulkUpload(s.Ctx, 999, uploadFixture(2, 1))
	s.ErrorIs(err, apperror.ErrGraphNotFound)

	count, err := s.DB().NewSelect().Table("nodes").Count(s.Ctx)
	s.Require().NoError(err)
	s.Zero(count, "nothing is written before validation passes")
}

func (s *GraphsSuite) TestBulkEqualsSequential() {
	req := uploadFixture(20, 0)
	recs := make([]nodes.Record, len(req.Nodes))
	for i := range req.Nodes {
		recs[i] = req.Nodes[i].Record()
	}
	res, err := s.nodes.CreateMany(s.Ctx, recs, nil)
	s.Require().NoError(err)
	s.Equal(20, res.Inserted)

	for i := range req.Nodes {
		n, err := s.nodes.Create(s.Ctx, &req.Nodes[i])
		s.Require().NoError(err)
		s.Equal(res.IDs[i], n.ID)
	}
}

func (s *GraphsSuite) TestCreateGraphRejectsDuplicates() {
	s.createGraph("twice")
	_, err := s.graphs.Create(s.Ctx, &CreateGraphRequest{Name: "twice", Type: TypeRoad})
	s.ErrorIs(err, apperror.ErrGraphExists)

	_, err = s.graphs.Create(s.Ctx, &CreateGraphRequest{Name: "2024", Type: TypeRoad})
	s.ErrorIs(err, apperror.ErrInvalidGraphName)

	byName, err := s.graphs.Get(s.Ctx, "twice")
	s.Require().NoError(err)
	byID, err := s.graphs.Get(s.Ctx, fmt.Sprint(byName.ID))
	s.Require().NoError(err)
	s.Equal(byName.ID, byID.ID)
}

func (s *GraphsSuite) TestCascade() {
	g := s.createGraph("cascade")
	req := &AddEdgeRequest{CreateEdgeRequest: edges.CreateEdgeRequest{
		U:     edges.NodeRef{Node: point(0, 0)},
		V:     edges.NodeRef{Node: point(0, 1)},
		Graph: &g.ID,
		Attributes: edges.Attributes{
			Type:     edges.TypeWalk,
			Geometry: geometry.New(orb.LineString{{0, 0}, {0, 1}}),
		},
	}}
	s.Require().NoError(req.Validate())
	link, err := s.graphs.AddEdge(s.Ctx, req)
	s.Require().NoError(err)

	e, err := s.edges.Get(s.Ctx, link.Edge)
	s.Require().NoError(err)

	s.Require().NoError(s.edges.Delete(s.Ctx, e.ID))
	links, err := s.DB().NewSelect().Table("graph_edges").Count(s.Ctx)
	s.Require().NoError(err)
	s.Zero(links, "deleting an edge removes its memberships")

	link, err = s.graphs.AddEdge(s.Ctx, req)
	s.Require().NoError(err)
	s.Require().NoError(s.nodes.Delete(s.Ctx, e.U))
	_, err = s.edges.Get(s.Ctx, link.Edge)
	s.ErrorIs(err, apperror.ErrEdgeNotFound, "deleting a node removes its edges")
}
