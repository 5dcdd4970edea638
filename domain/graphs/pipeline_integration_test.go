package graphs

import (
	"github.com/paulmach/orb"

	"github.com/soldey/graph-api/domain/edges"
	"github.com/soldey/graph-api/domain/nodes"
	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
)

// These cases persist rows the batch cannot see through its scope, so every
// duplicate reaches COPY and goes through the unique-violation loop.

var farScope = orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}.ToPolygon()

func (s *GraphsSuite) TestNodeBatchResolvesPersistedRowsThroughConflicts() {
	reqs := []*nodes.CreateNodeRequest{point(10, 10), point(11, 10), point(12, 10)}
	reqs[1].Route = "line\n7"
	reqs[2].Type = nodes.TypeStop
	reqs[2].Route = "12, express"

	persisted := make([]int64, len(reqs))
	for i, req := range reqs {
		n, err := s.nodes.Create(s.Ctx, req)
		s.Require().NoError(err)
		persisted[i] = n.ID
	}

	recs := make([]nodes.Record, 0, len(reqs)+1)
	for _, req := range reqs {
		recs = append(recs, req.Record())
	}
	recs = append(recs, point(13, 10).Record())

	res, err := s.nodes.CreateMany(s.Ctx, recs, nil)
	s.Require().NoError(err)
	s.Equal(len(reqs), res.Resolved)
	s.Equal(1, res.Inserted)
	s.Zero(res.Dropped)
	s.Equal(persisted, res.IDs[:len(reqs)])
	s.NotZero(res.IDs[len(reqs)])
	s.NotContains(persisted, res.IDs[len(reqs)])

	count, err := s.DB().NewSelect().Table("nodes").Count(s.Ctx)
	s.Require().NoError(err)
	s.Equal(len(reqs)+1, count)
}

func (s *GraphsSuite) TestEdgeBatchResolvesDuplicateOutsideScope() {
	a, err := s.nodes.Create(s.Ctx, point(50, 50))
	s.Require().NoError(err)
	b, err := s.nodes.Create(s.Ctx, point(50, 51))
	s.Require().NoError(err)

	attrs := edges.Attributes{
		Type:     edges.TypeDrive,
		Weight:   3,
		Route:    "M-11",
		Geometry: geometry.New(orb.LineString{{50, 50}, {50.5, 50.5}, {50, 51}}),
	}
	s.Require().NoError(attrs.Validate())
	existing, err := s.edges.Create(s.Ctx, &edges.CreateEdgeRequest{
		U: edges.NodeRef{ID: a.ID}, V: edges.NodeRef{ID: b.ID}, Attributes: attrs,
	})
	s.Require().NoError(err)

	other := attrs
	other.Geometry = geometry.New(orb.LineString{{50, 50}, {50, 51}})
	recs := []edges.Record{attrs.Record(a.ID, b.ID), other.Record(a.ID, b.ID)}

	res, err := s.edges.CreateMany(s.Ctx, recs, farScope)
	s.Require().NoError(err)
	s.Zero(res.Matched, "the persisted edge lies outside the scope")
	s.Equal(1, res.Resolved)
	s.Equal(1, res.Inserted)
	s.Equal(existing.ID, res.IDs[0])
	s.NotEqual(existing.ID, res.IDs[1])

	count, err := s.DB().NewSelect().Table("edges").Count(s.Ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *GraphsSuite) TestEdgesWithoutGeometryMatchSingleCreate() {
	a, err := s.nodes.Create(s.Ctx, point(20, 20))
	s.Require().NoError(err)
	b, err := s.nodes.Create(s.Ctx, point(20, 21))
	s.Require().NoError(err)

	attrs := edges.Attributes{Type: edges.TypeBoarding}
	s.Require().NoError(attrs.Validate())
	single, err := s.edges.Create(s.Ctx, &edges.CreateEdgeRequest{
		U: edges.NodeRef{ID: a.ID}, V: edges.NodeRef{ID: b.ID}, Attributes: attrs,
	})
	s.Require().NoError(err)

	rec := attrs.Record(a.ID, b.ID)
	reverse := attrs.Record(b.ID, a.ID)
	res, err := s.edges.CreateMany(s.Ctx, []edges.Record{rec, reverse, reverse}, nil)
	s.Require().NoError(err)
	s.Equal(1, res.Matched)
	s.Equal(1, res.Collapsed)
	s.Equal(1, res.Inserted)
	s.Equal(single.ID, res.IDs[0])
	s.Equal(res.IDs[1], res.IDs[2])

	again, err := s.edges.Create(s.Ctx, &edges.CreateEdgeRequest{
		U: edges.NodeRef{ID: b.ID}, V: edges.NodeRef{ID: a.ID}, Attributes: attrs,
	})
	s.Require().NoError(err)
	s.Equal(res.IDs[1], again.ID, "bulk and single create agree")
}

func (s *GraphsSuite) TestRelationshipBatchSkipsExistingLinks() {
	g := s.createGraph("links")

	var ids []int64
	for i := 0; i < 4; i++ {
		x := float64(30 + i)
		u, err := s.nodes.Create(s.Ctx, point(x, 0))
		s.Require().NoError(err)
		v, err := s.nodes.Create(s.Ctx, point(x, 1))
		s.Require().NoError(err)
		attrs := edges.Attributes{Geometry: geometry.New(orb.LineString{{x, 0}, {x, 1}})}
		s.Require().NoError(attrs.Validate())
		e, err := s.edges.Create(s.Ctx, &edges.CreateEdgeRequest{
			U: edges.NodeRef{ID: u.ID}, V: edges.NodeRef{ID: v.ID}, Attributes: attrs,
		})
		s.Require().NoError(err)
		ids = append(ids, e.ID)
	}

	first, err := s.graphs.CreateManyRelationships(s.Ctx, g.ID, ids[:2], nil)
	s.Require().NoError(err)
	s.Equal(2, first.Inserted)

	// Unscoped: both existing links surface as conflicts.
	res, err := s.graphs.CreateManyRelationships(s.Ctx, g.ID, append(ids, ids[3]), nil)
	s.Require().NoError(err)
	s.Equal(2, res.Inserted)
	s.Equal(4, res.Linked)

	// Scoped around the first edge only: it is skipped, the others conflict.
	scope := orb.Bound{Min: orb.Point{29.5, -0.5}, Max: orb.Point{30.5, 1.5}}.ToPolygon()
	res, err = s.graphs.CreateManyRelationships(s.Ctx, g.ID, ids, scope)
	s.Require().NoError(err)
	s.Zero(res.Inserted)
	s.Equal(4, res.Linked)

	linked, err := s.graphs.repo.LinkedEdgesInScope(s.Ctx, g.ID, geometry.New(scope))
	s.Require().NoError(err)
	s.Equal([]int64{ids[0]}, linked)

	count, err := s.DB().NewSelect().Table("graph_edges").Count(s.Ctx)
	s.Require().NoError(err)
	s.Equal(4, count)
}

func (s *GraphsSuite) TestEdgeCreateBulkChecksNodesBeforeWriting() {
	attrs := edges.Attributes{Type: edges.TypeWalk}
	s.Require().NoError(attrs.Validate())

	_, err := s.edges.CreateBulk(s.Ctx, []edges.CreateEdgeRequest{{
		U:          edges.NodeRef{Node: point(40, 40)},
		V:          edges.NodeRef{ID: 987654},
		Attributes: attrs,
	}})
	s.ErrorIs(err, apperror.ErrNodeNotFound)

	count, err := s.DB().NewSelect().Table("nodes").Count(s.Ctx)
	s.Require().NoError(err)
	s.Zero(count, "nested nodes are not written when a referenced node is missing")
}

func (s *GraphsSuite) TestEdgeCreateBulkReusesNestedNodes() {
	existing, err := s.nodes.Create(s.Ctx, point(41, 41))
	s.Require().NoError(err)

	attrs := edges.Attributes{
		Type:     edges.TypeWalk,
		Geometry: geometry.New(orb.LineString{{41, 41}, {41, 42}}),
	}
	s.Require().NoError(attrs.Validate())

	out, err := s.edges.CreateBulk(s.Ctx, []edges.CreateEdgeRequest{{
		U:          edges.NodeRef{Node: point(41, 41)},
		V:          edges.NodeRef{Node: point(41, 42)},
		Attributes: attrs,
	}})
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(existing.ID, out[0].U)

	count, err := s.DB().NewSelect().Table("nodes").Count(s.Ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
}
