package graphs

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"

	"github.com/soldey/graph-api/domain/edges"
	"github.com/soldey/graph-api/domain/nodes"
	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
	"github.com/soldey/graph-api/pkg/logger"
	"github.com/soldey/graph-api/pkg/multigraph"
	"github.com/soldey/graph-api/pkg/pgutils"
	"github.com/soldey/graph-api/pkg/tracing"
)

// RelationshipTable is the graph_edges table name.
const RelationshipTable = "graph_edges"

// Service contains graph business logic.
type Service struct {
	repo   *Repository
	nodes  *nodes.Service
	edges  *edges.Service
	loader *bulkload.Loader
	log    *slog.Logger
}

func NewService(repo *Repository, nodeSvc *nodes.Service, edgeSvc *edges.Service, loader *bulkload.Loader, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		nodes:  nodeSvc,
		edges:  edgeSvc,
		loader: loader,
		log:    log.With(logger.Scope("graphs.svc")),
	}
}

// Create inserts a graph. Numeric names and taken names are rejected.
func (s *Service) Create(ctx context.Context, req *CreateGraphRequest) (*Graph, error) {
	if isNumeric(req.Name) {
		return nil, apperror.ErrInvalidGraphName
	}
	g := &Graph{
		Name:       req.Name,
		Type:       req.Type,
		Properties: req.Properties,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}
	s.log.Info("graph created", slog.Int64("id", g.ID), slog.String("name", g.Name))
	return g, nil
}

func (s *Service) Get(ctx context.Context, idOrName string) (*Graph, error) {
	return s.repo.Get(ctx, idOrName)
}

func (s *Service) List(ctx context.Context, t GraphType) ([]*Graph, error) {
	return s.repo.List(ctx, t)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrGraphNotFound
	}
	return nil
}

func (s *Service) DeleteRelationship(ctx context.Context, id int64) error {
	ok, err := s.repo.DeleteRelationship(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewNotFound("relationship", strconv.FormatInt(id, 10))
	}
	return nil
}

// AddEdge creates the edge, or reuses an equal one, and links it into the
// requested graph. Linking an already linked edge returns the existing link.
func (s *Service) AddEdge(ctx context.Context, req *AddEdgeRequest) (*GraphEdge, error) {
	g, err := s.repo.Get(ctx, strconv.FormatInt(*req.Graph, 10))
	if err != nil {
		return nil, err
	}
	e, err := s.edges.Create(ctx, &req.CreateEdgeRequest)
	if err != nil {
		return nil, err
	}

	link, found, err := s.repo.FindRelationship(ctx, g.ID, e.ID)
	if err != nil {
		return nil, err
	}
	if found {
		return link, nil
	}

	link = &GraphEdge{Graph: g.ID, Edge: e.ID}
	if err := s.repo.CreateRelationship(ctx, link); err != nil {
		if !pgutils.IsUniqueViolation(err) {
			s.log.Error("failed to link edge", logger.Error(err))
			return nil, apperror.Database(err)
		}
		existing, found, lerr := s.repo.FindRelationship(ctx, g.ID, e.ID)
		if lerr != nil {
			return nil, lerr
		}
		if !found {
			return nil, apperror.Database(err)
		}
		return existing, nil
	}
	return link, nil
}

// RelationshipResult reports CreateManyRelationships.
type RelationshipResult struct {
	// Linked counts the distinct edges linked to the graph afterwards.
	Linked   int
	Inserted int
}

// CreateManyRelationships links edgeIDs into graph in bulk. When scope is
// set, edges already linked whose endpoints lie inside it are skipped
// without a write. A conflicting row is already linked and is dropped.
func (s *Service) CreateManyRelationships(ctx context.Context, graph int64, edgeIDs []int64, scope orb.Geometry) (*RelationshipResult, error) {
	ctx, span := tracing.Start(ctx, "graphs.create_many_relationships",
		attribute.Int64("graph.id", graph),
		attribute.Int("relationships.count", len(edgeIDs)),
	)
	defer span.End()

	seen := make(map[int64]struct{}, len(edgeIDs))
	records := make([]relationshipRecord, 0, len(edgeIDs))
	for _, id := range edgeIDs {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, relationshipRecord{Graph: graph, Edge: id})
	}

	var known map[string]int64
	if scope != nil {
		linked, err := s.repo.LinkedEdgesInScope(ctx, graph, geometry.New(scope))
		if err != nil {
			return nil, tracing.Fail(span, err)
		}
		known = make(map[string]int64, len(linked))
		for _, id := range linked {
			known[relationshipKey(graph, id)] = id
		}
	}

	res, err := bulkload.LoadDeduplicated(ctx, s.loader, relationshipSpec(), records, known)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	out := &RelationshipResult{
		Linked:   res.Matched + res.Inserted + res.Dropped,
		Inserted: res.Inserted,
	}
	s.log.Info("relationships loaded",
		slog.Int64("graph", graph),
		slog.Int("records", len(records)),
		slog.Int("already_linked", res.Matched+res.Dropped),
		slog.Int("inserted", res.Inserted),
	)
	span.SetAttributes(attribute.Int("relationships.inserted", res.Inserted))
	return out, nil
}

func relationshipSpec() bulkload.Spec[relationshipRecord] {
	return bulkload.Spec[relationshipRecord]{
		Table:   RelationshipTable,
		Columns: []string{"graph", "edge"},
		Encode: func(r relationshipRecord) ([]bulkload.Value, error) {
			return []bulkload.Value{bulkload.Int(r.Graph), bulkload.Int(r.Edge)}, nil
		},
		Key:         relationshipRecord.Key,
		ConflictKey: relationshipConflictKey,
	}
}

func relationshipConflictKey(v *pgutils.UniqueViolation) (string, error) {
	g, ok1 := v.Value("graph")
	e, ok2 := v.Value("edge")
	if !ok1 || !ok2 {
		return "", apperror.NewInternal("unexpected conflict on "+v.Constraint, nil)
	}
	graph, err := strconv.ParseInt(g, 10, 64)
	if err != nil {
		return "", err
	}
	edge, err := strconv.ParseInt(e, 10, 64)
	if err != nil {
		return "", err
	}
	return relationshipKey(graph, edge), nil
}

// BulkUpload writes the nodes, then the edges with endpoints remapped from
// node indexes to ids, then links the edges into the graph. Each stage
// commits before the next one reads.
func (s *Service) BulkUpload(ctx context.Context, graphID int64, req *UploadRequest) (*UploadSummary, error) {
	ctx, span := tracing.Start(ctx, "graphs.bulk_upload",
		attribute.Int64("graph.id", graphID),
		attribute.Int("nodes.count", len(req.Nodes)),
		attribute.Int("edges.count", len(req.Edges)),
	)
	defer span.End()

	if _, err := s.repo.Get(ctx, strconv.FormatInt(graphID, 10)); err != nil {
		return nil, tracing.Fail(span, err)
	}
	for i, e := range req.Edges {
		if e.U < 0 || e.U >= len(req.Nodes) || e.V < 0 || e.V >= len(req.Nodes) {
			return nil, tracing.Fail(span, apperror.NewBadRequest("edges["+strconv.Itoa(i)+"]: endpoint index out of range"))
		}
	}

	scope := uploadScope(req.Edges)
	if scope != nil {
		s.log.Info("bulk upload scoped", slog.String("scope", geometry.CanonicalWKT(scope)))
	}

	summary := &UploadSummary{}

	nodeRecs := make([]nodes.Record, len(req.Nodes))
	for i := range req.Nodes {
		nodeRecs[i] = req.Nodes[i].Record()
	}
	nodeRes, err := s.nodes.CreateMany(ctx, nodeRecs, scope)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	summary.Nodes = nodeRes.Inserted
	summary.Dropped += nodeRes.Dropped

	if len(req.Edges) == 0 {
		return summary, nil
	}

	edgeRecs, skipped := remapEdges(req.Edges, nodeRes.IDs)
	if skipped > 0 {
		s.log.Warn("edges skipped with dropped endpoints", slog.Int("count", skipped))
		summary.Dropped += skipped
	}
	edgeRes, err := s.edges.CreateMany(ctx, edgeRecs, scope)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	summary.Edges = edgeRes.Inserted
	summary.Dropped += edgeRes.Dropped

	relRes, err := s.CreateManyRelationships(ctx, graphID, edgeRes.IDs, scope)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	summary.Relationships = relRes.Linked

	s.log.Info("bulk upload finished",
		slog.Int64("graph", graphID),
		slog.Int("nodes", summary.Nodes),
		slog.Int("edges", summary.Edges),
		slog.Int("relationships", summary.Relationships),
		slog.Int("dropped", summary.Dropped),
	)
	return summary, nil
}

// uploadScope is the padded bounding box of the edge geometries, or nil when
// no edge carries one.
func uploadScope(es []UploadEdge) orb.Geometry {
	geoms := make([]orb.Geometry, 0, len(es))
	for _, e := range es {
		if !e.Geometry.IsNull() {
			geoms = append(geoms, e.Geometry.Geometry)
		}
	}
	return geometry.BoundingBox(geoms...)
}

// remapEdges rewrites node indexes into node ids. Edges whose endpoint node
// was dropped are skipped and counted.
func remapEdges(es []UploadEdge, nodeIDs []int64) ([]edges.Record, int) {
	out := make([]edges.Record, 0, len(es))
	skipped := 0
	for i := range es {
		u, v := nodeIDs[es[i].U], nodeIDs[es[i].V]
		if u == 0 || v == 0 {
			skipped++
			continue
		}
		out = append(out, es[i].Attributes.Record(u, v))
	}
	return out, skipped
}

// Build loads the selected rows and assembles them into a multigraph.
func (s *Service) Build(ctx context.Context, sel Selector) (*multigraph.Graph, error) {
	ctx, span := tracing.Start(ctx, "graphs.build",
		attribute.String("graph.selector", sel.IDOrName),
		attribute.String("graph.mode", string(sel.Mode)),
	)
	defer span.End()

	var g *Graph
	var graphID *int64
	if sel.IDOrName != "" {
		var err error
		g, err = s.repo.Get(ctx, sel.IDOrName)
		if err != nil {
			return nil, tracing.Fail(span, err)
		}
		graphID = &g.ID
	}

	types := sel.Mode.EdgeTypes()
	es, err := s.edges.List(ctx, edges.ListParams{GraphID: graphID, Types: types, Area: sel.Area})
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	edgeTypes := make([]string, len(types))
	for i, t := range types {
		edgeTypes[i] = string(t)
	}
	ns, err := s.nodes.List(ctx, nodes.ListParams{GraphID: graphID, EdgeTypes: edgeTypes, Area: sel.Area})
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	mg := Assemble(g, ns, es)
	s.log.Info("graph built",
		slog.String("graph", sel.IDOrName),
		slog.String("mode", string(sel.Mode)),
		slog.Int("nodes", mg.NumNodes()),
		slog.Int("edges", mg.NumEdges()),
	)
	span.SetAttributes(attribute.Int("graph.nodes", mg.NumNodes()), attribute.Int("graph.edges", mg.NumEdges()))
	return mg, nil
}
