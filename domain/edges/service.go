package edges

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"

	"github.com/soldey/graph-api/domain/nodes"
	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
	"github.com/soldey/graph-api/pkg/logger"
	"github.com/soldey/graph-api/pkg/pgutils"
	"github.com/soldey/graph-api/pkg/tracing"
)

// Table is the edges table name.
const Table = "edges"

// Service contains edge business logic.
type Service struct {
	repo   *Repository
	nodes  *nodes.Service
	loader *bulkload.Loader
	log    *slog.Logger
}

func NewService(repo *Repository, nodeSvc *nodes.Service, loader *bulkload.Loader, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		nodes:  nodeSvc,
		loader: loader,
		log:    log.With(logger.Scope("edges.svc")),
	}
}

// Create returns the edge equal to the request, inserting it when missing.
// Endpoints given as nodes are created or reused first.
func (s *Service) Create(ctx context.Context, req *CreateEdgeRequest) (*Edge, error) {
	u, err := s.resolveRef(ctx, req.U)
	if err != nil {
		return nil, err
	}
	v, err := s.resolveRef(ctx, req.V)
	if err != nil {
		return nil, err
	}
	rec := req.Record(u, v)

	id, found, err := s.repo.FindExisting(ctx, rec)
	if err != nil {
		return nil, err
	}
	if found {
		return s.repo.GetByID(ctx, id)
	}

	e := &Edge{
		U:          rec.U,
		V:          rec.V,
		Type:       rec.Type,
		Weight:     rec.Weight,
		WeightType: rec.WeightType,
		Level:      rec.Level,
		Speed:      rec.Speed,
		Route:      rec.Route,
		Geometry:   rec.Geometry,
		Properties: rec.Properties,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return nil, apperror.ErrNodeNotFound.WithInternal(err)
		}
		if !pgutils.IsUniqueViolation(err) {
			s.log.Error("failed to create edge", logger.Error(err))
			return nil, apperror.Database(err)
		}
		// A concurrent writer inserted the same edge first.
		id, found, lerr := s.repo.FindExisting(ctx, rec)
		if lerr != nil {
			return nil, lerr
		}
		if !found {
			return nil, apperror.Database(err)
		}
		return s.repo.GetByID(ctx, id)
	}
	return e, nil
}

func (s *Service) resolveRef(ctx context.Context, ref NodeRef) (int64, error) {
	if ref.Node == nil {
		if _, err := s.nodes.Get(ctx, ref.ID); err != nil {
			return 0, err
		}
		return ref.ID, nil
	}
	n, err := s.nodes.Create(ctx, ref.Node)
	if err != nil {
		return 0, err
	}
	return n.ID, nil
}

// CreateBulk creates the requested edges through the bulk pipeline and
// returns them in request order. Referenced node ids are checked before
// anything is written; nested endpoint nodes are then bulk loaded, scoped to
// their own extent.
func (s *Service) CreateBulk(ctx context.Context, reqs []CreateEdgeRequest) ([]*Edge, error) {
	var (
		nodeRecs []nodes.Record
		slots    []*int64
		points   []orb.Geometry
		refIDs   []int64
	)
	ends := make([][2]int64, len(reqs))
	for i := range reqs {
		for j, ref := range []NodeRef{reqs[i].U, reqs[i].V} {
			if ref.Node == nil {
				if ref.ID <= 0 {
					return nil, apperror.ErrValidation.WithMessage("edge " + strconv.Itoa(i) + " has an endpoint without node id or node")
				}
				ends[i][j] = ref.ID
				refIDs = append(refIDs, ref.ID)
				continue
			}
			rec := ref.Node.Record()
			nodeRecs = append(nodeRecs, rec)
			slots = append(slots, &ends[i][j])
			points = append(points, rec.Point.Geometry)
		}
	}

	if err := s.checkNodesExist(ctx, refIDs); err != nil {
		return nil, err
	}

	if len(nodeRecs) > 0 {
		res, err := s.nodes.CreateMany(ctx, nodeRecs, geometry.BoundingBox(points...))
		if err != nil {
			return nil, err
		}
		for i, id := range res.IDs {
			*slots[i] = id
		}
	}

	records := make([]Record, len(reqs))
	for i := range reqs {
		// a nested node dropped by the loader leaves its slot at zero
		if ends[i][0] == 0 || ends[i][1] == 0 {
			return nil, apperror.ErrValidation.WithMessage("edge " + strconv.Itoa(i) + " has an unresolved endpoint")
		}
		records[i] = reqs[i].Record(ends[i][0], ends[i][1])
	}

	res, err := s.CreateMany(ctx, records, nil)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return nil, apperror.ErrNodeNotFound.WithInternal(err)
		}
		return nil, err
	}

	persisted, err := s.repo.GetByIDs(ctx, uniqueIDs(res.IDs))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*Edge, len(persisted))
	for _, e := range persisted {
		byID[e.ID] = e
	}
	out := make([]*Edge, 0, len(res.IDs))
	for _, id := range res.IDs {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Service) checkNodesExist(ctx context.Context, ids []int64) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	found, err := s.nodes.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	have := make(map[int64]struct{}, len(found))
	for _, n := range found {
		have[n.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			return apperror.ErrNodeNotFound.WithMessage("node " + strconv.FormatInt(id, 10) + " not found")
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) Get(ctx context.Context, id int64) (*Edge, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIDs returns the edges with the given ids ordered by id.
func (s *Service) GetByIDs(ctx context.Context, ids []int64) ([]*Edge, error) {
	return s.repo.GetByIDs(ctx, ids)
}

func (s *Service) List(ctx context.Context, p ListParams) ([]*Edge, error) {
	return s.repo.List(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrEdgeNotFound
	}
	return nil
}

// CreateMany writes records in bulk and returns ids aligned with them. U and
// V must hold persisted node ids. When scope is set, edges already persisted
// inside it are reused without a write.
func (s *Service) CreateMany(ctx context.Context, records []Record, scope orb.Geometry) (*bulkload.BatchResult, error) {
	ctx, span := tracing.Start(ctx, "edges.create_many",
		attribute.Int("edges.count", len(records)),
		attribute.Bool("edges.scoped", scope != nil),
	)
	defer span.End()

	for i := range records {
		records[i].Route = nodes.NormalizeRoute(records[i].Route)
	}

	known := map[string]int64{}
	if scope != nil {
		var err error
		known, err = s.repo.ListCandidates(ctx, geometry.New(scope))
		if err != nil {
			return nil, tracing.Fail(span, err)
		}
	}
	if us := bareStarts(records); len(us) > 0 {
		bare, err := s.repo.ListBareCandidates(ctx, us)
		if err != nil {
			return nil, tracing.Fail(span, err)
		}
		for k, id := range bare {
			known[k] = id
		}
	}

	res, err := bulkload.LoadDeduplicated(ctx, s.loader, s.spec(), records, known)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	s.log.Info("edges loaded",
		slog.Int("records", len(records)),
		slog.Int("matched", res.Matched),
		slog.Int("collapsed", res.Collapsed),
		slog.Int("inserted", res.Inserted),
		slog.Int("resolved", res.Resolved),
		slog.Int("dropped", res.Dropped),
	)
	span.SetAttributes(attribute.Int("edges.inserted", res.Inserted))
	return res, nil
}

// bareStarts returns the distinct start nodes of records without geometry.
func bareStarts(records []Record) []int64 {
	var us []int64
	seen := map[int64]struct{}{}
	for _, r := range records {
		if !r.Geometry.IsNull() {
			continue
		}
		if _, ok := seen[r.U]; ok {
			continue
		}
		seen[r.U] = struct{}{}
		us = append(us, r.U)
	}
	return us
}

func (s *Service) spec() bulkload.Spec[Record] {
	return bulkload.Spec[Record]{
		Table:       Table,
		Columns:     []string{"u", "v", "type", "weight", "weight_type", "level", "speed", "route", "geometry", "properties"},
		Encode:      encodeRecord,
		Key:         Record.Key,
		ConflictKey: conflictKey,
		Resolve:     s.repo.FindExisting,
	}
}

func encodeRecord(r Record) ([]bulkload.Value, error) {
	props, err := bulkload.JSON(r.Properties)
	if err != nil {
		return nil, err
	}
	return []bulkload.Value{
		bulkload.Int(r.U),
		bulkload.Int(r.V),
		bulkload.Text(string(r.Type)),
		bulkload.Float(r.Weight),
		bulkload.Text(string(r.WeightType)),
		bulkload.Text(string(r.Level)),
		bulkload.Int(int64(r.Speed)),
		bulkload.Text(r.Route),
		bulkload.Geom(r.Geometry),
		props,
	}, nil
}

// conflictKey rebuilds Record.Key from an edges_multiunique violation, whose
// geometry value is hex EWKB.
func conflictKey(v *pgutils.UniqueViolation) (string, error) {
	cols := [5]string{"u", "v", "type", "geometry", "route"}
	var vals [5]string
	for i, c := range cols {
		val, ok := v.Value(c)
		if !ok {
			return "", errMissingColumn(v)
		}
		vals[i] = val
	}

	u, err := strconv.ParseInt(vals[0], 10, 64)
	if err != nil {
		return "", err
	}
	w, err := strconv.ParseInt(vals[1], 10, 64)
	if err != nil {
		return "", err
	}
	g, err := geometry.ParseEWKBHex(vals[3])
	if err != nil {
		return "", err
	}
	return dedupKey(u, w, EdgeType(vals[2]), geometry.CanonicalWKT(g), vals[4]), nil
}

func errMissingColumn(v *pgutils.UniqueViolation) error {
	return apperror.NewInternal("unexpected conflict on "+v.Constraint+" with "+strconv.Itoa(len(v.Columns))+" columns", nil)
}
