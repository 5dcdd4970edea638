package nodes

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"

	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
	"github.com/soldey/graph-api/pkg/logger"
	"github.com/soldey/graph-api/pkg/pgutils"
	"github.com/soldey/graph-api/pkg/tracing"
)

// Table is the nodes table name.
const Table = "nodes"

// Service contains node business logic.
type Service struct {
	repo   *Repository
	loader *bulkload.Loader
	log    *slog.Logger
}

func NewService(repo *Repository, loader *bulkload.Loader, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		loader: loader,
		log:    log.With(logger.Scope("nodes.svc")),
	}
}

// Create returns the node equal to the request, inserting it when missing.
func (s *Service) Create(ctx context.Context, req *CreateNodeRequest) (*Node, error) {
	rec := req.Record()

	id, found, err := s.repo.FindExisting(ctx, rec.Type, rec.Point, rec.Route)
	if err != nil {
		return nil, err
	}
	if found {
		return s.repo.GetByID(ctx, id)
	}

	n := &Node{
		Type:       rec.Type,
		Point:      rec.Point,
		Route:      rec.Route,
		Properties: rec.Properties,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		if !pgutils.IsUniqueViolation(err) {
			s.log.Error("failed to create node", logger.Error(err))
			return nil, apperror.Database(err)
		}
		// A concurrent writer inserted the same node first.
		id, found, lerr := s.repo.FindExisting(ctx, rec.Type, rec.Point, rec.Route)
		if lerr != nil {
			return nil, lerr
		}
		if !found {
			return nil, apperror.Database(err)
		}
		return s.repo.GetByID(ctx, id)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Node, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIDs returns the nodes with the given ids ordered by id.
func (s *Service) GetByIDs(ctx context.Context, ids []int64) ([]*Node, error) {
	return s.repo.GetByIDs(ctx, ids)
}

func (s *Service) List(ctx context.Context, p ListParams) ([]*Node, error) {
	return s.repo.List(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrNodeNotFound
	}
	return nil
}

// CreateMany writes records in bulk and returns ids aligned with them. When
// scope is set, nodes already persisted inside it are reused without a write.
func (s *Service) CreateMany(ctx context.Context, records []Record, scope orb.Geometry) (*bulkload.BatchResult, error) {
	ctx, span := tracing.Start(ctx, "nodes.create_many",
		attribute.Int("nodes.count", len(records)),
		attribute.Bool("nodes.scoped", scope != nil),
	)
	defer span.End()

	for i := range records {
		records[i].Route = NormalizeRoute(records[i].Route)
	}

	var known map[string]int64
	if scope != nil {
		var err error
		known, err = s.repo.ListCandidates(ctx, geometry.New(scope))
		if err != nil {
			return nil, tracing.Fail(span, err)
		}
	}

	res, err := bulkload.LoadDeduplicated(ctx, s.loader, s.spec(), records, known)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	s.log.Info("nodes loaded",
		slog.Int("records", len(records)),
		slog.Int("matched", res.Matched),
		slog.Int("collapsed", res.Collapsed),
		slog.Int("inserted", res.Inserted),
		slog.Int("resolved", res.Resolved),
		slog.Int("dropped", res.Dropped),
	)
	span.SetAttributes(attribute.Int("nodes.inserted", res.Inserted))
	return res, nil
}

func (s *Service) spec() bulkload.Spec[Record] {
	return bulkload.Spec[Record]{
		Table:       Table,
		Columns:     []string{"type", "point", "route", "properties"},
		Encode:      encodeRecord,
		Key:         Record.Key,
		ConflictKey: conflictKey,
		Resolve: func(ctx context.Context, r Record) (int64, bool, error) {
			return s.repo.FindExisting(ctx, r.Type, r.Point, r.Route)
		},
	}
}

func encodeRecord(r Record) ([]bulkload.Value, error) {
	props, err := bulkload.JSON(r.Properties)
	if err != nil {
		return nil, err
	}
	return []bulkload.Value{
		bulkload.Text(string(r.Type)),
		bulkload.Geom(r.Point),
		bulkload.Text(r.Route),
		props,
	}, nil
}

// conflictKey rebuilds Record.Key from a node_multiunique violation, whose
// point value is hex EWKB.
func conflictKey(v *pgutils.UniqueViolation) (string, error) {
	t, ok1 := v.Value("type")
	point, ok2 := v.Value("point")
	route, ok3 := v.Value("route")
	if !ok1 || !ok2 || !ok3 {
		return "", errMissingColumn(v)
	}
	g, err := geometry.ParseEWKBHex(point)
	if err != nil {
		return "", err
	}
	return dedupKey(NodeType(t), geometry.CanonicalWKT(g), route), nil
}

func errMissingColumn(v *pgutils.UniqueViolation) error {
	return apperror.NewInternal("unexpected conflict on "+v.Constraint+" with "+strconv.Itoa(len(v.Columns))+" columns", nil)
}
