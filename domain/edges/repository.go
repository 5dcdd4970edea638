package edges

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
	"github.com/soldey/graph-api/pkg/logger"
)

// Repository handles database operations for edges.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("edges.repo")),
	}
}

// Create inserts an edge and fills its generated columns.
func (r *Repository) Create(ctx context.Context, e *Edge) error {
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	_, err := r.db.NewInsert().
		Model(e).
		Returning("*").
		Exec(ctx)
	return err
}

// FindExisting returns the id of the edge with the same endpoints, type and
// route whose geometry is equal vertex by vertex. A nil geometry matches only
// edges without geometry.
func (r *Repository) FindExisting(ctx context.Context, rec Record) (int64, bool, error) {
	var ids []int64
	q := r.db.NewSelect().
		Model((*Edge)(nil)).
		Column("e.id").
		Where("e.u = ?", rec.U).
		Where("e.v = ?", rec.V).
		Where("e.type = ?", rec.Type).
		Where("e.route = ?", rec.Route)
	if rec.Geometry.IsNull() {
		q = q.Where("e.geometry IS NULL")
	} else {
		q = q.Where("ST_OrderingEquals(e.geometry, ST_GeomFromEWKT(?))", rec.Geometry.EWKT())
	}
	err := q.OrderExpr("e.id ASC").Limit(1).Scan(ctx, &ids)
	if err != nil {
		r.log.Error("failed to look up edge", logger.Error(err))
		return 0, false, apperror.Database(err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Edge, error) {
	e := new(Edge)
	err := r.db.NewSelect().
		Model(e).
		Where("e.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrEdgeNotFound
	}
	if err != nil {
		r.log.Error("failed to get edge", logger.Error(err), slog.Int64("id", id))
		return nil, apperror.Database(err)
	}
	return e, nil
}

// GetByIDs returns the edges with the given ids ordered by id.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) ([]*Edge, error) {
	out := []*Edge{}
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.NewSelect().
		Model(&out).
		Where("e.id IN (?)", bun.In(ids)).
		OrderExpr("e.id ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to get edges", logger.Error(err), slog.Int("count", len(ids)))
		return nil, apperror.Database(err)
	}
	return out, nil
}

// List returns edges matching params ordered by id.
func (r *Repository) List(ctx context.Context, p ListParams) ([]*Edge, error) {
	var out []*Edge
	q := r.db.NewSelect().Model(&out)

	if len(p.Types) > 0 {
		types := make(pq.StringArray, len(p.Types))
		for i, t := range p.Types {
			types[i] = string(t)
		}
		q = q.Where("e.type::text = ANY(?)", types)
	}
	if len(p.Levels) > 0 {
		levels := make(pq.StringArray, len(p.Levels))
		for i, l := range p.Levels {
			levels[i] = string(l)
		}
		q = q.Where("e.level::text = ANY(?)", levels)
	}
	if p.GraphID != nil {
		q = q.Where("e.id IN (SELECT ge.edge FROM graph_edges AS ge WHERE ge.graph = ?)", *p.GraphID)
	}
	if !p.Area.IsNull() {
		q = q.Where("ST_Intersects(ST_GeomFromEWKT(?), e.geometry)", p.Area.EWKT())
	}

	if err := q.OrderExpr("e.id ASC").Scan(ctx); err != nil {
		r.log.Error("failed to list edges", logger.Error(err))
		return nil, apperror.Database(err)
	}
	return out, nil
}

// ListCandidates returns the dedup keys of persisted edges intersecting scope.
func (r *Repository) ListCandidates(ctx context.Context, scope geometry.Geometry) (map[string]int64, error) {
	var rows []struct {
		ID       int64             `bun:"id"`
		U        int64             `bun:"u"`
		V        int64             `bun:"v"`
		Type     EdgeType          `bun:"type"`
		Geometry geometry.Geometry `bun:"geometry"`
		Route    string            `bun:"route"`
	}
	err := r.db.NewSelect().
		TableExpr("edges AS e").
		ColumnExpr("e.id, e.u, e.v, e.type, ST_AsEWKB(e.geometry) AS geometry, e.route").
		Where("e.geometry IS NOT NULL").
		Where("ST_Intersects(e.geometry, ST_GeomFromEWKT(?))", scope.EWKT()).
		OrderExpr("e.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		r.log.Error("failed to list edge candidates", logger.Error(err))
		return nil, apperror.Database(err)
	}

	known := make(map[string]int64, len(rows))
	for _, row := range rows {
		k := dedupKey(row.U, row.V, row.Type, row.Geometry.WKT(), row.Route)
		if _, ok := known[k]; !ok {
			known[k] = row.ID
		}
	}
	return known, nil
}

// ListBareCandidates returns the dedup keys of persisted edges without
// geometry that start at one of the given nodes. Such edges have no extent,
// so they are found by endpoint instead of by scope.
func (r *Repository) ListBareCandidates(ctx context.Context, us []int64) (map[string]int64, error) {
	known := map[string]int64{}
	if len(us) == 0 {
		return known, nil
	}
	var rows []struct {
		ID    int64    `bun:"id"`
		U     int64    `bun:"u"`
		V     int64    `bun:"v"`
		Type  EdgeType `bun:"type"`
		Route string   `bun:"route"`
	}
	err := r.db.NewSelect().
		TableExpr("edges AS e").
		ColumnExpr("e.id, e.u, e.v, e.type, e.route").
		Where("e.geometry IS NULL").
		Where("e.u IN (?)", bun.In(us)).
		OrderExpr("e.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		r.log.Error("failed to list bare edge candidates", logger.Error(err))
		return nil, apperror.Database(err)
	}
	for _, row := range rows {
		k := dedupKey(row.U, row.V, row.Type, nullGeometryKey, row.Route)
		if _, ok := known[k]; !ok {
			known[k] = row.ID
		}
	}
	return known, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*Edge)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete edge", logger.Error(err), slog.Int64("id", id))
		return false, apperror.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Database(err)
	}
	return n > 0, nil
}
