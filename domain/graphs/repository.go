package graphs

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"

	"github.com/uptrace/bun"

	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
	"github.com/soldey/graph-api/pkg/logger"
	"github.com/soldey/graph-api/pkg/pgutils"
)

// Repository handles database operations for graphs and their edge links.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("graphs.repo")),
	}
}

// Create inserts a graph. A taken name yields ErrGraphExists.
func (r *Repository) Create(ctx context.Context, g *Graph) error {
	if g.Properties == nil {
		g.Properties = map[string]any{}
	}
	_, err := r.db.NewInsert().
		Model(g).
		Returning("*").
		Exec(ctx)
	switch {
	case err == nil:
		return nil
	case pgutils.IsUniqueViolation(err):
		return apperror.ErrGraphExists.WithInternal(err)
	case pgutils.IsCheckViolation(err):
		return apperror.ErrInvalidGraphName.WithInternal(err)
	default:
		r.log.Error("failed to create graph", logger.Error(err))
		return apperror.Database(err)
	}
}

// Get returns a graph by id when idOrName is all digits, by name otherwise.
func (r *Repository) Get(ctx context.Context, idOrName string) (*Graph, error) {
	g := new(Graph)
	q := r.db.NewSelect().Model(g)
	if isNumeric(idOrName) {
		id, err := strconv.ParseInt(idOrName, 10, 64)
		if err != nil {
			return nil, apperror.ErrGraphNotFound
		}
		q = q.Where("g.id = ?", id)
	} else {
		q = q.Where("g.name = ?", idOrName)
	}

	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrGraphNotFound
	}
	if err != nil {
		r.log.Error("failed to get graph", logger.Error(err), slog.String("graph", idOrName))
		return nil, apperror.Database(err)
	}
	return g, nil
}

// List returns graphs ordered by id, optionally of one type.
func (r *Repository) List(ctx context.Context, t GraphType) ([]*Graph, error) {
	out := []*Graph{}
	q := r.db.NewSelect().Model(&out)
	if t != "" {
		q = q.Where("g.type = ?", t)
	}
	if err := q.OrderExpr("g.id ASC").Scan(ctx); err != nil {
		r.log.Error("failed to list graphs", logger.Error(err))
		return nil, apperror.Database(err)
	}
	return out, nil
}

// Delete removes a graph and its edge links.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	return r.delete(ctx, (*Graph)(nil), id)
}

// DeleteRelationship removes one edge link.
func (r *Repository) DeleteRelationship(ctx context.Context, id int64) (bool, error) {
	return r.delete(ctx, (*GraphEdge)(nil), id)
}

func (r *Repository) delete(ctx context.Context, model any, id int64) (bool, error) {
	res, err := r.db.NewDelete().
		Model(model).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete row", logger.Error(err), slog.Int64("id", id))
		return false, apperror.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Database(err)
	}
	return n > 0, nil
}

// FindRelationship returns the link of edge into graph, if any.
func (r *Repository) FindRelationship(ctx context.Context, graph, edge int64) (*GraphEdge, bool, error) {
	ge := new(GraphEdge)
	err := r.db.NewSelect().
		Model(ge).
		Where("ge.graph = ?", graph).
		Where("ge.edge = ?", edge).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		r.log.Error("failed to look up relationship", logger.Error(err))
		return nil, false, apperror.Database(err)
	}
	return ge, true, nil
}

// CreateRelationship inserts a link. The caller handles unique violations.
func (r *Repository) CreateRelationship(ctx context.Context, ge *GraphEdge) error {
	_, err := r.db.NewInsert().
		Model(ge).
		Returning("*").
		Exec(ctx)
	return err
}

// LinkedEdgesInScope returns the edges linked to graph whose endpoints both
// intersect scope.
func (r *Repository) LinkedEdgesInScope(ctx context.Context, graph int64, scope geometry.Geometry) ([]int64, error) {
	var ids []int64
	area := scope.EWKT()
	err := r.db.NewSelect().
		TableExpr("graph_edges AS ge").
		ColumnExpr("ge.edge").
		Join("JOIN edges AS e ON e.id = ge.edge").
		Join("JOIN nodes AS nu ON nu.id = e.u").
		Join("JOIN nodes AS nv ON nv.id = e.v").
		Where("ge.graph = ?", graph).
		Where("ST_Intersects(ST_GeomFromEWKT(?), nu.point)", area).
		Where("ST_Intersects(ST_GeomFromEWKT(?), nv.point)", area).
		OrderExpr("ge.edge ASC").
		Scan(ctx, &ids)
	if err != nil {
		r.log.Error("failed to list linked edges", logger.Error(err), slog.Int64("graph", graph))
		return nil, apperror.Database(err)
	}
	return ids, nil
}
