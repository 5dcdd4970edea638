package nodes

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
	"github.com/soldey/graph-api/pkg/logger"
)

// Repository handles database operations for nodes.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("nodes.repo")),
	}
}

// Create inserts a node and fills its generated columns.
func (r *Repository) Create(ctx context.Context, n *Node) error {
	if n.Properties == nil {
		n.Properties = map[string]any{}
	}
	_, err := r.db.NewInsert().
		Model(n).
		Returning("*").
		Exec(ctx)
	return err
}

// FindExisting returns the id of a node geometrically equal to point with
// the same type and route.
func (r *Repository) FindExisting(ctx context.Context, t NodeType, point geometry.Geometry, route string) (int64, bool, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*Node)(nil)).
		Column("n.id").
		Where("n.type = ?", t).
		Where("n.route = ?", route).
		Where("ST_Equals(n.point, ST_GeomFromEWKT(?))", point.EWKT()).
		OrderExpr("n.id ASC").
		Limit(1).
		Scan(ctx, &ids)
	if err != nil {
		r.log.Error("failed to look up node", logger.Error(err))
		return 0, false, apperror.Database(err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Node, error) {
	n := new(Node)
	err := r.db.NewSelect().
		Model(n).
		Where("n.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNodeNotFound
	}
	if err != nil {
		r.log.Error("failed to get node", logger.Error(err), slog.Int64("id", id))
		return nil, apperror.Database(err)
	}
	return n, nil
}

// GetByIDs returns the nodes with the given ids ordered by id.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) ([]*Node, error) {
	out := []*Node{}
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.NewSelect().
		Model(&out).
		Where("n.id IN (?)", bun.In(ids)).
		OrderExpr("n.id ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to get nodes", logger.Error(err), slog.Int("count", len(ids)))
		return nil, apperror.Database(err)
	}
	return out, nil
}

// List returns nodes matching params ordered by id.
func (r *Repository) List(ctx context.Context, p ListParams) ([]*Node, error) {
	var out []*Node
	q := r.db.NewSelect().Model(&out)

	if len(p.Types) > 0 {
		types := make(pq.StringArray, len(p.Types))
		for i, t := range p.Types {
			types[i] = string(t)
		}
		q = q.Where("n.type::text = ANY(?)", types)
	}

	if p.GraphID != nil || len(p.EdgeTypes) > 0 {
		var (
			filters []string
			args    []any
		)
		if p.GraphID != nil {
			filters = append(filters, "e.id IN (SELECT ge.edge FROM graph_edges AS ge WHERE ge.graph = ?)")
			args = append(args, *p.GraphID)
		}
		if len(p.EdgeTypes) > 0 {
			filters = append(filters, "e.type::text = ANY(?)")
			args = append(args, pq.StringArray(p.EdgeTypes))
		}
		filter := strings.Join(filters, " AND ")
		q = q.Where(
			"n.id IN (SELECT e.u FROM edges AS e WHERE "+filter+" UNION SELECT e.v FROM edges AS e WHERE "+filter+")",
			append(args, args...)...,
		)
	}

	if !p.Area.IsNull() {
		q = q.Where("ST_Covers(ST_GeomFromEWKT(?), n.point)", p.Area.EWKT())
	}

	if err := q.OrderExpr("n.id ASC").Scan(ctx); err != nil {
		r.log.Error("failed to list nodes", logger.Error(err))
		return nil, apperror.Database(err)
	}
	return out, nil
}

// ListCandidates returns the dedup keys of persisted nodes intersecting scope.
func (r *Repository) ListCandidates(ctx context.Context, scope geometry.Geometry) (map[string]int64, error) {
	var rows []struct {
		ID    int64             `bun:"id"`
		Type  NodeType          `bun:"type"`
		Point geometry.Geometry `bun:"point"`
		Route string            `bun:"route"`
	}
	err := r.db.NewSelect().
		TableExpr("nodes AS n").
		ColumnExpr("n.id, n.type, n.point, n.route").
		Where("ST_Intersects(n.point, ST_GeomFromEWKT(?))", scope.EWKT()).
		OrderExpr("n.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		r.log.Error("failed to list node candidates", logger.Error(err))
		return nil, apperror.Database(err)
	}

	known := make(map[string]int64, len(rows))
	for _, row := range rows {
		k := dedupKey(row.Type, row.Point.WKT(), row.Route)
		if _, ok := known[k]; !ok {
			known[k] = row.ID
		}
	}
	return known, nil
}

// Delete removes a node; its edges go with it through the foreign keys.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*Node)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete node", logger.Error(err), slog.Int64("id", id))
		return false, apperror.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Database(err)
	}
	return n > 0, nil
}
