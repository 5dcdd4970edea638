package bulkload

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Copier streams a COPY payload into a table and returns the ids assigned to
// the inserted rows, in insertion order. The rows are committed when it returns.
type Copier interface {
	CopyReturningIDs(ctx context.Context, table string, columns []string, payload io.Reader) ([]int64, error)
}

// PgxCopier copies over a pooled pgx connection.
type PgxCopier struct {
	pool *pgxpool.Pool
}

func NewPgxCopier(pool *pgxpool.Pool) *PgxCopier {
	return &PgxCopier{pool: pool}
}

// CopyReturningIDs runs COPY and then selects the rows whose xmin is the
// current transaction id. Both statements share one transaction, so the
// query sees exactly the rows this COPY wrote.
func (c *PgxCopier) CopyReturningIDs(ctx context.Context, table string, columns []string, payload io.Reader) ([]int64, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Conn().PgConn().CopyFrom(ctx, payload, CopySQL(table, columns)); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, insertedIDsSQL(table))
	if err != nil {
		return nil, fmt.Errorf("select inserted ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan inserted ids: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}
	return ids, nil
}

// CopySQL builds the COPY statement for a text payload delimited by Delimiter.
func CopySQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT text, DELIMITER '%c')",
		pgx.Identifier{table}.Sanitize(), strings.Join(quoted, ", "), Delimiter)
}

// xmin is a 32-bit wrapped transaction id, txid_current is not.
func insertedIDsSQL(table string) string {
	return fmt.Sprintf(
		"SELECT id FROM %s WHERE xmin::text = (txid_current() %% (2^32)::bigint)::text ORDER BY id ASC",
		pgx.Identifier{table}.Sanitize(),
	)
}
