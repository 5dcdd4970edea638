// Package bulkload inserts batches of rows through PostgreSQL COPY and
// absorbs unique-constraint conflicts by resolving the offending row to its
// persisted id and retrying without it.
package bulkload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/soldey/graph-api/pkg/logger"
	"github.com/soldey/graph-api/pkg/pgutils"
)

// ArtifactPattern matches transfer artifacts left in the transfer directory.
const ArtifactPattern = "bulkload-*.copy"

// Spec describes how one record type maps onto a table.
type Spec[R any] struct {
	Table   string
	Columns []string

	// Encode returns the row values in Columns order.
	Encode func(R) ([]Value, error)

	// Key is the dedup key of a record.
	Key func(R) string

	// ConflictKey rebuilds a Key from the values of a unique violation.
	ConflictKey func(*pgutils.UniqueViolation) (string, error)

	// Resolve finds the persisted id of a conflicting record. When nil, or
	// when it reports not found, the record is dropped.
	Resolve func(ctx context.Context, r R) (id int64, found bool, err error)
}

// Result reports a load. IDs is aligned with the input rows; a dropped row
// keeps id 0.
type Result struct {
	IDs      []int64
	Inserted int
	Resolved int
	Dropped  int
	Attempts int
}

// Loader runs COPY transfers through a Copier.
type Loader struct {
	copier Copier
	parser pgutils.ConflictParser
	dir    string
	log    *slog.Logger
}

func NewLoader(copier Copier, parser pgutils.ConflictParser, dir string, log *slog.Logger) *Loader {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Loader{
		copier: copier,
		parser: parser,
		dir:    dir,
		log:    log.With(logger.Scope("bulkload")),
	}
}

// Dir is the directory that receives transfer artifacts.
func (l *Loader) Dir() string {
	return l.dir
}

// Load inserts rows, retrying after each unique violation with the
// conflicting row removed. Every successful return has committed its rows.
func Load[R any](ctx context.Context, l *Loader, spec Spec[R], rows []R) (*Result, error) {
	res := &Result{IDs: make([]int64, len(rows))}
	if len(rows) == 0 {
		return res, nil
	}

	start := time.Now()
	defer func() {
		transferDuration.WithLabelValues(spec.Table).Observe(time.Since(start).Seconds())
	}()

	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = spec.Key(r)
	}

	pending := make([]int, len(rows))
	for i := range pending {
		pending[i] = i
	}

	art, err := l.openArtifact()
	if err != nil {
		return nil, err
	}
	defer art.remove()

	for len(pending) > 0 {
		res.Attempts++
		transferAttempts.WithLabelValues(spec.Table).Inc()

		if err := writeArtifact(art, spec, rows, pending); err != nil {
			return nil, err
		}

		ids, copyErr := l.copier.CopyReturningIDs(ctx, spec.Table, spec.Columns, art.f)
		if copyErr == nil {
			if len(ids) != len(pending) {
				return nil, fmt.Errorf("%s: copied %d rows but recovered %d ids", spec.Table, len(pending), len(ids))
			}
			for i, idx := range pending {
				if res.IDs[idx] == 0 {
					res.IDs[idx] = ids[i]
				}
			}
			res.Inserted += len(ids)
			break
		}

		violation, err := l.parser.ParseUniqueViolation(copyErr)
		if errors.Is(err, pgutils.ErrNotUniqueViolation) {
			return nil, fmt.Errorf("copy into %s: %w", spec.Table, copyErr)
		}
		if err != nil {
			return nil, fmt.Errorf("copy into %s: parse conflict: %w", spec.Table, err)
		}
		transferConflicts.WithLabelValues(spec.Table).Inc()

		key, err := spec.ConflictKey(violation)
		if err != nil {
			return nil, fmt.Errorf("copy into %s: conflict key: %w", spec.Table, err)
		}

		pos := -1
		for i, idx := range pending {
			if keys[idx] == key {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("copy into %s: conflict on %s matches no pending row (%s)",
				spec.Table, violation.Constraint, key)
		}
		idx := pending[pos]
		pending = append(pending[:pos], pending[pos+1:]...)

		if spec.Resolve != nil {
			id, found, err := spec.Resolve(ctx, rows[idx])
			if err != nil {
				return nil, fmt.Errorf("resolve conflicting %s row: %w", spec.Table, err)
			}
			if found {
				res.IDs[idx] = id
				res.Resolved++
				continue
			}
		}

		res.Dropped++
		l.log.Warn("dropped conflicting row",
			slog.String("table", spec.Table),
			slog.String("constraint", violation.Constraint),
			slog.String("key", key),
			slog.Int("row", idx),
		)
	}

	rowsLoaded.WithLabelValues(spec.Table, "inserted").Add(float64(res.Inserted))
	rowsLoaded.WithLabelValues(spec.Table, "resolved").Add(float64(res.Resolved))
	rowsLoaded.WithLabelValues(spec.Table, "dropped").Add(float64(res.Dropped))

	l.log.Debug("load finished",
		slog.String("table", spec.Table),
		slog.Int("rows", len(rows)),
		slog.Int("inserted", res.Inserted),
		slog.Int("resolved", res.Resolved),
		slog.Int("dropped", res.Dropped),
		slog.Int("attempts", res.Attempts),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// artifact is the on-disk COPY payload of one load stage.
type artifact struct {
	f   *os.File
	log *slog.Logger
}

func (l *Loader) openArtifact() (*artifact, error) {
	name := fmt.Sprintf("bulkload-%s.copy", uuid.NewString())
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create transfer artifact: %w", err)
	}
	return &artifact{f: f, log: l.log}, nil
}

// writeArtifact replaces the artifact content with the pending rows and
// rewinds it for reading.
func writeArtifact[R any](a *artifact, spec Spec[R], rows []R, pending []int) error {
	if err := a.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate transfer artifact: %w", err)
	}
	if _, err := a.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind transfer artifact: %w", err)
	}

	w := bufio.NewWriter(a.f)
	for _, idx := range pending {
		values, err := spec.Encode(rows[idx])
		if err != nil {
			return fmt.Errorf("encode %s row %d: %w", spec.Table, idx, err)
		}
		if len(values) != len(spec.Columns) {
			return fmt.Errorf("encode %s row %d: %d values for %d columns", spec.Table, idx, len(values), len(spec.Columns))
		}
		if err := WriteRow(w, values); err != nil {
			return fmt.Errorf("write transfer artifact: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write transfer artifact: %w", err)
	}

	_, err := a.f.Seek(0, io.SeekStart)
	return err
}

func (a *artifact) remove() {
	name := a.f.Name()
	_ = a.f.Close()
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.Warn("remove transfer artifact", slog.String("path", name), logger.Error(err))
	}
}
