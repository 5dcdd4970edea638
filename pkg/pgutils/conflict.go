package pgutils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotUniqueViolation is returned by a ConflictParser for any other error.
var ErrNotUniqueViolation = errors.New("not a unique violation")

// UniqueViolation is the structured form of a 23505 error: the violated
// constraint plus the key columns and the conflicting values in column order.
type UniqueViolation struct {
	Constraint string
	Table      string
	Columns    []string
	Values     []string
}

// Value returns the conflicting value of a key column.
func (v *UniqueViolation) Value(column string) (string, bool) {
	for i, c := range v.Columns {
		if c == column {
			return v.Values[i], true
		}
	}
	return "", false
}

// ConflictParser extracts the conflicting key from a unique violation.
type ConflictParser interface {
	ParseUniqueViolation(err error) (*UniqueViolation, error)
}

// PgConflictParser reads *pgconn.PgError details as produced by PostgreSQL:
//
//	Key (type, point, route)=(STOP, 0101000020E6100000..., ) already exists.
type PgConflictParser struct{}

// Values are raw column text and may span lines.
var keyDetailRe = regexp.MustCompile(`(?s)^Key \((.+?)\)=\((.*)\) already exists\.?$`)

func (PgConflictParser) ParseUniqueViolation(err error) (*UniqueViolation, error) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return nil, ErrNotUniqueViolation
	}

	columns, values, perr := ParseKeyDetail(pgErr.Detail)
	if perr != nil {
		return nil, fmt.Errorf("constraint %s: %w", pgErr.ConstraintName, perr)
	}

	return &UniqueViolation{
		Constraint: pgErr.ConstraintName,
		Table:      pgErr.TableName,
		Columns:    columns,
		Values:     values,
	}, nil
}

// ParseKeyDetail splits a "Key (cols)=(vals) already exists." detail into
// columns and values. Values are split on ", "; when a value itself contains
// the separator the surplus parts are folded back into the last column.
func ParseKeyDetail(detail string) ([]string, []string, error) {
	m := keyDetailRe.FindStringSubmatch(strings.TrimSpace(detail))
	if m == nil {
		return nil, nil, fmt.Errorf("unrecognized key detail %q", detail)
	}

	columns := strings.Split(m[1], ", ")
	parts := strings.Split(m[2], ", ")
	if len(parts) < len(columns) {
		return nil, nil, fmt.Errorf("key detail has %d values for %d columns", len(parts), len(columns))
	}

	values := make([]string, len(columns))
	copy(values, parts[:len(columns)-1])
	values[len(columns)-1] = strings.Join(parts[len(columns)-1:], ", ")
	return columns, values, nil
}
