package pgutils

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 23: integrity constraint violation
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeCheckViolation      = "23514"
)

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (23505).
func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// IsForeignKeyViolation checks if the error is a PostgreSQL foreign key violation (23503).
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, CodeForeignKeyViolation)
}

func IsNotNullViolation(err error) bool {
	return hasCode(err, CodeNotNullViolation)
}

func IsCheckViolation(err error) bool {
	return hasCode(err, CodeCheckViolation)
}

// hasCode prefers the structured SQLSTATE and falls back to the message for
// errors that went through database/sql and lost their type.
func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	msg := err.Error()
	return msg != "" && strings.Contains(msg, code)
}
