package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes translated by the repositories.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	// CodeInvalidTextRepresentation is raised for a malformed literal,
	// e.g. a non-UUID string compared with a UUID column.
	CodeInvalidTextRepresentation = "22P02"
)

// PgCode returns the SQLSTATE carried by err, or "" when err does not come
// from Postgres.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
