package dbx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: errors.New("boom"), want: ""},
		{name: "pg", err: &pgconn.PgError{Code: CodeUniqueViolation}, want: "23505"},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeInvalidTextRepresentation}), want: "22P02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PgCode(tt.err))
		})
	}
}
