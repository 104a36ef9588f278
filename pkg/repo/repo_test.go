package repo_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/hrm-import/pkg/repo"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "employees_residence_number_key"}
	assert.True(t, repo.IsUniqueViolation(dup))
	assert.True(t, repo.IsUniqueViolation(fmt.Errorf("insert: %w", dup)))
	assert.False(t, repo.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, repo.IsUniqueViolation(errors.New("boom")))
	assert.False(t, repo.IsUniqueViolation(nil))
}
