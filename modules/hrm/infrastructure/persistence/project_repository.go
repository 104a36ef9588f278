package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/hrm-import/modules/hrm/domain/entities/project"
	"github.com/iota-uz/hrm-import/pkg/composables"
	"github.com/iota-uz/hrm-import/pkg/repo"
)

const (
	selectProjectByNameQuery = `SELECT id FROM projects WHERE name = $1`
	insertProjectQuery       = `INSERT INTO projects (id, name) VALUES ($1, $2)`
)

type PgProjectRepository struct{}

func NewProjectRepository() project.Repository {
	return &PgProjectRepository{}
}

func (g *PgProjectRepository) IDByName(ctx context.Context, name string) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	if err := tx.QueryRow(ctx, selectProjectByNameQuery, name).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, project.ErrNotFound
		}
		return uuid.Nil, gerrors.Wrap(err, "failed to get project by name")
	}
	return id, nil
}

func (g *PgProjectRepository) Create(ctx context.Context, name string) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	if _, err := tx.Exec(ctx, insertProjectQuery, id, name); err != nil {
		if repo.IsUniqueViolation(err) {
			return uuid.Nil, gerrors.Wrapf(repo.ErrDuplicateKey, "project %q", name)
		}
		return uuid.Nil, gerrors.Wrap(err, "failed to insert project")
	}
	return id, nil
}
