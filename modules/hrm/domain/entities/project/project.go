package project

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("project not found")

type Project struct {
	ID   uuid.UUID
	Name string
}

type Repository interface {
	IDByName(ctx context.Context, name string) (uuid.UUID, error)
	// Create returns repo.ErrDuplicateKey when the name is taken.
	Create(ctx context.Context, name string) (uuid.UUID, error)
}
