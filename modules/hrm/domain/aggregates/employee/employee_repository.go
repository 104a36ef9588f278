package employee

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("employee not found")

type Repository interface {
	// Keys maps every stored residence number to its employee id.
	Keys(ctx context.Context) (map[string]uuid.UUID, error)
	IDByResidenceNumber(ctx context.Context, residenceNumber string) (uuid.UUID, error)
	Count(ctx context.Context) (int64, error)
	// Create returns repo.ErrDuplicateKey when the residence number is taken.
	Create(ctx context.Context, data Employee) (uuid.UUID, error)
	Update(ctx context.Context, data Employee) error
	NextBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	DeleteByResidenceNumbers(ctx context.Context, residenceNumbers []string) (int64, error)
	// ClearOrganization detaches employees from the given organizations, or
	// from every organization when organizationIDs is nil.
	ClearOrganization(ctx context.Context, organizationIDs []uuid.UUID) (int64, error)
}
