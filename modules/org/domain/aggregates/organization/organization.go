package organization

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("organization not found")

// Organization is keyed by its numeric unified number.
type Organization struct {
	ID            uuid.UUID
	Name          string
	UnifiedNumber int64

	SocialInsuranceNumber  *string
	QiwaSubscriptionNumber *string
	Exemptions             *string
	OrganizationType       *string
	Notes                  *string

	CommercialRegistrationExpiry *time.Time
	QiwaSubscriptionExpiry       *time.Time
	MuqeemSubscriptionExpiry     *time.Time
}

type Repository interface {
	Keys(ctx context.Context) (map[int64]uuid.UUID, error)
	IDByUnifiedNumber(ctx context.Context, unifiedNumber int64) (uuid.UUID, error)
	IDsByUnifiedNumbers(ctx context.Context, unifiedNumbers []int64) ([]uuid.UUID, error)
	Count(ctx context.Context) (int64, error)
	// Create returns repo.ErrDuplicateKey when the unified number is taken.
	Create(ctx context.Context, data Organization) (uuid.UUID, error)
	Update(ctx context.Context, data Organization) error
	NextBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
