package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/hrm-import/modules/org/domain/aggregates/organization"
	"github.com/iota-uz/hrm-import/modules/org/infrastructure/persistence"
	"github.com/iota-uz/hrm-import/pkg/composables"
	"github.com/iota-uz/hrm-import/pkg/itf"
	"github.com/iota-uz/hrm-import/pkg/repo"
)

func TestOrganizationRepository_Lifecycle(t *testing.T) {
	dm := itf.NewDatabaseManager(t)
	ctx := composables.WithPool(context.Background(), dm.Pool())
	r := persistence.NewOrganizationRepository()

	notes := "first"
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id, err := r.Create(ctx, organization.Organization{
		Name:                         "Acme",
		UnifiedNumber:                7001234567,
		Notes:                        &notes,
		CommercialRegistrationExpiry: &expiry,
	})
	require.NoError(t, err)

	_, err = r.Create(ctx, organization.Organization{Name: "Other", UnifiedNumber: 7001234567})
	require.ErrorIs(t, err, repo.ErrDuplicateKey)

	keys, err := r.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]uuid.UUID{7001234567: id}, keys)

	require.NoError(t, r.Update(ctx, organization.Organization{ID: id, Name: "Acme Ltd", UnifiedNumber: 7001234567}))
	var name, storedNotes string
	require.NoError(t, dm.Pool().QueryRow(ctx, "SELECT name, notes FROM organizations WHERE id = $1", id).Scan(&name, &storedNotes))
	assert.Equal(t, "Acme Ltd", name)
	assert.Equal(t, "first", storedNotes)

	got, err := r.IDByUnifiedNumber(ctx, 7001234567)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	_, err = r.IDByUnifiedNumber(ctx, 1)
	require.ErrorIs(t, err, organization.ErrNotFound)

	ids, err := r.IDsByUnifiedNumbers(ctx, []int64{7001234567, 42})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)

	batch, err := r.NextBatchIDs(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, batch)

	deleted, err := r.DeleteByIDs(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
