package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/hrm-import/modules/org/domain/aggregates/organization"
	"github.com/iota-uz/hrm-import/pkg/composables"
	"github.com/iota-uz/hrm-import/pkg/repo"
)

const (
	selectOrganizationKeysQuery = `SELECT unified_number, id FROM organizations`

	selectOrganizationIDQuery = `SELECT id FROM organizations WHERE unified_number = $1`

	selectOrganizationIDsQuery = `SELECT id FROM organizations WHERE unified_number = ANY($1) ORDER BY id`

	countOrganizationsQuery = `SELECT count(*)::bigint FROM organizations`

	insertOrganizationQuery = `
INSERT INTO organizations (
    id, name, unified_number, social_insurance_number, qiwa_subscription_number,
    commercial_registration_expiry, qiwa_subscription_expiry, muqeem_subscription_expiry,
    exemptions, organization_type, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	nextOrganizationBatchQuery = `SELECT id FROM organizations ORDER BY id LIMIT $1`

	deleteOrganizationsByIDsQuery = `DELETE FROM organizations WHERE id = ANY($1)`
)

type PgOrganizationRepository struct{}

func NewOrganizationRepository() organization.Repository {
	return &PgOrganizationRepository{}
}

func (g *PgOrganizationRepository) Keys(ctx context.Context) (map[int64]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, selectOrganizationKeysQuery)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to list organization keys")
	}
	defer rows.Close()

	keys := make(map[int64]uuid.UUID)
	for rows.Next() {
		var key int64
		var id uuid.UUID
		if err := rows.Scan(&key, &id); err != nil {
			return nil, gerrors.Wrap(err, "failed to scan organization key")
		}
		keys[key] = id
	}
	return keys, rows.Err()
}

func (g *PgOrganizationRepository) IDByUnifiedNumber(ctx context.Context, unifiedNumber int64) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	if err := tx.QueryRow(ctx, selectOrganizationIDQuery, unifiedNumber).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, organization.ErrNotFound
		}
		return uuid.Nil, gerrors.Wrap(err, "failed to get organization by unified number")
	}
	return id, nil
}

func (g *PgOrganizationRepository) IDsByUnifiedNumbers(ctx context.Context, unifiedNumbers []int64) ([]uuid.UUID, error) {
	if len(unifiedNumbers) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, selectOrganizationIDsQuery, unifiedNumbers)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to select organizations by unified number")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to scan organization ids")
	}
	return ids, nil
}

func (g *PgOrganizationRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRow(ctx, countOrganizationsQuery).Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "failed to count organizations")
	}
	return n, nil
}

func (g *PgOrganizationRepository) Create(ctx context.Context, data organization.Organization) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	id := data.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err = tx.Exec(ctx, insertOrganizationQuery,
		id,
		data.Name,
		data.UnifiedNumber,
		data.SocialInsuranceNumber,
		data.QiwaSubscriptionNumber,
		pgDate(data.CommercialRegistrationExpiry),
		pgDate(data.QiwaSubscriptionExpiry),
		pgDate(data.MuqeemSubscriptionExpiry),
		data.Exemptions,
		data.OrganizationType,
		data.Notes,
	)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return uuid.Nil, gerrors.Wrapf(repo.ErrDuplicateKey, "organization %d", data.UnifiedNumber)
		}
		return uuid.Nil, gerrors.Wrap(err, "failed to insert organization")
	}
	return id, nil
}

func (g *PgOrganizationRepository) Update(ctx context.Context, data organization.Organization) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	u := repo.NewUpdate("organizations").
		Set("name", data.Name).
		Set("unified_number", data.UnifiedNumber)
	repo.SetIfPresent(u, "social_insurance_number", data.SocialInsuranceNumber)
	repo.SetIfPresent(u, "qiwa_subscription_number", data.QiwaSubscriptionNumber)
	repo.SetIfPresent(u, "commercial_registration_expiry", data.CommercialRegistrationExpiry)
	repo.SetIfPresent(u, "qiwa_subscription_expiry", data.QiwaSubscriptionExpiry)
	repo.SetIfPresent(u, "muqeem_subscription_expiry", data.MuqeemSubscriptionExpiry)
	repo.SetIfPresent(u, "exemptions", data.Exemptions)
	repo.SetIfPresent(u, "organization_type", data.OrganizationType)
	repo.SetIfPresent(u, "notes", data.Notes)
	u.SetRaw("updated_at = now()")

	query, args := u.Where("id", data.ID)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return gerrors.Wrapf(repo.ErrDuplicateKey, "organization %d", data.UnifiedNumber)
		}
		return gerrors.Wrap(err, "failed to update organization")
	}
	if tag.RowsAffected() == 0 {
		return organization.ErrNotFound
	}
	return nil
}

func (g *PgOrganizationRepository) NextBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, nextOrganizationBatchQuery, limit)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to select organization batch")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to scan organization batch")
	}
	return ids, nil
}

func (g *PgOrganizationRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, deleteOrganizationsByIDsQuery, ids)
	if err != nil {
		return 0, gerrors.Wrap(err, "failed to delete organizations")
	}
	return tag.RowsAffected(), nil
}
