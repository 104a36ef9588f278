package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/hrm-import/modules/hrm/domain/aggregates/employee"
	"github.com/iota-uz/hrm-import/pkg/composables"
	"github.com/iota-uz/hrm-import/pkg/repo"
)

const (
	selectEmployeeKeysQuery = `SELECT residence_number, id FROM employees`

	selectEmployeeIDByResidenceQuery = `SELECT id FROM employees WHERE residence_number = $1`

	countEmployeesQuery = `SELECT count(*)::bigint FROM employees`

	insertEmployeeQuery = `
INSERT INTO employees (
    id, name, residence_number, organization_id, project_id,
    profession, nationality, passport_number, phone, bank_account, salary, residence_image_url,
    birth_date, joining_date, residence_expiry, contract_expiry, ajeer_contract_expiry, health_insurance_expiry
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12, $13, $14, $15, $16, $17, $18)`

	nextEmployeeBatchQuery = `SELECT id FROM employees ORDER BY id LIMIT $1`

	deleteEmployeesByIDsQuery = `DELETE FROM employees WHERE id = ANY($1)`

	deleteEmployeesByResidenceQuery = `DELETE FROM employees WHERE residence_number = ANY($1)`

	clearAllOrganizationsQuery = `UPDATE employees SET organization_id = NULL, updated_at = now() WHERE organization_id IS NOT NULL`

	clearOrganizationsQuery = `UPDATE employees SET organization_id = NULL, updated_at = now() WHERE organization_id = ANY($1)`
)

type PgEmployeeRepository struct{}

func NewEmployeeRepository() employee.Repository {
	return &PgEmployeeRepository{}
}

func (g *PgEmployeeRepository) Keys(ctx context.Context) (map[string]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, selectEmployeeKeysQuery)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to list employee keys")
	}
	defer rows.Close()

	keys := make(map[string]uuid.UUID)
	for rows.Next() {
		var key string
		var id uuid.UUID
		if err := rows.Scan(&key, &id); err != nil {
			return nil, gerrors.Wrap(err, "failed to scan employee key")
		}
		keys[key] = id
	}
	return keys, rows.Err()
}

func (g *PgEmployeeRepository) IDByResidenceNumber(ctx context.Context, residenceNumber string) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	if err := tx.QueryRow(ctx, selectEmployeeIDByResidenceQuery, residenceNumber).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, employee.ErrNotFound
		}
		return uuid.Nil, gerrors.Wrap(err, "failed to get employee by residence number")
	}
	return id, nil
}

func (g *PgEmployeeRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRow(ctx, countEmployeesQuery).Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "failed to count employees")
	}
	return n, nil
}

func (g *PgEmployeeRepository) Create(ctx context.Context, data employee.Employee) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	id := data.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err = tx.Exec(ctx, insertEmployeeQuery,
		id,
		data.Name,
		data.ResidenceNumber,
		data.OrganizationID,
		data.ProjectID,
		data.Profession,
		data.Nationality,
		data.PassportNumber,
		data.Phone,
		data.BankAccount,
		salaryText(data.Salary),
		data.ResidenceImageURL,
		data.BirthDate,
		data.JoiningDate,
		data.ResidenceExpiry,
		data.ContractExpiry,
		data.AjeerContractExpiry,
		data.HealthInsuranceExpiry,
	)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return uuid.Nil, gerrors.Wrapf(repo.ErrDuplicateKey, "employee %s", data.ResidenceNumber)
		}
		return uuid.Nil, gerrors.Wrap(err, "failed to insert employee")
	}
	return id, nil
}

func (g *PgEmployeeRepository) Update(ctx context.Context, data employee.Employee) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	u := repo.NewUpdate("employees").
		Set("name", data.Name).
		Set("residence_number", data.ResidenceNumber).
		Set("organization_id", data.OrganizationID)
	repo.SetIfPresent(u, "project_id", data.ProjectID)
	repo.SetIfPresent(u, "profession", data.Profession)
	repo.SetIfPresent(u, "nationality", data.Nationality)
	repo.SetIfPresent(u, "passport_number", data.PassportNumber)
	repo.SetIfPresent(u, "phone", data.Phone)
	repo.SetIfPresent(u, "bank_account", data.BankAccount)
	repo.SetIfPresent(u, "salary", salaryText(data.Salary))
	repo.SetIfPresent(u, "residence_image_url", data.ResidenceImageURL)
	repo.SetIfPresent(u, "birth_date", data.BirthDate)
	repo.SetIfPresent(u, "joining_date", data.JoiningDate)
	repo.SetIfPresent(u, "residence_expiry", data.ResidenceExpiry)
	repo.SetIfPresent(u, "contract_expiry", data.ContractExpiry)
	repo.SetIfPresent(u, "ajeer_contract_expiry", data.AjeerContractExpiry)
	repo.SetIfPresent(u, "health_insurance_expiry", data.HealthInsuranceExpiry)
	u.SetRaw("updated_at = now()")

	query, args := u.Where("id", data.ID)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return gerrors.Wrapf(repo.ErrDuplicateKey, "employee %s", data.ResidenceNumber)
		}
		return gerrors.Wrap(err, "failed to update employee")
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrNotFound
	}
	return nil
}

func (g *PgEmployeeRepository) NextBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, nextEmployeeBatchQuery, limit)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to select employee batch")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to scan employee batch")
	}
	return ids, nil
}

func (g *PgEmployeeRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return g.exec(ctx, "failed to delete employees", deleteEmployeesByIDsQuery, ids)
}

func (g *PgEmployeeRepository) DeleteByResidenceNumbers(ctx context.Context, residenceNumbers []string) (int64, error) {
	if len(residenceNumbers) == 0 {
		return 0, nil
	}
	return g.exec(ctx, "failed to delete employees by residence number", deleteEmployeesByResidenceQuery, residenceNumbers)
}

func (g *PgEmployeeRepository) ClearOrganization(ctx context.Context, organizationIDs []uuid.UUID) (int64, error) {
	if organizationIDs == nil {
		return g.exec(ctx, "failed to detach employees", clearAllOrganizationsQuery)
	}
	if len(organizationIDs) == 0 {
		return 0, nil
	}
	return g.exec(ctx, "failed to detach employees", clearOrganizationsQuery, organizationIDs)
}

func (g *PgEmployeeRepository) exec(ctx context.Context, msg, query string, args ...any) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, gerrors.Wrap(err, msg)
	}
	return tag.RowsAffected(), nil
}

func salaryText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
