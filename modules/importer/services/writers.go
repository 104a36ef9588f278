package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/hrm-import/modules/hrm/domain/aggregates/employee"
	"github.com/iota-uz/hrm-import/modules/hrm/domain/entities/project"
	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
	"github.com/iota-uz/hrm-import/modules/org/domain/aggregates/organization"
	"github.com/iota-uz/hrm-import/pkg/repo"
)

type employeeWriter struct {
	employees     employee.Repository
	projects      project.Repository
	organizations map[string]uuid.UUID
	projectIDs    map[string]uuid.UUID
}

func newEmployeeWriter(employees employee.Repository, projects project.Repository, organizations map[string]uuid.UUID) *employeeWriter {
	return &employeeWriter{
		employees:     employees,
		projects:      projects,
		organizations: organizations,
		projectIDs:    make(map[string]uuid.UUID),
	}
}

func (w *employeeWriter) collection() session.Collection {
	return session.CollectionEmployees
}

func (w *employeeWriter) insert(ctx context.Context, row session.Row) InsertOutcome {
	data, err := w.build(ctx, row)
	if err != nil {
		return Failed(err)
	}
	id, err := w.employees.Create(ctx, data)
	if err == nil {
		return Created(id)
	}
	if !errors.Is(err, repo.ErrDuplicateKey) {
		return Failed(err)
	}
	id, lookupErr := w.employees.IDByResidenceNumber(ctx, data.ResidenceNumber)
	if lookupErr != nil {
		return Failed(fmt.Errorf("%w; refetch: %w", err, lookupErr))
	}
	return AlreadyExists(id)
}

func (w *employeeWriter) update(ctx context.Context, id uuid.UUID, row session.Row) error {
	data, err := w.build(ctx, row)
	if err != nil {
		return err
	}
	data.ID = id
	return w.employees.Update(ctx, data)
}

func (w *employeeWriter) build(ctx context.Context, row session.Row) (employee.Employee, error) {
	data := employee.Employee{
		Name:              strings.TrimSpace(row.Get(ColEmployeeName)),
		ResidenceNumber:   NaturalKey(session.KindEmployees, row),
		Profession:        optionalText(row.Get(ColProfession)),
		Nationality:       optionalText(row.Get(ColNationality)),
		PassportNumber:    optionalText(row.Get(ColPassportNumber)),
		Phone:             optionalText(stripSpaces(row.Get(ColPhone))),
		BankAccount:       optionalText(row.Get(ColBankAccount)),
		ResidenceImageURL: optionalText(row.Get(ColResidenceImageURL)),

		BirthDate:             optionalDate(row.Get(ColBirthDate)),
		JoiningDate:           optionalDate(row.Get(ColJoiningDate)),
		ResidenceExpiry:       optionalDate(row.Get(ColResidenceExpiry)),
		ContractExpiry:        optionalDate(row.Get(ColContractExpiry)),
		AjeerContractExpiry:   optionalDate(row.Get(ColAjeerContractExpiry)),
		HealthInsuranceExpiry: optionalDate(row.Get(ColHealthInsuranceExpiry)),
	}
	if raw := row.Get(ColSalary); raw != "" {
		if d, ok := parseSalary(raw); ok {
			data.Salary = &d
		}
	}

	key, _ := CanonicalNumber(row.Get(ColUnifiedNumber))
	orgID, ok := w.organizations[key]
	if !ok {
		return data, fmt.Errorf("no organization with unified number %q", row.Get(ColUnifiedNumber))
	}
	data.OrganizationID = &orgID

	if name := strings.TrimSpace(row.Get(ColProject)); name != "" {
		id, err := w.projectID(ctx, name)
		if err != nil {
			return data, fmt.Errorf("project %q: %w", name, err)
		}
		data.ProjectID = &id
	}
	return data, nil
}

// projectID resolves a project by name, creating it on first use. A create
// that loses a race re-reads the winner.
func (w *employeeWriter) projectID(ctx context.Context, name string) (uuid.UUID, error) {
	if id, ok := w.projectIDs[name]; ok {
		return id, nil
	}
	id, err := w.projects.IDByName(ctx, name)
	if errors.Is(err, project.ErrNotFound) {
		id, err = w.projects.Create(ctx, name)
		if errors.Is(err, repo.ErrDuplicateKey) {
			id, err = w.projects.IDByName(ctx, name)
		}
	}
	if err != nil {
		return uuid.Nil, err
	}
	w.projectIDs[name] = id
	return id, nil
}

type organizationWriter struct {
	organizations organization.Repository
}

func (w *organizationWriter) collection() session.Collection {
	return session.CollectionOrganizations
}

func (w *organizationWriter) insert(ctx context.Context, row session.Row) InsertOutcome {
	data, err := buildOrganization(row)
	if err != nil {
		return Failed(err)
	}
	id, err := w.organizations.Create(ctx, data)
	if err == nil {
		return Created(id)
	}
	if !errors.Is(err, repo.ErrDuplicateKey) {
		return Failed(err)
	}
	id, lookupErr := w.organizations.IDByUnifiedNumber(ctx, data.UnifiedNumber)
	if lookupErr != nil {
		return Failed(fmt.Errorf("%w; refetch: %w", err, lookupErr))
	}
	return AlreadyExists(id)
}

func (w *organizationWriter) update(ctx context.Context, id uuid.UUID, row session.Row) error {
	data, err := buildOrganization(row)
	if err != nil {
		return err
	}
	data.ID = id
	return w.organizations.Update(ctx, data)
}

func buildOrganization(row session.Row) (organization.Organization, error) {
	key := NaturalKey(session.KindOrganizations, row)
	number, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return organization.Organization{}, fmt.Errorf("unified number %q must be numeric", row.Get(ColUnifiedNumber))
	}
	return organization.Organization{
		Name:                         strings.TrimSpace(row.Get(ColOrganizationName)),
		UnifiedNumber:                number,
		SocialInsuranceNumber:        optionalText(row.Get(ColSocialInsuranceNumber)),
		QiwaSubscriptionNumber:       optionalText(row.Get(ColQiwaSubscriptionNumber)),
		Exemptions:                   optionalText(row.Get(ColExemptions)),
		OrganizationType:             optionalText(row.Get(ColOrganizationType)),
		Notes:                        optionalText(row.Get(ColNotes)),
		CommercialRegistrationExpiry: optionalDate(row.Get(ColCommercialRegistrationExpiry)),
		QiwaSubscriptionExpiry:       optionalDate(row.Get(ColQiwaSubscriptionExpiry)),
		MuqeemSubscriptionExpiry:     optionalDate(row.Get(ColMuqeemSubscriptionExpiry)),
	}, nil
}

func parseUnifiedNumbers(keys []string) ([]int64, error) {
	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		n, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unified number %q must be numeric", k)
		}
		out = append(out, n)
	}
	return out, nil
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}
