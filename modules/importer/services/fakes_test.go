package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/hrm-import/modules/hrm/domain/aggregates/employee"
	"github.com/iota-uz/hrm-import/modules/hrm/domain/entities/project"
	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
	"github.com/iota-uz/hrm-import/modules/org/domain/aggregates/organization"
	"github.com/iota-uz/hrm-import/pkg/repo"
)

var errStoreDown = errors.New("store unavailable")

type memEmployees struct {
	mu      sync.Mutex
	records map[uuid.UUID]employee.Employee

	creates      int
	updates      int
	batchDeletes int
	// afterCreate runs after every successful Create with the running count.
	afterCreate func(n int)
	failCreate  map[string]error
	failDelete  error
	// racing residence numbers are inserted by "another writer" just before our Create.
	racing map[string]bool
}

func newMemEmployees() *memEmployees {
	return &memEmployees{records: make(map[uuid.UUID]employee.Employee)}
}

func (m *memEmployees) seed(e employee.Employee) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.records[e.ID] = e
	return e.ID
}

func (m *memEmployees) byResidence(rn string) (employee.Employee, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.records {
		if e.ResidenceNumber == rn {
			return e, true
		}
	}
	return employee.Employee{}, false
}

func (m *memEmployees) Keys(ctx context.Context) (map[string]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uuid.UUID, len(m.records))
	for id, e := range m.records {
		out[e.ResidenceNumber] = id
	}
	return out, nil
}

func (m *memEmployees) IDByResidenceNumber(ctx context.Context, rn string) (uuid.UUID, error) {
	if e, ok := m.byResidence(rn); ok {
		return e.ID, nil
	}
	return uuid.Nil, employee.ErrNotFound
}

func (m *memEmployees) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memEmployees) Create(ctx context.Context, data employee.Employee) (uuid.UUID, error) {
	if err := m.failCreate[data.ResidenceNumber]; err != nil {
		return uuid.Nil, err
	}
	if m.racing[data.ResidenceNumber] {
		delete(m.racing, data.ResidenceNumber)
		m.seed(employee.Employee{Name: "other writer", ResidenceNumber: data.ResidenceNumber})
	}
	if _, exists := m.byResidence(data.ResidenceNumber); exists {
		return uuid.Nil, gerrors.Wrapf(repo.ErrDuplicateKey, "employee %s", data.ResidenceNumber)
	}
	data.ID = uuid.New()
	m.seed(data)

	m.mu.Lock()
	m.creates++
	n := m.creates
	m.mu.Unlock()
	if m.afterCreate != nil {
		m.afterCreate(n)
	}
	return data.ID, nil
}

func (m *memEmployees) Update(ctx context.Context, data employee.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[data.ID]
	if !ok {
		return employee.ErrNotFound
	}
	cur.Name = data.Name
	cur.ResidenceNumber = data.ResidenceNumber
	cur.OrganizationID = data.OrganizationID
	mergeIf(&cur.ProjectID, data.ProjectID)
	mergeIf(&cur.Profession, data.Profession)
	mergeIf(&cur.Nationality, data.Nationality)
	mergeIf(&cur.PassportNumber, data.PassportNumber)
	mergeIf(&cur.Phone, data.Phone)
	mergeIf(&cur.BankAccount, data.BankAccount)
	mergeIf(&cur.ResidenceImageURL, data.ResidenceImageURL)
	mergeIf(&cur.Salary, data.Salary)
	mergeIf(&cur.BirthDate, data.BirthDate)
	mergeIf(&cur.JoiningDate, data.JoiningDate)
	mergeIf(&cur.ResidenceExpiry, data.ResidenceExpiry)
	mergeIf(&cur.ContractExpiry, data.ContractExpiry)
	mergeIf(&cur.AjeerContractExpiry, data.AjeerContractExpiry)
	mergeIf(&cur.HealthInsuranceExpiry, data.HealthInsuranceExpiry)
	m.records[data.ID] = cur
	m.updates++
	return nil
}

func (m *memEmployees) NextBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return firstIDs(m.records, limit), nil
}

func (m *memEmployees) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if m.failDelete != nil {
		return 0, m.failDelete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchDeletes++
	var n int64
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *memEmployees) DeleteByResidenceNumbers(ctx context.Context, rns []string) (int64, error) {
	if m.failDelete != nil {
		return 0, m.failDelete
	}
	want := make(map[string]bool, len(rns))
	for _, rn := range rns {
		want[rn] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchDeletes++
	var n int64
	for id, e := range m.records {
		if want[e.ResidenceNumber] {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *memEmployees) ClearOrganization(ctx context.Context, orgIDs []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(orgIDs))
	for _, id := range orgIDs {
		want[id] = true
	}
	var n int64
	for id, e := range m.records {
		if e.OrganizationID == nil {
			continue
		}
		if orgIDs == nil || want[*e.OrganizationID] {
			e.OrganizationID = nil
			m.records[id] = e
			n++
		}
	}
	return n, nil
}

type memOrganizations struct {
	mu      sync.Mutex
	records map[uuid.UUID]organization.Organization

	batchDeletes int
	failDelete   error
	failKeys     error
	// beforeDelete runs between the batch select and the delete, like a
	// concurrent writer.
	beforeDelete func(ids []uuid.UUID)
	// ignoreDeletes makes every delete report zero rows and keep the records.
	ignoreDeletes bool
	// employees refuse deletion of referenced organizations, like the foreign key.
	employees *memEmployees
}

func newMemOrganizations(employees *memEmployees) *memOrganizations {
	return &memOrganizations{records: make(map[uuid.UUID]organization.Organization), employees: employees}
}

func (m *memOrganizations) seed(o organization.Organization) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.records[o.ID] = o
	return o.ID
}

func (m *memOrganizations) Keys(ctx context.Context) (map[int64]uuid.UUID, error) {
	if m.failKeys != nil {
		return nil, m.failKeys
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]uuid.UUID, len(m.records))
	for id, o := range m.records {
		out[o.UnifiedNumber] = id
	}
	return out, nil
}

func (m *memOrganizations) IDByUnifiedNumber(ctx context.Context, n int64) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range m.records {
		if o.UnifiedNumber == n {
			return id, nil
		}
	}
	return uuid.Nil, organization.ErrNotFound
}

func (m *memOrganizations) IDsByUnifiedNumbers(ctx context.Context, ns []int64) ([]uuid.UUID, error) {
	want := make(map[int64]bool, len(ns))
	for _, n := range ns {
		want[n] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for id, o := range m.records {
		if want[o.UnifiedNumber] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memOrganizations) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memOrganizations) Create(ctx context.Context, data organization.Organization) (uuid.UUID, error) {
	if _, err := m.IDByUnifiedNumber(ctx, data.UnifiedNumber); err == nil {
		return uuid.Nil, gerrors.Wrapf(repo.ErrDuplicateKey, "organization %d", data.UnifiedNumber)
	}
	data.ID = uuid.New()
	return m.seed(data), nil
}

func (m *memOrganizations) Update(ctx context.Context, data organization.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[data.ID]
	if !ok {
		return organization.ErrNotFound
	}
	cur.Name = data.Name
	cur.UnifiedNumber = data.UnifiedNumber
	mergeIf(&cur.SocialInsuranceNumber, data.SocialInsuranceNumber)
	mergeIf(&cur.QiwaSubscriptionNumber, data.QiwaSubscriptionNumber)
	mergeIf(&cur.Exemptions, data.Exemptions)
	mergeIf(&cur.OrganizationType, data.OrganizationType)
	mergeIf(&cur.Notes, data.Notes)
	mergeIf(&cur.CommercialRegistrationExpiry, data.CommercialRegistrationExpiry)
	mergeIf(&cur.QiwaSubscriptionExpiry, data.QiwaSubscriptionExpiry)
	mergeIf(&cur.MuqeemSubscriptionExpiry, data.MuqeemSubscriptionExpiry)
	m.records[data.ID] = cur
	return nil
}

func (m *memOrganizations) NextBatchIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return firstIDs(m.records, limit), nil
}

func (m *memOrganizations) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if m.failDelete != nil {
		return 0, m.failDelete
	}
	if m.beforeDelete != nil {
		m.beforeDelete(ids)
	}
	if m.ignoreDeletes {
		return 0, nil
	}
	if m.employees != nil {
		refs := m.employees.referenced()
		for _, id := range ids {
			if refs[id] {
				return 0, errors.New("organization still referenced by employees")
			}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchDeletes++
	var n int64
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// removeExternally deletes records without counting a batch.
func (m *memOrganizations) removeExternally(ids []uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
}

func (m *memEmployees) referenced() map[uuid.UUID]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, e := range m.records {
		if e.OrganizationID != nil {
			out[*e.OrganizationID] = true
		}
	}
	return out
}

type memProjects struct {
	mu      sync.Mutex
	byName  map[string]uuid.UUID
	creates int
	// racing names are created by "another writer" just before our Create.
	racing map[string]bool
}

func newMemProjects() *memProjects {
	return &memProjects{byName: make(map[string]uuid.UUID)}
}

func (m *memProjects) IDByName(ctx context.Context, name string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.racing[name] {
		return uuid.Nil, project.ErrNotFound
	}
	if id, ok := m.byName[name]; ok {
		return id, nil
	}
	return uuid.Nil, project.ErrNotFound
}

func (m *memProjects) Create(ctx context.Context, name string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.racing[name] {
		delete(m.racing, name)
		m.byName[name] = uuid.New()
	}
	if _, ok := m.byName[name]; ok {
		return uuid.Nil, gerrors.Wrapf(repo.ErrDuplicateKey, "project %q", name)
	}
	id := uuid.New()
	m.byName[name] = id
	m.creates++
	return id, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *recordingPublisher) Publish(args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, args...)
}
func (p *recordingPublisher) PublishE(args ...any) error {
	p.Publish(args...)
	return nil
}
func (p *recordingPublisher) Subscribe(handler interface{})   {}
func (p *recordingPublisher) Unsubscribe(handler interface{}) {}
func (p *recordingPublisher) Clear()                          {}
func (p *recordingPublisher) SubscribersCount() int           { return 0 }

func (p *recordingPublisher) count(match func(any) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if match(e) {
			n++
		}
	}
	return n
}

type fixture struct {
	employees     *memEmployees
	organizations *memOrganizations
	projects      *memProjects
	publisher     *recordingPublisher
	engine        *Engine
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		employees: newMemEmployees(),
		projects:  newMemProjects(),
		publisher: &recordingPublisher{},
	}
	f.organizations = newMemOrganizations(f.employees)
	f.engine = NewEngine(Dependencies{
		Employees:     f.employees,
		Organizations: f.organizations,
		Projects:      f.projects,
		Publisher:     f.publisher,
		InTx: func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	}, cfg)
	return f
}

func mergeIf[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func firstIDs[T any](records map[uuid.UUID]T, limit int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// row builds a session row; values alternate column, value.
func row(number int, kv ...string) session.Row {
	values := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return session.Row{Number: number, Values: values}
}
