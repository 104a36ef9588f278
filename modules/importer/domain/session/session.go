// Package session holds the state of a single spreadsheet import attempt.
package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

type Kind string

const (
	KindEmployees     Kind = "employees"
	KindOrganizations Kind = "organizations"
)

func ParseKind(v string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(v))) {
	case KindEmployees:
		return KindEmployees, nil
	case KindOrganizations:
		return KindOrganizations, nil
	default:
		return "", fmt.Errorf("unknown import kind %q (expected employees|organizations)", v)
	}
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type IssueCode string

const (
	CodeRequired         IssueCode = "required"
	CodeFormat           IssueCode = "format"
	CodeReference        IssueCode = "reference"
	CodeDate             IssueCode = "date"
	CodeDuplicate        IssueCode = "duplicate"
	CodeConflict         IssueCode = "conflict"
	CodeDecisionRequired IssueCode = "decision_required"
	CodeStore            IssueCode = "store"
)

// ValidationIssue is a single finding about one spreadsheet row.
// Row is the 1-based spreadsheet row; the header is row 1.
type ValidationIssue struct {
	Row      int       `json:"row"`
	Field    string    `json:"field"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Code     IssueCode `json:"code,omitempty"`
}

func (i ValidationIssue) Blocking() bool {
	return i.Severity == SeverityError
}

type Decision string

const (
	DecisionKeep    Decision = "keep"
	DecisionReplace Decision = "replace"
)

func ParseDecision(v string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(v))) {
	case DecisionKeep:
		return DecisionKeep, nil
	case DecisionReplace:
		return DecisionReplace, nil
	default:
		return "", fmt.Errorf("unknown conflict decision %q (expected keep|replace)", v)
	}
}

// Row is one normalized spreadsheet row. Values are keyed by normalized header.
type Row struct {
	Number int
	Values map[string]string
}

func (r Row) Get(column string) string {
	return r.Values[column]
}

type Phase string

const (
	PhasePurge    Phase = "purge"
	PhaseUpsert   Phase = "upsert"
	PhaseRollback Phase = "rollback"
)

type Progress struct {
	Phase   Phase `json:"phase"`
	Current int   `json:"current"`
	Total   int   `json:"total"`
}

type Collection string

const (
	CollectionEmployees     Collection = "employees"
	CollectionOrganizations Collection = "organizations"
)

type CreatedIDs struct {
	Employees     []uuid.UUID `json:"employees"`
	Organizations []uuid.UUID `json:"organizations"`
}

func (c CreatedIDs) Len() int {
	return len(c.Employees) + len(c.Organizations)
}

var (
	ErrImportInProgress = errors.New("an import is already running for this session")
	ErrUnknownRow       = errors.New("row is not part of this session")
)

// Session is owned by one in-flight import. Only the cancellation flag and
// the progress counters may be touched from another goroutine while a run is
// active.
type Session struct {
	ID     uuid.UUID
	Kind   Kind
	Header []string
	Rows   []Row
	Issues []ValidationIssue

	selected  map[int]struct{}
	decisions map[int]Decision
	byNumber  map[int]int
	created   CreatedIDs

	cancelled atomic.Bool
	running   atomic.Bool
	phase     atomic.Value
	current   atomic.Int64
	total     atomic.Int64
}

func New(kind Kind, header []string, rows []Row) *Session {
	s := &Session{
		ID:        uuid.New(),
		Kind:      kind,
		Header:    header,
		Rows:      rows,
		selected:  make(map[int]struct{}),
		decisions: make(map[int]Decision),
		byNumber:  make(map[int]int, len(rows)),
	}
	for i, r := range rows {
		s.byNumber[r.Number] = i
	}
	return s
}

// IndexOf maps a spreadsheet row number to a row index.
func (s *Session) IndexOf(rowNumber int) (int, error) {
	i, ok := s.byNumber[rowNumber]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownRow, rowNumber)
	}
	return i, nil
}

func (s *Session) SetIssues(issues []ValidationIssue) {
	s.Issues = issues
}

// Select replaces the selection. An empty selection targets every row.
func (s *Session) Select(indices ...int) error {
	next := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(s.Rows) {
			return fmt.Errorf("%w: index %d", ErrUnknownRow, i)
		}
		next[i] = struct{}{}
	}
	s.selected = next
	return nil
}

func (s *Session) Selection() []int {
	out := make([]int, 0, len(s.selected))
	for i := range s.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Targeted returns the selected row indices, or every index when nothing is selected.
func (s *Session) Targeted() []int {
	return TargetIndices(len(s.Rows), s.Selection())
}

func TargetIndices(rowCount int, selection []int) []int {
	if len(selection) == 0 {
		out := make([]int, rowCount)
		for i := range out {
			out[i] = i
		}
		return out
	}
	seen := make(map[int]struct{}, len(selection))
	out := make([]int, 0, len(selection))
	for _, i := range selection {
		if i < 0 || i >= rowCount {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (s *Session) Decide(index int, d Decision) error {
	if index < 0 || index >= len(s.Rows) {
		return fmt.Errorf("%w: index %d", ErrUnknownRow, index)
	}
	s.decisions[index] = d
	return nil
}

func (s *Session) Decisions() map[int]Decision {
	out := make(map[int]Decision, len(s.decisions))
	for k, v := range s.decisions {
		out[k] = v
	}
	return out
}

// Cancel asks the running import to stop before its next row or purge batch.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// BeginRun marks the session busy and clears the ids recorded by a previous run.
func (s *Session) BeginRun() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrImportInProgress
	}
	s.created = CreatedIDs{}
	s.SetProgress(Progress{})
	return nil
}

func (s *Session) EndRun() {
	s.running.Store(false)
}

func (s *Session) Running() bool {
	return s.running.Load()
}

func (s *Session) RecordCreated(c Collection, id uuid.UUID) {
	switch c {
	case CollectionEmployees:
		s.created.Employees = append(s.created.Employees, id)
	case CollectionOrganizations:
		s.created.Organizations = append(s.created.Organizations, id)
	}
}

// Created returns the ids inserted by the current run. Read it from the
// goroutine running the import, or after the run has returned.
func (s *Session) Created() CreatedIDs {
	return CreatedIDs{
		Employees:     append([]uuid.UUID(nil), s.created.Employees...),
		Organizations: append([]uuid.UUID(nil), s.created.Organizations...),
	}
}

func (s *Session) SetProgress(p Progress) {
	s.phase.Store(p.Phase)
	s.total.Store(int64(p.Total))
	s.current.Store(int64(p.Current))
}

// Progress is safe to call while a run is active.
func (s *Session) Progress() Progress {
	phase, _ := s.phase.Load().(Phase)
	return Progress{
		Phase:   phase,
		Current: int(s.current.Load()),
		Total:   int(s.total.Load()),
	}
}
