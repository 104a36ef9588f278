// Package services implements the spreadsheet import engine: column and row
// validation, duplicate and conflict planning, purge, upsert and rollback.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/hrm-import/modules/hrm/domain/aggregates/employee"
	"github.com/iota-uz/hrm-import/modules/hrm/domain/entities/project"
	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
	"github.com/iota-uz/hrm-import/modules/org/domain/aggregates/organization"
	"github.com/iota-uz/hrm-import/pkg/composables"
	"github.com/iota-uz/hrm-import/pkg/eventbus"
	"github.com/iota-uz/hrm-import/pkg/spreadsheet"
)

type Dependencies struct {
	Employees     employee.Repository
	Organizations organization.Repository
	Projects      project.Repository
	Publisher     eventbus.EventBusWithError
	// InTx runs fn atomically. Defaults to composables.InTx.
	InTx func(ctx context.Context, fn func(context.Context) error) error
}

type Engine struct {
	employees     employee.Repository
	organizations organization.Repository
	projects      project.Repository
	publisher     eventbus.EventBusWithError
	inTx          func(ctx context.Context, fn func(context.Context) error) error
	config        Config
}

func NewEngine(deps Dependencies, config Config) *Engine {
	inTx := deps.InTx
	if inTx == nil {
		inTx = composables.InTx
	}
	return &Engine{
		employees:     deps.Employees,
		organizations: deps.Organizations,
		projects:      deps.Projects,
		publisher:     deps.Publisher,
		inTx:          inTx,
		config:        config.withDefaults(),
	}
}

// ValidationReport is what a caller shows before starting an import.
type ValidationReport struct {
	SessionID uuid.UUID                 `json:"session_id"`
	Kind      session.Kind              `json:"kind"`
	Columns   ColumnReport              `json:"columns"`
	Rows      int                       `json:"rows"`
	Issues    []session.ValidationIssue `json:"issues"`
	Preview   []map[string]string       `json:"preview"`
	// BlockingRows counts targeted rows with at least one error.
	BlockingRows int `json:"blocking_rows"`
	Errors       int `json:"errors"`
	Warnings     int `json:"warnings"`

	Session *session.Session `json:"-"`
}

// Valid reports whether the columns matched and no targeted row is blocked.
func (r *ValidationReport) Valid() bool {
	return r.Columns.Valid && r.BlockingRows == 0
}

type ImportResult struct {
	SessionID        uuid.UUID                 `json:"session_id"`
	Kind             session.Kind              `json:"kind"`
	Total            int                       `json:"total"`
	Success          int                       `json:"success"`
	Failed           int                       `json:"failed"`
	Inserted         int                       `json:"inserted"`
	Updated          int                       `json:"updated"`
	Skipped          int                       `json:"skipped"`
	Purged           int64                     `json:"purged"`
	RolledBack       int64                     `json:"rolled_back"`
	Cancelled        bool                      `json:"cancelled"`
	DecisionRequired []int                     `json:"decision_required"`
	Issues           []session.ValidationIssue `json:"issues"`
}

// Validate reads the sheet into a new session. A header mismatch returns the
// report together with a *SchemaError and no session; no row is checked.
func (e *Engine) Validate(ctx context.Context, sheet spreadsheet.Sheet, kind session.Kind) (*ValidationReport, error) {
	if _, ok := schemas[kind]; !ok {
		return nil, fmt.Errorf("unknown import kind %q", kind)
	}

	header := sheet.Header()
	columns := ValidateColumns(header, kind)
	if !columns.Valid {
		logWithFields(ctx, logrus.InfoLevel, "import sheet rejected", logrus.Fields{
			"kind":    kind,
			"missing": columns.Missing,
			"extra":   columns.Extra,
		})
		return &ValidationReport{Kind: kind, Columns: columns, Issues: []session.ValidationIssue{}}, &SchemaError{Kind: kind, Report: columns}
	}

	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = NormalizeHeader(h)
	}
	var rows []session.Row
	for r := 2; r <= sheet.LastRow(); r++ {
		if sheet.Blank(r) {
			continue
		}
		values := make(map[string]string, len(normalized))
		for c, name := range normalized {
			if name == "" {
				continue
			}
			if _, seen := values[name]; seen {
				continue
			}
			values[name] = NormalizeCell(sheet.Cell(r, c+1))
		}
		rows = append(rows, session.Row{Number: r, Values: values})
	}

	sess := session.New(kind, normalized, rows)
	report, err := e.Revalidate(ctx, sess)
	if err != nil {
		return nil, err
	}
	logWithFields(ctx, logrus.InfoLevel, "import sheet validated", logrus.Fields{
		"session_id":    sess.ID,
		"kind":          kind,
		"rows":          len(rows),
		"blocking_rows": report.BlockingRows,
	})
	return report, nil
}

// Revalidate re-runs row and conflict checks against the current store and
// the session's decisions, replacing the session's issues.
func (e *Engine) Revalidate(ctx context.Context, sess *session.Session) (*ValidationReport, error) {
	lookups, err := e.loadLookups(ctx, sess.Kind)
	if err != nil {
		return nil, err
	}
	var issues []session.ValidationIssue
	for _, row := range sess.Rows {
		issues = append(issues, ValidateRow(row, sess.Kind, lookups)...)
	}
	issues = append(issues, ConflictIssues(sess.Kind, sess.Rows, issues, lookups.Existing, sess.Decisions())...)
	sess.SetIssues(issues)
	return e.Summarize(sess, lookups.Existing), nil
}

// Summarize recomputes the report for the session's current selection
// without touching the store. Duplicate warnings depend on the selection.
func (e *Engine) Summarize(sess *session.Session, existing map[string]uuid.UUID) *ValidationReport {
	plan := BuildPlan(PlanInput{
		Kind:      sess.Kind,
		Rows:      sess.Rows,
		Selection: sess.Selection(),
		Issues:    sess.Issues,
		Existing:  existing,
		Decisions: sess.Decisions(),
	})

	issues := append([]session.ValidationIssue(nil), sess.Issues...)
	for _, is := range plan.Issues {
		if is.Code == session.CodeDuplicate {
			issues = append(issues, is)
		}
	}
	sortIssues(issues)

	report := &ValidationReport{
		SessionID:    sess.ID,
		Kind:         sess.Kind,
		Columns:      ColumnReport{Valid: true, Missing: []string{}, Extra: []string{}},
		Rows:         len(sess.Rows),
		Issues:       issues,
		Preview:      []map[string]string{},
		BlockingRows: len(plan.Blocked),
		Session:      sess,
	}
	for _, is := range issues {
		if is.Blocking() {
			report.Errors++
		} else {
			report.Warnings++
		}
	}
	for i := 0; i < len(sess.Rows) && i < e.config.PreviewRows; i++ {
		report.Preview = append(report.Preview, sess.Rows[i].Values)
	}
	return report
}

// StartImport runs purge (optional), upsert and, on cancellation, rollback.
// It blocks until the run ends; call sess.Cancel from another goroutine to
// stop it between rows or purge batches.
func (e *Engine) StartImport(ctx context.Context, sess *session.Session, opts ImportOptions) (*ImportResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := sess.BeginRun(); err != nil {
		return nil, err
	}
	defer sess.EndRun()

	if err := applyOptions(sess, opts); err != nil {
		return nil, err
	}
	report := func(p session.Progress) {
		sess.SetProgress(p)
		if opts.Progress != nil {
			opts.Progress(p)
		}
		e.publish(ctx, ImportProgressedEvent{SessionID: sess.ID, Kind: sess.Kind, Progress: p})
	}

	lookups, err := e.loadLookups(ctx, sess.Kind)
	if err != nil {
		recordRun(sess.Kind, statusFailed)
		return nil, err
	}
	in := PlanInput{
		Kind:      sess.Kind,
		Rows:      sess.Rows,
		Selection: sess.Selection(),
		Issues:    sess.Issues,
		Existing:  lookups.Existing,
		Decisions: sess.Decisions(),
	}
	if opts.DeleteBeforeImport {
		in.Existing = nil
	}
	plan := BuildPlan(in)
	if len(plan.Targeted) == 0 {
		return nil, ErrNoTargetRows
	}
	if len(plan.Blocked) > 0 && !opts.AllowPartial {
		return nil, fmt.Errorf("%w: %d of %d rows", ErrBlockingIssues, len(plan.Blocked), len(plan.Targeted))
	}

	result := &ImportResult{SessionID: sess.ID, Kind: sess.Kind, Total: len(plan.Targeted)}
	e.publish(ctx, ImportStartedEvent{SessionID: sess.ID, Kind: sess.Kind, Targets: len(plan.Ready)})
	logWithFields(ctx, logrus.InfoLevel, "import started", logrus.Fields{
		"session_id": sess.ID,
		"kind":       sess.Kind,
		"targets":    len(plan.Targeted),
		"ready":      len(plan.Ready),
		"purge":      opts.DeleteBeforeImport,
	})

	if opts.DeleteBeforeImport {
		keys := make([]string, 0, len(plan.Ready))
		for _, i := range plan.Ready {
			keys = append(keys, NaturalKey(sess.Kind, sess.Rows[i]))
		}
		purged, err := e.purge(ctx, sess, opts.DeleteMode, keys, report)
		result.Purged = purged.Deleted
		if err != nil {
			recordRun(sess.Kind, statusFailed)
			return nil, err
		}
		if purged.Cancelled {
			return e.cancelled(ctx, sess, result, len(plan.Ready), 0, report), nil
		}
		if lookups, err = e.loadLookups(ctx, sess.Kind); err != nil {
			recordRun(sess.Kind, statusFailed)
			return nil, err
		}
		in.Existing = lookups.Existing
		plan = BuildPlan(in)
	}

	existing := make(map[string]uuid.UUID, len(lookups.Existing))
	for k, v := range lookups.Existing {
		existing[k] = v
	}
	up := e.upsert(ctx, sess, plan.Ready, existing, e.writer(sess.Kind, lookups), report)
	if up.Cancelled {
		return e.cancelled(ctx, sess, result, len(plan.Ready), up.Processed, report), nil
	}

	result.Inserted = up.Inserted
	result.Updated = up.Updated
	result.Success = up.Inserted + up.Updated
	result.Failed = up.Failed
	result.Skipped = plan.Skipped()
	result.DecisionRequired = rowNumbers(sess, plan.DecisionRequired)
	result.Issues = append(append([]session.ValidationIssue{}, plan.Issues...), up.Issues...)
	sortIssues(result.Issues)
	recordSkipped(sess.Kind, result.Skipped)
	recordRun(sess.Kind, statusCompleted)

	logWithFields(ctx, logrus.InfoLevel, "import finished", logrus.Fields{
		"session_id": sess.ID,
		"kind":       sess.Kind,
		"inserted":   result.Inserted,
		"updated":    result.Updated,
		"failed":     result.Failed,
		"skipped":    result.Skipped,
	})
	e.publish(ctx, ImportFinishedEvent{SessionID: sess.ID, Result: result})
	return result, nil
}

// Cancel stops the session's running import before its next row or batch.
func (e *Engine) Cancel(sess *session.Session) {
	sess.Cancel()
}

func (e *Engine) cancelled(ctx context.Context, sess *session.Session, result *ImportResult, ready, processed int, report ProgressFunc) *ImportResult {
	logWithFields(ctx, logrus.InfoLevel, "import cancelled", logrus.Fields{
		"session_id": sess.ID,
		"kind":       sess.Kind,
		"processed":  processed,
	})
	e.publish(ctx, ImportCancelledEvent{SessionID: sess.ID, Kind: sess.Kind, Processed: processed})

	rb := e.rollback(ctx, sess, report)
	result.Cancelled = true
	result.Success = 0
	result.Failed = ready - processed
	result.RolledBack = rb.Deleted
	result.Issues = []session.ValidationIssue{}
	recordRun(sess.Kind, statusCancelled)
	e.publish(ctx, ImportFinishedEvent{SessionID: sess.ID, Result: result})
	return result
}

func (e *Engine) writer(kind session.Kind, lookups Lookups) rowWriter {
	if kind == session.KindOrganizations {
		return &organizationWriter{organizations: e.organizations}
	}
	return newEmployeeWriter(e.employees, e.projects, lookups.Organizations)
}

func (e *Engine) loadLookups(ctx context.Context, kind session.Kind) (Lookups, error) {
	orgKeys, err := e.organizations.Keys(ctx)
	if err != nil {
		return Lookups{}, fmt.Errorf("load organization keys: %w", err)
	}
	organizations := make(map[string]uuid.UUID, len(orgKeys))
	for n, id := range orgKeys {
		organizations[strconv.FormatInt(n, 10)] = id
	}

	switch kind {
	case session.KindOrganizations:
		return Lookups{Existing: organizations, Organizations: organizations}, nil
	case session.KindEmployees:
		keys, err := e.employees.Keys(ctx)
		if err != nil {
			return Lookups{}, fmt.Errorf("load employee keys: %w", err)
		}
		return Lookups{Existing: keys, Organizations: organizations}, nil
	default:
		return Lookups{}, fmt.Errorf("unknown import kind %q", kind)
	}
}

// publish delivers event to subscribers. Handler failures are logged and
// never fail the import.
func (e *Engine) publish(ctx context.Context, event any) {
	if e.publisher == nil {
		return
	}
	err := e.publisher.PublishE(event)
	if err == nil || errors.Is(err, eventbus.ErrNoSubscribers) {
		return
	}
	logWithFields(ctx, logrus.WarnLevel, "event handler failed", logrus.Fields{
		"event": fmt.Sprintf("%T", event),
		"error": err,
	})
}

func applyOptions(sess *session.Session, opts ImportOptions) error {
	indices := make([]int, 0, len(opts.SelectedRows))
	for _, n := range opts.SelectedRows {
		i, err := sess.IndexOf(n)
		if err != nil {
			return err
		}
		indices = append(indices, i)
	}
	if err := sess.Select(indices...); err != nil {
		return err
	}
	for n, d := range opts.ConflictDecisions {
		i, err := sess.IndexOf(n)
		if err != nil {
			return err
		}
		if err := sess.Decide(i, d); err != nil {
			return err
		}
	}
	return nil
}

func rowNumbers(sess *session.Session, indices []int) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		out = append(out, sess.Rows[i].Number)
	}
	return out
}

func sortIssues(issues []session.ValidationIssue) {
	sort.SliceStable(issues, func(a, b int) bool {
		return issues[a].Row < issues[b].Row
	})
}
