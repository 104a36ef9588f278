package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

// ComputeBlockingSet returns the targeted row indices carrying at least one
// error. An empty selection targets every row.
func ComputeBlockingSet(rows []session.Row, selection []int, issues []session.ValidationIssue) map[int]struct{} {
	errorRows := make(map[int]struct{})
	for _, is := range issues {
		if is.Blocking() {
			errorRows[is.Row] = struct{}{}
		}
	}
	blocked := make(map[int]struct{})
	for _, i := range session.TargetIndices(len(rows), selection) {
		if _, ok := errorRows[rows[i].Number]; ok {
			blocked[i] = struct{}{}
		}
	}
	return blocked
}

// Plan is the reconciliation of the targeted rows against each other and
// the store. All slices hold row indices in sheet order.
type Plan struct {
	Targeted []int
	Blocked  []int
	// Duplicates maps an excluded row index to the index of its first occurrence.
	Duplicates       map[int]int
	Kept             []int
	DecisionRequired []int
	// Ready rows go to the upsert; Replace marks the ones that are known conflicts.
	Ready   []int
	Replace map[int]uuid.UUID
	Issues  []session.ValidationIssue
}

// Skipped counts targeted rows that will not reach the store.
func (p Plan) Skipped() int {
	return len(p.Targeted) - len(p.Ready)
}

// PlanInput carries everything BuildPlan reads. Existing holds the canonical
// natural keys currently in the store; a nil map disables conflict checks.
type PlanInput struct {
	Kind      session.Kind
	Rows      []session.Row
	Selection []int
	Issues    []session.ValidationIssue
	Existing  map[string]uuid.UUID
	Decisions map[int]session.Decision
}

// BuildPlan drops blocked rows, keeps the first row of each natural key
// and routes store conflicts by their decision.
//
// Blocked rows are removed before duplicates are grouped, so they never claim
// a key: when the first row with a key has errors, the next row with that key
// is the one imported and no duplicate warning is raised.
func BuildPlan(in PlanInput) Plan {
	p := Plan{
		Targeted:   session.TargetIndices(len(in.Rows), in.Selection),
		Duplicates: make(map[int]int),
		Replace:    make(map[int]uuid.UUID),
	}
	blocked := ComputeBlockingSet(in.Rows, in.Selection, in.Issues)
	keyColumn := NaturalKeyColumn(in.Kind)

	first := make(map[string]int)
	for _, i := range p.Targeted {
		if _, ok := blocked[i]; ok {
			p.Blocked = append(p.Blocked, i)
			continue
		}
		row := in.Rows[i]
		key := NaturalKey(in.Kind, row)
		if prev, dup := first[key]; dup {
			p.Duplicates[i] = prev
			p.Issues = append(p.Issues, session.ValidationIssue{
				Row:      row.Number,
				Field:    keyColumn,
				Message:  fmt.Sprintf("duplicate of row %d; excluded from this import", in.Rows[prev].Number),
				Severity: session.SeverityWarning,
				Code:     session.CodeDuplicate,
			})
			continue
		}
		first[key] = i

		id, conflict := in.Existing[key]
		if !conflict {
			p.Ready = append(p.Ready, i)
			continue
		}
		switch in.Decisions[i] {
		case session.DecisionReplace:
			p.Ready = append(p.Ready, i)
			p.Replace[i] = id
		case session.DecisionKeep:
			p.Kept = append(p.Kept, i)
		default:
			p.DecisionRequired = append(p.DecisionRequired, i)
			p.Issues = append(p.Issues, session.ValidationIssue{
				Row:      row.Number,
				Field:    keyColumn,
				Message:  fmt.Sprintf("%s %s already exists; choose keep or replace", keyColumn, key),
				Severity: session.SeverityWarning,
				Code:     session.CodeDecisionRequired,
			})
		}
	}
	return p
}

// ConflictIssues flags clean rows whose natural key exists in the store and
// that have no decision yet. Rows marked keep or replace raise nothing.
func ConflictIssues(kind session.Kind, rows []session.Row, issues []session.ValidationIssue, existing map[string]uuid.UUID, decisions map[int]session.Decision) []session.ValidationIssue {
	blocked := ComputeBlockingSet(rows, nil, issues)
	keyColumn := NaturalKeyColumn(kind)

	var out []session.ValidationIssue
	for i, row := range rows {
		if _, ok := blocked[i]; ok {
			continue
		}
		key := NaturalKey(kind, row)
		if _, conflict := existing[key]; !conflict || key == "" {
			continue
		}
		if _, decided := decisions[i]; decided {
			continue
		}
		out = append(out, session.ValidationIssue{
			Row:      row.Number,
			Field:    keyColumn,
			Message:  fmt.Sprintf("%s %s already exists in the system", keyColumn, key),
			Severity: session.SeverityWarning,
			Code:     session.CodeConflict,
		})
	}
	return out
}
