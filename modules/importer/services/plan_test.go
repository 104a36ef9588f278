package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

func employeeRows(residenceNumbers ...string) []session.Row {
	rows := make([]session.Row, len(residenceNumbers))
	for i, rn := range residenceNumbers {
		rows[i] = row(i+2, ColEmployeeName, "E", ColResidenceNumber, rn, ColUnifiedNumber, "555")
	}
	return rows
}

func TestComputeBlockingSet(t *testing.T) {
	t.Parallel()

	rows := employeeRows("1", "2", "3", "4")
	issues := []session.ValidationIssue{
		{Row: 3, Severity: session.SeverityError},
		{Row: 4, Severity: session.SeverityWarning},
		{Row: 5, Severity: session.SeverityError},
	}

	assert.Equal(t, map[int]struct{}{1: {}, 3: {}}, ComputeBlockingSet(rows, nil, issues))
	assert.Equal(t, map[int]struct{}{3: {}}, ComputeBlockingSet(rows, []int{0, 2, 3}, issues))
	assert.Empty(t, ComputeBlockingSet(rows, []int{0, 2}, issues))
}

func TestBuildPlan_DuplicatesKeepFirstOccurrence(t *testing.T) {
	t.Parallel()

	// spreadsheet rows 2..6; rows 3 and 5 share a residence number
	rows := employeeRows("1111111111", "1234567890", "2222222222", "1234567890", "3333333333")

	p := BuildPlan(PlanInput{Kind: session.KindEmployees, Rows: rows})
	assert.Equal(t, []int{0, 1, 2, 4}, p.Ready)
	assert.Equal(t, map[int]int{3: 1}, p.Duplicates)
	require.Len(t, p.Issues, 1)
	assert.Equal(t, 5, p.Issues[0].Row)
	assert.Equal(t, session.CodeDuplicate, p.Issues[0].Code)
	assert.Equal(t, session.SeverityWarning, p.Issues[0].Severity)
	assert.Contains(t, p.Issues[0].Message, "row 3")
	assert.Equal(t, 1, p.Skipped())
}

func TestBuildPlan_SelectionChangesDuplicates(t *testing.T) {
	t.Parallel()

	rows := employeeRows("1234567890", "9", "1234567890")

	p := BuildPlan(PlanInput{Kind: session.KindEmployees, Rows: rows, Selection: []int{2}})
	assert.Equal(t, []int{2}, p.Ready)
	assert.Empty(t, p.Duplicates)
	assert.Empty(t, p.Issues)
}

func TestBuildPlan_BlockedRowsAreNotCandidates(t *testing.T) {
	t.Parallel()

	rows := employeeRows("1234567890", "1234567890")
	issues := []session.ValidationIssue{{Row: 2, Severity: session.SeverityError}}

	p := BuildPlan(PlanInput{Kind: session.KindEmployees, Rows: rows, Issues: issues})
	assert.Equal(t, []int{0}, p.Blocked)
	assert.Equal(t, []int{1}, p.Ready)
	assert.Empty(t, p.Duplicates, "a blocked first occurrence does not claim the key")
}

func TestBuildPlan_ConflictDecisions(t *testing.T) {
	t.Parallel()

	rows := []session.Row{
		row(2, ColOrganizationName, "A", ColUnifiedNumber, "555"),
		row(3, ColOrganizationName, "B", ColUnifiedNumber, "556"),
		row(4, ColOrganizationName, "C", ColUnifiedNumber, "557"),
		row(5, ColOrganizationName, "D", ColUnifiedNumber, "900"),
	}
	existing := map[string]uuid.UUID{"555": uuid.New(), "556": uuid.New(), "557": uuid.New()}
	decisions := map[int]session.Decision{1: session.DecisionKeep, 2: session.DecisionReplace}

	p := BuildPlan(PlanInput{Kind: session.KindOrganizations, Rows: rows, Existing: existing, Decisions: decisions})
	assert.Equal(t, []int{2, 3}, p.Ready)
	assert.Equal(t, map[int]uuid.UUID{2: existing["557"]}, p.Replace)
	assert.Equal(t, []int{1}, p.Kept)
	assert.Equal(t, []int{0}, p.DecisionRequired)
	require.Len(t, p.Issues, 1)
	assert.Equal(t, session.CodeDecisionRequired, p.Issues[0].Code)
	assert.Equal(t, 2, p.Issues[0].Row)
}

func TestBuildPlan_NilExistingSkipsConflicts(t *testing.T) {
	t.Parallel()

	rows := []session.Row{row(2, ColOrganizationName, "A", ColUnifiedNumber, "555")}
	p := BuildPlan(PlanInput{Kind: session.KindOrganizations, Rows: rows})
	assert.Equal(t, []int{0}, p.Ready)
	assert.Empty(t, p.DecisionRequired)
}

func TestConflictIssues(t *testing.T) {
	t.Parallel()

	rows := []session.Row{
		row(2, ColOrganizationName, "A", ColUnifiedNumber, "555"),
		row(3, ColOrganizationName, "B", ColUnifiedNumber, "556"),
		row(4, ColUnifiedNumber, "557"),
		row(5, ColOrganizationName, "D", ColUnifiedNumber, "900"),
	}
	existing := map[string]uuid.UUID{"555": uuid.New(), "556": uuid.New(), "557": uuid.New()}
	rowIssues := []session.ValidationIssue{{Row: 4, Field: ColOrganizationName, Severity: session.SeverityError}}

	got := ConflictIssues(session.KindOrganizations, rows, rowIssues, existing, map[int]session.Decision{1: session.DecisionKeep})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Row)
	assert.Equal(t, session.CodeConflict, got[0].Code)
	assert.False(t, got[0].Blocking())
}
