package services

import (
	"io"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
	"github.com/iota-uz/hrm-import/pkg/spreadsheet"
)

// WriteIssueReport renders issues as a right-to-left xlsx sheet, one issue per row.
func WriteIssueReport(w io.Writer, issues []session.ValidationIssue) error {
	rows := make([][]any, 0, len(issues))
	for _, is := range issues {
		rows = append(rows, []any{is.Row, is.Field, string(is.Severity), string(is.Code), is.Message})
	}
	return spreadsheet.WriteTable(w, spreadsheet.Table{
		Sheet:       "issues",
		Header:      []string{"row", "field", "severity", "code", "message"},
		Rows:        rows,
		RightToLeft: true,
	})
}
