package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

var (
	ErrImportInProgress = session.ErrImportInProgress
	ErrNoTargetRows     = errors.New("no rows are eligible for import")
	ErrBlockingIssues   = errors.New("targeted rows still have blocking errors")
	ErrInvalidOptions   = errors.New("invalid import options")
)

// SchemaError rejects a whole sheet whose header does not match the kind.
type SchemaError struct {
	Kind   session.Kind
	Report ColumnReport
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Report.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Report.Missing, ", "))
	}
	if len(e.Report.Extra) > 0 {
		parts = append(parts, "unexpected: "+strings.Join(e.Report.Extra, ", "))
	}
	return fmt.Sprintf("%s sheet columns do not match the template (%s)", e.Kind, strings.Join(parts, "; "))
}

// PurgeError aborts an import before any row is written.
type PurgeError struct {
	Kind  session.Kind
	Mode  PurgeMode
	Batch int
	Err   error
}

func (e *PurgeError) Error() string {
	return fmt.Sprintf("purge %s (%s) failed at batch %d: %v", e.Kind, e.Mode, e.Batch, e.Err)
}

func (e *PurgeError) Unwrap() error {
	return e.Err
}
