package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

var errInsertFailed = errors.New("insert failed")

type OutcomeKind int

const (
	OutcomeCreated OutcomeKind = iota + 1
	OutcomeAlreadyExists
	OutcomeFailed
)

// InsertOutcome is the result of inserting one row. AlreadyExists carries the
// id of the record that won a concurrent insert of the same natural key.
type InsertOutcome struct {
	Kind OutcomeKind
	ID   uuid.UUID
	Err  error
}

func Created(id uuid.UUID) InsertOutcome {
	return InsertOutcome{Kind: OutcomeCreated, ID: id}
}

func AlreadyExists(id uuid.UUID) InsertOutcome {
	return InsertOutcome{Kind: OutcomeAlreadyExists, ID: id}
}

func Failed(err error) InsertOutcome {
	return InsertOutcome{Kind: OutcomeFailed, Err: err}
}

// rowWriter turns a normalized row into a stored record of one kind.
type rowWriter interface {
	collection() session.Collection
	insert(ctx context.Context, row session.Row) InsertOutcome
	update(ctx context.Context, id uuid.UUID, row session.Row) error
}

type upsertReport struct {
	Inserted  int
	Updated   int
	Failed    int
	Processed int
	Cancelled bool
	Issues    []session.ValidationIssue
}

// upsert writes the ready rows in sheet order. existing maps natural keys to
// stored ids and is updated as inserts succeed.
func (e *Engine) upsert(ctx context.Context, sess *session.Session, ready []int, existing map[string]uuid.UUID, w rowWriter, report ProgressFunc) upsertReport {
	var rep upsertReport
	total := len(ready)

	for n, i := range ready {
		if sess.Cancelled() {
			rep.Cancelled = true
			return rep
		}
		row := sess.Rows[i]
		key := NaturalKey(sess.Kind, row)

		outcome, err := e.writeRow(ctx, sess, row, key, existing, w)
		switch {
		case err != nil:
			rep.Failed++
			recordRow(sess.Kind, outcomeFailed)
			rep.Issues = append(rep.Issues, session.ValidationIssue{
				Row:      row.Number,
				Field:    NaturalKeyColumn(sess.Kind),
				Message:  fmt.Sprintf("could not save row: %v", err),
				Severity: session.SeverityError,
				Code:     session.CodeStore,
			})
			logWithFields(ctx, logrus.ErrorLevel, "import row failed", logrus.Fields{
				"session_id": sess.ID,
				"kind":       sess.Kind,
				"row":        row.Number,
				"error":      err.Error(),
			})
		case outcome == OutcomeCreated:
			rep.Inserted++
			recordRow(sess.Kind, outcomeInserted)
		default:
			rep.Updated++
			recordRow(sess.Kind, outcomeUpdated)
		}
		rep.Processed++
		report(session.Progress{Phase: session.PhaseUpsert, Current: n + 1, Total: total})
	}
	return rep
}

func (e *Engine) writeRow(ctx context.Context, sess *session.Session, row session.Row, key string, existing map[string]uuid.UUID, w rowWriter) (OutcomeKind, error) {
	if id, ok := existing[key]; ok {
		if err := w.update(ctx, id, row); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeAlreadyExists, nil
	}

	out := w.insert(ctx, row)
	switch out.Kind {
	case OutcomeCreated:
		existing[key] = out.ID
		sess.RecordCreated(w.collection(), out.ID)
		return OutcomeCreated, nil
	case OutcomeAlreadyExists:
		existing[key] = out.ID
		logWithFields(ctx, logrus.DebugLevel, "import insert raced; updating existing record", logrus.Fields{
			"session_id": sess.ID,
			"kind":       sess.Kind,
			"row":        row.Number,
		})
		if err := w.update(ctx, out.ID, row); err != nil {
			return OutcomeFailed, fmt.Errorf("update after duplicate insert: %w", err)
		}
		return OutcomeAlreadyExists, nil
	default:
		if out.Err == nil {
			out.Err = errInsertFailed
		}
		return OutcomeFailed, out.Err
	}
}
