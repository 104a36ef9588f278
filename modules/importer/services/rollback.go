package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

type rollbackReport struct {
	Deleted int64
	Failed  int
}

// rollback deletes the records inserted by the session's current run.
// Updated records stay as written. Errors are logged, never returned.
func (e *Engine) rollback(ctx context.Context, sess *session.Session, report ProgressFunc) rollbackReport {
	var rep rollbackReport
	created := sess.Created()
	total := created.Len()
	done := 0

	steps := []struct {
		collection session.Collection
		ids        []uuid.UUID
		remove     func(context.Context, []uuid.UUID) (int64, error)
	}{
		{session.CollectionEmployees, created.Employees, e.employees.DeleteByIDs},
		{session.CollectionOrganizations, created.Organizations, e.organizations.DeleteByIDs},
	}
	for _, step := range steps {
		if len(step.ids) == 0 {
			continue
		}
		n, err := step.remove(ctx, step.ids)
		done += len(step.ids)
		if err != nil {
			rep.Failed += len(step.ids)
			logWithFields(ctx, logrus.ErrorLevel, "import rollback failed", logrus.Fields{
				"session_id": sess.ID,
				"collection": step.collection,
				"ids":        len(step.ids),
				"error":      err.Error(),
			})
			report(session.Progress{Phase: session.PhaseRollback, Current: done, Total: total})
			continue
		}
		rep.Deleted += n
		recordRolledBack(step.collection, n)
		report(session.Progress{Phase: session.PhaseRollback, Current: done, Total: total})
	}

	logWithFields(ctx, logrus.InfoLevel, "import rolled back", logrus.Fields{
		"session_id": sess.ID,
		"kind":       sess.Kind,
		"deleted":    rep.Deleted,
		"failed":     rep.Failed,
	})
	e.publish(ctx, RollbackCompletedEvent{SessionID: sess.ID, Deleted: rep.Deleted, Failed: rep.Failed})
	return rep
}
