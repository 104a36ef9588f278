package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

var errNoProgress = errors.New("batch deleted no records")

type purgeReport struct {
	Deleted   int64
	Batches   int
	Cancelled bool
}

// purge deletes stored records of the session's kind before an import.
// keys are canonical natural keys and are only read in matching mode.
func (e *Engine) purge(ctx context.Context, sess *session.Session, mode PurgeMode, keys []string, report ProgressFunc) (purgeReport, error) {
	var (
		rep purgeReport
		err error
	)
	switch mode {
	case PurgeAll:
		rep, err = e.purgeAll(ctx, sess, report)
	case PurgeMatching:
		rep, err = e.purgeMatching(ctx, sess, keys, report)
	default:
		return rep, fmt.Errorf("unknown purge mode %q", mode)
	}

	fields := logrus.Fields{
		"session_id": sess.ID,
		"kind":       sess.Kind,
		"mode":       mode,
		"deleted":    rep.Deleted,
		"batches":    rep.Batches,
	}
	if err != nil {
		fields["error"] = err.Error()
		logWithFields(ctx, logrus.ErrorLevel, "import purge failed", fields)
		return rep, &PurgeError{Kind: sess.Kind, Mode: mode, Batch: rep.Batches + 1, Err: err}
	}
	recordPurged(sess.Kind, mode, rep.Deleted)
	logWithFields(ctx, logrus.InfoLevel, "import purge finished", fields)
	e.publish(ctx, PurgeCompletedEvent{SessionID: sess.ID, Kind: sess.Kind, Mode: mode, Deleted: rep.Deleted, Batches: rep.Batches})
	return rep, nil
}

// purgeAll re-reads the next batch of ids on every pass so rows added or
// removed by other writers are picked up.
func (e *Engine) purgeAll(ctx context.Context, sess *session.Session, report ProgressFunc) (purgeReport, error) {
	var rep purgeReport

	var (
		count  func(context.Context) (int64, error)
		next   func(context.Context, int) ([]uuid.UUID, error)
		remove func(context.Context, []uuid.UUID) (int64, error)
	)
	switch sess.Kind {
	case session.KindEmployees:
		count, next, remove = e.employees.Count, e.employees.NextBatchIDs, e.employees.DeleteByIDs
	case session.KindOrganizations:
		if _, err := e.employees.ClearOrganization(ctx, nil); err != nil {
			return rep, fmt.Errorf("detach employees: %w", err)
		}
		count, next, remove = e.organizations.Count, e.organizations.NextBatchIDs, e.organizations.DeleteByIDs
	default:
		return rep, fmt.Errorf("unknown import kind %q", sess.Kind)
	}

	total, err := count(ctx)
	if err != nil {
		return rep, fmt.Errorf("count records: %w", err)
	}
	// stalled is the last batch that deleted nothing. Seeing it again means
	// the store keeps returning rows it will not delete.
	var stalled []uuid.UUID
	for {
		if sess.Cancelled() {
			rep.Cancelled = true
			return rep, nil
		}
		ids, err := next(ctx, e.config.PurgeBatchSize)
		if err != nil {
			return rep, fmt.Errorf("select batch: %w", err)
		}
		if len(ids) == 0 {
			return rep, nil
		}
		n, err := remove(ctx, ids)
		if err != nil {
			return rep, fmt.Errorf("delete batch: %w", err)
		}
		if n == 0 {
			// Another writer removed the batch first; read the next one.
			if slices.Equal(stalled, ids) {
				return rep, errNoProgress
			}
			stalled = ids
			continue
		}
		stalled = nil
		rep.Deleted += n
		rep.Batches++
		if rep.Deleted > total {
			total = rep.Deleted
		}
		report(session.Progress{Phase: session.PhasePurge, Current: int(rep.Deleted), Total: int(total)})
		if err := e.pause(ctx); err != nil {
			return rep, err
		}
	}
}

// purgeMatching deletes records whose natural key is in keys, one chunk of
// keys per batch. Progress counts keys, not records.
func (e *Engine) purgeMatching(ctx context.Context, sess *session.Session, keys []string, report ProgressFunc) (purgeReport, error) {
	var rep purgeReport
	size := e.config.PurgeBatchSize

	for start := 0; start < len(keys); start += size {
		if sess.Cancelled() {
			rep.Cancelled = true
			return rep, nil
		}
		end := min(start+size, len(keys))
		chunk := keys[start:end]

		var (
			n   int64
			err error
		)
		switch sess.Kind {
		case session.KindEmployees:
			n, err = e.employees.DeleteByResidenceNumbers(ctx, chunk)
		case session.KindOrganizations:
			n, err = e.purgeOrganizationKeys(ctx, chunk)
		default:
			err = fmt.Errorf("unknown import kind %q", sess.Kind)
		}
		if err != nil {
			return rep, err
		}
		rep.Deleted += n
		rep.Batches++
		report(session.Progress{Phase: session.PhasePurge, Current: end, Total: len(keys)})
		if end < len(keys) {
			if err := e.pause(ctx); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

func (e *Engine) purgeOrganizationKeys(ctx context.Context, keys []string) (int64, error) {
	numbers, err := parseUnifiedNumbers(keys)
	if err != nil {
		return 0, err
	}
	var deleted int64
	err = e.inTx(ctx, func(ctx context.Context) error {
		ids, err := e.organizations.IDsByUnifiedNumbers(ctx, numbers)
		if err != nil {
			return fmt.Errorf("resolve organizations: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := e.employees.ClearOrganization(ctx, ids); err != nil {
			return fmt.Errorf("detach employees: %w", err)
		}
		deleted, err = e.organizations.DeleteByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("delete organizations: %w", err)
		}
		return nil
	})
	return deleted, err
}

func (e *Engine) pause(ctx context.Context) error {
	if e.config.PurgePause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.config.PurgePause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
