package services

import (
	"github.com/google/uuid"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

type ImportStartedEvent struct {
	SessionID uuid.UUID
	Kind      session.Kind
	Targets   int
}

type ImportProgressedEvent struct {
	SessionID uuid.UUID
	Kind      session.Kind
	Progress  session.Progress
}

type PurgeCompletedEvent struct {
	SessionID uuid.UUID
	Kind      session.Kind
	Mode      PurgeMode
	Deleted   int64
	Batches   int
}

type ImportCancelledEvent struct {
	SessionID uuid.UUID
	Kind      session.Kind
	Processed int
}

type RollbackCompletedEvent struct {
	SessionID uuid.UUID
	Deleted   int64
	Failed    int
}

type ImportFinishedEvent struct {
	SessionID uuid.UUID
	Result    *ImportResult
}
