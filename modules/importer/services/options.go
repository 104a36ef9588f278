package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
	"github.com/iota-uz/hrm-import/pkg/configuration"
	"github.com/iota-uz/hrm-import/pkg/constants"
)

type PurgeMode string

const (
	PurgeAll      PurgeMode = "all"
	PurgeMatching PurgeMode = "matching"
)

// ProgressFunc is called on the importing goroutine after every row and purge batch.
type ProgressFunc func(session.Progress)

// ImportOptions select what StartImport does. Row numbers are spreadsheet
// rows, the header being row 1.
type ImportOptions struct {
	SelectedRows       []int `validate:"dive,gt=1"`
	DeleteBeforeImport bool
	DeleteMode         PurgeMode                `validate:"omitempty,oneof=all matching"`
	ConflictDecisions  map[int]session.Decision `validate:"dive,keys,gt=1,endkeys,oneof=keep replace"`
	// AllowPartial imports the clean rows even when other targeted rows are blocked.
	AllowPartial bool
	Progress     ProgressFunc `validate:"-"`
}

func (o ImportOptions) Validate() error {
	if err := constants.Validate.Struct(o); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
		msgs := make([]string, 0, len(fields))
		for _, fe := range fields {
			msgs = append(msgs, fe.Translate(constants.Translator))
		}
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(msgs, "; "))
	}
	if o.DeleteBeforeImport && o.DeleteMode == "" {
		return fmt.Errorf("%w: delete mode is required when deleting before import", ErrInvalidOptions)
	}
	return nil
}

type Config struct {
	PurgeBatchSize int
	PurgePause     time.Duration
	PreviewRows    int
}

func ConfigFromOptions(o configuration.ImportOptions) Config {
	return Config{
		PurgeBatchSize: o.PurgeBatchSize,
		PurgePause:     o.PurgePause,
		PreviewRows:    o.PreviewRows,
	}
}

func (c Config) withDefaults() Config {
	if c.PurgeBatchSize <= 0 {
		c.PurgeBatchSize = 500
	}
	if c.PurgePause < 0 {
		c.PurgePause = 0
	}
	if c.PreviewRows < 0 {
		c.PreviewRows = 0
	}
	return c
}
