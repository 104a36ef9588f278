package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/hrm-import/pkg/composables"
)

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger, ok := composables.UseLogger(ctx)
	if !ok || logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}
