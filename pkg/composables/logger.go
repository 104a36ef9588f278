package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/hrm-import/pkg/constants"
)

// WithLogger returns a new context carrying the logger entry.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger stored in the context.
// If no logger is present, the second return value will be false.
func UseLogger(ctx context.Context) (*logrus.Entry, bool) {
	if ctx == nil {
		return nil, false
	}
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed, true
	case *logrus.Logger:
		return logrus.NewEntry(typed), true
	default:
		return nil, false
	}
}
