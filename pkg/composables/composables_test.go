package composables

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseTx_WithoutPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)

	called := false
	err = InTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrNoPool)
	assert.False(t, called)
}

func TestUseLogger(t *testing.T) {
	_, ok := UseLogger(context.Background())
	assert.False(t, ok)

	logger, hook := logtest.NewNullLogger()
	entry, ok := UseLogger(WithLogger(context.Background(), logrus.NewEntry(logger).WithField("run", 1)))
	require.True(t, ok)
	entry.Info("hello")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, 1, hook.LastEntry().Data["run"])
}
