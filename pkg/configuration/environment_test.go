package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "HRM_IMPORT_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "importer")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	_ = os.Unsetenv("HRM_IMPORT_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("HRM_IMPORT_TEST_ENV_LOAD"))
}

func TestLoad_ImportDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	t.Cleanup(c.Unload)

	require.Equal(t, 500, c.Import.PurgeBatchSize)
	require.Equal(t, 100*time.Millisecond, c.Import.PurgePause)
	require.Equal(t, 10, c.Import.PreviewRows)
	require.Contains(t, c.Database.Opts, "sslmode=disable")
}

func TestLoad_RejectsInvalidBatchSize(t *testing.T) {
	t.Setenv("IMPORT_PURGE_BATCH_SIZE", "0")

	_, err := Load()
	require.ErrorContains(t, err, "IMPORT_PURGE_BATCH_SIZE")
}

func TestLogrusLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"silent":  logrus.PanicLevel,
		"error":   logrus.ErrorLevel,
		"warn":    logrus.WarnLevel,
		"info":    logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"unknown": logrus.ErrorLevel,
	}
	for in, want := range cases {
		c := &Configuration{LogLevel: in}
		require.Equal(t, want, c.LogrusLogLevel(), in)
	}
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
