package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faffhub/faff-go/ledgererr"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestInitAndLocateRoot(t *testing.T) {
	dir := t.TempDir()
	root, err := Init(dir, false)
	require.NoError(t, err)
	assert.Equal(t, dir, root)

	for _, sub := range []string{"logs", "plans", "timesheets", "keys", "plugins", "plugin_state"} {
		info, err := os.Stat(filepath.Join(dir, RootDirName, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	cfgData, err := os.ReadFile(filepath.Join(dir, RootDirName, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfgData), "timezone")

	nested := filepath.Join(dir, "child")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	found, err := LocateRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, dir, found)
}

func TestInitFailsOnExistingRoot(t *testing.T) {
	dir := t.TempDir()
	_, err := Init(dir, false)
	require.NoError(t, err)
	_, err = Init(dir, false)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.RootExists))
}

func TestInitFailsOnNestedRootUnlessAllowed(t *testing.T) {
	dir := t.TempDir()
	_, err := Init(dir, false)
	require.NoError(t, err)

	nested := filepath.Join(dir, "child")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	_, err = Init(nested, false)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.NestedRoot))

	_, err = Init(nested, true)
	require.NoError(t, err)
}

func TestWriteAtomicReplacesContentsInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.toml")
	require.NoError(t, WriteAtomic(path, []byte("first"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, WriteAtomic(path, []byte("second"), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "no leftover temp file, got %s", e.Name())
	}
}

func TestReadTextRejectsBinaryContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.toml")
	// A PNG header is reliably classified as binary by h2non/filetype.
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(path, png, 0o644))
	_, err := ReadText(path)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.FileCorrupt))
}

func TestLockContentionTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.toml")
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = WithExclusiveLock(path, time.Second, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := WithExclusiveLock(path, 100*time.Millisecond, func() error { return nil })
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.LockContention))
}

func TestPathHelpers(t *testing.T) {
	s := New("/root", discardLogger())
	assert.Equal(t, "/root/.faff/logs/2026-03-02.toml", s.LogPath("2026-03-02"))
	assert.Equal(t, "/root/.faff/plans/local.20260302.toml", s.PlanPath("local", "20260302"))
	assert.Equal(t, "/root/.faff/timesheets/billable.2026-03-02.toml", s.TimesheetPath("billable", "2026-03-02", 1))
	assert.Equal(t, "/root/.faff/timesheets/billable.2026-03-02-v2.toml", s.TimesheetPath("billable", "2026-03-02", 2))
	assert.Equal(t, "/root/.faff/keys/alice.toml", s.KeyPath("alice"))
	assert.Equal(t, "/root/.faff/config.toml", s.ConfigPath())
}
