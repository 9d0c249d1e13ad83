package identity

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/storage"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	root, err := storage.Init(dir, false)
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(storage.New(root, logger), logger)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create("alice", false)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Name)
	assert.True(t, id.HasSecret())

	got, found, err := s.Get("alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id.PublicKey, got.PublicKey)
	assert.Equal(t, id.SecretKey, got.SecretKey)
}

func TestGetMissingIdentity(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.Get("nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateFailsOnExistingUnlessOverwrite(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create("alice", false)
	require.NoError(t, err)

	_, err = s.Create("alice", false)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.IdentityExists))

	second, err := s.Create("alice", true)
	require.NoError(t, err)
	got, _, _ := s.Get("alice")
	assert.Equal(t, second.PublicKey, got.PublicKey)
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create("alice", false)
	require.NoError(t, err)
	_, err = s.Create("bob", false)
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Contains(t, list, "alice")
	assert.Contains(t, list, "bob")
}
