package ledgererr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndIs(t *testing.T) {
	err := New(IntentNotFound, "no such intent %q", "local:i-1")
	assert.True(t, Is(err, IntentNotFound))
	assert.False(t, Is(err, FileCorrupt))
	assert.Contains(t, err.Error(), "IntentNotFound")
	assert.Contains(t, err.Error(), "local:i-1")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(RootNotFound, cause, "writing %s", "plan.toml")
	assert.True(t, Is(err, RootNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAtAddsLocation(t *testing.T) {
	err := New(DuplicateKey, "duplicate key %q", "version").At("plan.toml", 3)
	assert.Contains(t, err.Error(), "plan.toml:3")
}

func TestIsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), FileCorrupt))
}

func TestPluginWrapsWithPluginErrorKind(t *testing.T) {
	err := Plugin("billable", errors.New("boom"))
	assert.True(t, Is(err, PluginError))
	assert.Contains(t, err.Error(), "billable")
}
