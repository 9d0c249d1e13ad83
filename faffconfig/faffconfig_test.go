package faffconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faffhub/faff-go/ledgererr"
)

func writeConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsTimezoneToUTC(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadParsesPluginInstances(t *testing.T) {
	path := writeConfig(t, `
timezone = "America/Chicago"

[[plan_sources]]
plugin = "jira"
name = "primary-jira"

[[compilers]]
plugin = "billable"
name = "client-x"

[signing_ids]
client-x = ["alice", "bob"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", cfg.Timezone)
	require.Len(t, cfg.PlanSources, 1)
	assert.Equal(t, "jira", cfg.PlanSources[0].Plugin)
	assert.Equal(t, "primary-jira", cfg.PlanSources[0].Name)
	require.Len(t, cfg.Compilers, 1)
	assert.Equal(t, "client-x", cfg.Compilers[0].Name)
	assert.Equal(t, []string{"alice", "bob"}, cfg.SigningIDs["client-x"])
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	path := writeConfig(t, `timezone = "Not/AZone"`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.FileCorrupt))
}

func TestLoadRejectsDuplicatePlanSourceName(t *testing.T) {
	path := writeConfig(t, `
[[plan_sources]]
plugin = "jira"
name = "dup"

[[plan_sources]]
plugin = "trello"
name = "dup"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.FileCorrupt))
}

func TestLoadRejectsDuplicateCompilerName(t *testing.T) {
	path := writeConfig(t, `
[[compilers]]
plugin = "all"
name = "dup"

[[compilers]]
plugin = "billable"
name = "dup"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.FileCorrupt))
}

func TestLoadRejectsUnparsableFile(t *testing.T) {
	path := writeConfig(t, `not = [valid toml`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.FileCorrupt))
}
