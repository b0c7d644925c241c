package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterYAML = `
title: Platform standup
orchestrator: lead
roles: [pm, backend, qa]
principals: [cto]
participants:
  - id: ana
    role: backend
    endpoint: http://localhost:9001
  - id: bo
    name: Bo
    role: qa
    active: false
`

func TestParseRosterSeedDefaults(t *testing.T) {
	r, err := ParseRoster([]byte(rosterYAML))
	require.NoError(t, err)

	seed := r.Seed()
	require.Len(t, seed, 2)
	assert.Equal(t, "ana", seed[0].Name)
	assert.True(t, seed[0].Active)
	assert.False(t, seed[1].Active)
	assert.Equal(t, []string{"pm", "backend", "qa"}, r.Roles)
}

func TestParseRosterRejectsDuplicates(t *testing.T) {
	_, err := ParseRoster([]byte("participants:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)

	_, err = ParseRoster([]byte("participants:\n  - role: qa\n"))
	assert.Error(t, err)
}

func TestLoadAppliesRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rosterYAML), 0o600))

	t.Setenv("STANDUP_ROSTER", path)
	t.Setenv("AGENT_TIMEOUT_MS", "1500")
	t.Setenv("STANDUP_TIMEZONE", "Europe/Berlin")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lead", cfg.OrchestratorID)
	assert.Equal(t, []string{"pm", "backend", "qa"}, cfg.Roles)
	assert.Equal(t, []string{"cto"}, cfg.Principals)
	assert.Equal(t, "Platform standup", cfg.Title)
	assert.Equal(t, 1500*time.Millisecond, cfg.AgentTimeout)
	require.NotNil(t, cfg.Roster)
}

func TestLoadEnvOverridesRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rosterYAML), 0o600))

	t.Setenv("STANDUP_ROSTER", path)
	t.Setenv("STANDUP_ROLES", "qa, backend")
	t.Setenv("STANDUP_ORCHESTRATOR", "boss")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"qa", "backend"}, cfg.Roles)
	assert.Equal(t, "boss", cfg.OrchestratorID)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("STANDUP_PRINCIPALS=alice,bob\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STANDUP_PRINCIPALS") })

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Principals)
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("STANDUP_TIMEZONE", "Mars/Olympus")
	_, err := Load("")
	assert.Error(t, err)
}

func TestToday(t *testing.T) {
	cfg := &Config{Timezone: "Asia/Tokyo"}
	now := time.Date(2026, 2, 28, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01", cfg.Today(now))
}

func TestWarningsWithoutRoles(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "STANDUP_ROLES")

	cfg.Roles = []string{"dev"}
	assert.Empty(t, cfg.Warnings())
}
