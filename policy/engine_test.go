package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), DefaultPolicy)
	require.NoError(t, err)
	return e
}

func TestDefaultPolicyOK(t *testing.T) {
	e := newDefaultEngine(t)

	d, err := e.Evaluate(context.Background(), Input{
		Date: "2026-03-01",
		Entries: []EntryInput{
			{ParticipantID: "a", Blockers: "None."},
			{ParticipantID: "b", Blockers: ""},
			{ParticipantID: "c", Blockers: "n/a"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionOK, d.Decision)
	assert.Empty(t, d.Flagged)
	assert.False(t, d.Escalate())
}

func TestDefaultPolicyFlagsBlockersAndTasks(t *testing.T) {
	e := newDefaultEngine(t)

	d, err := e.Evaluate(context.Background(), Input{
		Entries: []EntryInput{
			{ParticipantID: "c", Blockers: "waiting on DB credentials"},
			{ParticipantID: "a", Blockers: "none", Tasks: []interface{}{
				map[string]interface{}{"title": "deploy", "blocked": true},
			}},
			{ParticipantID: "b", Blockers: "none", Tasks: []interface{}{
				map[string]interface{}{"title": "review", "status": "Blocked"},
			}},
			{ParticipantID: "d", Blockers: "none", Tasks: []interface{}{"plain string task"}},
		},
	})
	require.NoError(t, err)
	assert.True(t, d.Escalate())
	assert.Equal(t, []string{"a", "b", "c"}, d.Flagged)
}

func TestDefaultPolicyIgnoresFailedReplies(t *testing.T) {
	e := newDefaultEngine(t)

	d, err := e.Evaluate(context.Background(), Input{
		Entries: []EntryInput{
			{ParticipantID: "c", Blockers: "", Failed: true},
			{ParticipantID: "x", Blockers: "something odd", Failed: true},
		},
	})
	require.NoError(t, err)
	assert.False(t, d.Escalate())
}

func TestLoadEngineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "always.rego")
	policy := `
package standup_escalation

import rego.v1

decision := "escalate"

flagged contains e.participant_id if {
	some e in input.entries
}
`
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o600))

	e, err := LoadEngine(context.Background(), path)
	require.NoError(t, err)

	d, err := e.Evaluate(context.Background(), Input{Entries: []EntryInput{{ParticipantID: "z", Blockers: "none"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, d.Flagged)
}

func TestLoadEngineErrors(t *testing.T) {
	_, err := LoadEngine(context.Background(), filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	_, err = NewEngine(context.Background(), "package broken\n\nthis is not rego")
	assert.Error(t, err)
}
