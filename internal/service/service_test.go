package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/standup/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/standup/internal/config"
	"github.com/xiaot623/gogo/standup/internal/domain"
	"github.com/xiaot623/gogo/standup/internal/repository"
	"github.com/xiaot623/gogo/standup/policy"
	"github.com/xiaot623/gogo/standup/tests/helpers"
)

type scriptedAgents struct {
	mu          sync.Mutex
	replies     map[string]func() (string, error)
	calls       []string
	inFlight    int
	maxInFlight int
}

func (a *scriptedAgents) Send(ctx context.Context, p domain.Participant, prompt string, timeout time.Duration) (string, error) {
	a.mu.Lock()
	a.calls = append(a.calls, p.ParticipantID)
	a.inFlight++
	if a.inFlight > a.maxInFlight {
		a.maxInFlight = a.inFlight
	}
	fn := a.replies[p.ParticipantID]
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFlight--
		a.mu.Unlock()
	}()

	if fn == nil {
		return "", &agentclient.UnavailableError{Err: errors.New("no script")}
	}
	return fn()
}

func says(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fails(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(ctx context.Context, principal string, event domain.EscalationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, principal+"|"+event.Summary)
	return n.err
}

func testConfig() *config.Config {
	return &config.Config{
		Title:          "Daily",
		Timezone:       "UTC",
		Roles:          []string{"pm", "dev", "qa"},
		OrchestratorID: "orchestrator",
		Principals:     []string{"cto"},
		AgentTimeout:   time.Second,
		StaleRunAfter:  2 * time.Hour,
	}
}

func newTestService(t *testing.T, store repository.Store, agents AgentMessenger, n *recordingNotifier, opts ...Option) *Service {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	return New(store, agents, n, engine, testConfig(), opts...)
}

func seedABC(t *testing.T, store repository.Store) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []domain.Participant{
		{ParticipantID: "C", Name: "C", Role: "qa", Endpoint: "http://c", Active: true},
		{ParticipantID: "A", Name: "A", Role: "pm", Endpoint: "http://a", Active: true},
		{ParticipantID: "B", Name: "B", Role: "dev", Endpoint: "http://b", Active: true},
	} {
		p := p
		require.NoError(t, store.UpsertParticipant(ctx, &p))
	}
}

func TestStartRunScenario(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	unstructured := "refactored the billing module, nothing else to report"
	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": says("Yesterday: shipped auth\nToday: payments\nBlockers: none"),
		"B": says(unstructured),
		"C": fails(&agentclient.RemoteError{Code: "crashed", Message: "agent exploded"}),
	}}
	n := &recordingNotifier{}
	svc := newTestService(t, store, agents, n)

	result, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01"})
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Result)
	assert.Equal(t, 4, result.Entries)
	assert.Equal(t, domain.RunStatusCompleted, result.Run.Status)
	assert.NotNil(t, result.Run.CompletedAt)
	assert.Equal(t, []string{"A", "B", "C"}, agents.calls)
	assert.Empty(t, n.sent)

	entries, err := svc.GetEntries(ctx, "2026-03-01")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "orchestrator", entries[0].ParticipantID)
	assert.Equal(t, 1, entries[0].TurnOrder)

	a, b, c := entries[1], entries[2], entries[3]
	assert.Equal(t, "A", a.ParticipantID)
	assert.Equal(t, 2, a.TurnOrder)
	assert.Equal(t, "shipped auth", a.SectionA)
	assert.Equal(t, "payments", a.SectionB)
	assert.Equal(t, "none", a.SectionC)

	assert.Equal(t, "B", b.ParticipantID)
	assert.Equal(t, unstructured, b.SectionB)
	assert.Empty(t, b.SectionA)
	assert.Empty(t, b.SectionC)
	assert.Equal(t, unstructured, b.Raw)

	assert.Equal(t, "C", c.ParticipantID)
	assert.Equal(t, 4, c.TurnOrder)
	assert.Equal(t, "[error] C replied with an error: crashed: agent exploded", c.Raw)
	assert.Equal(t, c.Raw, c.SectionB)

	assert.Equal(t, "No report from: C", entries[0].SectionC)

	messages, err := svc.GetMessages(ctx, "2026-03-01")
	require.NoError(t, err)
	require.Len(t, messages, 5)
	assert.Equal(t, domain.MessageKindSystem, messages[0].Kind)
	assert.Equal(t, "B", messages[2].ParticipantID)
	assert.Equal(t, domain.MessageKindSystem, messages[4].Kind)
	assert.Equal(t, "Standup 2026-03-01 closed: ok", messages[4].Content)
}

func TestStartRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": says("Today: a"),
		"B": says("Today: b"),
		"C": says("Today: c"),
	}}
	svc := newTestService(t, store, agents, &recordingNotifier{})

	first, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01"})
	require.NoError(t, err)
	second, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01"})
	require.NoError(t, err)

	assert.Equal(t, first.Run.RunID, second.Run.RunID)

	entries, err := svc.GetEntries(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	messages, err := svc.GetMessages(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Len(t, messages, 5)

	runs, err := svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStartRunPartialFailuresContinue(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": fails(agentclient.ErrTimeout),
		"B": fails(&agentclient.UnavailableError{Err: errors.New("connection refused")}),
		"C": says("Today: testing"),
	}}
	svc := newTestService(t, store, agents, &recordingNotifier{})

	result, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Result)
	assert.Equal(t, 1, agents.maxInFlight)

	entries, err := svc.GetEntries(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "[no response] A did not reply within 1s", entries[1].Raw)
	assert.Equal(t, "[unavailable] could not reach B: connection refused", entries[2].Raw)
	assert.Equal(t, "testing", entries[3].SectionB)
}

func TestStartRunNoParticipants(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	svc := newTestService(t, store, &scriptedAgents{}, &recordingNotifier{})

	_, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01"})
	require.ErrorIs(t, err, ErrNoParticipants)

	run, err := svc.GetRun(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, run.Status)
	assert.NotEmpty(t, run.Error)

	entries, err := svc.GetEntries(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRerunWithoutParticipantsClearsPreviousContents(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": says("Today: a"),
		"B": says("Today: b"),
		"C": says("Today: c"),
	}}
	svc := newTestService(t, store, agents, &recordingNotifier{})

	_, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01"})
	require.NoError(t, err)

	for _, id := range []string{"A", "B", "C"} {
		p, err := store.GetParticipant(ctx, id)
		require.NoError(t, err)
		p.Active = false
		require.NoError(t, store.UpsertParticipant(ctx, p))
	}

	_, err = svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01"})
	require.ErrorIs(t, err, ErrNoParticipants)

	run, err := svc.GetRun(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, run.Status)

	entries, err := svc.GetEntries(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Empty(t, entries)

	messages, err := svc.GetMessages(ctx, "2026-03-01")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.MessageKindSystem, messages[0].Kind)
	assert.Contains(t, messages[0].Content, "aborted")
	assert.NotContains(t, messages[0].Content, "closed: ok")
}

func TestStartRunEscalates(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": says("Today: a\nBlockers: waiting on DB credentials"),
		"B": says("Today: b\nTasks: [{\"title\":\"deploy\",\"blocked\":true}]"),
		"C": fails(agentclient.ErrTimeout),
	}}
	n := &recordingNotifier{}
	svc := newTestService(t, store, agents, n)
	svc.config.Principals = []string{"cto", "vp"}

	result, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-03"})
	require.NoError(t, err)

	assert.Equal(t, "escalated: 2 item(s) from A, B", result.Result)
	assert.Equal(t, []string{
		"cto|escalated: 2 item(s) from A, B",
		"vp|escalated: 2 item(s) from A, B",
	}, n.sent)

	messages, err := svc.GetMessages(ctx, "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, "Standup 2026-03-03 closed: escalated: 2 item(s) from A, B", messages[len(messages)-1].Content)
}

func TestEscalationFailureStillCompletes(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": says("Blockers: prod is down"),
		"B": says("Today: b"),
		"C": says("Today: c"),
	}}
	n := &recordingNotifier{err: errors.New("ingress unreachable")}
	svc := newTestService(t, store, agents, n)

	result, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-04"})
	require.NoError(t, err)
	assert.Equal(t, "escalated: 1 item(s) from A", result.Result)
	assert.Equal(t, domain.RunStatusCompleted, result.Run.Status)
	assert.Len(t, n.sent, 1)
}

type failingStore struct {
	repository.Store
}

func (failingStore) ReplaceRunContents(ctx context.Context, runID string, entries []domain.Entry, messages []domain.Message) error {
	return errors.New("database is locked")
}

func TestStartRunPersistenceFailureMarksError(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": says("Today: a"), "B": says("Today: b"), "C": says("Today: c"),
	}}
	svc := newTestService(t, failingStore{Store: store}, agents, &recordingNotifier{})

	_, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-05"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")

	run, err := store.GetRunByDate(ctx, "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, run.Status)
	assert.Contains(t, run.Error, "database is locked")

	entries, err := store.GetEntries(ctx, run.RunID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStartRunRecoversPanic(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": func() (string, error) { panic("agent client bug") },
	}}
	svc := newTestService(t, store, agents, &recordingNotifier{})

	result, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-06"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "panicked")

	run, err := svc.GetRun(ctx, "2026-03-06")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, run.Status)
	assert.Contains(t, run.Error, "agent client bug")

	// The mutex must have been released.
	agents.replies["A"] = says("Today: fine")
	agents.replies["B"] = says("Today: fine")
	agents.replies["C"] = says("Today: fine")
	_, err = svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-06"})
	require.NoError(t, err)
}

func TestStartRunRejectsInvalidDate(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	svc := newTestService(t, store, &scriptedAgents{}, &recordingNotifier{})

	for _, date := range []string{"", "today", "2026-13-01", "03/01/2026", "2026-3-1"} {
		_, err := svc.StartRun(ctx, domain.RunRequest{Date: date})
		assert.ErrorIs(t, err, ErrInvalidDate, date)
	}

	runs, err := svc.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStartRunReconcilesEarlierRuns(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)

	stale, err := store.UpsertRun(ctx, "2026-02-28", "Daily", "UTC", time.Now())
	require.NoError(t, err)

	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": says("Today: a"), "B": says("Today: b"), "C": says("Today: c"),
	}}
	svc := newTestService(t, store, agents, &recordingNotifier{})

	_, err = svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01"})
	require.NoError(t, err)

	got, err := store.GetRun(ctx, stale.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, got.Status)
	assert.Equal(t, repository.AbandonedReason, got.Error)
}

func TestResolveDate(t *testing.T) {
	store := helpers.NewTestSQLiteStore(t)
	now := time.Date(2026, 2, 28, 20, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &scriptedAgents{}, &recordingNotifier{}, WithClock(func() time.Time { return now }))
	svc.config.Timezone = "Asia/Tokyo"

	date, err := svc.ResolveDate("today", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", date)

	date, err = svc.ResolveDate("2026-01-15", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", date)

	_, err = svc.ResolveDate("yesterday", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestResolveDateInRequestTimezone(t *testing.T) {
	store := helpers.NewTestSQLiteStore(t)
	now := time.Date(2026, 2, 28, 20, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &scriptedAgents{}, &recordingNotifier{}, WithClock(func() time.Time { return now }))

	date, err := svc.ResolveDate("today", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", date)

	date, err = svc.ResolveDate("today", "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", date)

	_, err = svc.ResolveDate("today", "Mars/Olympus")
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestStartRunRejectsInvalidTimezone(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)
	svc := newTestService(t, store, &scriptedAgents{}, &recordingNotifier{})

	_, err := svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01", Timezone: "Mars/Olympus"})
	require.ErrorIs(t, err, ErrInvalidTimezone)

	run, err := store.GetRunByDate(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestReconcileAndSweep(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &scriptedAgents{}, &recordingNotifier{}, WithClock(func() time.Time { return now }))

	old, err := store.UpsertRun(ctx, "2026-02-27", "Daily", "UTC", now.Add(-30*time.Minute))
	require.NoError(t, err)
	today, err := store.UpsertRun(ctx, "2026-03-01", "Daily", "UTC", now.Add(-3*time.Hour))
	require.NoError(t, err)

	svc.mu.Lock()
	svc.sweepStaleRuns(ctx)
	svc.mu.Unlock()

	got, err := store.GetRun(ctx, old.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, got.Status, "sweep must skip while a run holds the lock")

	svc.sweepStaleRuns(ctx)
	got, err = store.GetRun(ctx, old.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, got.Status)
	got, err = store.GetRun(ctx, today.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, got.Status)

	n, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRegisterParticipant(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	svc := newTestService(t, store, &scriptedAgents{}, &recordingNotifier{})

	_, err := svc.RegisterParticipant(ctx, domain.RegisterParticipantRequest{Role: "dev"})
	assert.ErrorIs(t, err, ErrInvalidParticipant)
	_, err = svc.RegisterParticipant(ctx, domain.RegisterParticipantRequest{ParticipantID: "ana"})
	assert.ErrorIs(t, err, ErrInvalidParticipant)

	p, err := svc.RegisterParticipant(ctx, domain.RegisterParticipantRequest{ParticipantID: "ana", Role: "dev", Endpoint: "http://ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana", p.Name)
	assert.True(t, p.Active)

	inactive := false
	p2, err := svc.RegisterParticipant(ctx, domain.RegisterParticipantRequest{ParticipantID: "ana", Role: "qa", Active: &inactive})
	require.NoError(t, err)
	assert.False(t, p2.Active)
	assert.True(t, p.CreatedAt.Equal(p2.CreatedAt))

	active, err := svc.ListParticipants(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListParticipants(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "qa", all[0].Role)
}

func TestSeedParticipants(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	svc := newTestService(t, store, &scriptedAgents{}, &recordingNotifier{})

	require.NoError(t, svc.SeedParticipants(ctx, []domain.Participant{
		{ParticipantID: "a", Name: "a", Role: "pm", Active: true},
		{ParticipantID: "b", Name: "b", Role: "dev", Active: true},
	}))
	require.NoError(t, svc.SeedParticipants(ctx, []domain.Participant{
		{ParticipantID: "a", Name: "a", Role: "pm", Active: true},
	}))

	resolved, err := svc.Directory().Resolve(ctx)
	require.NoError(t, err)
	assert.Len(t, resolved, 2)
}

func TestQueriesAndDelete(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	seedABC(t, store)
	agents := &scriptedAgents{replies: map[string]func() (string, error){
		"A": says("Today: a"), "B": says("Today: b"), "C": says("Today: c"),
	}}
	svc := newTestService(t, store, agents, &recordingNotifier{})

	_, err := svc.GetRun(ctx, "2026-03-01")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetEntries(ctx, "not-a-date")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = svc.StartRun(ctx, domain.RunRequest{Date: "2026-03-01", Title: "Kickoff"})
	require.NoError(t, err)

	run, err := svc.GetRun(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "Kickoff", run.Title)

	require.NoError(t, svc.DeleteRun(ctx, "2026-03-01"))
	_, err = svc.GetRun(ctx, "2026-03-01")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteRun(ctx, "2026-03-01"), ErrNotFound)
}

func TestOutcomeFor(t *testing.T) {
	o := outcomeFor("p", "Today: x", nil, time.Second)
	assert.Equal(t, domain.OutcomeSuccess, o.Kind)
	assert.False(t, o.Failed())

	o = outcomeFor("p", "", errors.New("weird"), time.Second)
	assert.Equal(t, domain.OutcomeUnavailable, o.Kind)
	assert.Equal(t, "[unavailable] could not reach p: weird", o.Reply())

	o = outcomeFor("p", "", &agentclient.RemoteError{StatusCode: 502, Message: "bad gateway"}, time.Second)
	assert.Equal(t, domain.OutcomeRemoteError, o.Kind)
	assert.Equal(t, "[error] p replied with an error: agent returned status 502: bad gateway", o.Reply())
}
