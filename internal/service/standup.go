package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/standup/internal/domain"
	"github.com/xiaot623/gogo/standup/internal/parser"
)

const dateLayout = "2006-01-02"

// ResolveDate accepts YYYY-MM-DD or "today". "today" is resolved in timezone
// when one is given, otherwise in the configured timezone.
func (s *Service) ResolveDate(raw, timezone string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "today") {
		timezone = strings.TrimSpace(timezone)
		if timezone == "" {
			return s.config.Today(s.now()), nil
		}
		loc, err := loadLocation(timezone)
		if err != nil {
			return "", err
		}
		return s.now().In(loc).Format(dateLayout), nil
	}
	if err := validateDate(raw); err != nil {
		return "", err
	}
	return raw, nil
}

func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

func validateDate(date string) error {
	t, err := time.Parse(dateLayout, date)
	if err != nil || t.Format(dateLayout) != date {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// StartRun runs the standup for req.Date end to end and returns once the run
// is terminal. Re-running a date replaces its entries and messages.
func (s *Service) StartRun(ctx context.Context, req domain.RunRequest) (result *domain.RunResult, err error) {
	if err := validateDate(req.Date); err != nil {
		return nil, err
	}
	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		if _, err := loadLocation(tz); err != nil {
			return nil, err
		}
		req.Timezone = tz
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "standup.run", trace.WithAttributes(attribute.String("standup.date", req.Date)))
	defer span.End()

	if n, err := s.store.MarkStaleRuns(ctx, req.Date, time.Time{}); err != nil {
		s.log.Warn("stale run reconciliation failed", "date", req.Date, "error", err)
	} else if n > 0 {
		s.log.Info("marked stale runs as abandoned", "count", n, "before", req.Date)
	}

	title := firstNonEmpty(req.Title, s.config.Title, "Daily standup")
	timezone := firstNonEmpty(req.Timezone, s.config.Timezone, "UTC")
	run, err := s.store.UpsertRun(ctx, req.Date, title, timezone, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	log := s.log.With("run_id", run.RunID, "date", run.Date)
	log.Info("standup run started")

	defer func() {
		if r := recover(); r != nil {
			log.Error("standup run panicked", "panic", r)
			s.fail(ctx, run, fmt.Sprintf("panic: %v", r))
			result = nil
			err = fmt.Errorf("standup run %s panicked: %v", run.Date, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	participants, err := s.directory.Resolve(ctx)
	if err != nil {
		log.Error("cannot resolve participants", "error", err)
		s.abort(ctx, run, err)
		s.fail(ctx, run, err.Error())
		return nil, err
	}

	prompt := s.prompt(run)
	replies := s.collect(ctx, run, participants, prompt)
	entries, messages := s.assemble(run, prompt, replies)

	if err := s.persist(ctx, run, entries, messages); err != nil {
		log.Error("failed to persist run contents", "error", err)
		s.fail(ctx, run, err.Error())
		return nil, fmt.Errorf("failed to persist run contents: %w", err)
	}

	token, err := s.closeRun(ctx, run, replies)
	if err != nil {
		log.Error("failed to close run", "error", err)
		s.fail(ctx, run, err.Error())
		return nil, err
	}

	final, err := s.store.GetRun(ctx, run.RunID)
	if err != nil || final == nil {
		final = run
	}
	log.Info("standup run completed", "result", token, "entries", len(entries))
	return &domain.RunResult{Run: final, Result: token, Entries: len(entries)}, nil
}

// abort drops the contents of a previous run of the same date, leaving only a
// system message that records why the run stopped.
func (s *Service) abort(ctx context.Context, run *domain.Run, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	messages := []domain.Message{{
		RunID:     run.RunID,
		Seq:       1,
		Kind:      domain.MessageKindSystem,
		Content:   fmt.Sprintf("Standup %s aborted: %v", run.Date, cause),
		CreatedAt: s.now().UTC(),
	}}
	if err := s.store.ReplaceRunContents(ctx, run.RunID, nil, messages); err != nil {
		s.log.Error("failed to clear run contents", "run_id", run.RunID, "error", err)
	}
}

// fail marks the run as error. It runs even when ctx was cancelled.
func (s *Service) fail(ctx context.Context, run *domain.Run, msg string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.FinishRun(ctx, run.RunID, domain.RunStatusError, msg); err != nil {
		s.log.Error("failed to mark run as error", "run_id", run.RunID, "error", err)
	}
	s.metrics.RunFinished(string(domain.RunStatusError))
}

func (s *Service) prompt(run *domain.Run) string {
	if s.config.Prompt != "" {
		return s.config.Prompt
	}
	return fmt.Sprintf("%s for %s. Please reply using exactly these sections:\n%s",
		run.Title, run.Date, s.parser.Template())
}

// assemble builds the transcript and entries. Participants take turn_order
// 2..n+1 in reporting order; the orchestrator's own entry takes 1 and is
// appended last.
func (s *Service) assemble(run *domain.Run, prompt string, replies []reply) ([]domain.Entry, []domain.Message) {
	messages := make([]domain.Message, 0, len(replies)+1)
	messages = append(messages, domain.Message{
		RunID:     run.RunID,
		Seq:       1,
		Kind:      domain.MessageKindSystem,
		Content:   prompt,
		CreatedAt: run.StartedAt,
	})

	entries := make([]domain.Entry, 0, len(replies)+1)
	for i, r := range replies {
		messages = append(messages, domain.Message{
			RunID:         run.RunID,
			Seq:           i + 2,
			Kind:          domain.MessageKindParticipant,
			ParticipantID: r.participant.ParticipantID,
			Content:       r.outcome.Reply(),
			CreatedAt:     r.at,
		})
		entries = append(entries, domain.Entry{
			RunID:         run.RunID,
			ParticipantID: r.participant.ParticipantID,
			IdentityRef:   r.participant.IdentityRef,
			TurnOrder:     i + 2,
			SectionA:      r.report.SectionA,
			SectionB:      r.report.SectionB,
			SectionC:      r.report.SectionC,
			Tasks:         r.report.TasksJSON(),
			Raw:           r.report.Raw,
			CreatedAt:     r.at,
		})
	}

	own := s.summaryReport(run, replies)
	entries = append(entries, domain.Entry{
		RunID:         run.RunID,
		ParticipantID: firstNonEmpty(s.config.OrchestratorID, "orchestrator"),
		TurnOrder:     1,
		SectionA:      own.SectionA,
		SectionB:      own.SectionB,
		SectionC:      own.SectionC,
		Raw:           own.Raw,
		CreatedAt:     s.now().UTC(),
	})
	return entries, messages
}

// summaryReport is the orchestrator's own report for the run.
func (s *Service) summaryReport(run *domain.Run, replies []reply) parser.Report {
	var answered, missing []string
	for _, r := range replies {
		if r.outcome.Failed() {
			missing = append(missing, r.participant.ParticipantID)
		} else {
			answered = append(answered, r.participant.ParticipantID)
		}
	}

	report := parser.Report{
		SectionA: fmt.Sprintf("Asked %d participant(s) for their %s report.", len(replies), run.Date),
		SectionB: fmt.Sprintf("Received %d report(s): %s.", len(answered), listOrNone(answered)),
		SectionC: "none",
	}
	if len(missing) > 0 {
		report.SectionC = "No report from: " + strings.Join(missing, ", ")
	}
	report.Raw = s.parser.Render(report)
	return report
}

func (s *Service) persist(ctx context.Context, run *domain.Run, entries []domain.Entry, messages []domain.Message) error {
	ctx, span := s.tracer.Start(ctx, "standup.persist",
		trace.WithAttributes(attribute.Int("standup.entries", len(entries))))
	defer span.End()

	if err := s.store.ReplaceRunContents(ctx, run.RunID, entries, messages); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func listOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
