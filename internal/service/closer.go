package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/xiaot623/gogo/standup/internal/domain"
	"github.com/xiaot623/gogo/standup/policy"
)

const (
	resultOK           = "ok"
	escalationType     = "standup.escalation"
	escalationNotified = "escalated"
	escalationFailed   = "notify_failed"
)

// closeRun decides on escalation, appends the closing message and completes
// the run. Notification failures are logged and never fail the run.
func (s *Service) closeRun(ctx context.Context, run *domain.Run, replies []reply) (string, error) {
	ctx, span := s.tracer.Start(ctx, "standup.close")
	defer span.End()

	token := resultOK
	decision, err := s.policyEngine.Evaluate(ctx, policyInput(run, replies))
	if err != nil {
		s.log.Error("escalation policy failed, closing without escalation", "run_id", run.RunID, "error", err)
		s.metrics.Escalation("policy_error")
	} else if decision.Escalate() {
		token = fmt.Sprintf("escalated: %d item(s) from %s", len(decision.Flagged), strings.Join(decision.Flagged, ", "))
		s.escalate(ctx, run, token, decision.Flagged)
	} else {
		s.metrics.Escalation(resultOK)
	}

	closing := &domain.Message{
		RunID:     run.RunID,
		Kind:      domain.MessageKindSystem,
		Content:   fmt.Sprintf("Standup %s closed: %s", run.Date, token),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, closing); err != nil {
		return "", fmt.Errorf("failed to write closing message: %w", err)
	}
	if err := s.store.FinishRun(ctx, run.RunID, domain.RunStatusCompleted, ""); err != nil {
		return "", fmt.Errorf("failed to complete run: %w", err)
	}
	s.metrics.RunFinished(string(domain.RunStatusCompleted))
	return token, nil
}

func policyInput(run *domain.Run, replies []reply) policy.Input {
	input := policy.Input{Date: run.Date, Entries: make([]policy.EntryInput, 0, len(replies))}
	for _, r := range replies {
		input.Entries = append(input.Entries, policy.EntryInput{
			ParticipantID: r.participant.ParticipantID,
			Role:          r.participant.Role,
			Blockers:      r.report.SectionC,
			Tasks:         r.report.Tasks,
			Failed:        r.outcome.Failed(),
		})
	}
	return input
}

// escalate notifies every configured principal.
func (s *Service) escalate(ctx context.Context, run *domain.Run, summary string, flagged []string) {
	principals := s.config.Principals
	if len(principals) == 0 {
		s.log.Warn("escalation needed but no principals configured", "run_id", run.RunID, "summary", summary)
		s.metrics.Escalation(escalationFailed)
		return
	}

	event := domain.EscalationEvent{
		Type:      escalationType,
		Date:      run.Date,
		RunID:     run.RunID,
		Summary:   summary,
		Flagged:   flagged,
		Timestamp: s.now().UnixMilli(),
	}

	var result *multierror.Error
	for _, principal := range principals {
		if err := s.notifier.Notify(ctx, principal, event); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", principal, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		s.log.Warn("escalation delivery failed", "run_id", run.RunID, "notifier", s.notifier.Name(), "error", err)
		s.metrics.Escalation(escalationFailed)
		return
	}
	s.log.Info("escalation sent", "run_id", run.RunID, "principals", len(principals), "summary", summary)
	s.metrics.Escalation(escalationNotified)
}
