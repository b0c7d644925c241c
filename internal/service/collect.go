package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/standup/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/standup/internal/domain"
	"github.com/xiaot623/gogo/standup/internal/parser"
)

// reply is one participant's collected and parsed answer.
type reply struct {
	participant domain.Participant
	outcome     domain.Outcome
	report      parser.Report
	at          time.Time
}

// collect asks every participant in order, one at a time. A failed participant
// gets a sentinel reply and collection moves on.
func (s *Service) collect(ctx context.Context, run *domain.Run, participants []domain.Participant, prompt string) []reply {
	started := s.now()
	defer func() { s.metrics.CollectionDuration(s.now().Sub(started)) }()

	timeout := s.config.AgentTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	replies := make([]reply, 0, len(participants))
	for _, p := range participants {
		outcome := s.ask(ctx, p, prompt, timeout)
		s.metrics.ReplyCollected(string(outcome.Kind))
		if outcome.Failed() {
			s.log.Warn("participant did not report", "run_id", run.RunID, "participant_id", p.ParticipantID, "outcome", outcome.Kind, "detail", outcome.Detail)
		} else {
			s.log.Debug("participant reported", "run_id", run.RunID, "participant_id", p.ParticipantID)
		}

		replies = append(replies, reply{
			participant: p,
			outcome:     outcome,
			report:      s.parser.Parse(outcome.Reply()),
			at:          s.now().UTC(),
		})
	}
	return replies
}

func (s *Service) ask(ctx context.Context, p domain.Participant, prompt string, timeout time.Duration) domain.Outcome {
	ctx, span := s.tracer.Start(ctx, "standup.ask", trace.WithAttributes(
		attribute.String("participant.id", p.ParticipantID),
		attribute.String("participant.role", p.Role),
	))
	defer span.End()

	text, err := s.agents.Send(ctx, p, prompt, timeout)
	outcome := outcomeFor(p.ParticipantID, text, err, timeout)
	span.SetAttributes(attribute.String("standup.outcome", string(outcome.Kind)))
	return outcome
}

// outcomeFor normalizes a channel result into an Outcome with its sentinel text.
func outcomeFor(participantID, text string, err error, timeout time.Duration) domain.Outcome {
	if err == nil {
		return domain.Outcome{Kind: domain.OutcomeSuccess, Text: text}
	}

	var remote *agentclient.RemoteError
	switch {
	case errors.Is(err, agentclient.ErrTimeout):
		return domain.Outcome{
			Kind:   domain.OutcomeTimeout,
			Text:   fmt.Sprintf("[no response] %s did not reply within %s", participantID, timeout),
			Detail: err.Error(),
		}
	case errors.As(err, &remote):
		return domain.Outcome{
			Kind:   domain.OutcomeRemoteError,
			Text:   fmt.Sprintf("[error] %s replied with an error: %s", participantID, remote.Error()),
			Detail: remote.Error(),
		}
	default:
		return domain.Outcome{
			Kind:   domain.OutcomeUnavailable,
			Text:   fmt.Sprintf("[unavailable] could not reach %s: %s", participantID, err.Error()),
			Detail: err.Error(),
		}
	}
}
