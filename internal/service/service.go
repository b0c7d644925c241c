// Package service implements the standup engine: running a standup for a date,
// closing it, and the read side used by the transports.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/standup/internal/adapter/notifier"
	"github.com/xiaot623/gogo/standup/internal/config"
	"github.com/xiaot623/gogo/standup/internal/directory"
	"github.com/xiaot623/gogo/standup/internal/domain"
	"github.com/xiaot623/gogo/standup/internal/metrics"
	"github.com/xiaot623/gogo/standup/internal/observability"
	"github.com/xiaot623/gogo/standup/internal/parser"
	"github.com/xiaot623/gogo/standup/internal/platform/logger"
	"github.com/xiaot623/gogo/standup/internal/repository"
	"github.com/xiaot623/gogo/standup/policy"
)

var (
	// ErrNoParticipants aborts a run that has nobody to ask.
	ErrNoParticipants = directory.ErrNoParticipants
	// ErrInvalidDate rejects dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid standup date")
	// ErrNotFound is returned when no run exists for a date.
	ErrNotFound = errors.New("standup not found")
	// ErrInvalidTimezone rejects timezone names unknown to the tz database.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrInvalidParticipant rejects malformed registrations.
	ErrInvalidParticipant = errors.New("invalid participant")
)

// AgentMessenger delivers a prompt to one participant and waits for its reply.
type AgentMessenger interface {
	Send(ctx context.Context, participant domain.Participant, prompt string, timeout time.Duration) (string, error)
}

type Service struct {
	store        repository.Store
	agents       AgentMessenger
	notifier     notifier.Notifier
	policyEngine *policy.Engine
	directory    *directory.Directory
	parser       *parser.Parser
	config       *config.Config
	metrics      metrics.Recorder
	log          *logger.Logger
	tracer       trace.Tracer
	now          func() time.Time

	// mu serializes runs, deletes and reconciliation within the process.
	mu sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store repository.Store, agents AgentMessenger, n notifier.Notifier, policyEngine *policy.Engine, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:        store,
		agents:       agents,
		notifier:     n,
		policyEngine: policyEngine,
		directory:    directory.New(store, cfg.Roles, cfg.OrchestratorID),
		parser:       parser.Default(),
		config:       cfg,
		metrics:      metrics.Noop{},
		log:          logger.Nop(),
		tracer:       observability.Tracer(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notifier.NewLogNotifier(s.log)
	}
	return s
}

// Directory exposes the participant directory.
func (s *Service) Directory() *directory.Directory {
	return s.directory
}
