// Package notifier delivers escalation events to human principals.
package notifier

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/standup/internal/domain"
	"github.com/xiaot623/gogo/standup/internal/platform/logger"
)

// Notifier sends one escalation event to one principal.
type Notifier interface {
	Notify(ctx context.Context, principal string, event domain.EscalationEvent) error
	Name() string
}

// Options selects and configures a Notifier.
type Options struct {
	Kind         string
	IngressURL   string
	RedisAddr    string
	RedisChannel string
}

// New builds the notifier named by opts.Kind: rpc, redis or none.
func New(opts Options, log *logger.Logger) (Notifier, error) {
	switch opts.Kind {
	case "", "none", "log":
		return NewLogNotifier(log), nil
	case "rpc":
		if opts.IngressURL == "" {
			return nil, fmt.Errorf("INGRESS_URL is required for the rpc notifier")
		}
		return NewRPCNotifier(opts.IngressURL), nil
	case "redis":
		return NewRedisNotifier(opts.RedisAddr, opts.RedisChannel)
	default:
		return nil, fmt.Errorf("unknown escalation notifier %q", opts.Kind)
	}
}

// LogNotifier only logs escalations.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{log: log.With("component", "notifier")}
}

func (n *LogNotifier) Name() string { return "none" }

func (n *LogNotifier) Notify(ctx context.Context, principal string, event domain.EscalationEvent) error {
	n.log.Info("escalation", "principal", principal, "date", event.Date, "summary", event.Summary, "flagged", event.Flagged)
	return nil
}
