// Package policy decides whether a finished standup needs a human principal.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values produced by the escalation policy.
const (
	DecisionOK       = "ok"
	DecisionEscalate = "escalate"
)

// EntryInput is the per-entry document the policy sees as input.entries[_].
type EntryInput struct {
	ParticipantID string        `json:"participant_id"`
	Role          string        `json:"role,omitempty"`
	Blockers      string        `json:"blockers"`
	Tasks         []interface{} `json:"tasks,omitempty"`
	Failed        bool          `json:"failed"`
}

// Input is the full policy input.
type Input struct {
	Date    string       `json:"date"`
	Entries []EntryInput `json:"entries"`
}

// Decision is the evaluated policy result.
type Decision struct {
	Decision string
	Flagged  []string
}

// Escalate reports whether anybody was flagged.
func (d Decision) Escalate() bool {
	return d.Decision == DecisionEscalate && len(d.Flagged) > 0
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
// The module must declare package standup_escalation.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.standup_escalation"),
		rego.Module("standup_escalation.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// LoadEngine compiles the policy at path, or DefaultPolicy when path is empty.
func LoadEngine(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate runs the policy over the entries of one run.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Decision: DecisionOK}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}

	out := Decision{Decision: DecisionOK}
	if s, ok := doc["decision"].(string); ok {
		out.Decision = s
	}
	if list, ok := doc["flagged"].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				out.Flagged = append(out.Flagged, s)
			}
		}
		sort.Strings(out.Flagged)
	}
	return out, nil
}

// DefaultPolicy flags blockers that are not "none"-like and blocked tasks.
// Entries whose reply failed are never flagged.
const DefaultPolicy = `
package standup_escalation

import rego.v1

default decision := "ok"

none_like := {"", "none", "no", "nope", "nothing", "n/a", "na", "-", "no blockers", "none so far", "not blocked"}

blocked_text(e) if {
	not e.failed
	text := lower(trim(e.blockers, " \t\r\n.!"))
	not none_like[text]
}

blocked_task(e) if {
	not e.failed
	some t in e.tasks
	t.blocked == true
}

blocked_task(e) if {
	not e.failed
	some t in e.tasks
	lower(t.status) == "blocked"
}

flagged contains e.participant_id if {
	some e in input.entries
	blocked_text(e)
}

flagged contains e.participant_id if {
	some e in input.entries
	blocked_task(e)
}

decision := "escalate" if count(flagged) > 0
`
