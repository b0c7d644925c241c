// Package directory resolves which participants report in a standup and in what order.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// ErrNoParticipants is returned when nobody is eligible to report.
var ErrNoParticipants = errors.New("no eligible participants")

// Source lists participants from the identity store.
type Source interface {
	ListParticipants(ctx context.Context, activeOnly bool) ([]domain.Participant, error)
}

// Directory filters and orders participants by the canonical role order.
type Directory struct {
	source       Source
	roles        []string
	rank         map[string]int
	orchestrator string
}

// New creates a directory. roles is the canonical order; orchestrator is the
// id (or role) of the coordinating participant, which never reports to itself.
func New(source Source, roles []string, orchestrator string) *Directory {
	rank := make(map[string]int, len(roles))
	clean := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := rank[r]; dup {
			continue
		}
		rank[r] = len(clean)
		clean = append(clean, r)
	}
	return &Directory{source: source, roles: clean, rank: rank, orchestrator: orchestrator}
}

// Roles returns the canonical role order.
func (d *Directory) Roles() []string {
	out := make([]string, len(d.roles))
	copy(out, d.roles)
	return out
}

// Orchestrator returns the coordinating participant id.
func (d *Directory) Orchestrator() string {
	return d.orchestrator
}

// Resolve returns the eligible participants in reporting order.
func (d *Directory) Resolve(ctx context.Context) ([]domain.Participant, error) {
	all, err := d.source.ListParticipants(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	var out []domain.Participant
	for _, p := range all {
		if d.Eligible(p) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		if len(d.roles) == 0 {
			return nil, fmt.Errorf("%w: no roles configured (set STANDUP_ROLES or a roster)", ErrNoParticipants)
		}
		return nil, ErrNoParticipants
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := d.rank[out[i].Role], d.rank[out[j].Role]
		if ri != rj {
			return ri < rj
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out, nil
}

// Eligible reports whether p may report in a run.
func (d *Directory) Eligible(p domain.Participant) bool {
	if !p.Active || strings.TrimSpace(p.ParticipantID) == "" {
		return false
	}
	if _, ok := d.rank[p.Role]; !ok {
		return false
	}
	if d.orchestrator != "" && (p.ParticipantID == d.orchestrator || p.Role == d.orchestrator) {
		return false
	}
	return true
}
