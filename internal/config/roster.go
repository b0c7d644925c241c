package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// Roster is the YAML file that makes the participant order data-driven.
//
//	orchestrator: lead
//	roles: [pm, backend, frontend, qa]
//	principals: [cto-session]
//	participants:
//	  - id: ana
//	    role: backend
//	    endpoint: http://localhost:9001
type Roster struct {
	Title        string              `yaml:"title"`
	Orchestrator string              `yaml:"orchestrator"`
	Roles        []string            `yaml:"roles"`
	Principals   []string            `yaml:"principals"`
	Participants []RosterParticipant `yaml:"participants"`
}

// RosterParticipant seeds one participant into the identity store.
type RosterParticipant struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Role        string `yaml:"role"`
	Endpoint    string `yaml:"endpoint"`
	IdentityRef string `yaml:"identity_ref"`
	Active      *bool  `yaml:"active"`
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes roster YAML.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	seen := make(map[string]bool, len(r.Participants))
	for i, p := range r.Participants {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("roster participant %d has no id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("roster participant %s listed twice", id)
		}
		seen[id] = true
	}
	return &r, nil
}

// Seed converts roster participants into domain participants. Active defaults to true.
func (r *Roster) Seed() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		out = append(out, domain.Participant{
			ParticipantID: strings.TrimSpace(p.ID),
			Name:          name,
			Role:          p.Role,
			Endpoint:      p.Endpoint,
			IdentityRef:   p.IdentityRef,
			Active:        active,
		})
	}
	return out
}
