package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// RegisterParticipant creates or updates a participant in the identity store.
func (s *Service) RegisterParticipant(ctx context.Context, req domain.RegisterParticipantRequest) (*domain.Participant, error) {
	id := strings.TrimSpace(req.ParticipantID)
	if id == "" {
		return nil, fmt.Errorf("%w: participant_id is required", ErrInvalidParticipant)
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		return nil, fmt.Errorf("%w: role is required", ErrInvalidParticipant)
	}

	existing, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &domain.Participant{
		ParticipantID: id,
		Name:          firstNonEmpty(strings.TrimSpace(req.Name), id),
		Role:          role,
		Endpoint:      strings.TrimSpace(req.Endpoint),
		IdentityRef:   strings.TrimSpace(req.IdentityRef),
		Active:        true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if existing != nil {
		p.CreatedAt = existing.CreatedAt
	}

	if err := s.store.UpsertParticipant(ctx, p); err != nil {
		return nil, err
	}
	if p.Active && !s.directory.Eligible(*p) {
		s.log.Warn("registered participant will not be asked to report", "participant_id", id, "role", role)
	}
	return p, nil
}

// ListParticipants lists registered participants.
func (s *Service) ListParticipants(ctx context.Context, activeOnly bool) ([]domain.Participant, error) {
	participants, err := s.store.ListParticipants(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if participants == nil {
		participants = []domain.Participant{}
	}
	return participants, nil
}

// SeedParticipants upserts the roster file participants at startup.
func (s *Service) SeedParticipants(ctx context.Context, participants []domain.Participant) error {
	for i := range participants {
		p := participants[i]
		existing, err := s.store.GetParticipant(ctx, p.ParticipantID)
		if err != nil {
			return err
		}
		if existing != nil {
			p.CreatedAt = existing.CreatedAt
		}
		if err := s.store.UpsertParticipant(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed participant %s: %w", p.ParticipantID, err)
		}
	}
	return nil
}
