package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// GetRun returns the run for date, or ErrNotFound.
func (s *Service) GetRun(ctx context.Context, date string) (*domain.Run, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	run, err := s.store.GetRunByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 || limit > 365 {
		limit = 30
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return runs, nil
}

// GetEntries returns the entries of the run for date in turn order.
func (s *Service) GetEntries(ctx context.Context, date string) ([]domain.Entry, error) {
	run, err := s.GetRun(ctx, date)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.GetEntries(ctx, run.RunID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}

// GetMessages returns the transcript of the run for date.
func (s *Service) GetMessages(ctx context.Context, date string) ([]domain.Message, error) {
	run, err := s.GetRun(ctx, date)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.GetMessages(ctx, run.RunID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// DeleteRun removes the run for date with its entries and messages.
func (s *Service) DeleteRun(ctx context.Context, date string) error {
	if err := validateDate(date); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.store.DeleteRun(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	s.log.Info("standup run deleted", "date", date)
	return nil
}
