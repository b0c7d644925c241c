// Package repository defines the storage interface and its SQLite implementation.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// ErrNotFound is returned by mutations that target a missing row.
var ErrNotFound = errors.New("not found")

// Store defines the interface for data persistence.
// Getters return (nil, nil) when the row does not exist.
type Store interface {
	// Run operations
	UpsertRun(ctx context.Context, date, title, timezone string, startedAt time.Time) (*domain.Run, error)
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	GetRunByDate(ctx context.Context, date string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, errMsg string) error
	MarkStaleRuns(ctx context.Context, beforeDate string, startedBefore time.Time) (int64, error)
	DeleteRun(ctx context.Context, date string) (bool, error)

	// Content operations
	ReplaceRunContents(ctx context.Context, runID string, entries []domain.Entry, messages []domain.Message) error
	AppendMessage(ctx context.Context, message *domain.Message) error
	GetEntries(ctx context.Context, runID string) ([]domain.Entry, error)
	GetMessages(ctx context.Context, runID string) ([]domain.Message, error)

	// Participant operations
	UpsertParticipant(ctx context.Context, participant *domain.Participant) error
	GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error)
	ListParticipants(ctx context.Context, activeOnly bool) ([]domain.Participant, error)

	// Lifecycle
	Close() error
}
