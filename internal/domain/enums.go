// Package domain defines the core domain models for the standup engine.
package domain

// RunStatus represents the lifecycle status of a standup run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
)

// MessageKind distinguishes transcript lines.
type MessageKind string

const (
	MessageKindSystem      MessageKind = "system"
	MessageKindParticipant MessageKind = "participant"
)

// OutcomeKind classifies the result of asking one participant for a report.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeTimeout     OutcomeKind = "timeout"
	OutcomeRemoteError OutcomeKind = "remote_error"
	OutcomeUnavailable OutcomeKind = "unavailable"
)
