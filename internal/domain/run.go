package domain

import (
	"encoding/json"
	"time"
)

// Run is the lifecycle record of the standup for one calendar date.
type Run struct {
	RunID       string     `json:"run_id"`
	Date        string     `json:"date"` // YYYY-MM-DD
	Title       string     `json:"title"`
	Timezone    string     `json:"timezone"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Entry is one participant's structured report within a run.
type Entry struct {
	EntryID       string          `json:"entry_id"`
	RunID         string          `json:"run_id"`
	ParticipantID string          `json:"participant_id"`
	IdentityRef   string          `json:"identity_ref,omitempty"`
	TurnOrder     int             `json:"turn_order"`
	SectionA      string          `json:"section_a"`
	SectionB      string          `json:"section_b"`
	SectionC      string          `json:"section_c"`
	Tasks         json.RawMessage `json:"tasks,omitempty"`
	Raw           string          `json:"raw"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Message is one line of the human-readable transcript of a run.
type Message struct {
	MessageID     string      `json:"message_id"`
	RunID         string      `json:"run_id"`
	Seq           int         `json:"seq"`
	Kind          MessageKind `json:"kind"`
	ParticipantID string      `json:"participant_id,omitempty"`
	Content       string      `json:"content"`
	CreatedAt     time.Time   `json:"created_at"`
}
