package domain

import "time"

// Participant is an external agent identity that may contribute a report.
type Participant struct {
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Endpoint      string    `json:"endpoint"`
	IdentityRef   string    `json:"identity_ref,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Outcome is the normalized result of asking one participant for a report.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Text   string      `json:"text"`
	Detail string      `json:"detail,omitempty"`
}

// Reply returns the text recorded as the participant's raw reply.
func (o Outcome) Reply() string {
	return o.Text
}

// Failed reports whether the participant did not deliver a reply.
func (o Outcome) Failed() bool {
	return o.Kind != OutcomeSuccess
}
