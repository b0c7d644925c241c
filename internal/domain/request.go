package domain

// RunRequest asks the engine to start or resume the standup for a date.
type RunRequest struct {
	Date     string `json:"date"`
	Timezone string `json:"timezone,omitempty"`
	Title    string `json:"title,omitempty"`
}

// RunResult is returned once a run reached a terminal state.
type RunResult struct {
	Run     *Run   `json:"run"`
	Result  string `json:"result"`
	Entries int    `json:"entries"`
}

// RegisterParticipantRequest registers or updates a participant in the identity store.
type RegisterParticipantRequest struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Endpoint      string `json:"endpoint"`
	IdentityRef   string `json:"identity_ref,omitempty"`
	Active        *bool  `json:"active,omitempty"`
}

// InputMessage is the prompt delivered to an agent.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentInvokeRequest is the request sent to an external agent.
type AgentInvokeRequest struct {
	AgentID      string            `json:"agent_id"`
	SessionID    string            `json:"session_id"`
	RunID        string            `json:"run_id"`
	InputMessage InputMessage      `json:"input_message"`
	Context      map[string]string `json:"context,omitempty"`
}

// EscalationEvent is pushed to a principal when a run needs attention.
type EscalationEvent struct {
	Type      string   `json:"type"`
	Date      string   `json:"date"`
	RunID     string   `json:"run_id"`
	Summary   string   `json:"summary"`
	Flagged   []string `json:"flagged"`
	Timestamp int64    `json:"ts"`
}
