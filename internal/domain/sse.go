package domain

// DeltaEventData is the data for a delta SSE event.
type DeltaEventData struct {
	Text  string `json:"text"`
	RunID string `json:"run_id"`
}

// DoneEventData is the data for a done SSE event.
type DoneEventData struct {
	FinalMessage string `json:"final_message,omitempty"`
}

// ErrorEventData is the data for an error SSE event.
type ErrorEventData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
