// Package agentclient provides the HTTP client for asking external agents for
// their standup report over an SSE stream.
package agentclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// ErrTimeout is returned when the agent did not finish replying before the deadline.
var ErrTimeout = errors.New("agent reply timed out")

// RemoteError is returned when the agent answered with an error.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("agent returned status %d: %s", e.StatusCode, e.Message)
	default:
		return e.Message
	}
}

// UnavailableError is returned when the agent could not be reached at all.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// SSEEvent represents a parsed SSE event.
type SSEEvent struct {
	Event string
	Data  string
}

// EventHandler is called for each SSE event from the agent.
type EventHandler func(event SSEEvent) error

// Client is an HTTP client for invoking agents.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new agent client. Per-request deadlines come from Send.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// Send delivers prompt to the participant and waits up to timeout for the full reply.
func (c *Client) Send(ctx context.Context, participant domain.Participant, prompt string, timeout time.Duration) (string, error) {
	if strings.TrimSpace(participant.Endpoint) == "" {
		return "", &UnavailableError{Err: errors.New("no endpoint registered")}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := &domain.AgentInvokeRequest{
		AgentID:      participant.ParticipantID,
		SessionID:    "standup-" + participant.ParticipantID,
		RunID:        uuid.NewString(),
		InputMessage: domain.InputMessage{Role: "user", Content: prompt},
	}

	var text strings.Builder
	done := false
	err := c.Invoke(ctx, participant.Endpoint, req, func(event SSEEvent) error {
		switch event.Event {
		case "delta":
			delta, err := ParseDeltaEvent(event.Data)
			if err != nil {
				return &RemoteError{Message: err.Error()}
			}
			text.WriteString(delta.Text)
		case "done":
			d, err := ParseDoneEvent(event.Data)
			if err == nil && d.FinalMessage != "" {
				text.Reset()
				text.WriteString(d.FinalMessage)
			}
			done = true
			return errStop
		case "error":
			e, err := ParseErrorEvent(event.Data)
			if err != nil {
				return &RemoteError{Message: event.Data}
			}
			return &RemoteError{Code: e.Code, Message: e.Message}
		}
		return nil
	})
	if errors.Is(err, errStop) {
		err = nil
	}
	if ctx.Err() == context.DeadlineExceeded && !done {
		return "", ErrTimeout
	}
	if err != nil {
		return "", err
	}
	if !done {
		return "", &RemoteError{Message: "stream closed before done event"}
	}
	return text.String(), nil
}

var errStop = errors.New("stop stream")

// Invoke calls an agent's /invoke endpoint and streams SSE events.
func (c *Client) Invoke(ctx context.Context, endpoint string, req *domain.AgentInvokeRequest, handler EventHandler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(endpoint, "/") + "/invoke"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &UnavailableError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Session-ID", req.SessionID)
	httpReq.Header.Set("X-Run-ID", req.RunID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &UnavailableError{Err: fmt.Errorf("failed to invoke agent: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}
	}

	return c.parseSSE(resp.Body, handler)
}

// parseSSE parses an SSE stream and calls the handler for each event.
func (c *Client) parseSSE(reader io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var event SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := handler(event); err != nil {
					return err
				}
				event = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
	}

	if event.Event != "" || event.Data != "" {
		if err := handler(event); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// ParseDeltaEvent parses a delta event data.
func ParseDeltaEvent(data string) (*domain.DeltaEventData, error) {
	var delta domain.DeltaEventData
	if err := json.Unmarshal([]byte(data), &delta); err != nil {
		return nil, fmt.Errorf("failed to parse delta event: %w", err)
	}
	return &delta, nil
}

// ParseDoneEvent parses a done event data.
func ParseDoneEvent(data string) (*domain.DoneEventData, error) {
	var done domain.DoneEventData
	if err := json.Unmarshal([]byte(data), &done); err != nil {
		return nil, fmt.Errorf("failed to parse done event: %w", err)
	}
	return &done, nil
}

// ParseErrorEvent parses an error event data.
func ParseErrorEvent(data string) (*domain.ErrorEventData, error) {
	var errEvt domain.ErrorEventData
	if err := json.Unmarshal([]byte(data), &errEvt); err != nil {
		return nil, fmt.Errorf("failed to parse error event: %w", err)
	}
	return &errEvt, nil
}
