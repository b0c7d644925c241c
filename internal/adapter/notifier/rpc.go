package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/rpc/jsonrpc"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// RPCNotifier pushes escalations to the ingress service over JSON-RPC.
// The principal is the target session id.
type RPCNotifier struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration
}

func NewRPCNotifier(baseURL string) *RPCNotifier {
	return &RPCNotifier{
		addr:        resolveRPCAddr(baseURL),
		dialTimeout: 5 * time.Second,
		callTimeout: 5 * time.Second,
	}
}

// SendRequest represents the request body for internal event delivery.
type SendRequest struct {
	SessionID string                 `json:"session_id"`
	Event     map[string]interface{} `json:"event"`
}

// SendResponse represents the response for internal event delivery.
type SendResponse struct {
	OK        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}

func (n *RPCNotifier) Name() string { return "rpc" }

func (n *RPCNotifier) Notify(ctx context.Context, principal string, event domain.EscalationEvent) error {
	payload, err := eventMap(event)
	if err != nil {
		return err
	}
	req := &SendRequest{SessionID: principal, Event: payload}

	ctx, cancel := context.WithTimeout(ctx, n.callTimeout)
	defer cancel()

	var resp SendResponse
	if err := n.call(ctx, "Ingress.PushEvent", req, &resp); err != nil {
		return fmt.Errorf("failed to push escalation to %s: %w", principal, err)
	}
	if !resp.OK {
		return fmt.Errorf("ingress rpc returned ok=false for %s", principal)
	}
	return nil
}

func (n *RPCNotifier) call(ctx context.Context, method string, args, reply interface{}) error {
	conn, err := net.DialTimeout("tcp", n.addr, n.dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client := jsonrpc.NewClient(conn)
	call := client.Go(method, args, reply, nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		return call.Error
	}
}

func eventMap(event domain.EscalationEvent) (map[string]interface{}, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveRPCAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err == nil && parsed.Host != "" {
			return parsed.Host
		}
	}
	return raw
}
