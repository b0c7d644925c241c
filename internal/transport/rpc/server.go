// Package rpc exposes the standup trigger over JSON-RPC for schedulers.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"github.com/xiaot623/gogo/standup/internal/domain"
	"github.com/xiaot623/gogo/standup/internal/platform/logger"
	"github.com/xiaot623/gogo/standup/internal/service"
)

// Server exposes internal RPC endpoints for schedulers and operators.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	log       *logger.Logger
	ready     chan struct{}
	done      chan struct{}
	once      sync.Once
}

// NewServer creates a new RPC server bound to the standup service.
func NewServer(svc *service.Service, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName("Standup", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		log:       log,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown closes it.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln
	s.once.Do(func() { close(s.ready) })

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			s.log.Warn("rpc accept error", "error", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.ready:
	default:
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Standup RPC methods.
type Handler struct {
	service *service.Service
}

// StartRun runs the standup for req.Date. The date may be "today".
func (h *Handler) StartRun(req *domain.RunRequest, resp *domain.RunResult) error {
	if req == nil {
		return errors.New("run request is required")
	}

	date, err := h.service.ResolveDate(req.Date, req.Timezone)
	if err != nil {
		return err
	}
	run := *req
	run.Date = date

	result, err := h.service.StartRun(context.Background(), run)
	if err != nil {
		return err
	}
	if resp != nil && result != nil {
		*resp = *result
	}
	return nil
}

// ReconcileResponse reports how many runs were marked abandoned.
type ReconcileResponse struct {
	OK        bool  `json:"ok"`
	Abandoned int64 `json:"abandoned"`
}

// Reconcile marks abandoned runs.
func (h *Handler) Reconcile(_ *struct{}, resp *ReconcileResponse) error {
	n, err := h.service.Reconcile(context.Background())
	if err != nil {
		return err
	}
	if resp != nil {
		resp.OK = true
		resp.Abandoned = n
	}
	return nil
}
