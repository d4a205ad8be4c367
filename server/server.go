package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ember.server")

// DefaultReadMaxBytes caps the size of a request message.
const DefaultReadMaxBytes = 1 << 20

// Server is the evaluation server. It serves the Connect protocol over
// HTTP/JSON and binary protobuf on the same port.
type Server struct {
	worker *Worker
	mux    *http.ServeMux
	http   *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	handlerOptions []connect.HandlerOption
	readTimeout    time.Duration
}

// WithHandlerOptions passes options to the Connect handlers. They apply
// after the defaults, so they can raise DefaultReadMaxBytes.
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(c *serverConfig) { c.handlerOptions = append(c.handlerOptions, opts...) }
}

// WithReadTimeout bounds how long reading a request may take.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.readTimeout = d }
}

// New creates a Server with its own evaluation worker.
func New(opts ...ServerOption) *Server {
	cfg := &serverConfig{
		handlerOptions: []connect.HandlerOption{connect.WithReadMaxBytes(DefaultReadMaxBytes)},
		readTimeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		worker: NewWorker(),
		mux:    http.NewServeMux(),
	}

	evalPath, evalHandler := NewEvalServiceHandler(NewEvalService(s.worker), cfg.handlerOptions...)
	s.mux.Handle(evalPath, evalHandler)

	s.http = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: cfg.readTimeout,
	}
	return s
}

// Handler returns the HTTP handler serving all procedures.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address. The address
// should be in the form "host:port" or ":port". It returns nil after
// Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http.Addr = addr
	log.Noticef("ember server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, EvaluateProcedure)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires, then stops the worker.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.worker.Stop()
	log.Notice("ember server shutting down")
	return s.http.Shutdown(ctx)
}
