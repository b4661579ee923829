package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/preston-bernstein/game-ingest-service/internal/poller"
)

// StubPoller implements the server's Poller for tests.
type StubPoller struct {
	mu         sync.Mutex
	StartCalls int
	StopCalls  int
	Err        error
	StatusVal  poller.Status
}

func (p *StubPoller) Start(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls++
}

func (p *StubPoller) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCalls++
	return p.Err
}

func (p *StubPoller) Status() poller.Status {
	return p.StatusVal
}

// Calls reports start and stop counts.
func (p *StubPoller) Calls() (start, stop int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.StartCalls, p.StopCalls
}

// StubHTTPServer implements the server's httpServer for tests. ListenAndServe
// closes Listening (when set) and returns ListenErr, or http.ErrServerClosed.
type StubHTTPServer struct {
	mu            sync.Mutex
	AddrVal       string
	HandlerVal    http.Handler
	ListenCalls   int
	ShutdownCalls int
	ListenErr     error
	ShutdownErr   error
	Listening     chan struct{}
}

func (s *StubHTTPServer) ListenAndServe() error {
	s.mu.Lock()
	s.ListenCalls++
	first := s.ListenCalls == 1
	s.mu.Unlock()
	if first && s.Listening != nil {
		close(s.Listening)
	}
	if s.ListenErr != nil {
		return s.ListenErr
	}
	return http.ErrServerClosed
}

func (s *StubHTTPServer) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ShutdownCalls++
	return s.ShutdownErr
}

func (s *StubHTTPServer) Addr() string {
	return s.AddrVal
}

func (s *StubHTTPServer) Handler() http.Handler {
	return s.HandlerVal
}

// Shutdowns reports how many times Shutdown ran.
func (s *StubHTTPServer) Shutdowns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ShutdownCalls
}
