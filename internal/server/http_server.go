package server

import (
	"context"
	"net"
	"net/http"
)

// httpServer abstracts the HTTP server implementation for easier testing.
type httpServer interface {
	ListenAndServe() error
	Shutdown(context.Context) error
	Addr() string
	Handler() http.Handler
}

// netHTTPServer serves on listener when set, otherwise on srv.Addr.
type netHTTPServer struct {
	srv      *http.Server
	listener net.Listener
}

func newNetHTTPServer(addr string, handler http.Handler) netHTTPServer {
	return netHTTPServer{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}}
}

func (s netHTTPServer) ListenAndServe() error {
	if s.listener != nil {
		return s.srv.Serve(s.listener)
	}
	return s.srv.ListenAndServe()
}

func (s netHTTPServer) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s netHTTPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

func (s netHTTPServer) Handler() http.Handler { return s.srv.Handler }
