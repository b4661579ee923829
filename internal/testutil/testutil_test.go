package testutil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServeHelpers(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	rr := Serve(handler, http.MethodPost, "/test", strings.NewReader("{}"))
	AssertStatus(t, rr, http.StatusCreated)
	var body map[string]bool
	DecodeJSON(t, rr, &body)
	if !body["ok"] {
		t.Fatalf("expected ok=true")
	}

	req := httptest.NewRequest(http.MethodGet, "/req", nil)
	AssertStatus(t, ServeRequest(handler, req), http.StatusCreated)
}

func TestServerStubs(t *testing.T) {
	p := &StubPoller{Err: errors.New("stop")}
	p.Start(context.Background())
	if err := p.Stop(context.Background()); !errors.Is(err, p.Err) {
		t.Fatalf("expected stop error")
	}
	if start, stop := p.Calls(); start != 1 || stop != 1 {
		t.Fatalf("unexpected call counts %d/%d", start, stop)
	}
	if p.Status() != p.StatusVal {
		t.Fatalf("expected status passthrough")
	}

	sh := &StubHTTPServer{AddrVal: ":1", ListenErr: errors.New("boom"), Listening: make(chan struct{})}
	if err := sh.ListenAndServe(); !errors.Is(err, sh.ListenErr) {
		t.Fatalf("expected listen error passthrough")
	}
	<-sh.Listening
	_ = sh.ListenAndServe()
	_ = sh.Shutdown(context.Background())
	if sh.ListenCalls != 2 || sh.Shutdowns() != 1 || sh.Addr() != ":1" || sh.Handler() != nil {
		t.Fatalf("unexpected stub state %+v", sh)
	}

	clean := &StubHTTPServer{}
	if err := clean.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		t.Fatalf("expected ErrServerClosed, got %v", err)
	}
}

func TestLoggerAndMetricsHelpers(t *testing.T) {
	logger, buf := NewBufferLogger()
	logger.Info("hello", "k", "v")
	if buf.Len() == 0 {
		t.Fatalf("expected buffered log output")
	}
	rec, shutdown := NewRecorderWithShutdown()
	if rec == nil || shutdown == nil {
		t.Fatalf("expected recorder and shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil shutdown error, got %v", err)
	}
}
