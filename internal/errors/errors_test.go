package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestSentinelsMatchWrappedErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel *Error
	}{
		{"policy", PolicyDenied("https://example.com"), ErrPolicyDenied},
		{"fetch", FetchFailed("https://example.com/x", 4, context.DeadlineExceeded), ErrFetchFailed},
		{"parse", ParseFailure("row 3", New("bad cell")), ErrParseFailure},
		{"conflict", ValidationConflict("g1", nil), ErrValidationConflict},
		{"store", StoreWriteFailure("games", New("locked")), ErrStoreWriteFailure},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("cycle: %w", tc.err)
			if !Is(wrapped, tc.sentinel) {
				t.Fatalf("expected %v to match sentinel %v", wrapped, tc.sentinel)
			}
			if CodeOf(wrapped) != tc.sentinel.Code {
				t.Fatalf("expected code %s, got %s", tc.sentinel.Code, CodeOf(wrapped))
			}
		})
	}
}

func TestSentinelsDoNotCrossMatch(t *testing.T) {
	if Is(PolicyDenied("x"), ErrFetchFailed) {
		t.Fatalf("policy denial must not match fetch failure")
	}
}

func TestFetchFailedUnwrapsCause(t *testing.T) {
	err := FetchFailed("u", 2, context.DeadlineExceeded)
	if !Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be reachable")
	}
	if err.Error() == "" {
		t.Fatalf("expected message")
	}
}

func TestRetryableCodes(t *testing.T) {
	if !CodeFetchFailed.Retryable() || !CodeStoreWriteFailure.Retryable() {
		t.Fatalf("fetch and store failures are retried next cycle")
	}
	if CodePolicyDenied.Retryable() || CodeParseFailure.Retryable() {
		t.Fatalf("policy and parse failures are not retried")
	}
	if CodeOf(New("plain")) != "" {
		t.Fatalf("expected empty code for plain errors")
	}
}
