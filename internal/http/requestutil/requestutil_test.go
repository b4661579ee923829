package requestutil

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestSanitizeRequestID(t *testing.T) {
	if got := SanitizeRequestID("abc-123_x"); got != "abc-123_x" {
		t.Fatalf("expected valid id kept, got %q", got)
	}
	for _, bad := range []string{"", "has space", "semi;colon"} {
		got := SanitizeRequestID(bad)
		if got == bad {
			t.Fatalf("expected %q replaced", bad)
		}
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("expected generated uuid, got %q", got)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := ClientIP(r); got != "10.0.0.1:1234" {
		t.Fatalf("expected remote addr, got %q", got)
	}
	r.Header.Set("X-Forwarded-For", " 1.2.3.4 , 5.6.7.8")
	if got := ClientIP(r); got != "1.2.3.4" {
		t.Fatalf("expected first forwarded ip, got %q", got)
	}
	if ClientIP(nil) != "" {
		t.Fatalf("expected empty for nil request")
	}
}
