package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestRenderStatus_SignedOut(t *testing.T) {
	var buf bytes.Buffer
	RenderStatus(&buf, StatusInfo{
		Endpoint: "https://api.example.com",
		Backend:  "file",
		SignedIn: false,
	})

	out := buf.String()
	if !strings.Contains(out, "https://api.example.com") {
		t.Errorf("Expected endpoint in output, got:\n%s", out)
	}
	if !strings.Contains(out, "no") {
		t.Errorf("Expected signed-out marker in output, got:\n%s", out)
	}
	if strings.Contains(out, "Cookies") {
		t.Errorf("Expected no cookie row when signed out, got:\n%s", out)
	}
}

func TestRenderStatus_SignedIn(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	var buf bytes.Buffer
	RenderStatus(&buf, StatusInfo{
		Endpoint:    "https://api.example.com",
		Backend:     "redis",
		SignedIn:    true,
		UserID:      "u1",
		Email:       "dev@example.com",
		CookieNames: []string{"better-auth.session_token", "better-auth.session_data"},
		Expires:     &expires,
	})

	out := buf.String()
	for _, want := range []string{"u1", "dev@example.com", "better-auth.session_token"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestFormatExpiry(t *testing.T) {
	if got := formatExpiry(nil); got != "session" {
		t.Errorf("Expected session-lifetime marker, got %q", got)
	}

	past := time.Now().Add(-time.Hour)
	if got := formatExpiry(&past); !strings.Contains(got, "expired") {
		t.Errorf("Expected expired marker, got %q", got)
	}
}
