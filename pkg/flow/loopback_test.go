package flow

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestLoopback_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopback := NewLoopback(0)
	callbackURL, err := loopback.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer loopback.Stop()

	if !strings.HasPrefix(callbackURL, "http://localhost:") || !strings.HasSuffix(callbackURL, "/callback") {
		t.Fatalf("Unexpected callback URL: %q", callbackURL)
	}
	if got := loopback.CallbackURL(); got != callbackURL {
		t.Errorf("CallbackURL() = %q, expected %q", got, callbackURL)
	}

	events := make(chan Event, 1)
	remove, err := loopback.Subscribe(func(e Event) {
		select {
		case events <- e:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer remove()

	resp, err := http.Get(callbackURL + "?cookie=%7B%7D&state=abc")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "<html") {
		t.Errorf("Expected completion page in response body")
	}

	select {
	case event := <-events:
		if !strings.HasSuffix(event.URL, "/callback?cookie=%7B%7D&state=abc") {
			t.Errorf("Unexpected event URL: %q", event.URL)
		}
		if !strings.HasPrefix(event.URL, "http://localhost:") {
			t.Errorf("Expected event URL on loopback origin, got %q", event.URL)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for deep-link event")
	}
}

func TestLoopback_RemoveIsIdempotent(t *testing.T) {
	loopback := NewLoopback(0)

	received := 0
	remove, err := loopback.Subscribe(func(Event) { received++ })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	remove()
	remove()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	callbackURL, err := loopback.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer loopback.Stop()

	resp, err := http.Get(callbackURL)
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	resp.Body.Close()

	if received != 0 {
		t.Errorf("Expected no events after removal, got %d", received)
	}
}

func TestLoopback_StartTwiceReturnsSameURL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopback := NewLoopback(0)
	first, err := loopback.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer loopback.Stop()

	second, err := loopback.Start(ctx)
	if err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected stable callback URL, got %q then %q", first, second)
	}
}
