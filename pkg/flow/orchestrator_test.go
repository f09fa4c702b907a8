package flow

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"authbridge/pkg/cookie"
	"authbridge/pkg/credentials"
	"authbridge/pkg/storage"
)

// fakeBrowser records surface interactions.
type fakeBrowser struct {
	mu       sync.Mutex
	opened   []string
	closed   int
	openErr  error
	closeErr error
}

func (b *fakeBrowser) Open(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return b.openErr
	}
	b.opened = append(b.opened, url)
	return nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return b.closeErr
}

func (b *fakeBrowser) openedURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.opened) == 0 {
		return ""
	}
	return b.opened[0]
}

func (b *fakeBrowser) closeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// fakeSource is an in-memory deep-link event source.
type fakeSource struct {
	mu       sync.Mutex
	handlers map[int]func(Event)
	nextID   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[int]func(Event))}
}

func (s *fakeSource) Subscribe(handler func(Event)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}, nil
}

func (s *fakeSource) Emit(url string) {
	s.mu.Lock()
	handlers := make([]func(Event), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(Event{URL: url})
	}
}

func (s *fakeSource) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

type testRig struct {
	orchestrator *Orchestrator
	browser      *fakeBrowser
	source       *fakeSource
	creds        *credentials.Store
	changes      *int
}

func newTestRig(t *testing.T, timeout time.Duration) *testRig {
	t.Helper()

	browser := &fakeBrowser{}
	source := newFakeSource()
	creds := credentials.New(credentials.Config{Backend: storage.NewMemory()})
	changes := 0

	orchestrator, err := New(Config{
		BaseURL:         "https://api.example.com",
		Credentials:     creds,
		Browser:         browser,
		Source:          source,
		Timeout:         timeout,
		OnSessionChange: func() { changes++ },
	})
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}

	return &testRig{
		orchestrator: orchestrator,
		browser:      browser,
		source:       source,
		creds:        creds,
		changes:      &changes,
	}
}

func TestOrchestrator_ProxyURL(t *testing.T) {
	rig := newTestRig(t, time.Minute)

	_, err := rig.orchestrator.Start(context.Background(), "https://idp/auth", "myapp://auth/callback")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	opened := rig.browser.openedURL()
	if !strings.HasPrefix(opened, "https://api.example.com/capacitor-authorization-proxy?") {
		t.Fatalf("Expected proxy URL on API origin, got %q", opened)
	}
	if !strings.Contains(opened, "authorizationURL=https%3A%2F%2Fidp%2Fauth") {
		t.Errorf("Expected encoded authorization URL, got %q", opened)
	}
	if strings.Contains(opened, "oauthState") {
		t.Errorf("Expected no oauthState without a state cookie, got %q", opened)
	}
}

func TestOrchestrator_ProxyURL_RelaysOAuthState(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()

	record := cookie.MergeRecord(cookie.Record{
		"better-auth.state": {Value: "st4te"},
	}, "{}")
	if err := rig.creds.SetCookieRecord(ctx, record); err != nil {
		t.Fatalf("SetCookieRecord failed: %v", err)
	}

	exchange, err := rig.orchestrator.Start(ctx, "https://idp/auth", "")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if exchange.OAuthState != "st4te" {
		t.Errorf("Expected oauthState from jar, got %q", exchange.OAuthState)
	}
	if !strings.Contains(rig.browser.openedURL(), "oauthState=st4te") {
		t.Errorf("Expected oauthState in proxy URL, got %q", rig.browser.openedURL())
	}
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()

	if _, err := rig.orchestrator.Start(ctx, "https://idp/auth", "myapp://auth/callback"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := rig.orchestrator.State(); got != StateAwaitingCallback {
		t.Fatalf("Expected awaiting_callback state, got %s", got)
	}

	payload := url.QueryEscape(`{"better-auth.session_token":{"value":"tok","expires":null}}`)
	go rig.source.Emit("myapp://auth/callback?cookie=" + payload + "&other=1")

	if err := rig.orchestrator.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if got := rig.creds.SessionToken(ctx); got != "tok" {
		t.Errorf("Expected session token merged from callback, got %q", got)
	}
	if rig.browser.closeCalls() != 1 {
		t.Errorf("Expected one browser close, got %d", rig.browser.closeCalls())
	}
	if *rig.changes != 1 {
		t.Errorf("Expected one session-change notification, got %d", *rig.changes)
	}
	if got := rig.orchestrator.State(); got != StateCompleted {
		t.Errorf("Expected completed state, got %s", got)
	}
	if rig.source.listenerCount() != 0 {
		t.Errorf("Expected listener removed after completion, got %d", rig.source.listenerCount())
	}
}

func TestOrchestrator_MultiHopRedirect(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()

	if _, err := rig.orchestrator.Start(ctx, "https://idp/auth", "myapp://auth/callback"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go func() {
		rig.source.Emit("myapp://intermediate/hop")
		rig.source.Emit("not a url ::%") // swallowed, keeps waiting
		rig.source.Emit("myapp://auth/callback?done=1")
	}()

	if err := rig.orchestrator.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if rig.browser.closeCalls() != 1 {
		t.Errorf("Expected browser closed once at final hop, got %d", rig.browser.closeCalls())
	}
}

func TestOrchestrator_ConcurrentStartRejected(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx := context.Background()

	if _, err := rig.orchestrator.Start(ctx, "https://idp/auth", ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err := rig.orchestrator.Start(ctx, "https://idp/other", "")
	if !errors.Is(err, ErrExchangeInProgress) {
		t.Errorf("Expected ErrExchangeInProgress, got %v", err)
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	rig := newTestRig(t, 50*time.Millisecond)
	ctx := context.Background()

	if _, err := rig.orchestrator.Start(ctx, "https://idp/auth", "myapp://auth/callback"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := rig.orchestrator.Wait(ctx)
	if CodeOf(err) != CodeNoCallback {
		t.Fatalf("Expected NO_CALLBACK, got %v", err)
	}
	if got := rig.orchestrator.State(); got != StateTimedOut {
		t.Errorf("Expected timed_out state, got %s", got)
	}
	if rig.browser.closeCalls() != 1 {
		t.Errorf("Expected browser closed on timeout, got %d calls", rig.browser.closeCalls())
	}

	// A new exchange may start after the previous one resolved.
	if _, err := rig.orchestrator.Start(ctx, "https://idp/auth", ""); err != nil {
		t.Errorf("Expected new exchange after timeout, got %v", err)
	}
}

func TestOrchestrator_Canceled(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := rig.orchestrator.Start(ctx, "https://idp/auth", ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	cancel()
	err := rig.orchestrator.Wait(ctx)
	if CodeOf(err) != CodeUserCanceled {
		t.Fatalf("Expected USER_CANCELED, got %v", err)
	}
	if got := rig.orchestrator.State(); got != StateCanceled {
		t.Errorf("Expected canceled state, got %s", got)
	}
}

func TestOrchestrator_BrowserOpenFailure(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	rig.browser.openErr = errors.New("no browser available")

	_, err := rig.orchestrator.Start(context.Background(), "https://idp/auth", "")
	if CodeOf(err) != CodeAuthFailed {
		t.Fatalf("Expected AUTH_FAILED, got %v", err)
	}
	if rig.source.listenerCount() != 0 {
		t.Errorf("Expected listener removed after failed open, got %d", rig.source.listenerCount())
	}
	if got := rig.orchestrator.State(); got != StateIdle {
		t.Errorf("Expected idle state after failed open, got %s", got)
	}
}

func TestOrchestrator_BrowserCloseFailureSwallowed(t *testing.T) {
	rig := newTestRig(t, time.Minute)
	rig.browser.closeErr = errors.New("already closed")
	ctx := context.Background()

	if _, err := rig.orchestrator.Start(ctx, "https://idp/auth", "myapp://cb"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	go rig.source.Emit("myapp://cb")

	if err := rig.orchestrator.Wait(ctx); err != nil {
		t.Errorf("Expected close failure swallowed, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateProxyOpened, "proxy_opened"},
		{StateAwaitingCallback, "awaiting_callback"},
		{StateCompleted, "completed"},
		{StateCanceled, "canceled"},
		{StateTimedOut, "timed_out"},
		{State(99), "unknown"},
	}
	for _, test := range tests {
		if got := test.state.String(); got != test.expected {
			t.Errorf("State(%d).String() = %s, expected %s", test.state, got, test.expected)
		}
	}
}

func TestMatchesCallback(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		want     bool
	}{
		{"exact before query", "myapp://auth/callback?x=1", "myapp://auth/callback", true},
		{"path match", "https://localhost:3000/auth/callback?x=1", "/auth/callback", true},
		{"mismatch", "myapp://other/hop", "myapp://auth/callback", false},
		{"no expectation", "myapp://anything", "", true},
	}

	for _, test := range tests {
		parsed, err := url.Parse(test.raw)
		if err != nil {
			t.Fatalf("%s: unexpected parse error: %v", test.name, err)
		}
		if got := matchesCallback(test.raw, parsed, test.expected); got != test.want {
			t.Errorf("%s: matchesCallback = %v, expected %v", test.name, got, test.want)
		}
	}
}
