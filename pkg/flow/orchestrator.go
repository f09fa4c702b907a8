package flow

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"authbridge/pkg/cookie"
	"authbridge/pkg/credentials"
	"authbridge/pkg/logging"
)

// ProxyPath is the fixed path of the trusted redirect proxy on the API
// origin. The proxy performs the provider redirect server-side and smuggles
// the resulting session cookie back through the deep-link callback.
const ProxyPath = "/capacitor-authorization-proxy"

// DefaultExchangeTimeout bounds how long an exchange waits for its callback.
// An abandoned browser session produces no event at all, so without a bound
// the exchange would stall forever.
const DefaultExchangeTimeout = 10 * time.Minute

// State is the lifecycle state of the orchestrator.
type State int

const (
	// StateIdle means no exchange is active.
	StateIdle State = iota

	// StateProxyOpened means the proxy URL has been handed to the browser.
	StateProxyOpened

	// StateAwaitingCallback means the exchange is waiting for a deep link.
	StateAwaitingCallback

	// StateCompleted means the last exchange finished successfully.
	StateCompleted

	// StateCanceled means the last exchange was canceled by the host.
	StateCanceled

	// StateTimedOut means the last exchange expired without a callback.
	StateTimedOut
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProxyOpened:
		return "proxy_opened"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateCompleted:
		return "completed"
	case StateCanceled:
		return "canceled"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Exchange is one in-progress (or just-finished) browser round trip. It is
// ephemeral and never persisted.
type Exchange struct {
	// ID correlates log lines of one exchange.
	ID string

	// SignInURL is the provider authorization URL from the sign-in response.
	SignInURL string

	// CallbackURL is the deep-link URL expected to terminate the exchange.
	CallbackURL string

	// ProxyURL is the proxy endpoint handed to the browser.
	ProxyURL string

	// OAuthState is the state value relayed to the proxy, if any.
	OAuthState string

	// StartedAt is when the exchange began.
	StartedAt time.Time
}

// Config configures an orchestrator.
type Config struct {
	// BaseURL is the API origin the proxy endpoint lives on. Required.
	BaseURL string

	// Credentials is the jar exchanged cookies are merged into. Required.
	Credentials *credentials.Store

	// Browser is the external browser surface. Required.
	Browser Browser

	// Source emits deep-link events. Required.
	Source DeepLinkSource

	// Timeout bounds one exchange. Defaults to DefaultExchangeTimeout.
	Timeout time.Duration

	// OnSessionChange is called when a merged callback payload changed a
	// session-relevant cookie, so the host refetches the session.
	OnSessionChange func()
}

// Orchestrator drives the redirect-proxy exchange state machine. At most one
// exchange is active at a time; concurrent starts are rejected, not queued.
type Orchestrator struct {
	mu sync.Mutex

	baseURL         string
	creds           *credentials.Store
	browser         Browser
	source          DeepLinkSource
	timeout         time.Duration
	onSessionChange func()

	state   State
	current *Exchange
	events  chan Event
	remove  func()
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	if cfg.Browser == nil {
		return nil, errors.New("browser surface is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("deep-link source is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultExchangeTimeout
	}

	return &Orchestrator{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		creds:           cfg.Credentials,
		browser:         cfg.Browser,
		source:          cfg.Source,
		timeout:         timeout,
		onSessionChange: cfg.OnSessionChange,
		state:           StateIdle,
	}, nil
}

// State returns the current orchestrator state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start begins an exchange: it builds the proxy URL, registers the deep-link
// listener, and opens the external browser. It returns ErrExchangeInProgress
// when another exchange is still pending. The caller must follow up with
// Wait (or use Run).
func (o *Orchestrator) Start(ctx context.Context, signInURL, callbackURL string) (*Exchange, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		return nil, ErrExchangeInProgress
	}

	oauthState := o.creds.OAuthState(ctx)
	proxyURL := o.buildProxyURL(signInURL, oauthState)

	exchange := &Exchange{
		ID:          uuid.NewString(),
		SignInURL:   signInURL,
		CallbackURL: callbackURL,
		ProxyURL:    proxyURL,
		OAuthState:  oauthState,
		StartedAt:   time.Now(),
	}

	events := make(chan Event, 8)
	remove, err := o.source.Subscribe(func(e Event) {
		select {
		case events <- e:
		default:
		}
	})
	if err != nil {
		return nil, newError(CodeAuthFailed, "failed to register deep-link listener", err)
	}

	o.state = StateProxyOpened
	if err := o.browser.Open(ctx, proxyURL); err != nil {
		remove()
		o.state = StateIdle
		return nil, newError(CodeAuthFailed, "failed to open external browser", err)
	}

	logging.Debug("Flow", "Exchange %s opened proxy on %s", exchange.ID, o.baseURL)

	o.state = StateAwaitingCallback
	o.current = exchange
	o.events = events
	o.remove = remove
	return exchange, nil
}

// Wait blocks until the pending exchange completes, times out, or the
// context is canceled. Callback events that do not match the expected
// callback URL keep the exchange waiting; multi-hop redirect chains are
// tolerated.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	exchange := o.current
	events := o.events
	o.mu.Unlock()

	if exchange == nil {
		return errors.New("no exchange in progress")
	}

	deadline := exchange.StartedAt.Add(o.timeout)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case event := <-events:
			if o.handleCallback(ctx, exchange, event) {
				o.finish(StateCompleted, false)
				logging.Debug("Flow", "Exchange %s completed", exchange.ID)
				return nil
			}

		case <-timer.C:
			o.finish(StateTimedOut, true)
			logging.Debug("Flow", "Exchange %s timed out waiting for callback", exchange.ID)
			return newError(CodeNoCallback, "no callback URL received", nil)

		case <-ctx.Done():
			o.finish(StateCanceled, true)
			logging.Debug("Flow", "Exchange %s canceled", exchange.ID)
			return newError(CodeUserCanceled, "authorization canceled", ctx.Err())
		}
	}
}

// Run is a convenience wrapper combining Start and Wait.
func (o *Orchestrator) Run(ctx context.Context, signInURL, callbackURL string) error {
	if _, err := o.Start(ctx, signInURL, callbackURL); err != nil {
		return err
	}
	return o.Wait(ctx)
}

// handleCallback processes one deep-link event. It merges any cookie payload
// into the jar regardless of whether the event terminates the exchange, and
// reports whether the event matched the expected callback URL. Parse
// failures never abort the exchange; the event is ignored and the exchange
// keeps waiting.
func (o *Orchestrator) handleCallback(ctx context.Context, exchange *Exchange, event Event) bool {
	parsed, err := url.Parse(event.URL)
	if err != nil {
		logging.Debug("Flow", "Exchange %s ignoring unparsable callback URL", exchange.ID)
		return false
	}

	if payload := parsed.Query().Get("cookie"); payload != "" {
		changed, err := o.mergeCookiePayload(ctx, payload)
		if err != nil {
			logging.Warn("Flow", "Exchange %s failed to persist callback cookies: %v", exchange.ID, err)
		}
		if changed && o.onSessionChange != nil {
			o.onSessionChange()
		}
	}

	if !matchesCallback(event.URL, parsed, exchange.CallbackURL) {
		return false
	}

	// Close may fail when the surface is already gone; that is harmless.
	if err := o.browser.Close(); err != nil {
		logging.Debug("Flow", "Exchange %s browser close failed: %v", exchange.ID, err)
	}
	return true
}

// mergeCookiePayload persists the cookie payload carried by a callback URL.
// The proxy sends a serialized cookie record; older deployments relay the
// raw Set-Cookie header value instead, so both shapes are accepted.
func (o *Orchestrator) mergeCookiePayload(ctx context.Context, payload string) (bool, error) {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, "{") {
		if record := cookie.DecodeRecord(trimmed); len(record) > 0 {
			return o.creds.MergeEntries(ctx, record)
		}
		return false, nil
	}
	return o.creds.MergeSetCookieHeader(ctx, trimmed)
}

// matchesCallback reports whether a callback URL terminates the exchange:
// either the URL before its query string equals the expected callback URL,
// or both parse and their paths are equal.
func matchesCallback(raw string, parsed *url.URL, expected string) bool {
	if expected == "" {
		return true
	}
	beforeQuery, _, _ := strings.Cut(raw, "?")
	if beforeQuery == expected {
		return true
	}
	expectedURL, err := url.Parse(expected)
	if err != nil {
		return false
	}
	expectedPath := expectedURL.Path
	if expectedPath == "" {
		return false
	}
	return parsed.Path == expectedPath
}

// finish tears down the pending exchange and records the terminal state.
// closeBrowser is set on abnormal exits, where no callback handler had the
// chance to close the surface.
func (o *Orchestrator) finish(state State, closeBrowser bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.remove != nil {
		o.remove()
		o.remove = nil
	}
	if closeBrowser {
		_ = o.browser.Close()
	}
	o.current = nil
	o.events = nil
	o.state = state
}

// buildProxyURL constructs the proxy endpoint URL carrying the provider
// authorization URL and, when present, the relayed OAuth state value.
func (o *Orchestrator) buildProxyURL(signInURL, oauthState string) string {
	params := url.Values{"authorizationURL": {signInURL}}
	if oauthState != "" {
		params.Set("oauthState", oauthState)
	}
	return o.baseURL + ProxyPath + "?" + params.Encode()
}
