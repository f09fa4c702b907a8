package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"authbridge/pkg/credentials"
	"authbridge/pkg/flow"
	"authbridge/pkg/logging"
	"authbridge/pkg/storage"
)

// Endpoint paths of the auth server, matched as request path suffixes so
// that servers mounted under a sub-path keep working.
const (
	signOutPath      = "/sign-out"
	sessionPath      = "/get-session"
	socialSignInPath = "/sign-in/social"
	linkSocialPath   = "/link-social"
)

// Client is an HTTP client for a cookie-session auth server. All requests
// issued through it pass the interceptor transport.
type Client struct {
	httpClient *http.Client
	baseURL    string
	scheme     string

	creds           *credentials.Store
	orchestrator    *flow.Orchestrator
	onSessionChange func()

	sessionMu sync.RWMutex
	session   string

	refetch singleflight.Group
}

// New creates a client. A base URL is required; everything else has
// defaults (in-memory storage, no deep-link scheme, no OAuth surface).
func New(opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	backend := o.backend
	if backend == nil {
		backend = storage.NewMemory()
	}

	c := &Client{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		scheme:  o.scheme,
		creds: credentials.New(credentials.Config{
			Backend:        backend,
			StoragePrefix:  o.storagePrefix,
			CookiePrefixes: o.cookiePrefixes,
		}),
		onSessionChange: o.onSessionChange,
	}

	if o.browser != nil && o.source != nil {
		orchestrator, err := flow.New(flow.Config{
			BaseURL:         c.baseURL,
			Credentials:     c.creds,
			Browser:         o.browser,
			Source:          o.source,
			Timeout:         o.flowTimeout,
			OnSessionChange: c.notifySessionChange,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set up OAuth orchestrator: %w", err)
		}
		c.orchestrator = orchestrator
	}

	base := http.DefaultClient
	if o.httpClient != nil {
		base = o.httpClient
	}
	httpClient := *base
	httpClient.Transport = &transport{client: c, base: base.Transport}
	c.httpClient = &httpClient

	return c, nil
}

// HTTPClient returns the intercepting HTTP client. Requests to the auth
// server should go through it so credentials stay in sync.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Credentials returns the underlying credential store.
func (c *Client) Credentials() *credentials.Store {
	return c.creds
}

// Flow returns the OAuth orchestrator, or nil when no browser surface and
// deep-link source were configured.
func (c *Client) Flow() *flow.Orchestrator {
	return c.orchestrator
}

// Do issues a request through the intercepting client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// Session returns the current session body. It serves the in-memory
// snapshot when present, then the persisted session cache, and only then
// refetches from the server. Concurrent refetches are deduplicated.
func (c *Client) Session(ctx context.Context) (string, error) {
	if snapshot := c.snapshot(); snapshot != "" {
		return snapshot, nil
	}

	if cached := c.creds.CachedSession(ctx); cached != "" && cached != credentials.EmptyRecord {
		c.setSnapshot(cached)
		return cached, nil
	}

	return c.fetchSession(ctx)
}

// RefreshSession discards the in-memory snapshot and refetches the session
// from the server. Focus and connectivity observers use it to pick up
// sign-ins performed elsewhere.
func (c *Client) RefreshSession(ctx context.Context) (string, error) {
	c.setSnapshot("")
	return c.fetchSession(ctx)
}

func (c *Client) fetchSession(ctx context.Context) (string, error) {
	body, err, _ := c.refetch.Do("session", func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sessionPath, nil)
		if err != nil {
			return "", err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to fetch session: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read session response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("session endpoint returned status %d", resp.StatusCode)
		}
		return string(data), nil
	})
	if err != nil {
		return "", err
	}
	return body.(string), nil
}

func (c *Client) snapshot() string {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session
}

func (c *Client) setSnapshot(body string) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	c.session = body
}

// notifySessionChange invalidates the in-memory snapshot and relays the
// change to the host callback.
func (c *Client) notifySessionChange() {
	c.setSnapshot("")
	if c.onSessionChange != nil {
		c.onSessionChange()
	}
}

// clearSignedOutState eagerly resets every credential surface. It runs
// before a sign-out request is sent so the host observes the logged-out
// state without waiting for the response.
func (c *Client) clearSignedOutState(ctx context.Context) {
	c.setSnapshot("")
	if err := c.creds.Clear(ctx); err != nil {
		logging.Warn("Client", "Failed to clear credentials on sign-out: %v", err)
	}
}
