package client

import (
	"net/http"
	"time"

	"authbridge/pkg/flow"
	"authbridge/pkg/storage"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	baseURL         string
	scheme          string
	backend         storage.Backend
	storagePrefix   string
	cookiePrefixes  []string
	browser         flow.Browser
	source          flow.DeepLinkSource
	onSessionChange func()
	httpClient      *http.Client
	flowTimeout     time.Duration
}

// WithBaseURL sets the auth server base URL. Required.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithScheme sets the app deep-link scheme (for example "myapp"). When set,
// requests carry the native-origin headers and relative callback URLs in
// request bodies are rewritten to deep-link URLs.
func WithScheme(scheme string) Option {
	return func(o *options) {
		o.scheme = scheme
	}
}

// WithBackend sets the credential storage backend. Defaults to an in-memory
// backend.
func WithBackend(backend storage.Backend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// WithStoragePrefix sets the storage key prefix.
func WithStoragePrefix(prefix string) Option {
	return func(o *options) {
		o.storagePrefix = prefix
	}
}

// WithCookiePrefixes sets the cookie name prefixes that identify auth
// cookies.
func WithCookiePrefixes(prefixes []string) Option {
	return func(o *options) {
		o.cookiePrefixes = prefixes
	}
}

// WithBrowser sets the external browser surface for OAuth redirects. The
// orchestrator is wired only when both a browser and a deep-link source are
// provided.
func WithBrowser(browser flow.Browser) Option {
	return func(o *options) {
		o.browser = browser
	}
}

// WithDeepLinkSource sets the source of deep-link callback events.
func WithDeepLinkSource(source flow.DeepLinkSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithOnSessionChange registers a callback invoked whenever a response or a
// completed OAuth exchange changed session-relevant credentials.
func WithOnSessionChange(callback func()) Option {
	return func(o *options) {
		o.onSessionChange = callback
	}
}

// WithHTTPClient sets the underlying HTTP client. The client is copied; its
// transport becomes the base the interceptor delegates to.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithFlowTimeout bounds one OAuth exchange.
func WithFlowTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.flowTimeout = timeout
	}
}
