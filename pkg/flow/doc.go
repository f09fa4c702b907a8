// Package flow implements the OAuth redirect-proxy exchange for runtimes
// without a native cookie jar.
//
// When a sign-in response signals a redirect, the orchestrator opens a proxy
// endpoint on the API origin in an external browser surface. The proxy
// performs the provider round trip server-side, where the session cookie can
// be attached, and ultimately re-invokes the application through a deep link
// carrying the cookie payload as a query parameter. The orchestrator merges
// that payload into the credential jar, notifies the session observer when a
// session-relevant cookie changed, and closes the browser surface.
//
// The browser surface and the deep-link event source are capability
// interfaces injected at construction, so the exchange logic has no
// compile-time dependency on any platform backend and is tested entirely
// with in-memory fakes. SystemBrowser and Loopback provide working
// implementations for desktop and CLI hosts.
package flow
