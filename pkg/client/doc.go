// Package client provides the HTTP client that bridges cookie-based session
// auth onto runtimes without a native cookie jar. Its transport intercepts
// every request: outgoing requests carry the persisted session as a bearer
// token (never as a Cookie header), responses feed auth cookies back into the
// credential store, and sign-in responses that signal an OAuth redirect hand
// off to the flow orchestrator.
package client
