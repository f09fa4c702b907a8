package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"authbridge/pkg/cookie"
	"authbridge/pkg/logging"
)

// callbackFields are the request-body fields the auth server interprets as
// post-auth redirect targets. Relative values cannot work from a native
// shell, so they are rewritten to deep-link URLs.
var callbackFields = []string{"callbackURL", "newUserCallbackURL", "errorCallbackURL"}

// bodyInfo captures what the pre-request hook learned from the request body.
type bodyInfo struct {
	// hasIDToken marks a silent/native sign-in. Those complete without a
	// browser, so a redirect response must not open one.
	hasIDToken bool

	// callbackURL is the deep-link URL the server will redirect back to,
	// after rewriting.
	callbackURL string
}

// transport is the intercepting http.RoundTripper.
type transport struct {
	client *Client
	base   http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	ctx := req.Context()
	out := req.Clone(ctx)

	// Sign-out resets all credential state before the request goes out.
	if strings.HasSuffix(out.URL.Path, signOutPath) {
		c.clearSignedOutState(ctx)
	}

	info, err := t.prepareBody(out)
	if err != nil {
		return nil, err
	}

	// Cookies never travel as a Cookie header; the bearer token is the sole
	// credential channel.
	out.Header.Del("Cookie")
	if token, err := c.creds.TokenSource(ctx).Token(); err == nil {
		token.SetAuthHeader(out)
	}

	if c.scheme != "" {
		out.Header.Set("capacitor-origin", c.scheme+"://")
		out.Header.Set("x-skip-oauth-proxy", "true")
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	t.applyResponseHooks(ctx, out, resp, info)
	return resp, nil
}

// prepareBody buffers a JSON request body, records whether it carries an
// idToken and which callback URL it names, and rewrites relative callback
// fields to deep-link URLs when a scheme is configured. Non-JSON bodies pass
// through untouched.
func (t *transport) prepareBody(req *http.Request) (bodyInfo, error) {
	info := bodyInfo{}
	if req.Body == nil || req.Body == http.NoBody {
		return info, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return info, fmt.Errorf("failed to read request body: %w", err)
	}

	rewritten := data
	var fields map[string]interface{}
	if json.Unmarshal(data, &fields) == nil && fields != nil {
		_, info.hasIDToken = fields["idToken"]

		if t.client.scheme != "" {
			changed := false
			for _, field := range callbackFields {
				value, ok := fields[field].(string)
				if ok && strings.HasPrefix(value, "/") {
					fields[field] = t.client.scheme + ":/" + value
					changed = true
				}
			}
			if changed {
				if encoded, err := json.Marshal(fields); err == nil {
					rewritten = encoded
				}
			}
		}

		if value, ok := fields["callbackURL"].(string); ok {
			info.callbackURL = value
		}
	}

	req.Body = io.NopCloser(bytes.NewReader(rewritten))
	req.ContentLength = int64(len(rewritten))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(rewritten)), nil
	}
	return info, nil
}

// applyResponseHooks feeds response credentials back into the store, caches
// the session body, and hands redirect sign-in responses to the
// orchestrator.
func (t *transport) applyResponseHooks(ctx context.Context, req *http.Request, resp *http.Response, info bodyInfo) {
	c := t.client
	changed := false

	if token := resp.Header.Get("set-auth-token"); token != "" {
		tokenChanged, err := c.creds.SetSessionToken(ctx, token)
		if err != nil {
			logging.Warn("Client", "Failed to store auth token: %v", err)
		} else if tokenChanged {
			changed = true
		}
	}

	for _, header := range resp.Header.Values("Set-Cookie") {
		for _, part := range cookie.SplitSetCookie(header) {
			if !cookie.IsAuthCookie(part, c.creds.CookiePrefixes()) {
				continue
			}
			mergeChanged, err := c.creds.MergeSetCookieHeader(ctx, part)
			if err != nil {
				logging.Warn("Client", "Failed to merge response cookies: %v", err)
				continue
			}
			if mergeChanged {
				changed = true
			}
		}
	}

	if changed {
		c.notifySessionChange()
	}

	if resp.StatusCode != http.StatusOK {
		return
	}

	path := req.URL.Path
	switch {
	case strings.HasSuffix(path, sessionPath):
		t.cacheSessionBody(ctx, resp)

	case strings.HasSuffix(path, socialSignInPath) || strings.HasSuffix(path, linkSocialPath):
		t.maybeStartFlow(resp, info)
	}
}

// cacheSessionBody persists the session endpoint's body verbatim, leaving
// the response readable for the caller.
func (t *transport) cacheSessionBody(ctx context.Context, resp *http.Response) {
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		logging.Warn("Client", "Failed to read session body: %v", err)
		return
	}

	body := string(data)
	if err := t.client.creds.SetCachedSession(ctx, body); err != nil {
		logging.Warn("Client", "Failed to cache session body: %v", err)
	}
	t.client.setSnapshot(body)
}

// maybeStartFlow starts an OAuth exchange when a sign-in response signals a
// redirect. A request that carried an idToken completes natively, so the
// browser stays closed for it.
func (t *transport) maybeStartFlow(resp *http.Response, info bodyInfo) {
	c := t.client
	if c.orchestrator == nil || info.hasIDToken {
		return
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		logging.Warn("Client", "Failed to read sign-in response: %v", err)
		return
	}

	var signIn struct {
		Redirect bool   `json:"redirect"`
		URL      string `json:"url"`
	}
	if json.Unmarshal(data, &signIn) != nil || !signIn.Redirect || signIn.URL == "" {
		return
	}

	// The exchange outlives the originating request; it runs against a
	// fresh context bounded by the orchestrator timeout.
	go func() {
		if err := c.orchestrator.Run(context.Background(), signIn.URL, info.callbackURL); err != nil {
			logging.Warn("Client", "OAuth exchange failed: %v", err)
		}
	}()
}
