package credentials

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts the store to an oauth2.TokenSource yielding the jar's
// session token as a Bearer token. The hosting runtime forbids sending a
// native Cookie header, so this bearer channel is the sole credential path
// on outgoing requests.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &jarTokenSource{ctx: ctx, store: s}
}

type jarTokenSource struct {
	ctx   context.Context
	store *Store
}

// Token implements oauth2.TokenSource. It re-reads the jar on every call so
// a refreshed session cookie is picked up without rebuilding transports.
func (ts *jarTokenSource) Token() (*oauth2.Token, error) {
	token := ts.store.SessionToken(ts.ctx)
	if token == "" {
		return nil, ErrNoSession
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
