package credentials

import (
	"context"
	"errors"
	"testing"

	"authbridge/pkg/cookie"
	"authbridge/pkg/storage"
)

// failingBackend simulates an unavailable storage backend.
type failingBackend struct{}

func (failingBackend) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("storage unavailable")
}

func (failingBackend) Set(ctx context.Context, key, value string) error {
	return errors.New("storage unavailable")
}

func (failingBackend) Remove(ctx context.Context, key string) error {
	return errors.New("storage unavailable")
}

func (failingBackend) Close() error { return nil }

func newTestStore() *Store {
	return New(Config{Backend: storage.NewMemory()})
}

func TestStore_KeyDerivation(t *testing.T) {
	s := New(Config{StoragePrefix: "my-app"})

	if got := s.CookieKey(); got != "my-app_cookie" {
		t.Errorf("Expected cookie key my-app_cookie, got %q", got)
	}
	if got := s.SessionKey(); got != "my-app_session_data" {
		t.Errorf("Expected session key my-app_session_data, got %q", got)
	}
}

func TestStore_KeyDerivation_ColonRewrite(t *testing.T) {
	s := New(Config{StoragePrefix: "org:app"})

	if got := s.CookieKey(); got != "org_app_cookie" {
		t.Errorf("Expected colon rewritten in storage key, got %q", got)
	}
}

func TestStore_MergeSetCookieHeader(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	changed, err := s.MergeSetCookieHeader(ctx, "better-auth.session_token=tok; Path=/; HttpOnly")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !changed {
		t.Error("Expected first session cookie write to report a change")
	}

	header := s.RequestCookieHeader(ctx)
	if header != "better-auth.session_token=tok" {
		t.Errorf("Expected reconstructed cookie header, got %q", header)
	}
}

func TestStore_MergeSetCookieHeader_ExpiryOnlyRefresh(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	if _, err := s.MergeSetCookieHeader(ctx, "better-auth.session_token=tok; Max-Age=60"); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	changed, err := s.MergeSetCookieHeader(ctx, "better-auth.session_token=tok; Max-Age=3600")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if changed {
		t.Error("Expected expiry-only refresh not to report a session change")
	}
}

func TestStore_MergeSetCookieHeader_EmptyHeader(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	changed, err := s.MergeSetCookieHeader(ctx, "")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if changed {
		t.Error("Expected empty header to be a no-op")
	}
}

func TestStore_SessionToken_SecurePreferred(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	record := cookie.MergeRecord(cookie.Record{
		"better-auth.session_token":          {Value: "plain"},
		"__Secure-better-auth.session_token": {Value: "secure"},
	}, "{}")
	if err := s.SetCookieRecord(ctx, record); err != nil {
		t.Fatalf("SetCookieRecord failed: %v", err)
	}

	if got := s.SessionToken(ctx); got != "secure" {
		t.Errorf("Expected secure-prefixed token preferred, got %q", got)
	}
}

func TestStore_SessionToken_PlainFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	record := cookie.MergeRecord(cookie.Record{
		"better-auth.session_token": {Value: "plain"},
	}, "{}")
	if err := s.SetCookieRecord(ctx, record); err != nil {
		t.Fatalf("SetCookieRecord failed: %v", err)
	}

	if got := s.SessionToken(ctx); got != "plain" {
		t.Errorf("Expected plain token fallback, got %q", got)
	}
}

func TestStore_SetSessionToken_DualWrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	changed, err := s.SetSessionToken(ctx, "tok")
	if err != nil {
		t.Fatalf("SetSessionToken failed: %v", err)
	}
	if !changed {
		t.Error("Expected initial token write to report a change")
	}

	record := cookie.DecodeRecord(s.CookieRecord(ctx))
	plain := record["better-auth.session_token"]
	secure := record["__Secure-better-auth.session_token"]
	if plain.Value != "tok" || secure.Value != "tok" {
		t.Errorf("Expected identical dual-write, got plain=%q secure=%q", plain.Value, secure.Value)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	if _, err := s.SetSessionToken(ctx, "tok"); err != nil {
		t.Fatalf("SetSessionToken failed: %v", err)
	}
	if err := s.SetCachedSession(ctx, `{"user":{"id":"1"}}`); err != nil {
		t.Fatalf("SetCachedSession failed: %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if got := s.CookieRecord(ctx); got != EmptyRecord {
		t.Errorf("Expected cleared jar %q, got %q", EmptyRecord, got)
	}
	if got := s.CachedSession(ctx); got != EmptyRecord {
		t.Errorf("Expected cleared session cache %q, got %q", EmptyRecord, got)
	}
	if got := s.SessionToken(ctx); got != "" {
		t.Errorf("Expected no session token after clear, got %q", got)
	}
}

func TestStore_DegradesOnBackendFailure(t *testing.T) {
	ctx := context.Background()
	s := New(Config{Backend: failingBackend{}})

	if got := s.CookieRecord(ctx); got != "" {
		t.Errorf("Expected empty record on backend failure, got %q", got)
	}
	if got := s.RequestCookieHeader(ctx); got != "" {
		t.Errorf("Expected empty header on backend failure, got %q", got)
	}
	if got := s.SessionToken(ctx); got != "" {
		t.Errorf("Expected empty token on backend failure, got %q", got)
	}
	if got := s.CachedSession(ctx); got != "" {
		t.Errorf("Expected empty session cache on backend failure, got %q", got)
	}
}

func TestStore_EmptyCookiePrefix(t *testing.T) {
	ctx := context.Background()
	s := New(Config{Backend: storage.NewMemory(), CookiePrefixes: []string{""}})

	record := cookie.MergeRecord(cookie.Record{
		"session_token": {Value: "bare"},
	}, "{}")
	if err := s.SetCookieRecord(ctx, record); err != nil {
		t.Fatalf("SetCookieRecord failed: %v", err)
	}

	if got := s.SessionToken(ctx); got != "bare" {
		t.Errorf("Expected bare session_token name with empty prefix, got %q", got)
	}
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ts := s.TokenSource(ctx)
	if _, err := ts.Token(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession with empty jar, got %v", err)
	}

	if _, err := s.SetSessionToken(ctx, "tok"); err != nil {
		t.Fatalf("SetSessionToken failed: %v", err)
	}

	token, err := ts.Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token.AccessToken != "tok" {
		t.Errorf("Expected access token tok, got %q", token.AccessToken)
	}
	if token.Type() != "Bearer" {
		t.Errorf("Expected Bearer token type, got %q", token.Type())
	}
}
