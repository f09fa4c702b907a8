// Package credentials implements the durable credential store: one cookie
// jar and one cached session body per storage prefix, persisted through a
// pluggable key-value backend.
//
// Storage failure is never fatal here. Every read accessor degrades to its
// empty default ("not logged in") when the backend fails, and jar mutations
// for a single storage key are serialized so concurrent responses cannot
// lose cookie writes.
package credentials

import (
	"context"
	"errors"
	"sync"

	"authbridge/pkg/cookie"
	"authbridge/pkg/logging"
	"authbridge/pkg/storage"
)

const (
	// DefaultStoragePrefix namespaces the local storage keys.
	DefaultStoragePrefix = "better-auth"

	// DefaultCookiePrefix classifies which server cookies belong to the
	// auth system. Distinct from the storage prefix, which is local-only.
	DefaultCookiePrefix = "better-auth"

	cookieKeySuffix  = "_cookie"
	sessionKeySuffix = "_session_data"

	sessionTokenName = "session_token"
)

// ErrNoSession is returned when no session token is present in the jar.
var ErrNoSession = errors.New("no session token available")

// EmptyRecord is the serialized form of a cleared jar or session cache.
const EmptyRecord = "{}"

// Store owns the persisted cookie record and cached session body for one
// storage prefix.
type Store struct {
	backend        storage.Backend
	storagePrefix  string
	cookiePrefixes []string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Config configures a credential store.
type Config struct {
	// Backend is the durable key-value mechanism. Defaults to an in-memory
	// backend (credentials live only for the process lifetime).
	Backend storage.Backend

	// StoragePrefix namespaces local keys. Defaults to DefaultStoragePrefix.
	StoragePrefix string

	// CookiePrefixes classify server cookies. Defaults to
	// [DefaultCookiePrefix]. An empty-string prefix switches classification
	// to well-known session suffix matching.
	CookiePrefixes []string
}

// New creates a credential store.
func New(cfg Config) *Store {
	backend := cfg.Backend
	if backend == nil {
		backend = storage.NewMemory()
	}
	storagePrefix := cfg.StoragePrefix
	if storagePrefix == "" {
		storagePrefix = DefaultStoragePrefix
	}
	cookiePrefixes := cfg.CookiePrefixes
	if cookiePrefixes == nil {
		cookiePrefixes = []string{DefaultCookiePrefix}
	}

	return &Store{
		backend:        backend,
		storagePrefix:  storagePrefix,
		cookiePrefixes: cookiePrefixes,
		locks:          make(map[string]*sync.Mutex),
	}
}

// CookieKey is the physical storage key of the cookie jar.
func (s *Store) CookieKey() string {
	return cookie.NormalizeStorageKey(s.storagePrefix + cookieKeySuffix)
}

// SessionKey is the physical storage key of the cached session body.
func (s *Store) SessionKey() string {
	return cookie.NormalizeStorageKey(s.storagePrefix + sessionKeySuffix)
}

// CookiePrefixes returns the configured classification prefixes.
func (s *Store) CookiePrefixes() []string {
	return s.cookiePrefixes
}

// lockKey serializes read-modify-write cycles per physical storage key.
func (s *Store) lockKey(key string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// get reads a key, degrading to the empty string on backend failure.
func (s *Store) get(ctx context.Context, key string) string {
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		logging.Debug("Credentials", "Backend read failed for %s, treating as absent: %v", key, err)
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

// CookieRecord returns the serialized cookie jar, or "" when absent or the
// backend failed.
func (s *Store) CookieRecord(ctx context.Context) string {
	return s.get(ctx, s.CookieKey())
}

// SetCookieRecord replaces the serialized cookie jar.
func (s *Store) SetCookieRecord(ctx context.Context, recordJSON string) error {
	unlock := s.lockKey(s.CookieKey())
	defer unlock()
	return s.backend.Set(ctx, s.CookieKey(), recordJSON)
}

// MergeSetCookieHeader parses a Set-Cookie header value and overlays the
// result onto the persisted jar. It reports whether a session-relevant
// cookie changed, which gates session refetch notifications.
func (s *Store) MergeSetCookieHeader(ctx context.Context, header string) (changed bool, err error) {
	incoming := cookie.ParseSetCookie(header)
	if len(incoming) == 0 {
		return false, nil
	}
	return s.mergeRecord(ctx, incoming)
}

// MergeEntries overlays already-decoded cookie entries onto the persisted
// jar, reporting whether a session-relevant cookie changed. The redirect
// proxy hands cookies back as a decoded record rather than a raw header.
func (s *Store) MergeEntries(ctx context.Context, incoming cookie.Record) (changed bool, err error) {
	if len(incoming) == 0 {
		return false, nil
	}
	return s.mergeRecord(ctx, incoming)
}

// mergeRecord performs one serialized read-modify-write on the jar.
func (s *Store) mergeRecord(ctx context.Context, incoming cookie.Record) (bool, error) {
	key := s.CookieKey()
	unlock := s.lockKey(key)
	defer unlock()

	prev := s.get(ctx, key)
	merged := cookie.MergeRecord(incoming, prev)
	if err := s.backend.Set(ctx, key, merged); err != nil {
		return false, err
	}
	return cookie.SessionChanged(prev, merged), nil
}

// RequestCookieHeader reconstructs the Cookie request-header value from the
// jar, filtering expired entries. Empty when no usable cookies exist.
func (s *Store) RequestCookieHeader(ctx context.Context) string {
	return cookie.RequestHeader(s.CookieRecord(ctx))
}

// SessionToken returns the bearer token derived from the jar: the
// secure-prefixed session-token cookie when present, the plain-named one
// otherwise. Empty when neither exists. Only the first configured cookie
// prefix participates, matching how the server names its session cookie.
func (s *Store) SessionToken(ctx context.Context) string {
	record := cookie.DecodeRecord(s.CookieRecord(ctx))
	name := s.sessionTokenCookieName()
	if entry, ok := record[cookie.SecurePrefix+name]; ok && entry.Value != "" {
		return entry.Value
	}
	if entry, ok := record[name]; ok {
		return entry.Value
	}
	return ""
}

// SetSessionToken writes the token under both the plain and secure-prefixed
// session-token names so the jar serves either server transport-security
// mode. Both variants carry the identical value.
func (s *Store) SetSessionToken(ctx context.Context, token string) (changed bool, err error) {
	if token == "" {
		return false, nil
	}
	name := s.sessionTokenCookieName()
	incoming := cookie.Record{
		name:                       {Value: token},
		cookie.SecurePrefix + name: {Value: token},
	}
	return s.mergeRecord(ctx, incoming)
}

// OAuthState returns the value of the OAuth state cookie the server set when
// it prepared a social sign-in, or "" when absent. The redirect proxy relays
// this value so the provider callback can be validated server-side.
func (s *Store) OAuthState(ctx context.Context) string {
	record := cookie.DecodeRecord(s.CookieRecord(ctx))
	name := s.stateCookieName()
	if entry, ok := record[cookie.SecurePrefix+name]; ok && entry.Value != "" {
		return entry.Value
	}
	if entry, ok := record[name]; ok {
		return entry.Value
	}
	return ""
}

// stateCookieName derives the server's state cookie name from the first
// configured cookie prefix.
func (s *Store) stateCookieName() string {
	prefix := s.cookiePrefixes[0]
	if prefix == "" {
		return "state"
	}
	return prefix + ".state"
}

// sessionTokenCookieName derives the server's session-token cookie name from
// the first configured cookie prefix.
func (s *Store) sessionTokenCookieName() string {
	prefix := s.cookiePrefixes[0]
	if prefix == "" {
		return sessionTokenName
	}
	return prefix + "." + sessionTokenName
}

// CachedSession returns the last cached session body, or "" when absent.
func (s *Store) CachedSession(ctx context.Context) string {
	return s.get(ctx, s.SessionKey())
}

// SetCachedSession stores the session body verbatim.
func (s *Store) SetCachedSession(ctx context.Context, body string) error {
	unlock := s.lockKey(s.SessionKey())
	defer unlock()
	return s.backend.Set(ctx, s.SessionKey(), body)
}

// Clear resets the jar and the cached session body to empty records. Used on
// sign-out; it intentionally writes empty records rather than removing the
// keys so a concurrent reader observes "logged out" rather than "never
// initialized".
func (s *Store) Clear(ctx context.Context) error {
	unlockCookie := s.lockKey(s.CookieKey())
	err := s.backend.Set(ctx, s.CookieKey(), EmptyRecord)
	unlockCookie()

	unlockSession := s.lockKey(s.SessionKey())
	if serr := s.backend.Set(ctx, s.SessionKey(), EmptyRecord); serr != nil && err == nil {
		err = serr
	}
	unlockSession()

	return err
}
