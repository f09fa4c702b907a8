package cookie

import "strings"

// Well-known name suffixes that mark a cookie as session-relevant when no
// classification prefix is configured.
const (
	suffixSessionToken = "session_token"
	suffixSessionData  = "session_data"
)

// IsAuthCookie reports whether any cookie name in the Set-Cookie header value
// belongs to the auth system. The secure naming prefix is stripped before
// matching. A non-empty classification prefix requires the stripped name to
// start with it; the empty prefix instead matches names ending in one of the
// well-known session suffixes. This keeps third-party cookies (CDN, analytics)
// from triggering session refetch loops.
func IsAuthCookie(header string, prefixes []string) bool {
	for _, part := range SplitSetCookie(header) {
		name, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimPrefix(strings.TrimSpace(name), SecurePrefix)
		if name == "" {
			continue
		}
		for _, prefix := range prefixes {
			if prefix == "" {
				if strings.HasSuffix(name, suffixSessionToken) || strings.HasSuffix(name, suffixSessionData) {
					return true
				}
				continue
			}
			if strings.HasPrefix(name, prefix) {
				return true
			}
		}
	}
	return false
}

// SessionChanged reports whether the session-relevant entries differ between
// two persisted records. It is true when no previous record exists. Only
// value differences count: an entry whose expiry moved but whose value is
// unchanged does not constitute a change, which is what prevents expiry-only
// refresh writes from triggering a spurious session refetch.
func SessionChanged(prevJSON, nextJSON string) bool {
	if prevJSON == "" {
		return true
	}

	prev := DecodeRecord(prevJSON)
	next := DecodeRecord(nextJSON)

	relevant := make(map[string]struct{})
	for name := range prev {
		if isSessionRelevant(name) {
			relevant[name] = struct{}{}
		}
	}
	for name := range next {
		if isSessionRelevant(name) {
			relevant[name] = struct{}{}
		}
	}

	for name := range relevant {
		prevEntry, inPrev := prev[name]
		nextEntry, inNext := next[name]
		if inPrev != inNext {
			return true
		}
		if prevEntry.Value != nextEntry.Value {
			return true
		}
	}
	return false
}

// isSessionRelevant reports whether a cookie name holds session state.
func isSessionRelevant(name string) bool {
	return strings.Contains(name, suffixSessionToken) || strings.Contains(name, suffixSessionData)
}
