package cookie

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"
)

// SecurePrefix is the cookie name prefix servers use for cookies set under a
// transport-security-required policy. A record may hold both the plain and
// the secure-prefixed variant of the same logical cookie.
const SecurePrefix = "__Secure-"

// StoredCookie is one durable cookie entry. Expires is nil for
// session-lifetime cookies.
type StoredCookie struct {
	Value   string     `json:"value"`
	Expires *time.Time `json:"expires"`
}

// Record maps cookie names to their stored entries. It is persisted as a
// single JSON blob per jar.
type Record map[string]StoredCookie

// ParseSetCookie parses a Set-Cookie header value, which may encode multiple
// cookies, into a Record. Expiry is derived from Max-Age when present (seconds
// relative to now), otherwise from the Expires attribute, otherwise nil.
// Entries with empty values are dropped.
func ParseSetCookie(header string) Record {
	return parseSetCookieAt(header, time.Now())
}

func parseSetCookieAt(header string, now time.Time) Record {
	record := make(Record)
	for _, part := range SplitSetCookie(header) {
		resp := http.Response{Header: http.Header{"Set-Cookie": {part}}}
		for _, c := range resp.Cookies() {
			if c.Name == "" || c.Value == "" {
				continue
			}
			entry := StoredCookie{Value: c.Value}
			switch {
			case c.MaxAge > 0:
				t := now.Add(time.Duration(c.MaxAge) * time.Second)
				entry.Expires = &t
			case c.MaxAge < 0:
				// Max-Age=0 (or negative) expires the cookie immediately.
				t := now
				entry.Expires = &t
			case !c.Expires.IsZero():
				t := c.Expires
				entry.Expires = &t
			}
			record[c.Name] = entry
		}
	}
	return record
}

// SplitSetCookie splits a combined Set-Cookie header value into individual
// cookie strings. A comma only separates cookies when it is followed by a
// `name=` token; commas inside Expires dates ("Wed, 21 Oct 2015 ...") never
// match that shape because a space precedes the next equals sign.
func SplitSetCookie(header string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(header); i++ {
		if header[i] != ',' {
			continue
		}
		if startsNewCookie(header[i+1:]) {
			parts = append(parts, strings.TrimSpace(header[start:i]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(header[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// startsNewCookie reports whether s (the text after a comma) begins with a
// cookie-pair, i.e. a token followed by '=' with no space or ';' in between.
func startsNewCookie(s string) bool {
	s = strings.TrimLeft(s, " ")
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '=':
			return i > 0
		case ' ', ';', ',':
			return false
		}
	}
	return false
}

// DecodeRecord deserializes a persisted record. Malformed or absent JSON is
// treated as an empty record; this function never fails.
func DecodeRecord(recordJSON string) Record {
	record := make(Record)
	if recordJSON == "" {
		return record
	}
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return make(Record)
	}
	return record
}

// MergeRecord overlays incoming entries onto the record serialized in
// prevJSON and returns the re-serialized result. Incoming entries win on name
// conflicts (last-write-wins per cookie name).
func MergeRecord(incoming Record, prevJSON string) string {
	merged := DecodeRecord(prevJSON)
	for name, entry := range incoming {
		merged[name] = entry
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// RequestHeader reconstructs a Cookie request-header value from a persisted
// record, filtering out entries whose expiry is at or before now. Malformed
// JSON yields an empty string.
func RequestHeader(recordJSON string) string {
	return requestHeaderAt(recordJSON, time.Now())
}

func requestHeaderAt(recordJSON string, now time.Time) string {
	record := DecodeRecord(recordJSON)
	names := make([]string, 0, len(record))
	for name, entry := range record {
		if entry.Expires != nil && !entry.Expires.After(now) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+record[name].Value)
	}
	return strings.Join(pairs, "; ")
}

// NormalizeStorageKey rewrites colons to underscores so the result is safe
// for key-value backends that reject colons in keys.
func NormalizeStorageKey(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}
