package cli

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// StatusInfo is the renderable authentication status of one configured
// endpoint.
type StatusInfo struct {
	// Endpoint is the auth server base URL.
	Endpoint string

	// Backend names the credential storage backend in use.
	Backend string

	// SignedIn reports whether a session token is present.
	SignedIn bool

	// UserID and Email come from the cached session body, when available.
	UserID string
	Email  string

	// CookieNames lists the persisted auth cookie names.
	CookieNames []string

	// Expires is the earliest expiry among persisted session cookies, nil
	// for session-lifetime cookies.
	Expires *time.Time
}

// RenderStatus writes the status table.
func RenderStatus(w io.Writer, info StatusInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"Endpoint", info.Endpoint})
	t.AppendRow(table.Row{"Storage", info.Backend})
	t.AppendRow(table.Row{"Signed in", formatSignedIn(info.SignedIn)})

	if info.SignedIn {
		if info.UserID != "" {
			t.AppendRow(table.Row{"User", info.UserID})
		}
		if info.Email != "" {
			t.AppendRow(table.Row{"Email", info.Email})
		}
		t.AppendRow(table.Row{"Cookies", formatCookieNames(info.CookieNames)})
		t.AppendRow(table.Row{"Expires", formatExpiry(info.Expires)})
	}

	t.Render()
}

func formatSignedIn(signedIn bool) string {
	if signedIn {
		return text.FgGreen.Sprint("yes")
	}
	return text.FgRed.Sprint("no")
}

func formatCookieNames(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func formatExpiry(expires *time.Time) string {
	if expires == nil {
		return "session"
	}
	if time.Now().After(*expires) {
		return text.FgRed.Sprintf("expired %s", expires.Format(time.RFC3339))
	}
	return expires.Local().Format(time.RFC3339)
}
