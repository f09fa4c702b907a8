package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"authbridge/internal/cli"
	"authbridge/internal/config"
	"authbridge/pkg/cookie"
	"authbridge/pkg/credentials"
)

var statusCheck bool

// newStatusCmd creates the Cobra command for displaying the current
// authentication status.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long: `Shows whether a session is stored for the configured auth server,
which auth cookies are persisted, and when they expire. The command reads
local storage only; it does not contact the server.

Examples:
  authbridge status            # show status
  authbridge status --check    # exit with code 2 when not signed in`,
		RunE: runStatus,
	}
	cmd.Flags().BoolVar(&statusCheck, "check", false, "exit with the auth-required code when not signed in")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	creds := buildCredentials(cfg, backend)
	info := collectStatus(cmd, cfg, creds)
	cli.RenderStatus(cmd.OutOrStdout(), info)

	if statusCheck && !info.SignedIn {
		return &cli.AuthRequiredError{Endpoint: cfg.Server.BaseURL}
	}
	return nil
}

// collectStatus assembles the renderable status from local storage.
func collectStatus(cmd *cobra.Command, cfg config.Config, creds *credentials.Store) cli.StatusInfo {
	ctx := cmd.Context()
	info := cli.StatusInfo{
		Endpoint: cfg.Server.BaseURL,
		Backend:  cfg.Storage.Backend,
		SignedIn: creds.SessionToken(ctx) != "",
	}
	if !info.SignedIn {
		return info
	}

	record := cookie.DecodeRecord(creds.CookieRecord(ctx))
	for name, entry := range record {
		info.CookieNames = append(info.CookieNames, name)
		if entry.Expires != nil && (info.Expires == nil || entry.Expires.Before(*info.Expires)) {
			expires := *entry.Expires
			info.Expires = &expires
		}
	}

	info.UserID, info.Email = parseSessionIdentity(creds.CachedSession(ctx))
	return info
}

// parseSessionIdentity extracts the user identity from a cached session
// body. The body shape belongs to the server; missing or unexpected fields
// simply leave the identity blank.
func parseSessionIdentity(body string) (userID, email string) {
	if body == "" {
		return "", ""
	}

	var session struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		return "", ""
	}
	return session.User.ID, session.User.Email
}
