package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"authbridge/pkg/logging"
)

// newLogoutCmd creates the Cobra command for sign-out.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		Long: `Clears the persisted session cookies and cached session data, then
notifies the auth server. Local credentials are cleared even when the server
cannot be reached.`,
		RunE: runLogout,
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	c, err := buildClient(cfg, backend)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, cfg.Server.BaseURL+"/sign-out", nil)
	if err != nil {
		return err
	}

	// The transport clears local credentials before this request goes out,
	// so a failed round trip still leaves us signed out locally.
	resp, err := c.Do(req)
	if err != nil {
		logging.Warn("Client", "Sign-out request failed: %v", err)
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out locally; the server could not be reached.")
		return nil
	}
	resp.Body.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}
