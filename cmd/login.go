package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"authbridge/internal/cli"
	"authbridge/pkg/client"
	"authbridge/pkg/flow"
)

var loginProvider string

// newLoginCmd creates the Cobra command for interactive sign-in.
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through your browser",
		Long: `Starts a social sign-in against the configured auth server. The
authorization runs in your system browser via the server's redirect proxy; a
temporary local listener receives the callback and the resulting session
cookies are persisted in the configured storage backend.

Examples:
  authbridge login                     # sign in with the configured provider
  authbridge login --provider github   # sign in with a specific provider`,
		RunE: runLogin,
	}
	cmd.Flags().StringVar(&loginProvider, "provider", "", "social provider (defaults to login.provider from config)")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	provider := loginProvider
	if provider == "" {
		provider = cfg.Login.Provider
	}

	loopback := flow.NewLoopback(cfg.Login.CallbackPort)
	callbackURL, err := loopback.Start(ctx)
	if err != nil {
		return err
	}
	defer loopback.Stop()

	orchestrator, err := flow.New(flow.Config{
		BaseURL:     cfg.Server.BaseURL,
		Credentials: c.Credentials(),
		Browser:     flow.SystemBrowser{},
		Source:      loopback,
		Timeout:     cfg.FlowTimeoutDuration(),
	})
	if err != nil {
		return err
	}

	signInURL, err := requestSignIn(ctx, c, cfg.Server.BaseURL, provider, callbackURL)
	if err != nil {
		return &cli.AuthFailedError{Endpoint: cfg.Server.BaseURL, Reason: err}
	}
	if signInURL == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Already signed in.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Opening your browser to complete sign-in...")
	if err := orchestrator.Run(ctx, signInURL, callbackURL); err != nil {
		return cli.WrapFlowError(cfg.Server.BaseURL, err)
	}

	if _, err := c.RefreshSession(ctx); err != nil {
		return &cli.AuthFailedError{Endpoint: cfg.Server.BaseURL, Reason: err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
	return nil
}

// requestSignIn posts the social sign-in request and returns the
// authorization URL the server wants the browser sent to. An empty URL
// means no redirect is needed.
func requestSignIn(ctx context.Context, c *client.Client, baseURL, provider, callbackURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"provider":    provider,
		"callbackURL": callbackURL,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/sign-in/social", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sign-in request returned status %d: %s", resp.StatusCode, body)
	}

	var signIn struct {
		Redirect bool   `json:"redirect"`
		URL      string `json:"url"`
	}
	if err := json.Unmarshal(body, &signIn); err != nil {
		return "", fmt.Errorf("unexpected sign-in response: %w", err)
	}
	if !signIn.Redirect {
		return "", nil
	}
	if signIn.URL == "" {
		return "", fmt.Errorf("sign-in response signaled a redirect without a URL")
	}
	return signIn.URL, nil
}
