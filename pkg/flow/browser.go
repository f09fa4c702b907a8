package flow

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Browser is the external browser surface an exchange runs in. Open shows
// the URL in an OS-level browsing context, preferably an ephemeral one.
// Close dismisses that context; closing an already-closed surface must be
// harmless, and callers swallow Close failures.
type Browser interface {
	Open(ctx context.Context, url string) error
	Close() error
}

// SystemBrowser opens URLs in the default desktop browser. It supports
// Linux, macOS, and Windows.
type SystemBrowser struct{}

// Open launches the platform browser without waiting for it to exit.
func (SystemBrowser) Open(ctx context.Context, url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// Close is a no-op; desktop browsers cannot be dismissed remotely.
func (SystemBrowser) Close() error {
	return nil
}
