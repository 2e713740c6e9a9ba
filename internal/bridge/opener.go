package bridge

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"runtime"
)

// LinkOpener hands a URL to something outside the embedded surface.
type LinkOpener interface {
	Open(ctx context.Context, url string) error
}

// SystemOpener opens URLs with the desktop's default handler.
type SystemOpener struct{}

func (SystemOpener) Open(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	go cmd.Wait()
	return nil
}

// LogOpener only records the URL. Used on headless hosts.
type LogOpener struct{}

func (LogOpener) Open(_ context.Context, url string) error {
	log.Printf("🔗 External link requested: %s", url)
	return nil
}
