// Package notify provides desktop notification support.
package notify

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Notifier delivers a short operator-facing message.
type Notifier interface {
	Send(title, message string)
}

// Desktop sends notifications through the platform notifier
// (osascript on macOS, notify-send elsewhere). Delivery is best effort;
// failures are logged and swallowed.
type Desktop struct{}

func (Desktop) Send(title, message string) {
	err := send(title, message)
	if err != nil {
		slog.Warn("notification failed", "title", title, "err", err)
	}
}

func send(title, message string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf(
			`display notification %q with title %q`,
			escapeAppleScript(message), escapeAppleScript(title),
		)
		cmd = exec.Command("osascript", "-e", script)
	} else {
		cmd = exec.Command("notify-send", title, message)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notifier: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// Discard drops every notification. Used when the operator has turned
// notifications off and in tests.
type Discard struct{}

func (Discard) Send(title, message string) {}
