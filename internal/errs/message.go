package errs

import (
	"errors"
	"os"
	"strings"
)

// UserMessage returns a message safe to show in CLI/TUI contexts. It never
// includes a launch's command line; see DebugMessage.
func UserMessage(err error, redact bool) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var se *StorageError
	if errors.As(err, &se) && se.Err != nil {
		msg = "storage " + se.Op + " failed: " + se.Err.Error()
	}
	if redact {
		return RedactMessage(msg)
	}
	return msg
}

// DebugMessage returns detailed error text for logs, including the command
// line of a failed launch.
func DebugMessage(err error) string {
	if err == nil {
		return ""
	}
	var le *LaunchError
	if errors.As(err, &le) && len(le.Command) > 0 {
		return err.Error() + " (command: " + strings.Join(le.Command, " ") + ")"
	}
	return err.Error()
}

// RedactMessage replaces the user's home directory with "~".
func RedactMessage(msg string) string {
	if msg == "" {
		return msg
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return strings.ReplaceAll(msg, home, "~")
	}
	return msg
}
