package dispatch

import (
	"path/filepath"
	"strings"
)

// Terminal settings understood by Options.Terminal. Any other value names a
// terminal emulator binary.
const (
	TerminalAuto = "auto"
	TerminalNone = "none"
)

type emulator struct {
	binary string
	flags  []string
}

// emulators are probed in order when the terminal setting is auto.
var emulators = []emulator{
	{"x-terminal-emulator", []string{"-e"}},
	{"gnome-terminal", []string{"--"}},
	{"konsole", []string{"-e"}},
	{"xterm", []string{"-e"}},
}

// execFlags returns the flags that make binary run a command.
func execFlags(binary string) []string {
	base := strings.TrimSuffix(filepath.Base(binary), ".exe")
	for _, e := range emulators {
		if e.binary == base {
			return e.flags
		}
	}
	switch base {
	case "kitty":
		return nil
	case "wezterm":
		return []string{"start", "--"}
	case "foot", "ptyxis", "kgx":
		return []string{"--"}
	}
	return []string{"-e"}
}

// resolveTerminal finds the emulator to wrap terminal clients in.
func (d *Dispatcher) resolveTerminal() (string, []string, bool) {
	switch d.terminal {
	case TerminalNone:
		return "", nil, false
	case "", TerminalAuto:
	default:
		path, err := d.lookPath(d.terminal)
		if err != nil {
			d.logger.Warn("configured terminal not found", "terminal", d.terminal, "error", err)
			return "", nil, false
		}
		return path, execFlags(d.terminal), true
	}

	if d.goos == "darwin" || !d.hasDisplay() {
		return "", nil, false
	}
	for _, e := range emulators {
		if path, err := d.lookPath(e.binary); err == nil {
			return path, e.flags, true
		}
	}
	return "", nil, false
}

func (d *Dispatcher) hasDisplay() bool {
	return d.getenv("DISPLAY") != "" || d.getenv("WAYLAND_DISPLAY") != ""
}
