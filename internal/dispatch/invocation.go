package dispatch

import (
	"os/exec"
	"strings"

	"github.com/treykane/termgrid/internal/model"
)

// Invocation is a fully resolved client command.
type Invocation struct {
	Protocol model.Protocol
	// Client is the candidate binary name that was chosen, e.g. "xfreerdp".
	Client string
	// Path is the resolved location of Client.
	Path string
	Args []string
	// Terminal and TerminalArgs wrap the client in a terminal emulator.
	Terminal     string
	TerminalArgs []string
	// Detachable is false for terminal clients with no emulator to run in;
	// those must be run attached to the caller's terminal.
	Detachable bool
	// NewConsole asks Windows for a fresh console window.
	NewConsole bool
}

// ClientArgv is the client command without any terminal wrapper.
func (i Invocation) ClientArgv() []string {
	return append([]string{i.Path}, i.Args...)
}

// Argv is the full command to spawn.
func (i Invocation) Argv() []string {
	if i.Terminal == "" {
		return i.ClientArgv()
	}
	argv := append([]string{i.Terminal}, i.TerminalArgs...)
	return append(argv, i.ClientArgv()...)
}

// Command returns an unstarted command for the client, for callers that hand
// the terminal over themselves.
func (i Invocation) Command() *exec.Cmd {
	argv := i.ClientArgv()
	return exec.Command(argv[0], argv[1:]...)
}

// String renders Argv as a shell-quoted line. It is for display only; launches
// never go through a shell.
func (i Invocation) String() string {
	argv := i.Argv()
	quoted := make([]string, len(argv))
	for n, a := range argv {
		quoted[n] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("@%+=:,./-_[]", r)
}
