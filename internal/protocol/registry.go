// Package protocol holds the static registry of remote-access protocols that
// termgrid knows how to launch. Adding a protocol is a table edit here plus a
// strategy row in internal/dispatch; nothing else branches on protocol names.
package protocol

import (
	"strings"

	"github.com/treykane/termgrid/internal/errs"
)

// Name identifies a registered protocol.
type Name string

const (
	SSH  Name = "ssh"
	SFTP Name = "sftp"
	FTP  Name = "ftp"
	RDP  Name = "rdp"
	VNC  Name = "vnc"
)

// Info describes one registry entry.
type Info struct {
	Name        Name
	Label       string
	Icon        string
	DefaultPort int
	// RequiresUsername rejects records with an empty username.
	RequiresUsername bool
	// TerminalNative clients need a terminal to run in.
	TerminalNative bool
}

var registry = []Info{
	{Name: SSH, Label: "SSH - Secure Shell", Icon: "🔐", DefaultPort: 22, RequiresUsername: true, TerminalNative: true},
	{Name: SFTP, Label: "SFTP - Secure File Transfer", Icon: "🔒", DefaultPort: 22, RequiresUsername: true, TerminalNative: true},
	{Name: FTP, Label: "FTP - File Transfer Protocol", Icon: "📁", DefaultPort: 21, TerminalNative: true},
	{Name: RDP, Label: "RDP - Remote Desktop", Icon: "🖥️", DefaultPort: 3389},
	{Name: VNC, Label: "VNC - Virtual Network Computing", Icon: "🖱️", DefaultPort: 5900},
}

var byName = func() map[Name]Info {
	m := make(map[Name]Info, len(registry))
	for _, info := range registry {
		m[info.Name] = info
	}
	return m
}()

// Parse normalizes s and returns the registered protocol it names.
func Parse(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := byName[n]; !ok {
		return n, errs.NewUnknownProtocolError(string(n))
	}
	return n, nil
}

// Lookup returns the registry entry for n.
func Lookup(n Name) (Info, error) {
	info, ok := byName[n]
	if !ok {
		return Info{}, errs.NewUnknownProtocolError(string(n))
	}
	return info, nil
}

// DefaultPort returns the registered default port for n, or 0.
func DefaultPort(n Name) int {
	return byName[n].DefaultPort
}

// IsDefaultPort reports whether port is the default of any registered
// protocol.
func IsDefaultPort(port int) bool {
	for _, info := range registry {
		if info.DefaultPort == port {
			return true
		}
	}
	return false
}

// All returns every registry entry in display order.
func All() []Info {
	return append([]Info(nil), registry...)
}

// Names returns the registered protocol names in display order.
func Names() []Name {
	out := make([]Name, 0, len(registry))
	for _, info := range registry {
		out = append(out, info.Name)
	}
	return out
}

// Icon returns the display icon for n, or a plug for unknown protocols.
func Icon(n Name) string {
	if info, ok := byName[n]; ok {
		return info.Icon
	}
	return "🔌"
}

var osIcons = map[string]string{
	"windows": "🪟",
	"linux":   "🐧",
	"macos":   "🍎",
	"bsd":     "😈",
	"network": "🌐",
}

// OSIcon returns the display icon for an operating system tag.
func OSIcon(os string) string {
	if icon, ok := osIcons[os]; ok {
		return icon
	}
	return "💻"
}
