package dispatch

import (
	"net"
	"strconv"

	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
)

// Target is the only record data that reaches a client's argv.
type Target struct {
	Host     string
	Username string
	Port     int
}

// Client is one candidate external program for a protocol. Args builds the
// argument list that follows the binary.
type Client struct {
	Binary string
	Args   func(Target) []string
}

// Strategy lists the clients that can open a protocol, in preference order.
type Strategy struct {
	Protocol model.Protocol
	Clients  []Client
}

// anyOS is the wildcard row of the strategy table.
const anyOS model.OSTag = "*"

type strategyKey struct {
	protocol model.Protocol
	os       model.OSTag
}

var (
	sshClients = []Client{
		{Binary: "ssh", Args: func(t Target) []string {
			return []string{t.Username + "@" + t.Host, "-p", strconv.Itoa(t.Port)}
		}},
	}
	sftpClients = []Client{
		{Binary: "sftp", Args: func(t Target) []string {
			return []string{"-P", strconv.Itoa(t.Port), t.Username + "@" + t.Host}
		}},
	}
	ftpClients = []Client{
		{Binary: "ftp", Args: func(t Target) []string {
			return []string{t.Host, strconv.Itoa(t.Port)}
		}},
		{Binary: "lftp", Args: func(t Target) []string {
			args := []string{"-p", strconv.Itoa(t.Port)}
			if t.Username != "" {
				args = append(args, "-u", t.Username)
			}
			return append(args, t.Host)
		}},
		{Binary: "ncftp", Args: func(t Target) []string {
			args := []string{"-P", strconv.Itoa(t.Port)}
			if t.Username != "" {
				args = append(args, "-u", t.Username)
			}
			return append(args, t.Host)
		}},
	}
	rdpClients = []Client{
		{Binary: "mstsc", Args: func(t Target) []string {
			return []string{"/v:" + hostPort(t.Host, t.Port), "/prompt"}
		}},
		{Binary: "xfreerdp3", Args: freerdpArgs},
		{Binary: "xfreerdp", Args: freerdpArgs},
		{Binary: "rdesktop", Args: func(t Target) []string {
			var args []string
			if t.Username != "" {
				args = append(args, "-u", t.Username)
			}
			return append(args, hostPort(t.Host, t.Port))
		}},
	}
	vncClients = []Client{
		{Binary: "vncviewer", Args: vncArgs},
		{Binary: "tigervncviewer", Args: vncArgs},
		{Binary: "xtightvncviewer", Args: vncArgs},
	}
)

// strategies is keyed by (protocol, record OS). RDP has no row for macOS,
// BSD or network targets.
var strategies = map[strategyKey]Strategy{
	{protocol.SSH, anyOS}:           {Protocol: protocol.SSH, Clients: sshClients},
	{protocol.SFTP, anyOS}:          {Protocol: protocol.SFTP, Clients: sftpClients},
	{protocol.FTP, anyOS}:           {Protocol: protocol.FTP, Clients: ftpClients},
	{protocol.VNC, anyOS}:           {Protocol: protocol.VNC, Clients: vncClients},
	{protocol.RDP, model.OSWindows}: {Protocol: protocol.RDP, Clients: rdpClients},
	{protocol.RDP, model.OSLinux}:   {Protocol: protocol.RDP, Clients: rdpClients},
	{protocol.RDP, model.OSOther}:   {Protocol: protocol.RDP, Clients: rdpClients},
}

// lookupStrategy prefers an exact OS row over the wildcard row.
func lookupStrategy(p model.Protocol, os model.OSTag) (Strategy, bool) {
	if s, ok := strategies[strategyKey{p, os}]; ok {
		return s, true
	}
	s, ok := strategies[strategyKey{p, anyOS}]
	return s, ok
}

// Supported reports whether a launch strategy exists for the pair.
func Supported(p model.Protocol, os model.OSTag) bool {
	_, ok := lookupStrategy(p, os)
	return ok
}

func freerdpArgs(t Target) []string {
	args := []string{"/v:" + hostPort(t.Host, t.Port)}
	if t.Username != "" {
		args = append(args, "/u:"+t.Username)
	}
	return args
}

// vncArgs uses display notation for ports 5900-5999 and the double-colon
// port form for anything else.
func vncArgs(t Target) []string {
	host := t.Host
	if isIPv6(host) {
		host = "[" + host + "]"
	}
	if t.Port >= 5900 && t.Port <= 5999 {
		return []string{host + ":" + strconv.Itoa(t.Port-5900)}
	}
	return []string{host + "::" + strconv.Itoa(t.Port)}
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func isIPv6(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}
