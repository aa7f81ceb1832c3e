package dispatch

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/events"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
)

// fakeLauncher records invocations instead of spawning them.
type fakeLauncher struct {
	mu    sync.Mutex
	calls []Invocation
	err   error
}

func (f *fakeLauncher) Launch(_ context.Context, inv Invocation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)
	if f.err != nil {
		return 0, f.err
	}
	return 4242, nil
}

func (f *fakeLauncher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeJournal struct {
	mu     sync.Mutex
	events []events.Event
}

func (j *fakeJournal) Append(evt events.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, evt)
	return nil
}

// installed resolves only the listed binaries, to /usr/bin/<name>.
func installed(names ...string) LookPathFunc {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			if strings.HasPrefix(name, "/") {
				return name, nil
			}
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
}

func newTestDispatcher(l Launcher, look LookPathFunc, opts ...func(*Options)) *Dispatcher {
	o := Options{
		Launcher: l,
		LookPath: look,
		Terminal: TerminalNone,
		GOOS:     "linux",
		Getenv:   func(string) string { return "" },
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func sshRecord() model.ServerRecord {
	return model.ServerRecord{ID: 1, Name: "web", Host: "10.0.0.5", Protocol: protocol.SSH, Username: "root", OS: model.OSLinux}
}

func TestPlanSSHArgv(t *testing.T) {
	d := newTestDispatcher(&fakeLauncher{}, installed("ssh"))
	inv, err := d.Plan(sshRecord())
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ssh", inv.Path)
	assert.Equal(t, []string{"root@10.0.0.5", "-p", "22"}, inv.Args)
}

func TestPlanArgvPerProtocol(t *testing.T) {
	cases := []struct {
		name   string
		record model.ServerRecord
		look   LookPathFunc
		want   []string
	}{
		{"sftp", model.ServerRecord{Name: "f", Host: "files", Protocol: protocol.SFTP, Username: "u"}, installed("sftp"),
			[]string{"/usr/bin/sftp", "-P", "22", "u@files"}},
		{"ftp", model.ServerRecord{Name: "f", Host: "ftp.lan", Protocol: protocol.FTP}, installed("ftp", "lftp"),
			[]string{"/usr/bin/ftp", "ftp.lan", "21"}},
		{"lftp with user", model.ServerRecord{Name: "f", Host: "ftp.lan", Protocol: protocol.FTP, Username: "anon", Port: 2121}, installed("lftp"),
			[]string{"/usr/bin/lftp", "-p", "2121", "-u", "anon", "ftp.lan"}},
		{"mstsc", model.ServerRecord{Name: "w", Host: "10.0.1.9", Protocol: protocol.RDP, OS: model.OSWindows}, installed("mstsc", "xfreerdp"),
			[]string{"/usr/bin/mstsc", "/v:10.0.1.9:3389", "/prompt"}},
		{"xfreerdp", model.ServerRecord{Name: "w", Host: "10.0.1.9", Protocol: protocol.RDP, OS: model.OSWindows, Username: "admin"}, installed("xfreerdp"),
			[]string{"/usr/bin/xfreerdp", "/v:10.0.1.9:3389", "/u:admin"}},
		{"rdesktop ipv6", model.ServerRecord{Name: "w", Host: "fe80::1", Protocol: protocol.RDP, OS: model.OSLinux}, installed("rdesktop"),
			[]string{"/usr/bin/rdesktop", "[fe80::1]:3389"}},
		{"vnc display", model.ServerRecord{Name: "v", Host: "pi", Protocol: protocol.VNC, Port: 5901}, installed("vncviewer"),
			[]string{"/usr/bin/vncviewer", "pi:1"}},
		{"vnc raw port", model.ServerRecord{Name: "v", Host: "pi", Protocol: protocol.VNC, Port: 6000}, installed("tigervncviewer"),
			[]string{"/usr/bin/tigervncviewer", "pi::6000"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv, err := newTestDispatcher(&fakeLauncher{}, tc.look).Plan(tc.record)
			require.NoError(t, err)
			assert.Equal(t, tc.want, inv.ClientArgv())
		})
	}
}

func TestPlanPreferredClientFirst(t *testing.T) {
	d := newTestDispatcher(&fakeLauncher{}, installed("mstsc", "/opt/freerdp/xfreerdp"), func(o *Options) {
		o.Preferred = map[model.Protocol]string{protocol.RDP: "/opt/freerdp/xfreerdp"}
	})
	r := model.ServerRecord{Name: "w", Host: "10.0.1.9", Protocol: protocol.RDP, OS: model.OSWindows}
	inv, err := d.Plan(r)
	require.NoError(t, err)
	assert.Equal(t, "xfreerdp", inv.Client)
	assert.Equal(t, "/opt/freerdp/xfreerdp", inv.Path)
	assert.Equal(t, []string{"/opt/freerdp/xfreerdp", "mstsc", "xfreerdp3", "rdesktop"}, d.Candidates(protocol.RDP, model.OSWindows))
}

func TestUnsupportedCombinationDoesNotSpawn(t *testing.T) {
	l := &fakeLauncher{}
	j := &fakeJournal{}
	d := newTestDispatcher(l, installed("xfreerdp"), func(o *Options) { o.Journal = j })
	r := model.ServerRecord{ID: 3, Name: "mac", Host: "10.0.2.2", Protocol: protocol.RDP, OS: model.OSMacOS}

	res, err := d.Dispatch(context.Background(), r)
	var uce *errs.UnsupportedCombinationError
	require.ErrorAs(t, err, &uce)
	assert.Equal(t, "rdp", uce.Protocol)
	assert.Equal(t, "macos", uce.OS)
	assert.Zero(t, l.count())
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, j.events, 1)
	assert.Equal(t, events.StatusFailed, j.events[0].Status)
	assert.Equal(t, int64(3), j.events[0].RecordID)
}

func TestMissingClientIsLaunchError(t *testing.T) {
	l := &fakeLauncher{}
	d := newTestDispatcher(l, installed())
	_, err := d.Dispatch(context.Background(), sshRecord())
	var le *errs.LaunchError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, le.Reason, "tried ssh")
	assert.Zero(t, l.count())
}

func TestInvalidRecordsFailBeforeSpawn(t *testing.T) {
	l := &fakeLauncher{}
	d := newTestDispatcher(l, installed("ssh"))

	r := sshRecord()
	r.Host = ""
	_, err := d.Dispatch(context.Background(), r)
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)

	r = sshRecord()
	r.Port = 70000
	_, err = d.Dispatch(context.Background(), r)
	var pre *errs.PortResolutionError
	assert.ErrorAs(t, err, &pre)

	r = sshRecord()
	r.Protocol = "telnet"
	_, err = d.Dispatch(context.Background(), r)
	var upe *errs.UnknownProtocolError
	assert.ErrorAs(t, err, &upe)

	assert.Zero(t, l.count())
}

func TestPlanRejectsHostsThatWouldRewriteArguments(t *testing.T) {
	d := newTestDispatcher(&fakeLauncher{}, installed("ssh", "vncviewer"))
	for _, tc := range []struct {
		proto model.Protocol
		host  string
	}{
		{protocol.SSH, "attacker@10.0.0.5"},
		{protocol.VNC, "10.0.0.5:2222"},
		{protocol.SSH, "a/b"},
		{protocol.SSH, "host,x"},
	} {
		r := sshRecord()
		r.Protocol = tc.proto
		r.Host = tc.host
		_, err := d.Plan(r)
		var ve *errs.ValidationError
		if assert.ErrorAs(t, err, &ve, "host %q", tc.host) {
			assert.Equal(t, "host", ve.Field)
		}
	}
}

func TestDispatchLaunchesAndJournals(t *testing.T) {
	l := &fakeLauncher{}
	j := &fakeJournal{}
	d := newTestDispatcher(l, installed("ssh", "xterm"), func(o *Options) {
		o.Terminal = TerminalAuto
		o.Getenv = func(k string) string {
			if k == "DISPLAY" {
				return ":0"
			}
			return ""
		}
		o.Journal = j
	})

	res, err := d.Dispatch(context.Background(), sshRecord())
	require.NoError(t, err)
	assert.Equal(t, StatusLaunched, res.Status)
	assert.Equal(t, 4242, res.PID)
	assert.NotEmpty(t, res.LaunchID)
	require.Equal(t, 1, l.count())
	assert.Equal(t, []string{"/usr/bin/xterm", "-e", "/usr/bin/ssh", "root@10.0.0.5", "-p", "22"}, l.calls[0].Argv())
	require.Len(t, j.events, 1)
	assert.Equal(t, res.LaunchID, j.events[0].LaunchID)
	assert.Equal(t, "ssh", j.events[0].Client)
}

func TestTerminalClientWithoutEmulatorIsNotDetachable(t *testing.T) {
	l := &fakeLauncher{}
	d := newTestDispatcher(l, installed("ssh", "xterm"), func(o *Options) { o.Terminal = TerminalAuto })

	inv, err := d.Plan(sshRecord())
	require.NoError(t, err)
	assert.False(t, inv.Detachable, "no DISPLAY means no emulator")

	_, err = d.Dispatch(context.Background(), sshRecord())
	var le *errs.LaunchError
	require.ErrorAs(t, err, &le)
	assert.Zero(t, l.count())
}

func TestWindowsGetsNewConsole(t *testing.T) {
	d := newTestDispatcher(&fakeLauncher{}, installed("ssh"), func(o *Options) { o.GOOS = "windows" })
	inv, err := d.Plan(sshRecord())
	require.NoError(t, err)
	assert.True(t, inv.NewConsole)
	assert.True(t, inv.Detachable)
	assert.Empty(t, inv.Terminal)
}

func TestGUIClientsNeverWrapped(t *testing.T) {
	d := newTestDispatcher(&fakeLauncher{}, installed("vncviewer", "xterm"), func(o *Options) {
		o.Terminal = "xterm"
	})
	inv, err := d.Plan(model.ServerRecord{Name: "v", Host: "pi", Protocol: protocol.VNC})
	require.NoError(t, err)
	assert.Empty(t, inv.Terminal)
	assert.True(t, inv.Detachable)
}

func TestLauncherErrorSurfaces(t *testing.T) {
	cause := errs.NewLaunchError([]string{"/usr/bin/ssh"}, "start ssh", errors.New("permission denied"))
	d := newTestDispatcher(&fakeLauncher{err: cause}, installed("ssh"), func(o *Options) { o.GOOS = "windows" })
	res, err := d.Dispatch(context.Background(), sshRecord())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "permission denied")
}

func TestCancelledContextDoesNotSpawn(t *testing.T) {
	l := &fakeLauncher{}
	d := newTestDispatcher(l, installed("ssh"), func(o *Options) { o.GOOS = "windows" })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, sshRecord())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, l.count())
}

func TestInvocationString(t *testing.T) {
	inv := Invocation{Path: "/usr/bin/ssh", Args: []string{"root@10.0.0.5", "-p", "22"}, Terminal: "/usr/bin/gnome-terminal", TerminalArgs: []string{"--"}}
	assert.Equal(t, "/usr/bin/gnome-terminal -- /usr/bin/ssh root@10.0.0.5 -p 22", inv.String())

	inv = Invocation{Path: "/Applications/My Viewer", Args: []string{"it's"}}
	assert.Equal(t, `'/Applications/My Viewer' 'it'\''s'`, inv.String())
}

func TestExecFlags(t *testing.T) {
	assert.Equal(t, []string{"--"}, execFlags("/usr/bin/gnome-terminal"))
	assert.Equal(t, []string{"-e"}, execFlags("konsole"))
	assert.Equal(t, []string{"-e"}, execFlags("alacritty"))
	assert.Nil(t, execFlags("kitty"))
}

func TestSupported(t *testing.T) {
	for _, os := range []model.OSTag{model.OSWindows, model.OSLinux, model.OSOther} {
		assert.True(t, Supported(protocol.RDP, os), os)
	}
	for _, os := range []model.OSTag{model.OSMacOS, model.OSBSD, model.OSNetwork} {
		assert.False(t, Supported(protocol.RDP, os), os)
	}
	for _, os := range model.AllOS() {
		assert.True(t, Supported(protocol.SSH, os), os)
	}
}
