// Package dispatch turns an inventory record into an external client
// invocation and launches it.
//
// Resolution is deterministic: the effective port, the (protocol, OS) strategy,
// the first installed client and the terminal wrapper are all decided before
// anything is spawned, and every failure is typed (see internal/errs). Only a
// record's host, username and port ever reach argv, each as its own element.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/events"
	"github.com/treykane/termgrid/internal/logging"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
	"github.com/treykane/termgrid/internal/util"
)

// Status is the outcome of a dispatch.
type Status string

const (
	StatusLaunched Status = events.StatusLaunched
	StatusFailed   Status = events.StatusFailed
)

// Result describes one dispatch attempt.
type Result struct {
	LaunchID   string
	RecordID   int64
	RecordName string
	Status     Status
	Reason     string
	Invocation Invocation
	PID        int
	At         time.Time
}

// Journal receives every dispatch outcome.
type Journal interface {
	Append(events.Event) error
}

// LookPathFunc resolves a binary name to a path, like exec.LookPath.
type LookPathFunc func(string) (string, error)

// Options configures a Dispatcher. Zero values select the real system.
type Options struct {
	Launcher  Launcher
	LookPath  LookPathFunc
	Terminal  string
	Preferred map[model.Protocol]string
	Journal   Journal
	Logger    *slog.Logger
	GOOS      string
	Getenv    func(string) string
	Now       func() time.Time
}

// Dispatcher is immutable after New and safe for concurrent use.
type Dispatcher struct {
	launcher  Launcher
	lookPath  LookPathFunc
	terminal  string
	preferred map[model.Protocol]string
	journal   Journal
	logger    *slog.Logger
	goos      string
	getenv    func(string) string
	now       func() time.Time
}

// New returns a Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		launcher: opts.Launcher,
		lookPath: opts.LookPath,
		terminal: strings.TrimSpace(opts.Terminal),
		journal:  opts.Journal,
		logger:   logging.Default(opts.Logger).With("component", "dispatch"),
		goos:     opts.GOOS,
		getenv:   opts.Getenv,
		now:      opts.Now,
	}
	if d.launcher == nil {
		d.launcher = NewProcessLauncher(util.DefaultSpawnTimeout, opts.Logger)
	}
	if d.lookPath == nil {
		d.lookPath = exec.LookPath
	}
	if d.goos == "" {
		d.goos = runtime.GOOS
	}
	if d.getenv == nil {
		d.getenv = os.Getenv
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.preferred = make(map[model.Protocol]string, len(opts.Preferred))
	for p, bin := range opts.Preferred {
		if bin = strings.TrimSpace(bin); bin != "" {
			d.preferred[p] = bin
		}
	}
	return d
}

// Plan resolves the invocation for r without spawning anything.
func (d *Dispatcher) Plan(r model.ServerRecord) (Invocation, error) {
	r = model.Normalize(r)
	info, err := protocol.Lookup(r.Protocol)
	if err != nil {
		return Invocation{}, err
	}
	port, err := resolvePort(r)
	if err != nil {
		return Invocation{}, err
	}
	if err := model.Validate(r); err != nil {
		return Invocation{}, err
	}
	strategy, ok := lookupStrategy(r.Protocol, r.OS)
	if !ok {
		return Invocation{}, errs.NewUnsupportedCombinationError(string(r.Protocol), string(r.OS))
	}
	client, path, err := d.discover(strategy)
	if err != nil {
		return Invocation{}, err
	}

	inv := Invocation{
		Protocol:   r.Protocol,
		Client:     client.Binary,
		Path:       path,
		Args:       client.Args(Target{Host: r.Host, Username: r.Username, Port: port}),
		Detachable: true,
	}
	if info.TerminalNative {
		if d.goos == "windows" {
			inv.NewConsole = true
		} else if term, flags, ok := d.resolveTerminal(); ok {
			inv.Terminal = term
			inv.TerminalArgs = append([]string(nil), flags...)
		} else {
			inv.Detachable = false
		}
	}
	return inv, nil
}

// Dispatch plans and launches a detached client for r. The returned Result
// is filled in on failure too; the error carries the typed cause.
func (d *Dispatcher) Dispatch(ctx context.Context, r model.ServerRecord) (Result, error) {
	r = r.Clone()
	res := Result{
		LaunchID:   uuid.NewString(),
		RecordID:   r.ID,
		RecordName: r.Name,
		At:         d.now().UTC(),
	}

	inv, err := d.Plan(r)
	if err == nil {
		res.Invocation = inv
		switch {
		case !inv.Detachable:
			err = errs.NewLaunchError(inv.ClientArgv(),
				fmt.Sprintf("no terminal emulator to run %s in; connect attached instead", inv.Client), nil)
		case ctx.Err() != nil:
			err = errs.NewLaunchError(inv.Argv(), "launch cancelled", ctx.Err())
		default:
			res.PID, err = d.launcher.Launch(ctx, inv)
		}
	}

	if err != nil {
		res.Status = StatusFailed
		res.Reason = errs.UserMessage(err, false)
		d.logger.Warn("launch failed", "launch_id", res.LaunchID, "record_id", r.ID,
			"protocol", r.Protocol, "error", errs.DebugMessage(err))
	} else {
		res.Status = StatusLaunched
		d.logger.Info("launched", "launch_id", res.LaunchID, "record_id", r.ID,
			"protocol", r.Protocol, "client", inv.Client, "pid", res.PID)
	}
	d.record(res, r)
	return res, err
}

// Record journals a result produced outside Dispatch, such as an attached
// session.
func (d *Dispatcher) Record(res Result, r model.ServerRecord) {
	d.record(res, r)
}

func (d *Dispatcher) record(res Result, r model.ServerRecord) {
	if d.journal == nil {
		return
	}
	evt := events.Event{
		Timestamp:  res.At,
		LaunchID:   res.LaunchID,
		RecordID:   res.RecordID,
		RecordName: res.RecordName,
		Protocol:   string(r.Protocol),
		Client:     res.Invocation.Client,
		Status:     string(res.Status),
		Reason:     res.Reason,
		PID:        res.PID,
	}
	if err := d.journal.Append(evt); err != nil {
		d.logger.Warn("failed to journal launch", "launch_id", res.LaunchID, "error", err)
	}
}

// NewResult starts a Result for a launch that bypasses Dispatch.
func (d *Dispatcher) NewResult(r model.ServerRecord, inv Invocation) Result {
	return Result{
		LaunchID:   uuid.NewString(),
		RecordID:   r.ID,
		RecordName: r.Name,
		Invocation: inv,
		At:         d.now().UTC(),
	}
}

// Candidates returns the client binaries tried for a protocol, preferred
// first.
func (d *Dispatcher) Candidates(p model.Protocol, target model.OSTag) []string {
	s, ok := lookupStrategy(p, target)
	if !ok {
		return nil
	}
	var out []string
	for _, c := range d.ordered(s) {
		out = append(out, c.Binary)
	}
	return out
}

// Supported reports whether a strategy exists for p on target.
func (d *Dispatcher) Supported(p model.Protocol, target model.OSTag) bool {
	return Supported(p, target)
}

// Terminal reports the emulator terminal clients would be wrapped in.
func (d *Dispatcher) Terminal() (string, bool) {
	if d.goos == "windows" {
		return "new console", true
	}
	path, _, ok := d.resolveTerminal()
	return path, ok
}

func resolvePort(r model.ServerRecord) (int, error) {
	if r.Port < 0 || r.Port > util.MaxPort {
		return 0, errs.NewPortResolutionError(string(r.Protocol), r.Port)
	}
	port := r.EffectivePort()
	if util.ValidatePort(port) != nil {
		return 0, errs.NewPortResolutionError(string(r.Protocol), r.Port)
	}
	return port, nil
}

// ordered puts the configured preferred client first. A preferred value may
// be a bare name or a path whose base name matches a known client.
func (d *Dispatcher) ordered(s Strategy) []Client {
	pref, ok := d.preferred[s.Protocol]
	if !ok {
		return s.Clients
	}
	base := strings.TrimSuffix(filepath.Base(pref), ".exe")
	out := make([]Client, 0, len(s.Clients))
	for _, c := range s.Clients {
		if c.Binary == base {
			c.Binary = pref
			out = append([]Client{c}, out...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (d *Dispatcher) discover(s Strategy) (Client, string, error) {
	candidates := d.ordered(s)
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		tried = append(tried, c.Binary)
		path, err := d.lookPath(c.Binary)
		if err != nil {
			continue
		}
		c.Binary = strings.TrimSuffix(filepath.Base(c.Binary), ".exe")
		return c, path, nil
	}
	reason := fmt.Sprintf("no %s client found (tried %s)", s.Protocol, strings.Join(tried, ", "))
	return Client{}, "", errs.NewLaunchError(nil, reason, exec.ErrNotFound)
}
