package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/logging"
	"github.com/treykane/termgrid/internal/util"
)

// Launcher spawns a detached invocation and returns its process ID.
type Launcher interface {
	Launch(ctx context.Context, inv Invocation) (int, error)
}

// ProcessLauncher starts clients as detached OS processes. Children run in
// their own session (or console on Windows), are reaped in the background and
// are not tracked after they start.
type ProcessLauncher struct {
	spawnTimeout time.Duration
	logger       *slog.Logger
}

// NewProcessLauncher returns a launcher that gives up on a spawn after
// timeout. A non-positive timeout selects the default.
func NewProcessLauncher(timeout time.Duration, logger *slog.Logger) *ProcessLauncher {
	if timeout <= 0 {
		timeout = util.DefaultSpawnTimeout
	}
	return &ProcessLauncher{
		spawnTimeout: timeout,
		logger:       logging.Default(logger).With("component", "launcher"),
	}
}

// Launch starts inv. A cancelled ctx before the spawn completes means the
// client is not left running; ctx has no effect on the client afterwards.
func (l *ProcessLauncher) Launch(ctx context.Context, inv Invocation) (int, error) {
	argv := inv.Argv()
	if err := ctx.Err(); err != nil {
		return 0, errs.NewLaunchError(argv, "launch cancelled", err)
	}

	// Not CommandContext: the client must outlive ctx.
	cmd := exec.Command(argv[0], argv[1:]...)
	detach(cmd, inv.NewConsole)

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()

	timer := time.NewTimer(l.spawnTimeout)
	defer timer.Stop()

	select {
	case err := <-started:
		if err != nil {
			return 0, errs.NewLaunchError(argv, "start "+inv.Client, err)
		}
		pid := cmd.Process.Pid
		go l.reap(cmd, pid)
		return pid, nil
	case <-timer.C:
		go l.killLate(cmd, started)
		return 0, errs.NewLaunchError(argv,
			fmt.Sprintf("start %s timed out after %s", inv.Client, l.spawnTimeout), context.DeadlineExceeded)
	case <-ctx.Done():
		go l.killLate(cmd, started)
		return 0, errs.NewLaunchError(argv, "launch cancelled", ctx.Err())
	}
}

func (l *ProcessLauncher) reap(cmd *exec.Cmd, pid int) {
	err := cmd.Wait()
	l.logger.Debug("client exited", "pid", pid, "error", err)
}

// killLate stops a child whose spawn finished after the caller gave up.
func (l *ProcessLauncher) killLate(cmd *exec.Cmd, started <-chan error) {
	if err := <-started; err != nil {
		return
	}
	l.logger.Warn("killing client that started after its launch was abandoned", "pid", cmd.Process.Pid)
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}
