//go:build unix

package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/treykane/termgrid/internal/errs"
)

// Attach runs the client of inv in a pseudo-terminal wired to the process's
// own terminal and blocks until it exits. The terminal wrapper is ignored.
// Cancelling ctx kills the client.
func Attach(ctx context.Context, inv Invocation) error {
	argv := inv.ClientArgv()
	cmd := inv.Command()

	f, err := pty.Start(cmd)
	if err != nil {
		return errs.NewLaunchError(argv, "start "+inv.Client, err)
	}
	defer f.Close()

	resize := make(chan os.Signal, 1)
	signal.Notify(resize, syscall.SIGWINCH)
	go func() {
		for range resize {
			_ = pty.InheritSize(os.Stdin, f)
		}
	}()
	resize <- syscall.SIGWINCH
	defer func() { signal.Stop(resize); close(resize) }()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, oldState)
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = cmd.Process.Kill() })
	defer stop()

	go func() { _, _ = io.Copy(f, os.Stdin) }()
	_, _ = io.Copy(os.Stdout, f)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s session: %w", inv.Client, err)
	}
	return nil
}
