// Package main is the entry point for the termgrid binary.
//
// termgrid keeps an inventory of SSH, SFTP, FTP, RDP and VNC endpoints in a
// local SQLite database and launches the matching client for any of them.
// Without arguments it opens the TUI dashboard; subcommands cover the same
// operations from scripts.
//
// Usage:
//
//	termgrid                      # launch the TUI dashboard
//	termgrid list --group prod    # list servers
//	termgrid connect web-01       # launch the client for one server
//	termgrid import ssh-config    # import hosts from ~/.ssh/config
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/treykane/termgrid/internal/cli"
	"github.com/treykane/termgrid/internal/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errs.UserMessage(err, false))
		stop()
		os.Exit(1)
	}
}
