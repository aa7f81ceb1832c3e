package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/treykane/termgrid/internal/dispatch"
	"github.com/treykane/termgrid/internal/events"
	"github.com/treykane/termgrid/internal/inventory"
	"github.com/treykane/termgrid/internal/model"
)

func newConnectCmd(a *app) *cobra.Command {
	var dryRun, attach bool
	cmd := &cobra.Command{
		Use:   "connect <id|name>",
		Short: "Launch the client for a server",
		Long: `Launch the client for a server in the background.

Terminal clients (ssh, sftp, ftp) open in a terminal emulator. When none is
available, or with --attach, they run in the current terminal instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var r model.ServerRecord
			err := a.withStore(ctx, func(s *inventory.Store) error {
				var err error
				r, err = resolveRecord(ctx, s, args[0])
				return err
			})
			if err != nil {
				return err
			}

			d := a.dispatcher()
			out := cmd.OutOrStdout()
			inv, planErr := d.Plan(r)
			if dryRun {
				if planErr != nil {
					return planErr
				}
				fmt.Fprintln(out, inv.String())
				return nil
			}

			// Dispatch journals plan failures too.
			if planErr != nil || (inv.Detachable && !attach) {
				res, err := d.Dispatch(ctx, r)
				if err != nil {
					return err
				}
				a.touch(r.ID)
				fmt.Fprintf(out, "launched %s for %s pid=%d launch=%s\n", res.Invocation.Client, r.Name, res.PID, res.LaunchID)
				return nil
			}

			res := d.NewResult(r, inv)
			a.logger.Info("attached session", "launch_id", res.LaunchID, "record_id", r.ID, "client", inv.Client)
			runErr := dispatch.Attach(ctx, inv)
			if runErr != nil {
				res.Status = dispatch.StatusFailed
				res.Reason = runErr.Error()
			} else {
				res.Status = dispatch.StatusLaunched
			}
			d.Record(res, r)
			a.touch(r.ID)
			return runErr
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the command without running it")
	cmd.Flags().BoolVar(&attach, "attach", false, "run the client in this terminal and wait for it")
	return cmd
}

func (a *app) touch(id int64) {
	if err := a.history().Touch(id); err != nil {
		a.logger.Warn("record history", "record_id", id, "error", err)
	}
}

func newEventsCmd(a *app) *cobra.Command {
	var (
		q       events.Query
		since   time.Duration
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the launch journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			evts, err := a.journal().Read(q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				if evts == nil {
					evts = []events.Event{}
				}
				return printJSON(out, evts)
			}
			fmt.Fprintf(out, "%-20s %-6s %-20s %-6s %-12s %-9s %s\n", "TIME", "ID", "NAME", "PROTO", "CLIENT", "STATUS", "DETAIL")
			for _, e := range evts {
				detail := e.Reason
				if e.PID > 0 {
					detail = fmt.Sprintf("pid=%d", e.PID)
				}
				fmt.Fprintf(out, "%-20s %-6d %-20s %-6s %-12s %-9s %s\n",
					e.Timestamp.Local().Format(time.DateTime), e.RecordID, e.RecordName, e.Protocol, e.Client, e.Status, detail)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&q.RecordID, "record", 0, "only events for this server id")
	cmd.Flags().StringVar(&q.Status, "status", "", "only events with this status (launched, failed)")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this, e.g. 24h")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 50, "newest events to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
