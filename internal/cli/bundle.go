package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/treykane/termgrid/internal/bundle"
	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/inventory"
)

func newBundleCmd(a *app) *cobra.Command {
	root := &cobra.Command{Use: "bundle", Short: "Manage named sets of servers launched together"}

	create := &cobra.Command{
		Use:   "create <name> <id>...",
		Short: "Create or replace a bundle",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			err = a.withStore(cmd.Context(), func(s *inventory.Store) error {
				for _, id := range ids {
					if _, err := s.Get(cmd.Context(), id); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if err := a.bundles().Create(args[0], ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created bundle %s\n", strings.TrimSpace(args[0]))
			return nil
		},
	}

	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List bundles",
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := a.bundles().LoadAll()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				if defs == nil {
					defs = []bundle.Definition{}
				}
				return printJSON(out, defs)
			}
			fmt.Fprintf(out, "%-20s %s\n", "NAME", "SERVERS")
			for _, d := range defs {
				ids := make([]string, len(d.RecordIDs))
				for i, id := range d.RecordIDs {
					ids[i] = fmt.Sprintf("#%d", id)
				}
				fmt.Fprintf(out, "%-20s %s\n", d.Name, strings.Join(ids, " "))
			}
			return nil
		},
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "output JSON")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bundles().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted bundle %s\n", args[0])
			return nil
		},
	}

	var limit int
	run := &cobra.Command{
		Use:   "run <name>",
		Short: "Launch every server in a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.bundles().Get(args[0])
			if err != nil {
				return err
			}
			var outcomes []bundle.Outcome
			err = a.withStore(cmd.Context(), func(s *inventory.Store) error {
				outcomes = bundle.Run(cmd.Context(), def, s, a.dispatcher(), limit)
				return nil
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(out, "  [FAIL] #%d %s\n", o.RecordID, errs.UserMessage(o.Err, true))
					continue
				}
				a.touch(o.RecordID)
				fmt.Fprintf(out, "  [OK]   #%d %s %s pid=%d\n", o.RecordID, o.Result.RecordName, o.Result.Invocation.Client, o.Result.PID)
			}
			failed := bundle.Failed(outcomes)
			fmt.Fprintf(out, "bundle %s summary: %d launched, %d failed\n", def.Name, len(outcomes)-failed, failed)
			if failed == len(outcomes) {
				return fmt.Errorf("bundle %s: every launch failed", def.Name)
			}
			return nil
		},
	}
	run.Flags().IntVar(&limit, "concurrency", bundle.DefaultConcurrency, "parallel launches")

	root.AddCommand(create, list, del, run)
	return root
}
