package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/treykane/termgrid/internal/inventory"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/probe"
	"github.com/treykane/termgrid/internal/util"
)

type probeJSON struct {
	RecordID  int64  `json:"record_id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func newProbeCmd(a *app) *cobra.Command {
	var (
		timeout time.Duration
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "probe [id...]",
		Short: "Check which servers accept TCP connections on their port",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			var records []model.ServerRecord
			err = a.withStore(cmd.Context(), func(s *inventory.Store) error {
				if len(ids) == 0 {
					records, err = s.All(cmd.Context())
					return err
				}
				for _, id := range ids {
					r, err := s.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					records = append(records, r)
				}
				return nil
			})
			if err != nil {
				return err
			}

			results := probe.New(timeout).Run(cmd.Context(), records)
			out := cmd.OutOrStdout()
			if jsonOut {
				payload := make([]probeJSON, 0, len(results))
				for _, r := range results {
					pj := probeJSON{RecordID: r.RecordID, Name: r.Name, Address: r.Address, Reachable: r.Reachable, LatencyMS: r.Latency.Milliseconds()}
					if r.Err != nil {
						pj.Error = r.Err.Error()
					}
					payload = append(payload, pj)
				}
				return printJSON(out, payload)
			}
			fmt.Fprintf(out, "%-5s %-20s %-30s %-6s %s\n", "ID", "NAME", "ADDRESS", "STATE", "DETAIL")
			for _, r := range results {
				state, detail := "up", r.Latency.Round(time.Millisecond).String()
				if !r.Reachable {
					state, detail = "down", fmt.Sprint(r.Err)
				}
				fmt.Fprintf(out, "%-5d %-20s %-30s %-6s %s\n", r.RecordID, r.Name, r.Address, state, detail)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", util.ProbeTimeout, "per-server dial timeout")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
