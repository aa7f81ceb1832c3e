package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/treykane/termgrid/internal/appconfig"
	"github.com/treykane/termgrid/internal/doctor"
	"github.com/treykane/termgrid/internal/inventory"
)

func newDoctorCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check clients, file permissions and inventory health",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := appconfig.ConfigDir()
			if err != nil {
				return err
			}
			var report doctor.Report
			err = a.withStore(cmd.Context(), func(s *inventory.Store) error {
				report, err = doctor.Run(cmd.Context(), doctor.Options{
					Inventory: s,
					Clients:   a.dispatcher(),
					LookPath:  a.lookPath,
					DataDir:   a.dataDir,
					ConfigDir: configDir,
				})
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if report.Issues == nil {
					report.Issues = []doctor.Issue{}
				}
				return printJSON(out, report)
			}
			if len(report.Issues) == 0 {
				fmt.Fprintln(out, "no issues found")
				return nil
			}
			for _, i := range report.Issues {
				fmt.Fprintf(out, "[%s] %s %s: %s\n", strings.ToUpper(string(i.Severity)), i.Check, i.Target, i.Message)
				if i.Recommendation != "" {
					fmt.Fprintf(out, "    -> %s\n", i.Recommendation)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
