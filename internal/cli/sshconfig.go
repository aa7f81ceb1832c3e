package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/treykane/termgrid/internal/inventory"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/query"
	"github.com/treykane/termgrid/internal/sshconfig"
)

func newImportCmd(a *app) *cobra.Command {
	root := &cobra.Command{Use: "import", Short: "Import servers from other tools"}

	var (
		file   string
		osArg  string
		dryRun bool
		opts   sshconfig.ImportOptions
	)
	sshCmd := &cobra.Command{
		Use:   "ssh-config",
		Short: "Import Host entries from an OpenSSH client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			osTag, err := model.ParseOS(osArg)
			if err != nil {
				return err
			}
			opts.OS = osTag
			if file == "" {
				if file, err = sshconfig.DefaultPath(); err != nil {
					return err
				}
			}
			res, err := sshconfig.ParseFile(file)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			out := cmd.OutOrStdout()
			return a.withStore(cmd.Context(), func(s *inventory.Store) error {
				existing, err := s.All(cmd.Context())
				if err != nil {
					return err
				}
				records, skipped := sshconfig.ToRecords(res.Hosts, existing, opts)
				for _, r := range records {
					if dryRun {
						fmt.Fprintf(out, "would add %s (%s)\n", r.Name, r.Target())
						continue
					}
					id, err := s.Add(cmd.Context(), r)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "added #%d %s (%s)\n", id, r.Name, r.Target())
				}
				for _, sk := range skipped {
					fmt.Fprintf(out, "skipped %s: %s\n", sk.Alias, sk.Reason)
				}
				fmt.Fprintf(out, "imported %d, skipped %d\n", len(records), len(skipped))
				return nil
			})
		},
	}
	sshCmd.Flags().StringVarP(&file, "file", "f", "", "config file (default ~/.ssh/config)")
	sshCmd.Flags().StringVarP(&opts.Group, "group", "g", "", "group for imported servers")
	sshCmd.Flags().StringVar(&opts.DefaultUser, "default-user", "", "username for hosts without a User")
	sshCmd.Flags().StringVar(&osArg, "os", "linux", "target OS for imported servers")
	sshCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be imported")

	root.AddCommand(sshCmd)
	return root
}

func newExportCmd(a *app) *cobra.Command {
	root := &cobra.Command{Use: "export", Short: "Export servers for other tools"}

	var (
		output string
		p      query.Params
	)
	sshCmd := &cobra.Command{
		Use:   "ssh-config",
		Short: "Write ssh and sftp servers as OpenSSH Host blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *inventory.Store) error {
				records, err := s.List(cmd.Context(), p)
				if err != nil {
					return err
				}
				text := sshconfig.Render(records)
				if output == "" || output == "-" {
					_, err := fmt.Fprint(cmd.OutOrStdout(), text)
					return err
				}
				if err := os.WriteFile(output, []byte(text), 0o600); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
				return nil
			})
		},
	}
	sshCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	sshCmd.Flags().StringVarP(&p.Group, "group", "g", "", "only servers in this group")
	sshCmd.Flags().StringSliceVarP(&p.Tags, "tag", "t", nil, "only servers carrying every tag")

	root.AddCommand(sshCmd)
	return root
}
