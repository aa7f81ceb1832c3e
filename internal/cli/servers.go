package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/treykane/termgrid/internal/history"
	"github.com/treykane/termgrid/internal/inventory"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/query"
	"github.com/treykane/termgrid/internal/util"
)

func newListCmd(a *app) *cobra.Command {
	var (
		p       query.Params
		sortArg string
		recent  bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List servers in the inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := query.ParseSortKey(sortArg)
			if err != nil {
				return err
			}
			p.Sort = key
			return a.withStore(cmd.Context(), func(s *inventory.Store) error {
				records, err := s.List(cmd.Context(), p)
				if err != nil {
					return err
				}
				if recent {
					lastUsed, err := a.history().LastUsed()
					if err != nil {
						a.logger.Warn("load history", "error", err)
					}
					records = history.SortRecent(records, lastUsed)
				}
				out := cmd.OutOrStdout()
				if jsonOut {
					if records == nil {
						records = []model.ServerRecord{}
					}
					return printJSON(out, records)
				}
				fmt.Fprintf(out, "%-5s %-20s %-6s %-30s %-8s %-12s %-16s %s\n", "ID", "NAME", "PROTO", "TARGET", "OS", "GROUP", "TAGS", "NOTES")
				for _, r := range records {
					fmt.Fprintf(out, "%-5d %-20s %-6s %-30s %-8s %-12s %-16s %s\n",
						r.ID, r.Name, r.Protocol, r.Target(), r.OS, util.EmptyDash(r.Group),
						util.EmptyDash(model.JoinTags(r.Tags)), util.Truncate(r.Notes, util.NotesPreviewLen))
				}
				fmt.Fprintln(out, countsLine(records))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&p.Text, "search", "s", "", "match name, host, group or tag text")
	cmd.Flags().StringVarP(&p.Group, "group", "g", "", "only servers in this group")
	cmd.Flags().StringSliceVarP(&p.Tags, "tag", "t", nil, "only servers carrying every tag")
	cmd.Flags().StringVar(&sortArg, "sort", "", "sort key: group, name, host, protocol, os, port or id")
	cmd.Flags().BoolVar(&p.Descending, "desc", false, "reverse the sort")
	cmd.Flags().BoolVar(&recent, "recent", false, "most recently connected first")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show one server and the command connect would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *inventory.Store) error {
				r, err := resolveRecord(cmd.Context(), s, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOut {
					return printJSON(out, r)
				}
				fmt.Fprintf(out, "ID:       %d\nName:     %s\nHost:     %s\nProtocol: %s\nUsername: %s\nPort:     %d\nOS:       %s\nGroup:    %s\nTags:     %s\nNotes:    %s\n",
					r.ID, r.Name, r.Host, r.Protocol, util.EmptyDash(r.Username), r.EffectivePort(), r.OS,
					util.EmptyDash(r.Group), util.EmptyDash(model.JoinTags(r.Tags)), util.EmptyDash(r.Notes))
				if lastUsed, err := a.history().LastUsed(); err == nil {
					if ts, ok := lastUsed[r.ID]; ok {
						fmt.Fprintf(out, "Last:     %s\n", ts.Local().Format(time.DateTime))
					}
				}
				if inv, err := a.dispatcher().Plan(r); err == nil {
					fmt.Fprintf(out, "Command:  %s\n", inv.String())
				} else {
					fmt.Fprintf(out, "Command:  unavailable (%v)\n", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

// recordFlags binds the editable fields of a record.
type recordFlags struct {
	name, host, proto, user, os, group, tags, notes string
	port                                            int
}

func (f *recordFlags) bind(cmd *cobra.Command, protoDefault string) {
	cmd.Flags().StringVar(&f.name, "name", "", "display name")
	cmd.Flags().StringVar(&f.host, "host", "", "hostname or IP address")
	cmd.Flags().StringVarP(&f.proto, "protocol", "p", protoDefault, "ssh, sftp, ftp, rdp or vnc")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "login name")
	cmd.Flags().IntVar(&f.port, "port", 0, "port (0 uses the protocol default)")
	cmd.Flags().StringVar(&f.os, "os", "", "target OS: windows, linux, macos, bsd, network or other")
	cmd.Flags().StringVarP(&f.group, "group", "g", "", "group name")
	cmd.Flags().StringVar(&f.tags, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes")
}

// apply copies the flags that were set onto r.
func (f *recordFlags) apply(cmd *cobra.Command, r model.ServerRecord) model.ServerRecord {
	changed := cmd.Flags().Changed
	if changed("name") {
		r.Name = f.name
	}
	if changed("host") {
		r.Host = f.host
	}
	if changed("protocol") || r.Protocol == "" {
		r.Protocol = model.Protocol(f.proto)
	}
	if changed("user") {
		r.Username = f.user
	}
	if changed("port") {
		r.Port = f.port
	}
	if changed("os") {
		r.OS = model.OSTag(f.os)
	}
	if changed("group") {
		r.Group = f.group
	}
	if changed("tags") {
		r.Tags = model.SplitTags(f.tags)
	}
	if changed("notes") {
		r.Notes = f.notes
	}
	return r
}

func newAddCmd(a *app) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a server",
		Example: `  termgrid add --name web-01 --host 10.0.0.5 --user root
  termgrid add --name desk --host 10.0.0.9 --protocol rdp --os windows --group office`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := model.ParseOS(f.os); err != nil {
				return err
			}
			r := f.apply(cmd, model.ServerRecord{})
			return a.withStore(cmd.Context(), func(s *inventory.Store) error {
				id, err := s.Add(cmd.Context(), r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added #%d %s\n", id, r.Name)
				return nil
			})
		},
	}
	f.bind(cmd, "ssh")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Change fields of a server; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("os") {
				if _, err := model.ParseOS(f.os); err != nil {
					return err
				}
			}
			return a.withStore(cmd.Context(), func(s *inventory.Store) error {
				r, err := resolveRecord(cmd.Context(), s, args[0])
				if err != nil {
					return err
				}
				updated := f.apply(cmd, r)
				if err := s.Update(cmd.Context(), r.ID, updated); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated #%d %s\n", r.ID, model.Normalize(updated).Name)
				return nil
			})
		},
	}
	f.bind(cmd, "")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete servers; deleting a missing id is not an error",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			hist, bundles := a.history(), a.bundles()
			return a.withStore(cmd.Context(), func(s *inventory.Store) error {
				for _, id := range ids {
					if err := s.Delete(cmd.Context(), id); err != nil {
						return err
					}
					if err := hist.Forget(id); err != nil {
						a.logger.Warn("forget history", "record_id", id, "error", err)
					}
					if err := bundles.DropRecord(id); err != nil {
						a.logger.Warn("drop record from bundles", "record_id", id, "error", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted #%d\n", id)
				}
				return nil
			})
		},
	}
}
