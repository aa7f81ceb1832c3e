package sshconfig

import (
	"fmt"
	"strings"

	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
	"github.com/treykane/termgrid/internal/util"
)

// ImportOptions shapes the records built from hosts.
type ImportOptions struct {
	Group       string
	DefaultUser string
	OS          model.OSTag
}

// Skipped is a host that could not become a valid record.
type Skipped struct {
	Alias  string
	Reason string
}

// ToRecords converts hosts into validated ssh records. Hosts that duplicate
// an existing record (same host, port and username) are skipped, as are
// hosts that fail validation.
func ToRecords(hosts []Host, existing []model.ServerRecord, opts ImportOptions) ([]model.ServerRecord, []Skipped) {
	have := map[string]bool{}
	for _, r := range existing {
		if r.Protocol == protocol.SSH {
			have[recordKey(r)] = true
		}
	}

	var (
		out     []model.ServerRecord
		skipped []Skipped
	)
	for _, h := range hosts {
		r := model.Normalize(model.ServerRecord{
			Name:     h.Alias,
			Host:     h.HostName,
			Protocol: protocol.SSH,
			Username: util.DefaultString(h.User, opts.DefaultUser),
			Port:     h.Port,
			OS:       opts.OS,
			Group:    opts.Group,
			Tags:     []string{"ssh-config"},
		})
		if r.Port == protocol.DefaultPort(protocol.SSH) {
			r.Port = 0
		}
		if err := model.Validate(r); err != nil {
			skipped = append(skipped, Skipped{Alias: h.Alias, Reason: err.Error()})
			continue
		}
		key := recordKey(r)
		if have[key] {
			skipped = append(skipped, Skipped{Alias: h.Alias, Reason: "already in inventory"})
			continue
		}
		have[key] = true
		out = append(out, r)
	}
	return out, skipped
}

func recordKey(r model.ServerRecord) string {
	return fmt.Sprintf("%s|%d|%s", strings.ToLower(r.Host), r.EffectivePort(), r.Username)
}

// Render writes ssh and sftp records as Host blocks. Aliases are derived from
// record names and made unique.
func Render(records []model.ServerRecord) string {
	var b strings.Builder
	used := map[string]int{}
	for _, r := range records {
		if r.Protocol != protocol.SSH && r.Protocol != protocol.SFTP {
			continue
		}
		alias := aliasFor(r)
		if n := used[alias]; n > 0 {
			used[alias] = n + 1
			alias = fmt.Sprintf("%s-%d", alias, n+1)
		} else {
			used[alias] = 1
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# termgrid #%d %s\n", r.ID, r.Name)
		fmt.Fprintf(&b, "Host %s\n", alias)
		fmt.Fprintf(&b, "  HostName %s\n", r.Host)
		if r.Username != "" {
			fmt.Fprintf(&b, "  User %s\n", r.Username)
		}
		if port := r.EffectivePort(); port != 22 {
			fmt.Fprintf(&b, "  Port %d\n", port)
		}
	}
	return b.String()
}

// aliasFor turns a record name into a Host pattern without spaces or
// wildcard characters.
func aliasFor(r model.ServerRecord) string {
	alias := strings.Map(func(c rune) rune {
		switch {
		case c == ' ' || c == '\t':
			return '-'
		case strings.ContainsRune("*?!#\"", c):
			return -1
		}
		return c
	}, strings.ToLower(strings.TrimSpace(r.Name)))
	if alias == "" {
		alias = fmt.Sprintf("termgrid-%d", r.ID)
	}
	return alias
}
