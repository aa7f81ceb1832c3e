// Package doctor runs local diagnostics: installed clients, terminal
// availability, file permissions, database integrity and inventory hygiene.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/treykane/termgrid/internal/bundle"
	"github.com/treykane/termgrid/internal/events"
	"github.com/treykane/termgrid/internal/history"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// HasHigh reports whether any issue is high severity.
func (r Report) HasHigh() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// Inventory is the read side of the store that doctor inspects.
type Inventory interface {
	All(ctx context.Context) ([]model.ServerRecord, error)
	IntegrityCheck(ctx context.Context) ([]string, error)
	SchemaVersion(ctx context.Context) (int, bool, error)
	Path() string
}

// Clients reports client candidates and the terminal emulator in use.
type Clients interface {
	Candidates(p model.Protocol, target model.OSTag) []string
	Terminal() (string, bool)
	Supported(p model.Protocol, target model.OSTag) bool
}

// Options selects what Run inspects. Nil fields skip their checks.
type Options struct {
	Inventory Inventory
	Clients   Clients
	LookPath  func(string) (string, error)
	DataDir   string
	ConfigDir string
}

// Run executes local diagnostics for termgrid.
func Run(ctx context.Context, opts Options) (Report, error) {
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}

	var records []model.ServerRecord
	var issues []Issue
	if opts.Inventory != nil {
		var err error
		records, err = opts.Inventory.All(ctx)
		if err != nil {
			return Report{}, err
		}
		issues = append(issues, integrityIssues(ctx, opts.Inventory)...)
		issues = append(issues, recordIssues(records, opts.Clients)...)
		issues = append(issues, duplicateIssues(records)...)
	}
	if opts.Clients != nil {
		issues = append(issues, clientIssues(records, opts.Clients, opts.LookPath)...)
		if _, ok := opts.Clients.Terminal(); !ok {
			issues = append(issues, Issue{
				Severity:       SeverityLow,
				Check:          "terminal",
				Target:         "launcher.terminal",
				Message:        "no terminal emulator available; ssh, sftp and ftp sessions run in the current terminal",
				Recommendation: "install a terminal emulator or set launcher.terminal in config.yaml",
			})
		}
	}
	issues = append(issues, permissionIssues(opts)...)

	sort.Slice(issues, func(i, j int) bool {
		ri := severityRank(issues[i].Severity)
		rj := severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		if issues[i].Target != issues[j].Target {
			return issues[i].Target < issues[j].Target
		}
		return issues[i].Message < issues[j].Message
	})
	return Report{Issues: issues}, nil
}

func integrityIssues(ctx context.Context, inv Inventory) []Issue {
	problems, err := inv.IntegrityCheck(ctx)
	if err != nil {
		return []Issue{{
			Severity:       SeverityHigh,
			Check:          "db-integrity",
			Target:         inv.Path(),
			Message:        err.Error(),
			Recommendation: "restore servers.db from a backup",
		}}
	}
	var issues []Issue
	if version, dirty, err := inv.SchemaVersion(ctx); err == nil && dirty {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "db-schema",
			Target:         inv.Path(),
			Message:        fmt.Sprintf("migration %d did not finish", version),
			Recommendation: "restore servers.db from a backup, then reopen it",
		})
	}
	for _, p := range problems {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "db-integrity",
			Target:         inv.Path(),
			Message:        p,
			Recommendation: "restore servers.db from a backup",
		})
	}
	return issues
}

func recordIssues(records []model.ServerRecord, clients Clients) []Issue {
	var issues []Issue
	for _, r := range records {
		target := fmt.Sprintf("#%d %s", r.ID, r.Name)
		if err := model.Validate(model.Normalize(r)); err != nil {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "invalid-record",
				Target:         target,
				Message:        err.Error(),
				Recommendation: fmt.Sprintf("fix it with `termgrid edit %d`", r.ID),
			})
			continue
		}
		if clients != nil && !clients.Supported(r.Protocol, r.OS) {
			issues = append(issues, Issue{
				Severity:       SeverityLow,
				Check:          "unsupported-combination",
				Target:         target,
				Message:        fmt.Sprintf("no %s client strategy for %s targets", r.Protocol, r.OS),
				Recommendation: "correct the record's operating system or protocol",
			})
		}
	}
	return issues
}

func duplicateIssues(records []model.ServerRecord) []Issue {
	seen := map[string][]int64{}
	var keys []string
	for _, r := range records {
		key := fmt.Sprintf("%s://%s@%s:%d", r.Protocol, r.Username, strings.ToLower(r.Host), r.EffectivePort())
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
		seen[key] = append(seen[key], r.ID)
	}
	var issues []Issue
	for _, key := range keys {
		ids := seen[key]
		if len(ids) < 2 {
			continue
		}
		issues = append(issues, Issue{
			Severity:       SeverityLow,
			Check:          "duplicate-record",
			Target:         key,
			Message:        fmt.Sprintf("endpoint is stored %d times (ids %v)", len(ids), ids),
			Recommendation: "delete the extra records",
		})
	}
	return issues
}

// clientIssues flags protocols with no installed client. Missing clients for
// protocols the inventory uses are high severity.
func clientIssues(records []model.ServerRecord, clients Clients, lookPath func(string) (string, error)) []Issue {
	// Prefer an OS each protocol can actually launch for.
	used := map[model.Protocol]model.OSTag{}
	for _, r := range records {
		prev, seen := used[r.Protocol]
		if !seen || !clients.Supported(r.Protocol, prev) {
			used[r.Protocol] = r.OS
		}
	}

	var issues []Issue
	for _, info := range protocol.All() {
		target, inUse := used[info.Name]
		if !inUse || !clients.Supported(info.Name, target) {
			target = model.OSOther
		}
		candidates := clients.Candidates(info.Name, target)
		found := false
		for _, c := range candidates {
			if _, err := lookPath(c); err == nil {
				found = true
				break
			}
		}
		if found {
			continue
		}
		sev := SeverityLow
		if inUse {
			sev = SeverityHigh
		}
		issues = append(issues, Issue{
			Severity:       sev,
			Check:          "client-missing",
			Target:         string(info.Name),
			Message:        fmt.Sprintf("no %s client installed (looked for %s)", info.Name, strings.Join(candidates, ", ")),
			Recommendation: fmt.Sprintf("install one of: %s", strings.Join(candidates, ", ")),
		})
	}
	return issues
}

func permissionIssues(opts Options) []Issue {
	var issues []Issue
	if opts.DataDir != "" {
		checkPathPerm(&issues, opts.DataDir, 0o700, false)
		for _, name := range []string{"servers.db", events.FileName, history.FileName, bundle.FileName} {
			checkPathPerm(&issues, filepath.Join(opts.DataDir, name), 0o600, true)
		}
	}
	if opts.ConfigDir != "" {
		checkPathPerm(&issues, opts.ConfigDir, 0o700, false)
		checkPathPerm(&issues, filepath.Join(opts.ConfigDir, "config.yaml"), 0o600, true)
	}
	return issues
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

func checkPathPerm(issues *[]Issue, path string, max os.FileMode, isFile bool) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		*issues = append(*issues, Issue{
			Severity:       SeverityLow,
			Check:          "permissions",
			Target:         path,
			Message:        fmt.Sprintf("unable to inspect permissions: %v", err),
			Recommendation: "verify path and permissions manually",
		})
		return
	}
	mode := st.Mode().Perm()
	if mode&^max != 0 {
		kind := "directory"
		if isFile {
			kind = "file"
		}
		*issues = append(*issues, Issue{
			Severity:       SeverityMedium,
			Check:          "permissions",
			Target:         path,
			Message:        fmt.Sprintf("%s permissions are too broad (%#o)", kind, mode),
			Recommendation: fmt.Sprintf("restrict permissions to %#o or tighter", max),
		})
	}
}
