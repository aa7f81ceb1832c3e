// Package sshconfig imports hosts from an OpenSSH client config into
// inventory records and renders records back out as Host blocks.
//
// Only the directives a record can hold are read: HostName, User and Port.
// Everything else (keys, ProxyJump, forwards) stays in ~/.ssh/config where
// ssh already applies it.
package sshconfig

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// maxIncludeDepth matches OpenSSH's own include recursion limit.
const maxIncludeDepth = 16

// Host is one concrete alias with its resolved settings.
type Host struct {
	Alias    string
	HostName string
	User     string
	Port     int
}

// ParseResult holds parsed hosts plus non-fatal problems.
type ParseResult struct {
	Hosts    []Host
	Warnings []string
}

type block struct {
	patterns []string
	values   map[string]string
}

// DefaultPath returns ~/.ssh/config.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ssh", "config"), nil
}

// ParseFile parses path and the files it includes. A missing root file
// yields an empty result with a warning.
func ParseFile(path string) (ParseResult, error) {
	p := parser{seen: map[string]bool{}}
	if err := p.parse(path, 0); err != nil {
		return ParseResult{}, err
	}
	return ParseResult{Hosts: resolve(p.blocks), Warnings: p.warnings}, nil
}

type parser struct {
	seen     map[string]bool
	blocks   []block
	warnings []string
}

func (p *parser) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *parser) parse(path string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("include depth exceeded at %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if p.seen[abs] {
		p.warnf("include cycle skipped: %s", abs)
		return nil
	}
	p.seen[abs] = true

	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.warnf("config file not found: %s", abs)
			return nil
		}
		return fmt.Errorf("open %s: %w", abs, err)
	}
	defer f.Close()

	// Directives before the first Host line apply to every host.
	p.blocks = append(p.blocks, block{patterns: []string{"*"}, values: map[string]string{}})
	currentIdx := len(p.blocks) - 1

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := stripComment(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := splitDirective(line)
		if !ok {
			p.warnf("%s:%d invalid directive", abs, lineNo)
			continue
		}

		switch key {
		case "include":
			p.include(abs, lineNo, value, depth)
		case "host":
			patterns := strings.Fields(value)
			if len(patterns) == 0 {
				p.warnf("%s:%d Host missing patterns", abs, lineNo)
				patterns = []string{"*"}
			}
			p.blocks = append(p.blocks, block{patterns: patterns, values: map[string]string{}})
			currentIdx = len(p.blocks) - 1
		case "match":
			p.warnf("%s:%d Match blocks are not evaluated", abs, lineNo)
			p.blocks = append(p.blocks, block{values: map[string]string{}})
			currentIdx = len(p.blocks) - 1
		default:
			// First value wins, as in ssh.
			if _, set := p.blocks[currentIdx].values[key]; !set {
				p.blocks[currentIdx].values[key] = value
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", abs, err)
	}
	return nil
}

func (p *parser) include(from string, lineNo int, value string, depth int) {
	for _, pattern := range strings.Fields(value) {
		inc := expandHome(pattern)
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(from), inc)
		}
		matches, err := filepath.Glob(inc)
		if err != nil {
			p.warnf("%s:%d bad include pattern %q", from, lineNo, pattern)
			continue
		}
		if len(matches) == 0 {
			p.warnf("%s:%d include matched nothing: %q", from, lineNo, pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if err := p.parse(m, depth+1); err != nil {
				p.warnf("include %s failed: %v", m, err)
			}
		}
	}
}

// resolve expands every concrete alias against all blocks in file order.
func resolve(blocks []block) []Host {
	seen := map[string]bool{}
	var aliases []string
	for _, b := range blocks {
		for _, pat := range b.patterns {
			if isConcrete(pat) && !seen[pat] {
				seen[pat] = true
				aliases = append(aliases, pat)
			}
		}
	}

	hosts := make([]Host, 0, len(aliases))
	for _, alias := range aliases {
		settings := map[string]string{}
		for _, b := range blocks {
			if !matches(alias, b.patterns) {
				continue
			}
			for k, v := range b.values {
				if _, set := settings[k]; !set {
					settings[k] = v
				}
			}
		}
		h := Host{Alias: alias, HostName: alias, User: settings["user"]}
		if hn := settings["hostname"]; hn != "" {
			h.HostName = strings.ReplaceAll(hn, "%h", alias)
		}
		if port, err := strconv.Atoi(settings["port"]); err == nil {
			h.Port = port
		}
		hosts = append(hosts, h)
	}
	return hosts
}

func matches(alias string, patterns []string) bool {
	matched := false
	for _, p := range patterns {
		negated := strings.HasPrefix(p, "!")
		ok, err := filepath.Match(strings.TrimPrefix(p, "!"), alias)
		if err != nil || !ok {
			continue
		}
		if negated {
			return false
		}
		matched = true
	}
	return matched
}

func isConcrete(pattern string) bool {
	return pattern != "" && !strings.HasPrefix(pattern, "!") && !strings.ContainsAny(pattern, "*?")
}

// splitDirective returns the lowercased keyword and its value. Both
// "Key value" and "Key=value" forms are accepted.
func splitDirective(line string) (string, string, bool) {
	i := strings.IndexAny(line, " \t=")
	if i <= 0 {
		return "", "", false
	}
	key := strings.ToLower(line[:i])
	value := strings.TrimSpace(strings.TrimLeft(line[i:], " \t="))
	value = strings.Trim(value, `"`)
	return key, value, value != ""
}

func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return strings.TrimSpace(line[:i])
			}
		}
	}
	return strings.TrimSpace(line)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
