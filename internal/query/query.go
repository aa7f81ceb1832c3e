// Package query filters and orders inventory records. It is pure: nothing
// here performs I/O or mutates its input, so the store, CLI and TUI share one
// definition of "what the operator asked to see".
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/util"
)

// SortKey names the field records are ordered by.
type SortKey string

const (
	SortGroup    SortKey = "group"
	SortName     SortKey = "name"
	SortHost     SortKey = "host"
	SortProtocol SortKey = "protocol"
	SortOS       SortKey = "os"
	SortPort     SortKey = "port"
	SortID       SortKey = "id"
)

var sortKeys = []SortKey{SortGroup, SortName, SortHost, SortProtocol, SortOS, SortPort, SortID}

// SortKeys returns every sort key in cycling order; the first is the default.
func SortKeys() []SortKey {
	return append([]SortKey(nil), sortKeys...)
}

// ParseSortKey accepts a sort key case-insensitively. Empty input selects
// SortGroup.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return SortGroup, nil
	}
	for _, known := range sortKeys {
		if k == known {
			return k, nil
		}
	}
	return SortGroup, fmt.Errorf("unknown sort key %q", s)
}

// Next returns the key after k in cycling order.
func (k SortKey) Next() SortKey {
	for i, known := range sortKeys {
		if known == k {
			return sortKeys[(i+1)%len(sortKeys)]
		}
	}
	return SortGroup
}

// Params selects and orders records. The zero value matches everything in
// group order.
type Params struct {
	Text       string
	Group      string
	Tags       []string
	Sort       SortKey
	Descending bool
}

// Matches reports whether r satisfies every criterion of p.
func Matches(r model.ServerRecord, p Params) bool {
	if g := strings.TrimSpace(p.Group); g != "" && !strings.EqualFold(r.Group, g) {
		return false
	}
	for _, tag := range p.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !r.HasTag(tag) {
			return false
		}
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return true
	}
	if util.FoldContains(r.Name, text) || util.FoldContains(r.Host, text) || util.FoldContains(r.Group, text) {
		return true
	}
	for _, tag := range r.Tags {
		if util.FoldContains(tag, text) {
			return true
		}
	}
	return false
}

// Apply returns the records matching p in the order p asks for. Ties on the
// sort key always fall back to ascending ID, regardless of direction.
func Apply(records []model.ServerRecord, p Params) []model.ServerRecord {
	out := make([]model.ServerRecord, 0, len(records))
	for _, r := range records {
		if Matches(r, p) {
			out = append(out, r.Clone())
		}
	}
	key := p.Sort
	if key == "" {
		key = SortGroup
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j], key)
		if p.Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func compare(a, b model.ServerRecord, key SortKey) int {
	switch key {
	case SortName:
		return foldCompare(a.Name, b.Name)
	case SortHost:
		return foldCompare(a.Host, b.Host)
	case SortProtocol:
		return foldCompare(string(a.Protocol), string(b.Protocol))
	case SortOS:
		return foldCompare(string(a.OS), string(b.OS))
	case SortPort:
		return intCompare(a.EffectivePort(), b.EffectivePort())
	case SortID:
		return intCompare(int(a.ID), int(b.ID))
	default:
		return foldCompare(a.Group, b.Group)
	}
}

func foldCompare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func intCompare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Groups returns the distinct non-empty groups of records, sorted
// case-insensitively. Spellings that differ only in case collapse to the first
// one seen.
func Groups(records []model.ServerRecord) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range records {
		if r.Group == "" {
			continue
		}
		key := strings.ToLower(r.Group)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r.Group)
	}
	sort.Slice(out, func(i, j int) bool { return foldCompare(out[i], out[j]) < 0 })
	return out
}

// ProtocolCounts tallies records per protocol.
func ProtocolCounts(records []model.ServerRecord) map[model.Protocol]int {
	counts := make(map[model.Protocol]int)
	for _, r := range records {
		counts[r.Protocol]++
	}
	return counts
}
