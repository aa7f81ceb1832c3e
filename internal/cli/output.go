package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/treykane/termgrid/internal/inventory"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
	"github.com/treykane/termgrid/internal/query"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid server id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveRecord accepts a numeric ID or an exact (case-insensitive) name.
func resolveRecord(ctx context.Context, s *inventory.Store, arg string) (model.ServerRecord, error) {
	if id, err := parseID(arg); err == nil {
		return s.Get(ctx, id)
	}
	all, err := s.All(ctx)
	if err != nil {
		return model.ServerRecord{}, err
	}
	var matches []model.ServerRecord
	for _, r := range all {
		if strings.EqualFold(r.Name, arg) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return model.ServerRecord{}, fmt.Errorf("no server named %q", arg)
	case 1:
		return matches[0], nil
	}
	ids := make([]string, len(matches))
	for i, r := range matches {
		ids[i] = strconv.FormatInt(r.ID, 10)
	}
	return model.ServerRecord{}, fmt.Errorf("%d servers are named %q (ids %s); use an id", len(matches), arg, strings.Join(ids, ", "))
}

// countsLine renders per-protocol totals in registry order.
func countsLine(records []model.ServerRecord) string {
	counts := query.ProtocolCounts(records)
	parts := []string{fmt.Sprintf("total %d", len(records))}
	for _, name := range protocol.Names() {
		if n := counts[name]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", name, n))
		}
	}
	return strings.Join(parts, " | ")
}
