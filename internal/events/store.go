// Package events is the launch journal: one JSON line per dispatch outcome,
// appended to launches.jsonl in the data directory.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the journal file inside the data directory.
const FileName = "launches.jsonl"

// Launch statuses.
const (
	StatusLaunched = "launched"
	StatusFailed   = "failed"
)

// Event is one dispatch outcome.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	LaunchID   string    `json:"launch_id"`
	RecordID   int64     `json:"record_id"`
	RecordName string    `json:"record_name,omitempty"`
	Protocol   string    `json:"protocol,omitempty"`
	Client     string    `json:"client,omitempty"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	PID        int       `json:"pid,omitempty"`
}

// Query controls event filtering and bounded reads.
type Query struct {
	RecordID int64
	Status   string
	Since    time.Time
	Limit    int
}

// Store provides append/read access to the journal. It is safe for
// concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a journal kept in dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the journal file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes a single event as one JSON line.
func (s *Store) Append(evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// Read returns events in append order, filtered by q. With a limit, only the
// newest matching events are kept.
func (s *Store) Read(q Query) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}
		if !matches(evt, q) {
			continue
		}
		out = append(out, evt)
		if q.Limit > 0 && len(out) > q.Limit {
			out = out[len(out)-q.Limit:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}

func matches(evt Event, q Query) bool {
	if q.RecordID != 0 && evt.RecordID != q.RecordID {
		return false
	}
	if strings.TrimSpace(q.Status) != "" && evt.Status != q.Status {
		return false
	}
	if !q.Since.IsZero() && evt.Timestamp.Before(q.Since) {
		return false
	}
	return true
}
