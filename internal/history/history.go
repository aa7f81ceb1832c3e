// Package history remembers when each record was last connected to, for the
// "recent first" ordering.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/treykane/termgrid/internal/model"
)

// FileName is the history file inside the data directory.
const FileName = "history.json"

type file struct {
	LastUsed map[string]int64 `json:"last_used"`
}

// Store reads and writes history.json. It is safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore returns the history kept in dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName), now: time.Now}
}

// Touch records a successful connection to record id.
func (s *Store) Touch(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	st.LastUsed[strconv.FormatInt(id, 10)] = s.now().Unix()
	return s.save(st)
}

// Forget drops the entry of a deleted record.
func (s *Store) Forget(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(id, 10)
	if _, ok := st.LastUsed[key]; !ok {
		return nil
	}
	delete(st.LastUsed, key)
	return s.save(st)
}

// LastUsed returns last connection times by record ID.
func (s *Store) LastUsed() (map[int64]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]time.Time, len(st.LastUsed))
	for k, ts := range st.LastUsed {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = time.Unix(ts, 0)
	}
	return out, nil
}

// SortRecent returns a new slice with recently used records first. Records
// with equal (or no) history keep their incoming order.
func SortRecent(records []model.ServerRecord, lastUsed map[int64]time.Time) []model.ServerRecord {
	out := append([]model.ServerRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return lastUsed[out[i].ID].After(lastUsed[out[j].ID])
	})
	return out
}

func (s *Store) load() (file, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return file{LastUsed: map[string]int64{}}, nil
		}
		return file{}, err
	}
	var st file
	if err := json.Unmarshal(b, &st); err != nil {
		return file{LastUsed: map[string]int64{}}, nil
	}
	if st.LastUsed == nil {
		st.LastUsed = map[string]int64{}
	}
	return st, nil
}

func (s *Store) save(st file) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}
