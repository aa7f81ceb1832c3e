// Package bundle stores named sets of records that are launched together.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileName is the bundles file inside the data directory.
const FileName = "bundles.yaml"

// Definition is a named list of record IDs.
type Definition struct {
	Name      string  `yaml:"name" json:"name"`
	RecordIDs []int64 `yaml:"record_ids" json:"record_ids"`
}

type fileModel struct {
	Bundles map[string]Definition `yaml:"bundles"`
}

// Store reads and writes bundles.yaml. It is safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns the bundle store kept in dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// LoadAll returns all bundles sorted by name.
func (s *Store) LoadAll() ([]Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fm, err := s.loadFile()
	if err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(fm.Bundles))
	for _, b := range fm.Bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get fetches one bundle by name.
func (s *Store) Get(name string) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fm, err := s.loadFile()
	if err != nil {
		return Definition{}, err
	}
	b, ok := fm.Bundles[name]
	if !ok {
		return Definition{}, fmt.Errorf("bundle not found: %s", name)
	}
	return b, nil
}

// Create adds or replaces a bundle. Duplicate IDs are dropped, keeping the
// first occurrence.
func (s *Store) Create(name string, ids []int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("bundle name cannot be empty")
	}
	if len(ids) == 0 {
		return fmt.Errorf("bundle must include at least one record")
	}
	seen := map[int64]bool{}
	var clean []int64
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("invalid record id %d", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		clean = append(clean, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fm, err := s.loadFile()
	if err != nil {
		return err
	}
	fm.Bundles[name] = Definition{Name: name, RecordIDs: clean}
	return s.saveFile(fm)
}

// Delete removes a bundle by name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fm, err := s.loadFile()
	if err != nil {
		return err
	}
	if _, ok := fm.Bundles[name]; !ok {
		return fmt.Errorf("bundle not found: %s", name)
	}
	delete(fm.Bundles, name)
	return s.saveFile(fm)
}

// DropRecord removes id from every bundle, for when a record is deleted.
func (s *Store) DropRecord(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fm, err := s.loadFile()
	if err != nil {
		return err
	}
	changed := false
	for name, def := range fm.Bundles {
		kept := def.RecordIDs[:0:0]
		for _, rid := range def.RecordIDs {
			if rid != id {
				kept = append(kept, rid)
			}
		}
		if len(kept) != len(def.RecordIDs) {
			def.RecordIDs = kept
			fm.Bundles[name] = def
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveFile(fm)
}

func (s *Store) loadFile() (fileModel, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileModel{Bundles: map[string]Definition{}}, nil
		}
		return fileModel{}, err
	}
	var fm fileModel
	if err := yaml.Unmarshal(b, &fm); err != nil {
		return fileModel{}, fmt.Errorf("parse bundles: %w", err)
	}
	if fm.Bundles == nil {
		fm.Bundles = map[string]Definition{}
	}
	return fm, nil
}

func (s *Store) saveFile(fm fileModel) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(fm)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}
