package events

import (
	"os"
	"sync"
	"testing"
	"time"
)

func TestStoreAppendReadAndFilters(t *testing.T) {
	s := NewStore(t.TempDir())

	base := time.Now().Add(-2 * time.Hour).UTC()
	seed := []Event{
		{Timestamp: base, LaunchID: "a", RecordID: 1, Status: StatusLaunched},
		{Timestamp: base.Add(10 * time.Minute), LaunchID: "b", RecordID: 1, Status: StatusFailed, Reason: "no client"},
		{Timestamp: base.Add(20 * time.Minute), LaunchID: "c", RecordID: 2, Status: StatusLaunched},
	}
	for _, evt := range seed {
		if err := s.Append(evt); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := s.Read(Query{})
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}

	record, err := s.Read(Query{RecordID: 1})
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if len(record) != 2 {
		t.Fatalf("expected 2 events for record 1, got %d", len(record))
	}

	failed, err := s.Read(Query{Status: StatusFailed})
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if len(failed) != 1 || failed[0].Reason != "no client" {
		t.Fatalf("unexpected failed result: %+v", failed)
	}

	limited, err := s.Read(Query{Limit: 1})
	if err != nil {
		t.Fatalf("read limit: %v", err)
	}
	if len(limited) != 1 || limited[0].LaunchID != "c" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}

	since, err := s.Read(Query{Since: base.Add(15 * time.Minute)})
	if err != nil {
		t.Fatalf("read since: %v", err)
	}
	if len(since) != 1 || since[0].LaunchID != "c" {
		t.Fatalf("unexpected since result: %+v", since)
	}
}

func TestReadMissingJournal(t *testing.T) {
	s := NewStore(t.TempDir())
	got, err := s.Read(Query{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no events, got %d", len(got))
	}
}

func TestConcurrentAppendsKeepLinesIntact(t *testing.T) {
	s := NewStore(t.TempDir())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Append(Event{RecordID: int64(i + 1), Status: StatusLaunched}); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Read(Query{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 events, got %d", len(got))
	}
	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 journal, got %v", info.Mode().Perm())
	}
}
