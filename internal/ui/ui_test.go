package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/termgrid/internal/dispatch"
	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/query"
)

type fakeInventory struct {
	records []model.ServerRecord
	nextID  int64
	deleted []int64
}

func (f *fakeInventory) All(context.Context) ([]model.ServerRecord, error) {
	return append([]model.ServerRecord(nil), f.records...), nil
}

func (f *fakeInventory) Add(_ context.Context, r model.ServerRecord) (int64, error) {
	f.nextID++
	r.ID = f.nextID
	f.records = append(f.records, r)
	return r.ID, nil
}

func (f *fakeInventory) Update(_ context.Context, id int64, r model.ServerRecord) error {
	for i := range f.records {
		if f.records[i].ID == id {
			r.ID = id
			f.records[i] = r
			return nil
		}
	}
	return errs.NewNotFoundError(id)
}

func (f *fakeInventory) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	kept := f.records[:0]
	for _, r := range f.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeInventory) Path() string { return "servers.db" }

type fakeDispatcher struct {
	detachable bool
	dispatched []int64
	recorded   []dispatch.Result
}

func (f *fakeDispatcher) Plan(r model.ServerRecord) (dispatch.Invocation, error) {
	return dispatch.Invocation{Protocol: r.Protocol, Client: "ssh", Path: "/usr/bin/true", Detachable: f.detachable}, nil
}

func (f *fakeDispatcher) Dispatch(_ context.Context, r model.ServerRecord) (dispatch.Result, error) {
	f.dispatched = append(f.dispatched, r.ID)
	return dispatch.Result{RecordID: r.ID, Status: dispatch.StatusLaunched, PID: 42, Invocation: dispatch.Invocation{Client: "ssh"}}, nil
}

func (f *fakeDispatcher) NewResult(r model.ServerRecord, inv dispatch.Invocation) dispatch.Result {
	return dispatch.Result{RecordID: r.ID, Invocation: inv}
}

func (f *fakeDispatcher) Record(res dispatch.Result, _ model.ServerRecord) {
	f.recorded = append(f.recorded, res)
}

type fakeHistory struct {
	used      map[int64]time.Time
	forgotten []int64
}

func (f *fakeHistory) Touch(id int64) error {
	if f.used == nil {
		f.used = map[int64]time.Time{}
	}
	f.used[id] = time.Now()
	return nil
}

func (f *fakeHistory) Forget(id int64) error {
	f.forgotten = append(f.forgotten, id)
	delete(f.used, id)
	return nil
}

func (f *fakeHistory) LastUsed() (map[int64]time.Time, error) {
	out := map[int64]time.Time{}
	for k, v := range f.used {
		out[k] = v
	}
	return out, nil
}

type fakeBundles struct{ dropped []int64 }

func (f *fakeBundles) DropRecord(id int64) error {
	f.dropped = append(f.dropped, id)
	return nil
}

func sampleRecords() []model.ServerRecord {
	return []model.ServerRecord{
		{ID: 1, Name: "db", Host: "10.0.0.1", Protocol: "ssh", Username: "root", OS: "linux", Group: "prod"},
		{ID: 2, Name: "api", Host: "10.0.0.2", Protocol: "ssh", Username: "root", OS: "linux", Group: "prod"},
		{ID: 3, Name: "desk", Host: "10.0.0.3", Protocol: "rdp", OS: "windows", Group: "office"},
		{ID: 4, Name: "cache", Host: "10.0.0.4", Protocol: "vnc", OS: "linux"},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m dashboardModel, keys ...string) (dashboardModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(dashboardModel)
	}
	return m, cmd
}

func newTestDashboard(inv *fakeInventory, d *fakeDispatcher, h *fakeHistory, b *fakeBundles) dashboardModel {
	inv.nextID = int64(len(inv.records))
	opts := Options{Inventory: inv, Dispatcher: d}
	if h != nil {
		opts.History = h
	}
	if b != nil {
		opts.Bundles = b
	}
	return newDashboard(context.Background(), opts)
}

func names(records []model.ServerRecord) string {
	var out []string
	for _, r := range records {
		out = append(out, r.Name)
	}
	return strings.Join(out, ",")
}

func TestApplyFilter_RecentFirstSort(t *testing.T) {
	h := &fakeHistory{used: map[int64]time.Time{
		1: time.Now().Add(-time.Hour),
		2: time.Now(),
	}}
	m := newTestDashboard(&fakeInventory{records: sampleRecords()}, &fakeDispatcher{}, h, nil)
	m.recentFirst = true
	m.applyFilter()
	if got := names(m.filtered); got != "api,db,cache,desk" {
		t.Fatalf("expected most recent first, got %s", got)
	}
}

func TestGroupCycleAndFilter(t *testing.T) {
	m := newTestDashboard(&fakeInventory{records: sampleRecords()}, &fakeDispatcher{}, nil, nil)
	if got := names(m.filtered); got != "cache,desk,db,api" {
		t.Fatalf("unexpected group order: %s", got)
	}

	m, _ = press(t, m, "g")
	if m.group != "office" || names(m.filtered) != "desk" {
		t.Fatalf("expected office group, got %q %s", m.group, names(m.filtered))
	}
	m, _ = press(t, m, "g", "g")
	if m.group != "" || len(m.filtered) != 4 {
		t.Fatalf("expected cycle back to all, got %q", m.group)
	}

	m, _ = press(t, m, "/", "a", "p", "enter")
	if m.filterMode || names(m.filtered) != "api" {
		t.Fatalf("unexpected filter result: %s", names(m.filtered))
	}
}

func TestSortKeys(t *testing.T) {
	m := newTestDashboard(&fakeInventory{records: sampleRecords()}, &fakeDispatcher{}, nil, nil)
	m, _ = press(t, m, "s")
	if m.sortKey != query.SortName || names(m.filtered) != "api,cache,db,desk" {
		t.Fatalf("unexpected name sort: %s %s", m.sortKey, names(m.filtered))
	}
	m, _ = press(t, m, "S")
	if names(m.filtered) != "desk,db,cache,api" {
		t.Fatalf("unexpected reverse sort: %s", names(m.filtered))
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	inv := &fakeInventory{records: sampleRecords()}
	h := &fakeHistory{}
	b := &fakeBundles{}
	m := newTestDashboard(inv, &fakeDispatcher{}, h, b)

	m, _ = press(t, m, "x", "n")
	if len(inv.deleted) != 0 || len(m.records) != 4 {
		t.Fatal("delete must wait for y")
	}

	target := m.filtered[0].ID
	m, _ = press(t, m, "x", "y")
	if len(inv.deleted) != 1 || inv.deleted[0] != target {
		t.Fatalf("expected #%d deleted, got %v", target, inv.deleted)
	}
	if len(m.records) != 3 {
		t.Fatalf("expected reload after delete, got %d records", len(m.records))
	}
	if len(h.forgotten) != 1 || len(b.dropped) != 1 {
		t.Fatalf("expected history and bundles cleanup, got %v %v", h.forgotten, b.dropped)
	}
}

func TestConnectDetachedRecordsHistory(t *testing.T) {
	d := &fakeDispatcher{detachable: true}
	h := &fakeHistory{}
	m := newTestDashboard(&fakeInventory{records: sampleRecords()}, d, h, nil)

	m, cmd := press(t, m, "enter")
	if cmd == nil {
		t.Fatal("expected a launch command")
	}
	next, _ := m.Update(cmd())
	m = next.(dashboardModel)

	id := m.filtered[0].ID
	if len(d.dispatched) != 1 || d.dispatched[0] != id {
		t.Fatalf("expected dispatch of #%d, got %v", id, d.dispatched)
	}
	if _, ok := h.used[id]; !ok {
		t.Fatal("expected history touch after launch")
	}
	if !strings.Contains(m.status, "pid=42") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestLaunchResortsRecentFirst(t *testing.T) {
	d := &fakeDispatcher{detachable: true}
	m := newTestDashboard(&fakeInventory{records: sampleRecords()}, d, &fakeHistory{}, nil)
	m.recentFirst = true
	m.applyFilter()
	if got := names(m.filtered); got != "cache,desk,db,api" {
		t.Fatalf("unexpected initial order: %s", got)
	}

	m, cmd := press(t, m, "j", "j", "enter")
	if cmd == nil {
		t.Fatal("expected a launch command")
	}
	next, _ := m.Update(cmd())
	m = next.(dashboardModel)

	if got := names(m.filtered); got != "db,cache,desk,api" {
		t.Fatalf("expected launched record first, got %s", got)
	}
	if m.sel != 0 {
		t.Fatalf("expected selection to follow the launched record, got %d", m.sel)
	}
}

func TestAttachedSessionIsJournaled(t *testing.T) {
	d := &fakeDispatcher{}
	m := newTestDashboard(&fakeInventory{records: sampleRecords()}, d, &fakeHistory{}, nil)
	r := m.filtered[0]

	next, _ := m.Update(sessionDoneMsg{res: dispatch.Result{RecordID: r.ID, Invocation: dispatch.Invocation{Client: "ssh"}}, record: r})
	m = next.(dashboardModel)
	if len(d.recorded) != 1 || d.recorded[0].Status != dispatch.StatusLaunched {
		t.Fatalf("expected journaled session, got %+v", d.recorded)
	}
	if len(d.dispatched) != 0 {
		t.Fatal("attached sessions must not go through Dispatch")
	}
}

func TestAddFormSavesRecord(t *testing.T) {
	inv := &fakeInventory{records: sampleRecords()}
	m := newTestDashboard(inv, &fakeDispatcher{}, nil, nil)

	m, _ = press(t, m, "a", "j", "enter")
	if m.form == nil || m.form.mode != formModeFull {
		t.Fatal("expected full form")
	}
	m.form.fields[fieldName].SetValue("new")
	m.form.fields[fieldHost].SetValue("10.0.0.9")
	m.form.fields[fieldUser].SetValue("ops")
	m, _ = press(t, m, "enter")

	if m.form != nil {
		t.Fatalf("form should close, error %q", m.form.errMsg)
	}
	if len(inv.records) != 5 || inv.records[4].Name != "new" {
		t.Fatalf("expected new record stored, got %+v", inv.records)
	}
	if !strings.Contains(m.status, "Added #5") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestCountsLine(t *testing.T) {
	m := newTestDashboard(&fakeInventory{records: sampleRecords()}, &fakeDispatcher{}, nil, nil)
	line := m.countsLine()
	for _, want := range []string{"total 4", "ssh 2", "rdp 1", "vnc 1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "ftp") {
		t.Fatalf("protocols without records are omitted: %q", line)
	}
}
