// Package ui is the interactive dashboard: a filterable server table with
// connect, add, edit and delete actions.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/treykane/termgrid/internal/dispatch"
	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/history"
	"github.com/treykane/termgrid/internal/logging"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
	"github.com/treykane/termgrid/internal/query"
	"github.com/treykane/termgrid/internal/util"
)

// Inventory is the store surface the dashboard edits.
type Inventory interface {
	All(ctx context.Context) ([]model.ServerRecord, error)
	Add(ctx context.Context, r model.ServerRecord) (int64, error)
	Update(ctx context.Context, id int64, r model.ServerRecord) error
	Delete(ctx context.Context, id int64) error
	Path() string
}

// Dispatcher plans and launches clients.
type Dispatcher interface {
	Plan(r model.ServerRecord) (dispatch.Invocation, error)
	Dispatch(ctx context.Context, r model.ServerRecord) (dispatch.Result, error)
	NewResult(r model.ServerRecord, inv dispatch.Invocation) dispatch.Result
	Record(res dispatch.Result, r model.ServerRecord)
}

// History tracks when records were last connected.
type History interface {
	Touch(id int64) error
	Forget(id int64) error
	LastUsed() (map[int64]time.Time, error)
}

// Bundles is notified when a record is deleted.
type Bundles interface {
	DropRecord(id int64) error
}

// Options wires the dashboard. History and Bundles may be nil.
type Options struct {
	Inventory   Inventory
	Dispatcher  Dispatcher
	History     History
	Bundles     Bundles
	Sort        query.SortKey
	RecentFirst bool
	WatchDB     bool
	Logger      *slog.Logger
}

type statusMsg string

// launchedMsg carries the outcome of a detached launch.
type launchedMsg struct {
	res    dispatch.Result
	record model.ServerRecord
	err    error
}

// sessionDoneMsg is sent when an attached session returns the terminal.
type sessionDoneMsg struct {
	res    dispatch.Result
	record model.ServerRecord
	err    error
}

type dashboardModel struct {
	ctx    context.Context
	inv    Inventory
	disp   Dispatcher
	hist   History
	bund   Bundles
	logger *slog.Logger

	records  []model.ServerRecord
	filtered []model.ServerRecord
	groups   []string
	lastUsed map[int64]time.Time

	group       string
	sortKey     query.SortKey
	descending  bool
	recentFirst bool

	sel           int
	filter        string
	filterMode    bool
	showHelp      bool
	confirmDelete bool
	form          *recordForm
	status        string
	width         int
	height        int

	watcher *dbWatcher
}

func newDashboard(ctx context.Context, opts Options) dashboardModel {
	m := dashboardModel{
		ctx:         ctx,
		inv:         opts.Inventory,
		disp:        opts.Dispatcher,
		hist:        opts.History,
		bund:        opts.Bundles,
		logger:      logging.Default(opts.Logger).With("component", "ui"),
		sortKey:     opts.Sort,
		recentFirst: opts.RecentFirst,
	}
	if m.sortKey == "" {
		m.sortKey = query.SortGroup
	}
	m.reload()
	if m.status == "" {
		m.status = "Ready. Select a server, then Enter to connect or a to add one."
	}
	return m
}

func (m *dashboardModel) reload() {
	records, err := m.inv.All(m.ctx)
	if err != nil {
		m.status = "load failed: " + errs.UserMessage(err, true)
		m.logger.Error("load inventory", "error", err)
		return
	}
	m.records = records
	m.groups = query.Groups(records)
	if m.group != "" && !containsFold(m.groups, m.group) {
		m.group = ""
	}
	if m.hist != nil {
		if lu, err := m.hist.LastUsed(); err == nil {
			m.lastUsed = lu
		} else {
			m.logger.Warn("load history", "error", err)
		}
	}
	m.applyFilter()
}

func (m *dashboardModel) applyFilter() {
	m.filtered = query.Apply(m.records, query.Params{
		Text:       m.filter,
		Group:      m.group,
		Sort:       m.sortKey,
		Descending: m.descending,
	})
	if m.recentFirst {
		m.filtered = history.SortRecent(m.filtered, m.lastUsed)
	}
	if m.sel >= len(m.filtered) {
		m.sel = len(m.filtered) - 1
	}
	if m.sel < 0 {
		m.sel = 0
	}
}

// cycleGroup steps through the groups, then back to all.
func (m *dashboardModel) cycleGroup() {
	if m.group == "" {
		if len(m.groups) > 0 {
			m.group = m.groups[0]
		}
		return
	}
	for i, g := range m.groups {
		if strings.EqualFold(g, m.group) && i+1 < len(m.groups) {
			m.group = m.groups[i+1]
			return
		}
	}
	m.group = ""
}

func (m dashboardModel) selected() (model.ServerRecord, bool) {
	if len(m.filtered) == 0 {
		return model.ServerRecord{}, false
	}
	return m.filtered[m.sel], true
}

func (m dashboardModel) Init() tea.Cmd {
	if m.watcher != nil {
		return m.watcher.wait()
	}
	return nil
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case dbChangedMsg:
		m.reload()
		m.status = "Inventory changed on disk; reloaded"
		if m.watcher == nil {
			return m, nil
		}
		return m, m.watcher.wait()
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case launchedMsg:
		m.finishLaunch(msg.res, msg.record, msg.err)
		return m, nil
	case sessionDoneMsg:
		res := msg.res
		if msg.err != nil {
			res.Status = dispatch.StatusFailed
			res.Reason = msg.err.Error()
		} else {
			res.Status = dispatch.StatusLaunched
		}
		m.disp.Record(res, msg.record)
		m.touch(msg.record.ID)
		if msg.err != nil {
			m.status = fmt.Sprintf("%s exited: %v", res.Invocation.Client, msg.err)
		} else {
			m.status = fmt.Sprintf("%s session closed", res.Invocation.Client)
		}
		return m, nil
	case tea.KeyMsg:
		if m.form != nil {
			return m.updateForm(msg)
		}
		if m.filterMode {
			return m.updateFilter(msg), nil
		}
		if m.confirmDelete {
			return m.updateConfirm(msg), nil
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m dashboardModel) updateFilter(msg tea.KeyMsg) dashboardModel {
	switch msg.String() {
	case "enter", "esc":
		m.filterMode = false
	case "backspace":
		if len(m.filter) > 0 {
			r := []rune(m.filter)
			m.filter = string(r[:len(r)-1])
		}
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.filter += string(msg.Runes)
		}
	}
	m.applyFilter()
	return m
}

func (m dashboardModel) updateConfirm(msg tea.KeyMsg) dashboardModel {
	m.confirmDelete = false
	r, ok := m.selected()
	if !ok || msg.String() != "y" {
		m.status = "Delete cancelled"
		return m
	}
	if err := m.inv.Delete(m.ctx, r.ID); err != nil {
		m.status = "delete failed: " + errs.UserMessage(err, true)
		return m
	}
	if m.hist != nil {
		if err := m.hist.Forget(r.ID); err != nil {
			m.logger.Warn("forget history", "record_id", r.ID, "error", err)
		}
	}
	if m.bund != nil {
		if err := m.bund.DropRecord(r.ID); err != nil {
			m.logger.Warn("drop record from bundles", "record_id", r.ID, "error", err)
		}
	}
	m.reload()
	m.status = fmt.Sprintf("Deleted #%d %s", r.ID, r.Name)
	return m
}

func (m dashboardModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.form = nil
		m.status = "Cancelled"
		return m, nil
	}
	res, cmd := m.form.update(msg)
	if res == nil {
		return m, cmd
	}
	m.form = nil
	r := res.record
	if res.save {
		if r.ID != 0 {
			if err := m.inv.Update(m.ctx, r.ID, r); err != nil {
				m.status = "update failed: " + errs.UserMessage(err, true)
				return m, nil
			}
			m.status = fmt.Sprintf("Updated #%d %s", r.ID, r.Name)
		} else {
			id, err := m.inv.Add(m.ctx, r)
			if err != nil {
				m.status = "add failed: " + errs.UserMessage(err, true)
				return m, nil
			}
			r.ID = id
			m.status = fmt.Sprintf("Added #%d %s", id, r.Name)
		}
		m.reload()
	}
	if res.connect {
		return m, m.connect(r)
	}
	return m, nil
}

func (m dashboardModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		if m.sel < len(m.filtered)-1 {
			m.sel++
		}
	case "k", "up":
		if m.sel > 0 {
			m.sel--
		}
	case "/":
		m.filterMode = true
		m.status = "Filter mode: type and press Enter"
	case "g":
		m.cycleGroup()
		m.applyFilter()
		m.status = "Group: " + util.DefaultString(m.group, "all")
	case "s":
		m.sortKey = m.sortKey.Next()
		m.applyFilter()
		m.status = "Sort: " + string(m.sortKey)
	case "S":
		m.descending = !m.descending
		m.applyFilter()
		m.status = "Sort: " + string(m.sortKey) + directionLabel(m.descending)
	case "?":
		m.showHelp = !m.showHelp
	case "r":
		m.reload()
		m.status = "Reloaded inventory"
	case "a":
		m.form = newForm()
	case "e":
		if r, ok := m.selected(); ok {
			m.form = editForm(r)
		}
	case "x", "delete":
		if r, ok := m.selected(); ok {
			m.confirmDelete = true
			m.status = fmt.Sprintf("Delete #%d %s? y to confirm, any other key cancels", r.ID, r.Name)
		}
	case "enter":
		if r, ok := m.selected(); ok {
			return m, m.connect(r)
		}
	}
	return m, nil
}

// connect launches r detached when possible. Terminal clients with no
// emulator take over the dashboard's terminal until they exit.
func (m dashboardModel) connect(r model.ServerRecord) tea.Cmd {
	inv, err := m.disp.Plan(r)
	if err == nil && !inv.Detachable {
		res := m.disp.NewResult(r, inv)
		return tea.ExecProcess(inv.Command(), func(err error) tea.Msg {
			return sessionDoneMsg{res: res, record: r, err: err}
		})
	}
	ctx := m.ctx
	d := m.disp
	return func() tea.Msg {
		res, err := d.Dispatch(ctx, r)
		return launchedMsg{res: res, record: r, err: err}
	}
}

func (m *dashboardModel) finishLaunch(res dispatch.Result, r model.ServerRecord, err error) {
	if err != nil {
		m.status = "launch failed: " + errs.UserMessage(err, true)
		return
	}
	m.touch(r.ID)
	m.status = fmt.Sprintf("Launched %s for %s (pid=%d)", res.Invocation.Client, r.Name, res.PID)
}

func (m *dashboardModel) touch(id int64) {
	if m.hist == nil || id == 0 {
		return
	}
	if err := m.hist.Touch(id); err != nil {
		m.logger.Warn("record history", "record_id", id, "error", err)
		return
	}
	if lu, err := m.hist.LastUsed(); err == nil {
		m.lastUsed = lu
		m.applyFilter()
		for i, r := range m.filtered {
			if r.ID == id {
				m.sel = i
				break
			}
		}
	}
}

func (m dashboardModel) View() string {
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render("termgrid")
	subhead := fmt.Sprintf("servers=%d shown=%d group=%s sort=%s%s", len(m.records), len(m.filtered),
		util.DefaultString(m.group, "all"), m.sortKey, directionLabel(m.descending))
	if m.recentFirst {
		subhead += " recent-first"
	}

	filterLine := fmt.Sprintf("Filter: %s", m.filter)
	if m.filterMode {
		filterLine += " (typing...)"
	}
	quickHelp := "Keys: Enter connect | a add | e edit | x delete | / filter | g group | s/S sort | ? help | q quit"

	var body string
	if m.form != nil {
		body = m.form.view(m.renderPanel, m.effectiveWidth())
	} else {
		body = m.renderMainPanels(m.listView(), m.detailView())
	}
	status := m.renderPanel("Status", m.countsLine()+"\n"+m.status, m.effectiveWidth(), lipgloss.Color("205"))
	help := ""
	if m.showHelp {
		help = m.renderPanel("Help", m.helpBlock(), m.effectiveWidth(), lipgloss.Color("244"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, head, subhead, filterLine, quickHelp, body, help, status)
}

func (m dashboardModel) listView() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %-4s %-20s %-28s %-5s %-12s\n", "ID", "NAME", "TARGET", "PROTO", "GROUP"))
	for i, r := range m.filtered {
		cursor := " "
		if i == m.sel {
			cursor = ">"
		}
		b.WriteString(fmt.Sprintf("%s %-4d %s %-18s %-28s %-5s %-12s\n",
			cursor, r.ID, protocol.Icon(r.Protocol), util.Truncate(r.Name, 15), util.Truncate(r.Target(), 25),
			r.Protocol, util.Truncate(util.EmptyDash(r.Group), 9)))
	}
	if len(m.filtered) == 0 {
		b.WriteString("  (no servers matched)\n")
	}
	return b.String()
}

func (m dashboardModel) detailView() string {
	r, ok := m.selected()
	if !ok {
		return "Add a server with a, or clear the filter to see more.\n"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Name: %s\nHost: %s\nProtocol: %s %s\nUser: %s\nPort: %d\nOS: %s %s\nGroup: %s\nTags: %s\nNotes: %s\n",
		r.Name, r.Host, protocol.Icon(r.Protocol), r.Protocol, util.EmptyDash(r.Username), r.EffectivePort(),
		r.OS.Icon(), r.OS, util.EmptyDash(r.Group), util.EmptyDash(model.JoinTags(r.Tags)),
		util.EmptyDash(util.Truncate(r.Notes, util.NotesPreviewLen))))
	if ts, ok := m.lastUsed[r.ID]; ok {
		b.WriteString("Last used: " + ts.Local().Format(time.DateTime) + "\n")
	}
	b.WriteString("\nPress Enter to connect, e to edit, x to delete.\n")
	return b.String()
}

// countsLine renders per-protocol totals in registry order.
func (m dashboardModel) countsLine() string {
	counts := query.ProtocolCounts(m.records)
	parts := []string{fmt.Sprintf("total %d", len(m.records))}
	for _, name := range protocol.Names() {
		if n := counts[name]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %s %d", protocol.Icon(name), name, n))
		}
	}
	return strings.Join(parts, " | ")
}

func directionLabel(desc bool) string {
	if desc {
		return " desc"
	}
	return ""
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Run starts the dashboard and blocks until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	m := newDashboard(ctx, opts)
	if opts.WatchDB {
		w, err := newDBWatcher(opts.Inventory.Path(), m.logger)
		if err != nil {
			m.logger.Warn("database watch disabled", "error", err)
		} else {
			defer w.Close()
			m.watcher = w
		}
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m dashboardModel) renderMainPanels(listPanel, detailPanel string) string {
	width := m.effectiveWidth()
	if width < 110 {
		return lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderPanel("Servers", listPanel, width, lipgloss.Color("39")),
			m.renderPanel("Details", detailPanel, width, lipgloss.Color("69")),
		)
	}
	leftWidth := width * 3 / 5
	rightWidth := width - leftWidth
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderPanel("Servers", listPanel, leftWidth, lipgloss.Color("39")),
		m.renderPanel("Details", detailPanel, rightWidth, lipgloss.Color("69")),
	)
}

func (m dashboardModel) helpBlock() string {
	return strings.Join([]string{
		"  Navigation: j/k or arrow keys move selection.",
		"  Filtering: press /, type name/host/group/tag text, then Enter.",
		"  Group: g cycles through groups and back to all.",
		"  Sort: s cycles the sort column, S reverses it.",
		"  Connect: Enter launches the client; terminal clients without an emulator run here.",
		"  Edit: a adds, e edits, x then y deletes the selected server.",
		"  Reload: r rereads the inventory.",
		"  Quit: q (or Ctrl+C). Launched clients keep running.",
	}, "\n")
}

func (m dashboardModel) effectiveWidth() int {
	if m.width <= 0 {
		return 100
	}
	return m.width
}

func (m dashboardModel) renderPanel(title, body string, width int, accent lipgloss.Color) string {
	if width < 24 {
		width = 24
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title)
	content := strings.TrimSuffix(body, "\n")
	panel := strings.TrimSpace(header + "\n" + content)
	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Render(panel)
}
