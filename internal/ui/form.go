package ui

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
)

// formMode distinguishes between the mode-select, quick-connect, and full record screens.
type formMode int

const (
	formModeSelect formMode = iota
	formModeQuick
	formModeFull
)

// Field indices for the full record form.
const (
	fieldName = iota
	fieldHost
	fieldProtocol
	fieldUser
	fieldPort
	fieldOS
	fieldGroup
	fieldTags
	fieldNotes
	fieldCount
)

var fieldLabels = []string{"Name:", "Host:", "Protocol:", "Username:", "Port:", "OS:", "Group:", "Tags:", "Notes:"}

// formResult is returned when the user completes the form.
type formResult struct {
	record model.ServerRecord
	// save is false for quick connects, which launch without storing.
	save    bool
	connect bool
}

// recordForm holds all state for the add/edit screen.
type recordForm struct {
	mode    formMode
	modeSel int // 0 = quick, 1 = full (for mode selection screen)

	quickInput textinput.Model

	fields   []textinput.Model
	focusIdx int
	// editID is the record being edited, 0 when adding.
	editID    int64
	lastProto model.Protocol

	errMsg string
}

// newForm creates an add form starting at mode selection.
func newForm() *recordForm {
	f := &recordForm{mode: formModeSelect, lastProto: protocol.SSH}

	qi := textinput.New()
	qi.Placeholder = "[proto://][user@]host[:port]"
	qi.CharLimit = 256
	qi.Width = 50
	f.quickInput = qi

	placeholders := []string{
		"web-01 (required)",
		"192.168.1.10 or example.com (required)",
		strings.Join(protocolNames(), " | "),
		"admin (required for ssh/sftp)",
		"22 (protocol default)",
		"windows | linux | macos | bsd | network | other",
		"production (optional)",
		"web, eu (optional)",
		"rack 4 (optional)",
	}
	limits := []int{64, 256, 8, 64, 5, 16, 64, 256, 512}

	f.fields = make([]textinput.Model, fieldCount)
	for i := range f.fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Width = 40
		f.fields[i] = ti
	}
	f.fields[fieldProtocol].SetValue(string(protocol.SSH))
	f.fields[fieldOS].SetValue(string(model.OSLinux))
	return f
}

// editForm opens the full form prefilled with r.
func editForm(r model.ServerRecord) *recordForm {
	f := newForm()
	f.mode = formModeFull
	f.editID = r.ID
	f.lastProto = r.Protocol
	values := []string{r.Name, r.Host, string(r.Protocol), r.Username, "", string(r.OS), r.Group, model.JoinTags(r.Tags), r.Notes}
	if r.Port > 0 {
		values[fieldPort] = strconv.Itoa(r.Port)
	}
	for i, v := range values {
		f.fields[i].SetValue(v)
	}
	f.fields[0].Focus()
	return f
}

func (f *recordForm) title() string {
	switch {
	case f.editID != 0:
		return fmt.Sprintf("Edit Server #%d", f.editID)
	case f.mode == formModeQuick:
		return "Quick Connect"
	case f.mode == formModeFull:
		return "Add Server"
	}
	return "New Server"
}

// update processes a key message and returns a formResult if the form is complete.
func (f *recordForm) update(msg tea.KeyMsg) (*formResult, tea.Cmd) {
	switch f.mode {
	case formModeSelect:
		return f.updateModeSelect(msg)
	case formModeQuick:
		return f.updateQuick(msg)
	case formModeFull:
		return f.updateFull(msg)
	}
	return nil, nil
}

func (f *recordForm) updateModeSelect(msg tea.KeyMsg) (*formResult, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if f.modeSel < 1 {
			f.modeSel++
		}
	case "k", "up":
		if f.modeSel > 0 {
			f.modeSel--
		}
	case "enter":
		if f.modeSel == 0 {
			f.mode = formModeQuick
			f.quickInput.Focus()
			return nil, f.quickInput.Cursor.BlinkCmd()
		}
		f.mode = formModeFull
		f.focusIdx = 0
		f.fields[0].Focus()
		return nil, f.fields[0].Cursor.BlinkCmd()
	}
	return nil, nil
}

func (f *recordForm) updateQuick(msg tea.KeyMsg) (*formResult, tea.Cmd) {
	switch msg.String() {
	case "enter":
		r, err := parseQuickConnect(f.quickInput.Value())
		if err != nil {
			f.errMsg = errs.UserMessage(err, false)
			return nil, nil
		}
		return &formResult{record: r, connect: true}, nil
	default:
		var cmd tea.Cmd
		f.quickInput, cmd = f.quickInput.Update(msg)
		f.errMsg = ""
		return nil, cmd
	}
}

func (f *recordForm) updateFull(msg tea.KeyMsg) (*formResult, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "down", "up":
		f.fields[f.focusIdx].Blur()
		if msg.String() == "tab" || msg.String() == "down" {
			f.focusIdx = (f.focusIdx + 1) % fieldCount
		} else {
			f.focusIdx = (f.focusIdx - 1 + fieldCount) % fieldCount
		}
		f.fields[f.focusIdx].Focus()
		return nil, f.fields[f.focusIdx].Cursor.BlinkCmd()
	case "ctrl+p":
		f.cycleProtocol()
		return nil, nil
	case "enter", "ctrl+s":
		r, err := f.buildRecord()
		if err != nil {
			f.errMsg = errs.UserMessage(err, false)
			return nil, nil
		}
		return &formResult{record: r, save: true}, nil
	default:
		var cmd tea.Cmd
		f.fields[f.focusIdx], cmd = f.fields[f.focusIdx].Update(msg)
		f.errMsg = ""
		if f.focusIdx == fieldProtocol {
			f.syncPort()
		}
		return nil, cmd
	}
}

// cycleProtocol steps the protocol field through the registry.
func (f *recordForm) cycleProtocol() {
	names := protocol.Names()
	cur := model.Protocol(strings.ToLower(strings.TrimSpace(f.fields[fieldProtocol].Value())))
	next := names[0]
	for i, n := range names {
		if n == cur {
			next = names[(i+1)%len(names)]
			break
		}
	}
	f.fields[fieldProtocol].SetValue(string(next))
	f.syncPort()
}

// syncPort replaces a blank or default port with the default of a newly
// chosen protocol. Custom ports are kept.
func (f *recordForm) syncPort() {
	p, err := protocol.Parse(f.fields[fieldProtocol].Value())
	if err != nil || p == f.lastProto {
		return
	}
	f.lastProto = p
	raw := strings.TrimSpace(f.fields[fieldPort].Value())
	if raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || !protocol.IsDefaultPort(port) {
			return
		}
	}
	f.fields[fieldPort].SetValue(strconv.Itoa(protocol.DefaultPort(p)))
}

func (f *recordForm) buildRecord() (model.ServerRecord, error) {
	val := func(i int) string { return strings.TrimSpace(f.fields[i].Value()) }

	r := model.ServerRecord{
		ID:       f.editID,
		Name:     val(fieldName),
		Host:     val(fieldHost),
		Protocol: model.Protocol(val(fieldProtocol)),
		Username: val(fieldUser),
		OS:       model.OSTag(val(fieldOS)),
		Group:    val(fieldGroup),
		Tags:     model.SplitTags(val(fieldTags)),
		Notes:    val(fieldNotes),
	}
	if raw := val(fieldPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return model.ServerRecord{}, errs.NewValidationError("port", "port must be a number")
		}
		r.Port = port
	}
	if _, err := model.ParseOS(string(r.OS)); err != nil {
		return model.ServerRecord{}, err
	}
	r = model.Normalize(r)
	if err := model.Validate(r); err != nil {
		return model.ServerRecord{}, err
	}
	return r, nil
}

// view renders the form panel.
func (f *recordForm) view(renderPanel func(string, string, int, lipgloss.Color) string, width int) string {
	accent := lipgloss.Color("214")
	switch f.mode {
	case formModeSelect:
		return renderPanel(f.title(), f.modeSelectView(), width, accent)
	case formModeQuick:
		return renderPanel(f.title(), f.quickView(), width, accent)
	case formModeFull:
		return renderPanel(f.title(), f.fullView(), width, accent)
	}
	return ""
}

func (f *recordForm) modeSelectView() string {
	var b strings.Builder
	b.WriteString("Choose how to add:\n\n")

	options := []struct {
		label string
		desc  string
	}{
		{"Quick Connect", "Enter proto://user@host:port and connect without saving"},
		{"Full Record", "Fill in every field and save to the inventory"},
	}

	for i, opt := range options {
		cursor := "  "
		if i == f.modeSel {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s[%s]  %s\n", cursor, opt.label, opt.desc))
	}

	b.WriteString("\nj/k to select, Enter to confirm, Esc to cancel")
	return b.String()
}

func (f *recordForm) quickView() string {
	var b strings.Builder
	b.WriteString("Destination:\n\n")
	b.WriteString("  " + f.quickInput.View() + "\n\n")
	b.WriteString("Formats: host | user@host | host:port | rdp://user@host:port\n")
	f.writeError(&b)
	b.WriteString("\nEnter to connect, Esc to cancel")
	return b.String()
}

func (f *recordForm) fullView() string {
	var b strings.Builder
	for i, label := range fieldLabels {
		cursor := "  "
		if i == f.focusIdx {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%-10s %s\n", cursor, label, f.fields[i].View()))
	}
	f.writeError(&b)
	b.WriteString("\nTab/Shift-Tab navigate | Ctrl+P next protocol | Enter save | Esc cancel")
	return b.String()
}

func (f *recordForm) writeError(b *strings.Builder) {
	if f.errMsg == "" {
		return
	}
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	b.WriteString("\n" + errStyle.Render("Error: "+f.errMsg) + "\n")
}

func protocolNames() []string {
	var out []string
	for _, n := range protocol.Names() {
		out = append(out, string(n))
	}
	return out
}

// parseQuickConnect parses a quick-connect string into an unsaved record.
// Supported formats: host, user@host, host:port, [v6]:port, each optionally
// prefixed with proto://. The protocol defaults to ssh.
func parseQuickConnect(input string) (model.ServerRecord, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return model.ServerRecord{}, errs.NewValidationError("host", "destination cannot be empty")
	}

	r := model.ServerRecord{Protocol: protocol.SSH, OS: model.OSOther}

	if scheme, rest, ok := strings.Cut(input, "://"); ok {
		p, err := protocol.Parse(scheme)
		if err != nil {
			return model.ServerRecord{}, err
		}
		r.Protocol = p
		input = rest
	}

	if atIdx := strings.LastIndex(input, "@"); atIdx > 0 {
		r.Username = input[:atIdx]
		input = input[atIdx+1:]
	}

	switch {
	case strings.HasPrefix(input, "["):
		host, portStr, err := net.SplitHostPort(input)
		if err != nil {
			input = strings.Trim(input, "[]")
			break
		}
		input = host
		if port, err := strconv.Atoi(portStr); err == nil {
			r.Port = port
		}
	case strings.Count(input, ":") == 1:
		colonIdx := strings.LastIndex(input, ":")
		if port, err := strconv.Atoi(input[colonIdx+1:]); err == nil {
			r.Port = port
			input = input[:colonIdx]
		}
	}

	r.Host = input
	r.Name = input
	r = model.Normalize(r)
	if err := model.Validate(r); err != nil {
		return model.ServerRecord{}, err
	}
	return r, nil
}
