package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/pcbmesh/pkg/layer"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	listErrorStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// pickEntry is one file in the layer picker. kind is meaningful only
// when assigned is set.
type pickEntry struct {
	path     string
	kind     layer.Kind
	assigned bool
}

// LayerPickerModel is the bubbletea model for assigning layer kinds to the
// Gerber files of a directory. Files start with their classified kind.
type LayerPickerModel struct {
	entries   []pickEntry
	cursor    int
	problem   string
	Confirmed bool
}

// NewLayerPickerModel creates a picker over scan's files, classified and
// unclassified alike.
func NewLayerPickerModel(scan *layer.ScanResult) LayerPickerModel {
	var entries []pickEntry
	for _, k := range scan.Files.Kinds() {
		entries = append(entries, pickEntry{path: scan.Files[k], kind: k, assigned: true})
	}
	for _, d := range scan.Duplicates {
		entries = append(entries, pickEntry{path: d.Path})
	}
	for _, p := range scan.Unclassified {
		entries = append(entries, pickEntry{path: p})
	}
	return LayerPickerModel{entries: entries}
}

// Files returns the current assignment.
func (m LayerPickerModel) Files() layer.Files {
	files := make(layer.Files)
	for _, e := range m.entries {
		if e.assigned {
			files[e.kind] = e.path
		}
	}
	return files
}

func (m LayerPickerModel) Init() tea.Cmd {
	return nil
}

func (m LayerPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "right", "l", "tab", " ":
		m.cycle(1)
	case "left", "h", "shift+tab":
		m.cycle(-1)
	case "x", "backspace", "delete":
		if len(m.entries) > 0 {
			m.entries[m.cursor].assigned = false
		}
	case "enter":
		if p := m.check(); p != "" {
			m.problem = p
			return m, nil
		}
		m.Confirmed = true
		return m, tea.Quit
	}
	m.problem = ""
	return m, nil
}

// cycle steps the selected file through "none" and every kind.
func (m *LayerPickerModel) cycle(step int) {
	if len(m.entries) == 0 {
		return
	}
	e := &m.entries[m.cursor]
	n := len(layer.All) + 1
	pos := 0 // 0 is unassigned
	if e.assigned {
		pos = int(e.kind) + 1
	}
	pos = ((pos+step)%n + n) % n
	e.assigned = pos > 0
	if e.assigned {
		e.kind = layer.Kind(pos - 1)
	}
}

// check reports why the assignment cannot be converted, or "".
func (m LayerPickerModel) check() string {
	seen := make(map[layer.Kind]string)
	for _, e := range m.entries {
		if !e.assigned {
			continue
		}
		if prev, dup := seen[e.kind]; dup {
			return fmt.Sprintf("%s is assigned to both %s and %s", e.kind.DisplayName(), filepath.Base(prev), filepath.Base(e.path))
		}
		seen[e.kind] = e.path
	}
	if _, ok := seen[layer.EdgeCuts]; !ok {
		return "assign an Edge Cuts file"
	}
	return ""
}

func (m LayerPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Assign Layers"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ file  ←/→ layer  x clear  ⏎ convert  q quit"))
	b.WriteString("\n\n")

	for i, e := range m.entries {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		kind := "—"
		if e.assigned {
			kind = e.kind.DisplayName()
		}
		line := fmt.Sprintf("%s%-40s %s", cursor, filepath.Base(e.path), kind)
		switch {
		case i == m.cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case !e.assigned:
			b.WriteString(listDimStyle.Render(line))
		default:
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.entries) == 0 {
		b.WriteString(listDimStyle.Render("  no Gerber files found"))
		b.WriteString("\n")
	}
	if m.problem != "" {
		b.WriteString("\n")
		b.WriteString(listErrorStyle.Render("  " + m.problem))
		b.WriteString("\n")
	}
	return b.String()
}
