package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/pcbmesh/pkg/layer"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m LayerPickerModel, keys ...string) (LayerPickerModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(LayerPickerModel)
	}
	return m, cmd
}

func testScan() *layer.ScanResult {
	return &layer.ScanResult{
		Dir: "board",
		Files: layer.Files{
			layer.EdgeCuts:  "board/b-Edge_Cuts.gbr",
			layer.TopCopper: "board/b-F_Cu.gbr",
		},
		Duplicates:   []layer.Duplicate{{Kind: layer.TopCopper, Path: "board/b-F_Cu-old.gbr", Kept: "board/b-F_Cu.gbr"}},
		Unclassified: []string{"board/mystery.gbr"},
	}
}

func TestLayerPickerInitial(t *testing.T) {
	m := NewLayerPickerModel(testScan())
	if len(m.entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(m.entries))
	}
	files := m.Files()
	if len(files) != 2 || files[layer.EdgeCuts] != "board/b-Edge_Cuts.gbr" {
		t.Errorf("Files() = %v", files)
	}
	view := m.View()
	for _, want := range []string{"b-Edge_Cuts.gbr", "mystery.gbr", "Top Copper"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestLayerPickerCycle(t *testing.T) {
	m := NewLayerPickerModel(testScan())

	// Entry 3 is the unclassified file; one step right assigns the first kind.
	m, _ = press(m, "down", "down", "down", "right")
	if e := m.entries[3]; !e.assigned || e.kind != layer.All[0] {
		t.Errorf("after right: %+v", e)
	}
	m, _ = press(m, "left")
	if m.entries[3].assigned {
		t.Error("left from the first kind should unassign")
	}
	m, _ = press(m, "left")
	if e := m.entries[3]; !e.assigned || e.kind != layer.All[len(layer.All)-1] {
		t.Errorf("left from none should wrap to the last kind: %+v", e)
	}
	m, _ = press(m, "x")
	if m.entries[3].assigned {
		t.Error("x should clear the assignment")
	}
}

func TestLayerPickerConfirm(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		ok      bool
		problem string
	}{
		{"as classified", []string{"enter"}, true, ""},
		{"duplicate kind", []string{"down", "down", "right", "right", "enter"}, false, "assigned to both"},
		{"edge cuts cleared", []string{"x", "enter"}, false, "Edge Cuts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(NewLayerPickerModel(testScan()), tt.keys...)
			if m.Confirmed != tt.ok {
				t.Fatalf("Confirmed = %v, want %v (problem %q)", m.Confirmed, tt.ok, m.problem)
			}
			if tt.ok && cmd == nil {
				t.Error("confirming should quit")
			}
			if !strings.Contains(m.problem, tt.problem) {
				t.Errorf("problem = %q, want %q", m.problem, tt.problem)
			}
		})
	}
}

func TestLayerPickerQuit(t *testing.T) {
	m, cmd := press(NewLayerPickerModel(testScan()), "q")
	if m.Confirmed || cmd == nil {
		t.Errorf("q should quit without confirming")
	}
}
