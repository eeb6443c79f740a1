package results

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

const fixture = `16-16-1-0-0:
  params: {filters: 16, units: 16, num_conv: 1, dropout1: 0, dropout2: 0}
  result: {accuracy: 0.75, run_id: abc}
16-16-1-0-0.25:
  params: {filters: 16, units: 16, num_conv: 1, dropout1: 0, dropout2: 0.25}
  result: {accuracy: 0.8, run_id: abc}
8-16-1-0-0:
  params: {filters: 8, units: 16, num_conv: 1, dropout1: 0, dropout2: 0}
  result: {accuracy: .nan, run_id: abc}
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeFixture(t)
	for _, path := range []string{dir, filepath.Join(dir, DefaultFile)} {
		doc, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", path, err)
		}
		want := []string{"16-16-1-0-0", "16-16-1-0-0.25", "8-16-1-0-0"}
		if !reflect.DeepEqual(doc.Keys, want) {
			t.Errorf("Keys = %v, want %v", doc.Keys, want)
		}
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
	bad := filepath.Join(dir, "list.yaml")
	if err := os.WriteFile(bad, []byte("- a\n- b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); !errors.Is(err, ErrNotMapping) {
		t.Errorf("error = %v, want ErrNotMapping", err)
	}
}

func TestParameters(t *testing.T) {
	doc, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	params := doc.Parameters()
	tests := []struct {
		key  string
		want []string
	}{
		{"filters", []string{"8", "16"}},
		{"dropout2", []string{"0", "0.25"}},
		{"units", []string{"16"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var got []string
			for _, v := range params[tt.key] {
				got = append(got, FormatValue(v))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("values = %v, want %v", got, tt.want)
			}
		})
	}
	if got := doc.PromptKeys(); !reflect.DeepEqual(got, []string{"dropout2", "filters"}) {
		t.Errorf("PromptKeys = %v", got)
	}
}

func TestFilter(t *testing.T) {
	doc, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		values map[string]string
		want   []string
	}{
		{"blank", map[string]string{"filters": " ", "dropout2": ""}, []string{"16-16-1-0-0", "16-16-1-0-0.25", "8-16-1-0-0"}},
		{"filters", map[string]string{"filters": "16"}, []string{"16-16-1-0-0", "16-16-1-0-0.25"}},
		{"both", map[string]string{"filters": "16", "dropout2": "0.25"}, []string{"16-16-1-0-0.25"}},
		{"zero dropout", map[string]string{"dropout2": "0"}, []string{"16-16-1-0-0", "8-16-1-0-0"}},
		{"no match", map[string]string{"filters": "32"}, nil},
		{"unknown key", map[string]string{"epochs": "5"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doc.Filter(tt.values); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	doc, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	Format(&buf, "8-16-1-0-0", doc.Samples["8-16-1-0-0"])
	want := strings.Join([]string{
		"Sample 8-16-1-0-0:",
		cardRule,
		"              dropout1: 0",
		"              dropout2: 0",
		"               filters: 8",
		"              num_conv: 1",
		"                 units: 16",
		cardRule,
		"              accuracy: NaN",
		"                run_id: abc",
		cardRule,
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("Format =\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	if n := doc.Print(&buf, map[string]string{"filters": "16"}); n != 2 {
		t.Errorf("Print matched %d samples, want 2", n)
	}
	if strings.Count(buf.String(), "Sample ") != 2 {
		t.Errorf("Print output = %q", buf.String())
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

func TestModel(t *testing.T) {
	doc, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	m := NewModel(doc)
	if !strings.Contains(m.View(), "Value for dropout2. Possible values: [0, 0.25]") {
		t.Fatalf("prompt view = %q", m.View())
	}

	// dropout2 left blank, filters set to 16.
	m.Update(key("enter"))
	m.Update(key("16"))
	if got := m.Values(); got["filters"] != "16" || got["dropout2"] != "" {
		t.Fatalf("Values = %v", got)
	}
	m.Update(key("enter"))
	if !reflect.DeepEqual(m.Found(), []string{"16-16-1-0-0", "16-16-1-0-0.25"}) {
		t.Fatalf("Found = %v", m.Found())
	}

	m.Update(key("enter"))
	if v := m.View(); !strings.Contains(v, "Sample 16-16-1-0-0:") || !strings.Contains(v, "see next result") {
		t.Errorf("card view = %q", v)
	}
	m.Update(key("enter"))
	if v := m.View(); !strings.Contains(v, "Sample 16-16-1-0-0.25:") {
		t.Errorf("second card view = %q", v)
	}
	m.Update(key("enter"))
	if m.phase != phaseMatches {
		t.Errorf("phase = %v, want the match list", m.phase)
	}

	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Error("q should quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestModel_NothingToPrompt(t *testing.T) {
	doc, err := Parse([]byte("a:\n  params: {filters: 16}\n  result: {accuracy: 1}\n"))
	if err != nil {
		t.Fatal(err)
	}
	m := NewModel(doc)
	if m.phase != phaseMatches || len(m.Found()) != 1 {
		t.Errorf("phase = %v, found = %v", m.phase, m.Found())
	}
}
