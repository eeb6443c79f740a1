package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestFilterFlag(t *testing.T) {
	f := filterFlag{}
	for _, s := range []string{"filters=16", " dropout2 = 0.25 ", "units="} {
		if err := f.Set(s); err != nil {
			t.Fatalf("Set(%q) failed: %v", s, err)
		}
	}
	if f["filters"] != "16" || f["dropout2"] != "0.25" || f["units"] != "" {
		t.Errorf("filters = %v", f)
	}
	for _, bad := range []string{"filters", "=16"} {
		if err := f.Set(bad); err == nil {
			t.Errorf("Set(%q) should fail", bad)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
		asked int
	}{
		{"yes", "y\n", true, 1},
		{"retry", "\nmaybe\nYes\n", true, 3},
		{"eof", "no\n", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := confirm(strings.NewReader(tt.input), &out)(); got != tt.want {
				t.Errorf("confirm = %v, want %v", got, tt.want)
			}
			if n := strings.Count(out.String(), "Are you sure"); n != tt.asked {
				t.Errorf("asked %d times, want %d", n, tt.asked)
			}
		})
	}
}

func TestFlagsParse(t *testing.T) {
	f := newFlags("stats", "[options]")
	f.SetOutput(&bytes.Buffer{})
	scale := f.Float64("scale", 255, "")

	cfg, err := f.parse([]string{"--scale", "1", "--config", ""})
	if err != nil || cfg == nil {
		t.Fatalf("parse failed: %v", err)
	}
	if *scale != 1 || !f.visited("scale") || f.visited("folds") {
		t.Errorf("scale = %v, visited scale %v", *scale, f.visited("scale"))
	}

	f = newFlags("stats", "[options]")
	f.SetOutput(&bytes.Buffer{})
	if cfg, err := f.parse([]string{"-h"}); cfg != nil || err != nil {
		t.Errorf("help should return nil, nil; got %v, %v", cfg, err)
	}

	f = newFlags("stats", "[options]")
	f.SetOutput(&bytes.Buffer{})
	if _, err := f.parse([]string{"--nope"}); !errors.Is(err, errUsage) {
		t.Errorf("error = %v, want errUsage", err)
	}
}
