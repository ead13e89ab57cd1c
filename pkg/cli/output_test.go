package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type table struct {
	header []string
	rows   [][]string
}

func (t table) Header() []string { return t.header }
func (t table) Rows() [][]string { return t.rows }

var sample = table{
	header: []string{"LIMITER", "KIND", "DETAIL"},
	rows: [][]string{
		{"api", "denied", ""},
		{"uploads", "reset", "schedule, nightly"},
	},
}

func TestParseOutputFormat(t *testing.T) {
	for _, in := range []string{"text", "JSON", "csv"} {
		if _, err := ParseOutputFormat(in); err != nil {
			t.Errorf("ParseOutputFormat(%q) failed: %v", in, err)
		}
	}
	if _, err := ParseOutputFormat("junit"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestTextFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, sample); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if strings.Index(lines[0], "KIND") != strings.Index(lines[2], "reset") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestTextFormatter_Plain(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, "pruned 3 events"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "pruned 3 events\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatCSV).FormatTo(&buf, sample); err != nil {
		t.Fatal(err)
	}

	want := "LIMITER,KIND,DETAIL\napi,denied,\nuploads,reset,\"schedule, nightly\"\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	if err := NewFormatter(FormatCSV).FormatTo(&buf, 42); err == nil {
		t.Error("expected error for non-tabular data")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]int{"pruned": 3}
	if err := NewFormatter(FormatJSON).FormatTo(&buf, data); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]int
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["pruned"] != 3 {
		t.Errorf("unexpected decoded value %v", decoded)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented JSON")
	}
}
