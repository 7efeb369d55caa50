package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func sampleTable() *Table {
	table := &Table{Headers: []string{"KEY", "STORE"}}
	table.Append("GET https://api.example.com/3/movie/1", "memory")
	table.Append("GET https://img.example.com/t/p/w92/a.jpg", "durable")
	return table
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextFormatterTable(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewFormatter(FormatText).FormatTo(buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "KEY") || !strings.Contains(lines[0], "STORE") {
		t.Errorf("header line = %q", lines[0])
	}
	// Columns are aligned.
	if strings.Index(lines[1], "memory") != strings.Index(lines[2], "durable") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestTextFormatterScalar(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, "purged 3 entries"); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "purged 3 entries\n" {
		t.Errorf("FormatTo() = %q", buf.String())
	}
}

func TestJSONFormatterTable(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewFormatter(FormatJSON).FormatTo(buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var got []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[1]["store"] != "durable" {
		t.Errorf("records = %v", got)
	}
}

func TestCSVFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewFormatter(FormatCSV).FormatTo(buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	want := "KEY,STORE\nGET https://api.example.com/3/movie/1,memory\nGET https://img.example.com/t/p/w92/a.jpg,durable\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}

	if err := NewFormatter(FormatCSV).FormatTo(buf, "not a table"); err == nil {
		t.Error("FormatTo() accepted non-tabular data")
	}
}
