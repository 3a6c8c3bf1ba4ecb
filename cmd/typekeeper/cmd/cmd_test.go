package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/solatis/typekeeper/internal/core/config"
	"github.com/solatis/typekeeper/internal/engine"
	"github.com/solatis/typekeeper/internal/typedef"
)

const testTargets = `
targets:
  web:
    fields:
      host: string
      status: int
    reserve:
      req.path: {type: string, nullable: true}
    queries:
      - name: errors
        fields:
          status: int
          reason: {type: string, optional: true, nullable: true}
`

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "json info", level: "info", format: "json"},
		{name: "text debug", level: "debug", format: "text"},
		{name: "upper case format", level: "warn", format: "JSON"},
		{name: "bad level", level: "loud", format: "json", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && logger == nil {
				t.Fatal("newLogger() returned nil logger")
			}
		})
	}
}

func newTestManager(t *testing.T, out *bytes.Buffer) *typedef.Manager {
	t.Helper()
	tf, err := config.ParseTargets([]byte(testTargets))
	if err != nil {
		t.Fatal(err)
	}
	manager, err := typedef.NewManager(engine.NewCatalog(), newRowWriter(out))
	if err != nil {
		t.Fatal(err)
	}
	if err := openTargets(context.Background(), manager, tf); err != nil {
		t.Fatalf("openTargets() error = %v", err)
	}
	return manager
}

func TestOpenTargets(t *testing.T) {
	manager := newTestManager(t, &bytes.Buffer{})

	fields, err := manager.Fields("web")
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, f := range fields {
		got[f.Name()] = f.Optional()
	}
	want := map[string]bool{"host": false, "status": false, "req.path": true, "reason": true}
	for name, optional := range want {
		o, ok := got[name]
		if !ok {
			t.Errorf("field %s missing", name)
			continue
		}
		if o != optional {
			t.Errorf("field %s optional = %v, want %v", name, o, optional)
		}
	}
}

func TestFormatStream(t *testing.T) {
	var out bytes.Buffer
	manager := newTestManager(t, &out)

	input := strings.Join([]string{
		`{"host": "a", "status": 200}`,
		`{"host": "b", "status": 500, "reason": "boom"}`,
		`{"host": "c", "status": "x"}`,
	}, "\n")

	total, failed, err := formatStream(context.Background(), manager, "web", strings.NewReader(input), 2)
	if err != nil {
		t.Fatalf("formatStream() error = %v", err)
	}
	if total != 3 || failed != 1 {
		t.Errorf("total, failed = %d, %d; want 3, 1", total, failed)
	}

	dec := json.NewDecoder(&out)
	dec.UseNumber()
	var lines []map[string]any
	for dec.More() {
		var line map[string]any
		if err := dec.Decode(&line); err != nil {
			t.Fatal(err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d output lines, want 3", len(lines))
	}
	statuses := map[string]bool{}
	for _, line := range lines {
		if name, _ := line["event_type"].(string); name == "" {
			t.Errorf("event_type empty in %v", line)
		}
		row := line["row"].(map[string]any)
		if n, ok := row["status"].(json.Number); ok {
			statuses[n.String()] = true
		}
	}
	if !statuses["200"] || !statuses["500"] {
		t.Errorf("statuses = %v, want 200 and 500", statuses)
	}
}

func TestFormatStream_InvalidJSON(t *testing.T) {
	manager := newTestManager(t, &bytes.Buffer{})
	_, _, err := formatStream(context.Background(), manager, "web", strings.NewReader(`{"host": `), 10)
	if err == nil {
		t.Fatal("expected decode error")
	}
}
