package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var rows []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestJSONLSink_Push(t *testing.T) {
	sink, err := NewJSONLSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONLSink() error = %v", err)
	}
	ctx := context.Background()

	if err := sink.Push(ctx, "e_abc", []map[string]any{{"a": "x", "b": nil}}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := sink.Push(ctx, "e_abc", []map[string]any{{"a": "y", "b": 2}}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	rows := readLines(t, sink.Path("e_abc"))
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["a"] != "x" || rows[0]["b"] != nil {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["b"] != float64(2) {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestJSONLSink_RejectsPathNames(t *testing.T) {
	sink, err := NewJSONLSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"", "../evil", "a/b"} {
		if err := sink.Push(context.Background(), name, []map[string]any{{"a": 1}}); err == nil {
			t.Errorf("Push(%q) accepted", name)
		}
	}
}

func TestJSONLSink_ConcurrentPush(t *testing.T) {
	sink, err := NewJSONLSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				row := map[string]any{"id": fmt.Sprintf("%d-%d", w, i)}
				if err := sink.Push(context.Background(), "e_shared", []map[string]any{row}); err != nil {
					t.Errorf("Push() error = %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	if rows := readLines(t, sink.Path("e_shared")); len(rows) != writers*perWriter {
		t.Errorf("got %d rows, want %d", len(rows), writers*perWriter)
	}
}
