package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/solatis/typekeeper/internal/types"
)

// JSONLSink appends rows to <dir>/<event type name>.jsonl, one JSON object
// per line.
type JSONLSink struct {
	dir string

	mutexLock sync.Mutex
	mutexes   map[string]*sync.Mutex
}

var _ Sink = (*JSONLSink)(nil)

// NewJSONLSink creates dir if needed.
func NewJSONLSink(dir string) (*JSONLSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &JSONLSink{
		dir:     dir,
		mutexes: make(map[string]*sync.Mutex),
	}, nil
}

// Path is the file rows for eventTypeName are appended to.
func (s *JSONLSink) Path(eventTypeName string) string {
	return filepath.Join(s.dir, eventTypeName+".jsonl")
}

// fileMutex returns the mutex for filename, creating it if needed.
// One entry per event type for the life of the sink.
func (s *JSONLSink) fileMutex(filename string) *sync.Mutex {
	s.mutexLock.Lock()
	defer s.mutexLock.Unlock()

	if _, ok := s.mutexes[filename]; !ok {
		s.mutexes[filename] = &sync.Mutex{}
	}
	return s.mutexes[filename]
}

// Push implements Sink.
func (s *JSONLSink) Push(ctx context.Context, eventTypeName string, rows []map[string]any) error {
	if eventTypeName == "" || filepath.Base(eventTypeName) != eventTypeName {
		return fmt.Errorf("%w: event type %q", types.ErrInvalidFieldName, eventTypeName)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	filename := s.Path(eventTypeName)
	mu := s.fileMutex(filename)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(f)
	for _, row := range rows {
		if err := encoder.Encode(row); err != nil {
			f.Close()
			return fmt.Errorf("encode row for %s: %w", eventTypeName, err)
		}
	}
	return f.Close()
}
