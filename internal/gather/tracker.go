package gather

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// emptyTracker remembers requests that returned no data for a given day in a
// .tried-empty file, one key per line, so repeated runs on the same day skip
// them. The file
// starts with a "# <date>" header; a different date discards the entries.
type emptyTracker struct {
	mu         sync.Mutex
	triedEmpty map[string]struct{}
	writer     *bufio.Writer
	file       *os.File
	path       string
}

// newEmptyTracker opens the tracker file in dir for the given date, loading
// entries recorded earlier that day.
func newEmptyTracker(dir, date string) (*emptyTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tracker dir: %w", err)
	}

	et := &emptyTracker{
		triedEmpty: make(map[string]struct{}),
		path:       filepath.Join(dir, ".tried-empty"),
	}

	fresh := true
	if data, err := os.ReadFile(et.path); err == nil {
		lines := strings.Split(string(data), "\n")
		if strings.TrimSpace(lines[0]) == "# "+date {
			fresh = false
			for _, line := range lines[1:] {
				if key := strings.TrimSpace(line); key != "" {
					et.triedEmpty[key] = struct{}{}
				}
			}
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if fresh {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(et.path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening .tried-empty: %w", err)
	}
	et.file = f
	et.writer = bufio.NewWriter(f)
	if fresh {
		if _, err := et.writer.WriteString("# " + date + "\n"); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing .tried-empty header: %w", err)
		}
		if err := et.writer.Flush(); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing .tried-empty header: %w", err)
		}
	}
	return et, nil
}

// IsTriedEmpty returns true if key was already tried and returned no data.
func (t *emptyTracker) IsTriedEmpty(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.triedEmpty[key]
	return ok
}

// MarkEmpty records key as tried-empty.
func (t *emptyTracker) MarkEmpty(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.triedEmpty[key]; ok {
		return nil
	}
	t.triedEmpty[key] = struct{}{}
	if _, err := t.writer.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("writing to .tried-empty: %w", err)
	}
	return t.writer.Flush()
}

// Close flushes and closes the .tried-empty file.
func (t *emptyTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writer != nil {
		t.writer.Flush()
	}
	if t.file != nil {
		return t.file.Close()
	}
	return nil
}
