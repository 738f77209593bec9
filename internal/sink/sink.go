// Package sink implements append-only CSV record sinks. A sink is a dumb,
// durable, ordered destination: no deduplication, no schema validation.
package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// Set manages a group of sinks keyed by file path. Appends to the same path
// are serialized so concurrent writers never interleave the fields of two
// rows. Every append is flushed before the call returns, which is what
// makes an interrupted crawl resumable without data loss.
type Set struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSet returns an empty sink set.
func NewSet() *Set {
	return &Set{locks: make(map[string]*sync.Mutex)}
}

func (s *Set) pathLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// Append writes rows to the sink at path, creating the file and its parent
// directory on first use. The header is written once, only when the file
// did not exist before this call. History is never rewritten.
func (s *Set) Append(path string, header []string, rows [][]string) error {
	l := s.pathLock(path)
	l.Lock()
	defer l.Unlock()

	_, statErr := os.Stat(path)
	firstTime := os.IsNotExist(statErr)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "sink: create dir %s", dir)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "sink: open %s", path)
	}

	w := csv.NewWriter(f)
	if firstTime && header != nil {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return eris.Wrapf(err, "sink: write header %s", path)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return eris.Wrapf(err, "sink: write row %s", path)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "sink: flush %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "sink: close %s", path)
	}
	return nil
}
