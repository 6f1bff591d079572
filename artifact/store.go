// Package artifact captures compiler output in memory.
//
// A Store stands in for the file-output step of a compilation. Every artifact
// the toolchain writes lands in a named memory buffer, and nothing is written
// to disk. Reads check the captured artifacts first and then fall back to an
// optional file system, which is how precompiled dependencies on a module
// path are found.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
)

// Ext is the file extension of a precompiled artifact on a fallback file system.
const Ext = ".rsc"

// ErrClosed is returned when a closed Store is asked to create an artifact.
var ErrClosed = errors.New("artifact store is closed")

// ErrExists is returned when the same artifact name is created twice.
var ErrExists = errors.New("artifact already exists")

// Store collects the artifacts written during a single compilation.
// It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	fallback fs.FS
	order    []string
	written  map[string][]byte
	open     map[string]*sink
	closed   bool
}

// NewStore returns an empty Store. The fallback file system is consulted by
// Open for names that were not written to the store. It may be nil.
func NewStore(fallback fs.FS) *Store {
	return &Store{
		fallback: fallback,
		written:  map[string][]byte{},
		open:     map[string]*sink{},
	}
}

// Create returns an in-memory sink for the named artifact. The bytes become
// visible to Open and Map once the sink is closed.
func (s *Store) Create(name string) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if name == "" {
		return nil, errors.New("artifact name is empty")
	}
	if _, ok := s.written[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrExists, name)
	}
	if _, ok := s.open[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrExists, name)
	}
	w := &sink{name: name, store: s}
	s.open[name] = w
	return w, nil
}

// Open returns a reader for the named artifact. Captured artifacts take
// precedence over the fallback file system.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.written[name]
	fallback := s.fallback
	s.mu.Unlock()
	if ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	if fallback == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return fallback.Open(name + Ext)
}

// Map returns a snapshot of every artifact written and closed so far.
func (s *Store) Map() *Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &Map{
		names: make([]string, len(s.order)),
		data:  make(map[string][]byte, len(s.written)),
	}
	copy(m.names, s.order)
	for name, data := range s.written {
		m.data[name] = data
	}
	return m
}

// Close releases the store. Sinks that are still open are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for name, w := range s.open {
		w.discarded = true
		delete(s.open, name)
	}
	return nil
}

func (s *Store) commit(w *sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.discarded {
		return ErrClosed
	}
	delete(s.open, w.name)
	s.written[w.name] = w.buf.Bytes()
	s.order = append(s.order, w.name)
	return nil
}

type sink struct {
	name      string
	store     *Store
	buf       bytes.Buffer
	done      bool
	discarded bool
}

func (w *sink) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("write to closed artifact %q", w.name)
	}
	return w.buf.Write(p)
}

func (w *sink) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.store.commit(w)
}
