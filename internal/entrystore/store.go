// Package entrystore keeps the ordered, in-memory collection of entries.
// It is the only place entries are mutated: callers submit a patch keyed by
// entry id together with the generation they were started under, and patches
// from a superseded generation are rejected.
package entrystore

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
)

var (
	// ErrStaleGeneration is returned when a patch comes from a cancelled or superseded pipeline run
	ErrStaleGeneration = errors.New("entry generation is stale")
	ErrDuplicateEntry  = errors.New("entry already exists")
)

// Patch mutates a private copy of an entry. Returning an error discards the copy.
type Patch func(e *entry.Entry) error

// ChangeKind describes what happened to an entry
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is delivered to listeners after every mutation. Snapshot is the
// full ordered collection as of Seq.
type Change struct {
	Kind     ChangeKind
	Entry    entry.Entry
	Seq      uint64
	Snapshot []entry.Entry
}

// Listener observes store mutations. It runs on the mutating goroutine after the lock is released.
type Listener func(change Change)

// Store is a mutex-guarded ordered collection of entries
type Store struct {
	mu        sync.RWMutex
	order     []string
	entries   map[string]entry.Entry
	selected  string
	seq       uint64
	listeners []Listener
	now       func() time.Time
	logger    *slog.Logger
}

// New creates an empty store
func New(logger *slog.Logger) *Store {
	return &Store{
		entries: make(map[string]entry.Entry),
		now:     time.Now,
		logger:  logger,
	}
}

// Subscribe registers a listener for subsequent mutations
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Replace swaps the whole collection, used when restoring a snapshot.
// Listeners are not notified.
func (s *Store) Replace(entries []entry.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.entries = make(map[string]entry.Entry, len(entries))
	s.selected = ""
	for _, e := range entries {
		if _, exists := s.entries[e.ID]; exists {
			s.logger.Warn("Skipping duplicate entry in snapshot", "entry_id", e.ID)
			continue
		}
		s.order = append(s.order, e.ID)
		s.entries[e.ID] = e.Clone()
	}
}

// Create adds a new entry at the end of the collection
func (s *Store) Create(e entry.Entry) (entry.Entry, error) {
	s.mu.Lock()
	if _, exists := s.entries[e.ID]; exists {
		s.mu.Unlock()
		return entry.Entry{}, ErrDuplicateEntry
	}
	e = e.Clone()
	s.order = append(s.order, e.ID)
	s.entries[e.ID] = e
	change := s.changeLocked(ChangeCreated, e)
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, change)
	return e.Clone(), nil
}

// Get returns a copy of the entry with the given id
func (s *Store) Get(id string) (entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return entry.Entry{}, entry.ErrEntryNotFound{ID: id}
	}
	return e.Clone(), nil
}

// List returns copies of all entries in insertion order
func (s *Store) List() []entry.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Update applies patch to the entry if its generation still matches
func (s *Store) Update(id string, generation uint64, patch Patch) (entry.Entry, error) {
	return s.apply(id, func(e *entry.Entry) error {
		if e.Generation != generation {
			return ErrStaleGeneration
		}
		return patch(e)
	})
}

// Advance starts a new generation for the entry and applies patch to it in
// one step. Any work still running under the previous generation becomes stale.
func (s *Store) Advance(id string, patch Patch) (entry.Entry, error) {
	return s.apply(id, func(e *entry.Entry) error {
		e.Generation++
		if patch == nil {
			return nil
		}
		return patch(e)
	})
}

func (s *Store) apply(id string, patch Patch) (entry.Entry, error) {
	s.mu.Lock()
	current, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return entry.Entry{}, entry.ErrEntryNotFound{ID: id}
	}

	next := current.Clone()
	if err := patch(&next); err != nil {
		s.mu.Unlock()
		return current.Clone(), err
	}
	next.ID = current.ID
	next.UpdatedAt = s.now().UTC()
	s.entries[id] = next
	change := s.changeLocked(ChangeUpdated, next)
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, change)
	return next.Clone(), nil
}

// Delete removes the entry and clears the selection if it pointed at it
func (s *Store) Delete(id string) (entry.Entry, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return entry.Entry{}, entry.ErrEntryNotFound{ID: id}
	}
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selected == id {
		s.selected = ""
	}
	change := s.changeLocked(ChangeDeleted, e)
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, change)
	return e, nil
}

// Select marks an entry as the one currently on display
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return entry.ErrEntryNotFound{ID: id}
	}
	s.selected = id
	return nil
}

// Selected returns the selected entry, if any
func (s *Store) Selected() (entry.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return entry.Entry{}, false
	}
	e, ok := s.entries[s.selected]
	if !ok {
		return entry.Entry{}, false
	}
	return e.Clone(), true
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
}

func (s *Store) listLocked() []entry.Entry {
	out := make([]entry.Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].Clone())
	}
	return out
}

func (s *Store) changeLocked(kind ChangeKind, e entry.Entry) Change {
	s.seq++
	return Change{
		Kind:     kind,
		Entry:    e.Clone(),
		Seq:      s.seq,
		Snapshot: s.listLocked(),
	}
}

func (s *Store) notify(listeners []Listener, change Change) {
	for _, l := range listeners {
		l(change)
	}
}
