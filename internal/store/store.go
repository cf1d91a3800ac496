// Package store holds the live roster: the full set of currently broadcast
// location records for one namespace. Every mutation pushes a complete
// snapshot to all subscribers; deltas are never exchanged.
package store

import (
	"sync"

	"github.com/locshare/locshare/internal/channel"
	"github.com/locshare/locshare/pkg/core"
)

const subscriberBuffer = 16

// Store is the in-memory realtime roster with optional write-behind
// persistence.
type Store struct {
	namespace string

	mu      sync.RWMutex
	records core.Snapshot
	subs    map[*channel.Buffered[core.Snapshot]]struct{}

	writer *Writer
}

// New creates an empty store for the namespace. writer may be nil when no
// persistence is configured.
func New(namespace string, writer *Writer) *Store {
	return &Store{
		namespace: namespace,
		records:   make(core.Snapshot),
		subs:      make(map[*channel.Buffered[core.Snapshot]]struct{}),
		writer:    writer,
	}
}

// Namespace returns the namespace this store serves.
func (s *Store) Namespace() string {
	return s.namespace
}

// Restore seeds the live roster from a persisted snapshot. Called once at
// startup, before any subscriber exists.
func (s *Store) Restore(snap core.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = snap.Clone()
}

// Publish inserts or replaces the record for its identifier and fans the
// new snapshot out.
func (s *Store) Publish(rec core.LocationRecord) {
	s.mu.Lock()
	s.records[rec.Identifier] = rec
	snap := s.records.Clone()
	s.mu.Unlock()

	if s.writer != nil {
		s.writer.EnqueueSave(Key(s.namespace, rec.Identifier), rec)
	}

	s.broadcast(snap)
}

// Remove deletes the identifier's record and fans the new snapshot out.
// Removing an absent identifier is a no-op.
func (s *Store) Remove(id core.Identifier) {
	s.mu.Lock()
	_, existed := s.records[id]
	if existed {
		delete(s.records, id)
	}
	snap := s.records.Clone()
	s.mu.Unlock()

	if !existed {
		return
	}

	if s.writer != nil {
		s.writer.EnqueueDelete(Key(s.namespace, id))
	}

	s.broadcast(snap)
}

// Snapshot returns a copy of the current roster.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Clone()
}

// Subscribe registers a new subscriber. The current snapshot is delivered
// immediately, then every mutation pushes a fresh one. Slow subscribers
// lose intermediate snapshots, never the latest state.
func (s *Store) Subscribe() *channel.Buffered[core.Snapshot] {
	sub := channel.NewBuffered[core.Snapshot](subscriberBuffer)

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	snap := s.records.Clone()
	s.mu.Unlock()

	sub.TrySend(snap)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(sub *channel.Buffered[core.Snapshot]) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	if ok {
		delete(s.subs, sub)
	}
	s.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// SubscriberCount returns the number of active subscribers.
func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store) broadcast(snap core.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sub := range s.subs {
		sub.TrySend(snap.Clone())
	}
}
