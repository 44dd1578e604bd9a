/*
Copyright 2025 Moebot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package dedup

import (
	"context"
	"sync"
)

// Remote is the durable backend for the seen-ID set. The deployment target
// is ephemeral, so dedup state must survive restarts without a local disk.
type Remote interface {
	// Load fetches the full identifier list. An empty list is a valid
	// result (no history yet).
	Load(ctx context.Context) ([]string, error)

	// Save replaces the remote list with the given identifiers.
	Save(ctx context.Context, ids []string) error
}

// Store is the process-wide membership set guarding against redelivery.
// Both the scheduler loop and any intake surface share one instance, so all
// state is mutex-protected.
//
// The set is last-writer-wins on flush: a single-writer deployment is
// assumed, and perfect cross-instance consistency is traded for simplicity.
type Store struct {
	mu         sync.Mutex
	seen       map[string]struct{}
	order      []string // insertion order, oldest first
	dirty      bool
	remote     Remote
	maxEntries int
}

// NewStore creates a Store backed by the given remote. remote may be nil, in
// which case dedup degrades to empty-on-every-restart. maxEntries bounds the
// set (oldest dropped at flush time); zero means unbounded.
func NewStore(remote Remote, maxEntries int) *Store {
	return &Store{
		seen:       make(map[string]struct{}),
		remote:     remote,
		maxEntries: maxEntries,
	}
}

// Contains reports whether the identifier was already delivered. Pure
// in-process membership test; the remote is never consulted here.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// MarkSeen records an identifier as delivered. The mark is in-process only;
// durability happens on the next flush.
func (s *Store) MarkSeen(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	s.dirty = true
}

// Dirty reports whether any identifier was added since the last successful
// flush. The scheduler skips the remote write entirely when nothing changed.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Len returns the current size of the set.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// LoadFromRemote replaces the in-process state wholesale with the remote
// list. On any failure the current state is left untouched and the error is
// returned for logging; a failed load is never fatal to the caller.
func (s *Store) LoadFromRemote(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}

	ids, err := s.remote.Load(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = seen
	s.order = order
	s.dirty = false
	return nil
}

// FlushToRemote serializes the full set and pushes it to the remote store.
// When a size bound is configured the oldest identifiers are dropped first.
// On success the store is marked clean; failure keeps it dirty so the next
// cycle retries.
func (s *Store) FlushToRemote(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}

	s.mu.Lock()
	if s.maxEntries > 0 && len(s.order) > s.maxEntries {
		drop := s.order[:len(s.order)-s.maxEntries]
		for _, id := range drop {
			delete(s.seen, id)
		}
		s.order = append([]string(nil), s.order[len(drop):]...)
	}
	ids := append([]string(nil), s.order...)
	s.mu.Unlock()

	if err := s.remote.Save(ctx, ids); err != nil {
		return err
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}
