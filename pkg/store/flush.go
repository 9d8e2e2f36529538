package store

import (
	"log"

	"lockbox/pkg/schema"
)

// scheduleFlush queues an asynchronous durable write of the item and category
// collections. Writes coalesce: while one flush is in flight, any number of
// further mutations result in exactly one follow-up flush, which snapshots
// the latest state. Called with mu held.
func (s *Store) scheduleFlush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if s.flushPending {
		return
	}
	s.flushPending = true
	s.flushers.Add(1)

	go func() {
		defer s.flushers.Done()

		// Serialize behind any flush already writing. The pending flag is
		// cleared only once we hold persistMu, so mutations landing while the
		// previous flush was writing fold into this one.
		s.persistMu.Lock()
		defer s.persistMu.Unlock()

		s.flushMu.Lock()
		s.flushPending = false
		s.flushMu.Unlock()

		items, categories, ok := s.snapshot()
		if !ok {
			return
		}
		if err := s.persistItems(items); err != nil {
			log.Printf("store: background flush of items failed: %v", err)
			return
		}
		if err := s.persistCategories(categories); err != nil {
			log.Printf("store: background flush of categories failed: %v", err)
		}
	}()
}

// Flush waits for scheduled background writes and then persists the current
// state synchronously. After Flush returns nil, the database reflects every
// mutation made before the call.
func (s *Store) Flush() error {
	s.flushers.Wait()

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	items, categories, ok := s.snapshot()
	if !ok {
		return nil
	}
	if err := s.persistItems(items); err != nil {
		return err
	}
	return s.persistCategories(categories)
}

// snapshot copies the collections for a durable write. ok is false when the
// vault locked in the meantime; a late flush then has nothing to do.
func (s *Store) snapshot() (items []Item, categories []schema.Category, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateUnlocked {
		return nil, nil, false
	}
	return cloneItems(s.items), cloneCategories(s.categories), true
}
