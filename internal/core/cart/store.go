// Package cart holds a shopper's intended purchases before checkout.
//
// A Store belongs to exactly one session. It keeps a single active size per
// product: adding the same product in another size replaces the entry rather
// than adding a second one.
package cart

import (
	"sync"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

type Store struct {
	mu      sync.Mutex
	entries []domain.CartEntry
}

func New() *Store {
	return &Store{}
}

// Restore builds a store from a saved snapshot, dropping entries that could
// not have been produced by Upsert.
func Restore(entries []domain.CartEntry) *Store {
	s := New()
	for _, e := range entries {
		s.Upsert(e.ProductID, e.Size, e.Count)
	}
	return s
}

// Upsert adds count units of productID in size. A non-positive count removes
// the product from the cart.
func (s *Store) Upsert(productID string, size float64, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 {
		s.removeLocked(productID)
		return
	}

	i := s.indexLocked(productID)
	if i == -1 {
		s.entries = append(s.entries, domain.CartEntry{ProductID: productID, Size: size, Count: count})
		return
	}

	if s.entries[i].Size == size {
		s.entries[i].Count += count
		return
	}
	s.entries[i] = domain.CartEntry{ProductID: productID, Size: size, Count: count}
}

// SetCount overwrites the count of productID, keeping its size. It does
// nothing for unknown products and removes the entry when count <= 0.
func (s *Store) SetCount(productID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(productID)
	if i == -1 {
		return
	}
	if count <= 0 {
		s.removeLocked(productID)
		return
	}
	s.entries[i].Count = count
}

func (s *Store) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(productID)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Entries returns a copy in insertion order.
func (s *Store) Entries() []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) indexLocked(productID string) int {
	for i, e := range s.entries {
		if e.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(productID string) {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}
