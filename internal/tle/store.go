package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the current catalog snapshot. Readers get an immutable *TLEDataset and
// never block; a reload swaps the pointer.
type Store struct {
	dataset atomic.Pointer[TLEDataset]
	mu      sync.Mutex // serializes reloads
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *TLEDataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *TLEDataset) {
	s.dataset.Store(ds)
}

// AgeSeconds returns the age of the current dataset in seconds, or -1 if none is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Reload runs load while holding the reload lock and installs its result.
// Concurrent reloads wait for each other instead of racing to Set.
func (s *Store) Reload(load func() (*TLEDataset, error)) (*TLEDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := load()
	if err != nil {
		return nil, err
	}
	s.dataset.Store(ds)
	return ds, nil
}
