package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by Write when the key has never been loaded.
var ErrMiss = errors.New("cache miss")

// Loader fetches the authoritative value for key.
type Loader[T any] func(ctx context.Context, key string) (T, error)

type entry[T any] struct {
	value T
	stale bool
	gen   uint64
}

// Snapshot records one write so that exactly that write can be undone.
type Snapshot[T any] struct {
	Key  string
	Prev T
	Next T
	gen  uint64
}

// Store is a keyed in-memory cache with optimistic write and rollback.
// Stored values are treated as immutable: updaters must return new values
// instead of editing the ones they receive.
type Store[T any] struct {
	name   string
	load   Loader[T]
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]*entry[T]
	gen     uint64
	group   singleflight.Group
}

// NewStore creates a store that fetches missing or stale keys through load.
func NewStore[T any](name string, load Loader[T], logger *log.Logger) *Store[T] {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store[T]{
		name:    name,
		load:    load,
		logger:  logger,
		entries: make(map[string]*entry[T]),
	}
}

// Peek returns the current value without fetching. Stale values are returned
// as well; use IsStale to tell them apart.
func (s *Store[T]) Peek(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// IsStale reports whether key was invalidated and not refetched since.
func (s *Store[T]) IsStale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.stale
}

// Read returns the cached value for key, fetching it first when it is absent
// or stale.
func (s *Store[T]) Read(ctx context.Context, key string) (T, error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && !e.stale {
		v := e.value
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()
	return s.fetch(ctx, key)
}

// Refresh fetches key regardless of its cached state.
func (s *Store[T]) Refresh(ctx context.Context, key string) (T, error) {
	return s.fetch(ctx, key)
}

func (s *Store[T]) fetch(ctx context.Context, key string) (T, error) {
	var zero T
	if s.load == nil {
		return zero, fmt.Errorf("%s cache: no loader configured", s.name)
	}

	s.mu.Lock()
	startGen, present := uint64(0), false
	if e, ok := s.entries[key]; ok {
		startGen, present = e.gen, true
	}
	s.mu.Unlock()

	// The shared load outlives any one caller; each caller stops waiting on
	// its own context.
	ch := s.group.DoChan(key, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), key)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}
	fetched := res.Val.(T)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	switch {
	case ok && e.gen != startGen:
		// A local write landed while the fetch was in flight. Keep it and
		// leave the stale flag alone so a later read reconciles again.
		s.logger.WithFields(log.Fields{"cache": s.name, "key": key}).Debug("discarding fetch older than local write")
		return e.value, nil
	case !ok && present:
		// Evicted while fetching.
		return fetched, nil
	}
	s.gen++
	s.entries[key] = &entry[T]{value: fetched, gen: s.gen}
	s.logger.WithFields(log.Fields{"cache": s.name, "key": key}).Debug("cache entry fetched")
	return fetched, nil
}

// Write applies update to the current value of key and stores the result.
// The snapshot carries the previous value for Rollback. When update fails
// nothing is stored.
func (s *Store[T]) Write(key string, update func(T) (T, error)) (Snapshot[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Snapshot[T]{}, fmt.Errorf("%s cache %s: %w", s.name, key, ErrMiss)
	}
	next, err := update(e.value)
	if err != nil {
		return Snapshot[T]{}, err
	}
	prev := e.value
	s.gen++
	e.value = next
	e.gen = s.gen
	return Snapshot[T]{Key: key, Prev: prev, Next: next, gen: s.gen}, nil
}

// Rollback restores snap.Prev if the entry still holds the value snap wrote.
// If a later write replaced it, the entry is invalidated instead so that the
// later write survives until the next fetch. It reports whether the previous
// value was restored.
func (s *Store[T]) Rollback(snap Snapshot[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[snap.Key]
	if !ok {
		return false
	}
	if e.gen != snap.gen {
		e.stale = true
		s.logger.WithFields(log.Fields{"cache": s.name, "key": snap.Key}).Warn("rollback superseded by a later write; invalidating")
		return false
	}
	s.gen++
	e.value = snap.Prev
	e.gen = s.gen
	return true
}

// Set stores v as a fresh value for key.
func (s *Store[T]) Set(key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.entries[key] = &entry[T]{value: v, gen: s.gen}
}

// Invalidate marks key stale so the next Read fetches it again.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.stale = true
		s.logger.WithFields(log.Fields{"cache": s.name, "key": key}).Debug("cache entry invalidated")
	}
}

// InvalidateAll marks every entry stale.
func (s *Store[T]) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.stale = true
	}
}

// Evict drops key.
func (s *Store[T]) Evict(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear drops every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry[T])
}

// Len returns the number of cached keys.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
