// Package pipeline provides the demux/decode/present pipeline for avplay.
package pipeline

import (
	"sync"
)

// Stage is a bounded FIFO staging queue between two pipeline tasks.
//
// The capacity is a soft cap: Push never blocks or rejects. The task that
// owns the producing side checks Full before pushing and backs off for a
// poll interval when the stage is full.
//
// Lock and Unlock expose the stage lock for operations that must span
// several stages (seek, generation checks); the *Locked methods must only be
// called while holding it.
type Stage[T any] struct {
	name     string
	capacity int

	mu    sync.RWMutex
	items []T
}

// NewStage creates a stage with the given soft capacity.
func NewStage[T any](name string, capacity int) *Stage[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Stage[T]{
		name:     name,
		capacity: capacity,
		items:    make([]T, 0, capacity),
	}
}

// Name returns the stage name.
func (s *Stage[T]) Name() string {
	return s.name
}

// Cap returns the soft capacity.
func (s *Stage[T]) Cap() int {
	return s.capacity
}

// Lock acquires the stage lock exclusively.
func (s *Stage[T]) Lock() {
	s.mu.Lock()
}

// Unlock releases the stage lock.
func (s *Stage[T]) Unlock() {
	s.mu.Unlock()
}

// Push appends an item.
func (s *Stage[T]) Push(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PushLocked(item)
}

// PushLocked appends an item. The caller holds the stage lock.
func (s *Stage[T]) PushLocked(item T) {
	s.items = append(s.items, item)
}

// PopFront removes and returns the oldest item. ok is false when the stage
// is empty.
func (s *Stage[T]) PopFront() (item T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PopFrontLocked()
}

// PopFrontLocked removes and returns the oldest item. The caller holds the
// stage lock.
func (s *Stage[T]) PopFrontLocked() (item T, ok bool) {
	if len(s.items) == 0 {
		return item, false
	}
	item = s.items[0]
	var zero T
	s.items[0] = zero
	s.items = s.items[1:]
	return item, true
}

// Front returns the oldest item without removing it.
func (s *Stage[T]) Front() (item T, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.FrontLocked()
}

// FrontLocked returns the oldest item without removing it. The caller holds
// the stage lock.
func (s *Stage[T]) FrontLocked() (item T, ok bool) {
	if len(s.items) == 0 {
		return item, false
	}
	return s.items[0], true
}

// Len returns the number of queued items.
func (s *Stage[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Full reports whether the stage is at or above its capacity.
func (s *Stage[T]) Full() bool {
	return s.Len() >= s.capacity
}

// Clear drops every queued item and returns how many were dropped.
func (s *Stage[T]) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ClearLocked()
}

// ClearLocked drops every queued item. The caller holds the stage lock.
func (s *Stage[T]) ClearLocked() int {
	n := len(s.items)
	clear(s.items)
	s.items = s.items[:0]
	return n
}
