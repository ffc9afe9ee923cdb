package viewmodel

import (
	"encoding/json"
	"sync"
)

// Store owns the one ViewModel. Every transition runs under the store's
// lock, so pushed events and command outcomes arriving on different
// goroutines are applied one at a time.
type Store struct {
	mu        sync.Mutex
	vm        ViewModel
	listeners []func(ViewModel)
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current view model.
func (s *Store) Snapshot() ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vm
}

// Dispatch applies a pushed event and returns the notice its rule raised,
// if any.
func (s *Store) Dispatch(event string, payload json.RawMessage) *Notice {
	var notice *Notice
	s.Update(func(vm ViewModel) ViewModel {
		var next ViewModel
		next, notice = Reduce(vm, event, payload)
		return next
	})
	return notice
}

// Update applies fn as one transition.
func (s *Store) Update(fn func(ViewModel) ViewModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vm = fn(s.vm)
	for _, l := range s.listeners {
		l(s.vm)
	}
}

// Subscribe registers fn to run after every transition, in transition
// order. fn runs under the store lock and must not call back into the
// store.
func (s *Store) Subscribe(fn func(ViewModel)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
