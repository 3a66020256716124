package signal

import "sync"

// Observable is anything that can announce a change without exposing its type.
type Observable interface {
	OnChange(fn func()) (cancel func())
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Signal holds a value of type T and notifies subscribers, in registration
// order, every time the value is set.
type Signal[T any] struct {
	mu     sync.RWMutex
	value  T
	equal  func(a, b T) bool
	subs   []subscriber[T]
	nextID int
}

// New returns a signal that notifies on every Set, even when the value is unchanged.
func New[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial}
}

// NewComparable returns a signal that stays silent when Set receives the value it
// already holds. Bidirectional bindings rely on this to settle.
func NewComparable[T comparable](initial T) *Signal[T] {
	return &Signal[T]{
		value: initial,
		equal: func(a, b T) bool { return a == b },
	}
}

func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set stores v and runs the subscribers synchronously. It reports whether
// subscribers were notified.
func (s *Signal[T]) Set(v T) bool {
	s.mu.Lock()
	if s.equal != nil && s.equal(s.value, v) {
		s.mu.Unlock()
		return false
	}
	s.value = v
	subs := make([]subscriber[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
	return true
}

// Update applies fn to the current value and sets the result.
func (s *Signal[T]) Update(fn func(T) T) bool {
	return s.Set(fn(s.Get()))
}

// Subscribe registers fn and returns a function that removes it.
func (s *Signal[T]) Subscribe(fn func(T)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Signal[T]) OnChange(fn func()) (cancel func()) {
	return s.Subscribe(func(T) { fn() })
}

// Subscribers returns the number of registered subscribers.
func (s *Signal[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
