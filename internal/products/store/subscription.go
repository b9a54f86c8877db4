package store

import "expiry-tracker/internal/products"

// Subscription is one live view of the store. Its channel holds at most one
// pending snapshot; a newer snapshot replaces an unread older one.
type Subscription struct {
	id      uint64
	store   *Store
	updates chan []products.Product
	done    chan struct{}
}

// Updates is closed when the subscription ends.
func (s *Subscription) Updates() <-chan []products.Product {
	return s.updates
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Cancel() {
	s.store.unsubscribe(s)
}

// deliver and closeLocked run with the store mutex held.
func (s *Subscription) deliver(snapshot []products.Product) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snapshot
}

func (s *Subscription) closeLocked() {
	close(s.done)
	close(s.updates)
}
