// Package store is the authoritative product record store. It validates and
// persists records through a Repository backend and pushes a fresh snapshot,
// sorted by expiry date, to every live subscriber after each committed mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"expiry-tracker/internal/products"
)

var ErrClosed = errors.New("store closed")

// Repository is the persistence backend. List must return products sorted
// by expiry date ascending with ties in insertion order.
type Repository interface {
	Create(ctx context.Context, p products.Product) (products.Product, error)
	Get(ctx context.Context, id int64) (products.Product, error)
	Update(ctx context.Context, p products.Product) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]products.Product, error)
	Count(ctx context.Context) (int64, error)
}

type Store struct {
	repo   Repository
	logger *slog.Logger

	// mu serializes mutations with their broadcast and guards subscribers.
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextSub uint64
	closed  bool
}

func New(repo Repository, logger *slog.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
		subs:   make(map[uint64]*Subscription),
	}
}

func (s *Store) GetByID(ctx context.Context, id int64) (products.Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return products.Product{}, err
	}
	return p, nil
}

func (s *Store) List(ctx context.Context) ([]products.Product, error) {
	return s.repo.List(ctx)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Insert assigns a fresh id to p and persists it. p.ID is ignored.
func (s *Store) Insert(ctx context.Context, p products.Product) (int64, error) {
	if err := products.Validate(p); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	p.ID = 0
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return 0, err
	}

	s.broadcastLocked(ctx)
	return created.ID, nil
}

// Update replaces the record with p.ID. It returns products.ErrNotFound when
// no such record exists.
func (s *Store) Update(ctx context.Context, p products.Product) error {
	if err := products.Validate(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}

	s.broadcastLocked(ctx)
	return nil
}

// Delete removes the record if present. Deleting an absent id is a no-op and
// notifies nobody.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, products.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.broadcastLocked(ctx)
	return nil
}

// SubscribeAll opens a live view of all products. The current snapshot is
// available immediately; every later mutation delivers a new one. The
// subscription ends when ctx is done, Cancel is called or the store is closed.
func (s *Store) SubscribeAll(ctx context.Context) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	snapshot, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	s.nextSub++
	sub := &Subscription{
		id:      s.nextSub,
		store:   s,
		updates: make(chan []products.Product, 1),
		done:    make(chan struct{}),
	}
	sub.updates <- snapshot
	s.subs[sub.id] = sub

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close ends every subscription. Further mutations fail with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		delete(s.subs, id)
		sub.closeLocked()
	}
}

func (s *Store) broadcastLocked(ctx context.Context) {
	if len(s.subs) == 0 {
		return
	}

	snapshot, err := s.repo.List(context.WithoutCancel(ctx))
	if err != nil {
		// The mutation is committed; subscribers catch up on the next one.
		s.logger.Error("load snapshot for subscribers failed", "error", err)
		return
	}

	for _, sub := range s.subs {
		sub.deliver(cloneSnapshot(snapshot))
	}
}

func (s *Store) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.id]; !ok {
		return
	}
	delete(s.subs, sub.id)
	sub.closeLocked()
}

func cloneSnapshot(list []products.Product) []products.Product {
	out := make([]products.Product, len(list))
	for i, p := range list {
		if p.CalendarEventID != nil {
			id := *p.CalendarEventID
			p.CalendarEventID = &id
		}
		out[i] = p
	}
	return out
}
