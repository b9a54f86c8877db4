package repository

import (
	"context"
	"sort"
	"sync"

	"expiry-tracker/internal/products"
)

// MemoryRepository keeps products in process memory. Ids are never reused.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]products.Product
}

func NewMemory() *MemoryRepository {
	return &MemoryRepository{items: make(map[int64]products.Product)}
}

func (r *MemoryRepository) Create(_ context.Context, p products.Product) (products.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	p.ID = r.nextID
	r.items[p.ID] = cloneProduct(p)
	return p, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (products.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *MemoryRepository) Update(_ context.Context, p products.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[p.ID]; !ok {
		return products.ErrNotFound
	}
	r.items[p.ID] = cloneProduct(p)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return products.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]products.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]products.Product, 0, len(r.items))
	for _, p := range r.items {
		list = append(list, cloneProduct(p))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].ExpiryDate != list[j].ExpiryDate {
			return list[i].ExpiryDate.Before(list[j].ExpiryDate)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}

func (r *MemoryRepository) Health() error {
	return nil
}

func cloneProduct(p products.Product) products.Product {
	if p.CalendarEventID != nil {
		id := *p.CalendarEventID
		p.CalendarEventID = &id
	}
	return p
}
