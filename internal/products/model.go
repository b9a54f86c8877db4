package products

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("product not found")

const (
	EventsQueue  = "products.events"
	EventCreated = "product_created"
	EventUpdated = "product_updated"
	EventDeleted = "product_deleted"
)

// Product is a perishable item. ExpiryDate is always ProductionDate plus
// ShelfLifeDays; CalendarEventID is set only while a reminder mirror exists.
type Product struct {
	ID              int64  `json:"id" example:"1"`
	Name            string `json:"name" example:"Milk"`
	ProductionDate  Date   `json:"production_date" swaggertype:"string" example:"2024-01-01"`
	ShelfLifeDays   int    `json:"shelf_life_days" example:"7"`
	ExpiryDate      Date   `json:"expiry_date" swaggertype:"string" example:"2024-01-08"`
	CalendarEventID *int64 `json:"calendar_event_id,omitempty" example:"12"`
}

// HasReminder reports whether a calendar mirror is attached.
func (p Product) HasReminder() bool {
	return p.CalendarEventID != nil
}

// Consistent reports whether ExpiryDate matches the derived value.
func (p Product) Consistent() bool {
	return p.ExpiryDate == DeriveExpiry(p.ProductionDate, p.ShelfLifeDays)
}

type ProductEvent struct {
	EventType  string    `json:"event_type"`
	ProductID  int64     `json:"product_id"`
	Name       string    `json:"name,omitempty"`
	ExpiryDate string    `json:"expiry_date,omitempty"`
	Status     Status    `json:"status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
