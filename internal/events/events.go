// Package events carries catalog change notifications between storefront
// instances over a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Exchange is the topic exchange every instance publishes to.
const Exchange = "storefront_events"

// Product actions.
const (
	ActionUpdated = "updated"
	ActionPriced  = "priced"
)

type ProductEvent struct {
	EventID    string    `json:"event_id"`
	ProductID  int64     `json:"product_id"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewProductEvent(productID int64, action string) ProductEvent {
	return ProductEvent{
		EventID:    uuid.NewString(),
		ProductID:  productID,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}
}

// RoutingKey is product.<action>.
func (e ProductEvent) RoutingKey() string { return "product." + e.Action }

type Publisher interface {
	Publish(ctx context.Context, ev ProductEvent) error
}

// Nop discards events; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, ProductEvent) error { return nil }

// Invalidator drops cached state for a product and for product listings.
type Invalidator interface {
	InvalidateProduct(id int64)
	InvalidateListings() int
}

// Apply decodes one delivery body and invalidates the product it names. A
// priced product changes how listings render, so those are dropped too.
func Apply(body []byte, inv Invalidator) (ProductEvent, error) {
	var ev ProductEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("decode product event: %w", err)
	}
	if ev.ProductID <= 0 {
		return ev, fmt.Errorf("product event %s: missing product id", ev.EventID)
	}
	inv.InvalidateProduct(ev.ProductID)
	if ev.Action == ActionPriced {
		inv.InvalidateListings()
	}
	return ev, nil
}
