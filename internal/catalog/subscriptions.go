package catalog

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/leonardcser/storefront/internal/logger"
	"github.com/leonardcser/storefront/internal/woo"
)

// Subscription is a product sold as a recurring delivery.
type Subscription struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Price       float64 `json:"price"`
	Interval    string  `json:"interval"`
	Description string  `json:"description"`
	Image       string  `json:"image,omitempty"`
}

const subscriptionKeyword = "subscription"

// Subscriptions filters the product listing down to subscription offerings:
// products whose name, category or tag mentions "subscription".
func (s *Service) Subscriptions(ctx context.Context, q url.Values) ([]Subscription, bool, error) {
	l, err := s.Products(ctx, q)
	if err != nil {
		return nil, false, err
	}
	out := []Subscription{}
	for _, raw := range l.Products {
		var p woo.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			logger.Warnf("skipping undecodable product: %v", err)
			continue
		}
		if !IsSubscription(p) {
			continue
		}
		sub := Subscription{
			ID:          p.ID,
			Name:        strings.TrimSpace(p.Name),
			Slug:        p.Slug,
			Interval:    Interval(p.Name),
			Description: plainText(p.ShortDescription),
		}
		if sub.Description == "" {
			sub.Description = plainText(p.Description)
		}
		if price, ok := parsePrice(p.Price); ok {
			sub.Price = price
		} else if price, ok := parsePrice(p.RegularPrice); ok {
			sub.Price = price
		}
		if len(p.Images) > 0 {
			sub.Image = p.Images[0].Src
		}
		out = append(out, sub)
	}
	return out, l.Cached, nil
}

// IsSubscription reports whether p is offered as a subscription.
func IsSubscription(p woo.Product) bool {
	if strings.Contains(strings.ToLower(p.Name), subscriptionKeyword) {
		return true
	}
	for _, terms := range [][]woo.Term{p.Categories, p.Tags} {
		for _, t := range terms {
			if strings.Contains(strings.ToLower(t.Name+" "+t.Slug), subscriptionKeyword) {
				return true
			}
		}
	}
	return false
}

// Interval reads the delivery cadence from a product name; monthly unless
// the name says otherwise.
func Interval(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "biweekly"), strings.Contains(n, "bi-weekly"):
		return "biweekly"
	case strings.Contains(n, "weekly"):
		return "weekly"
	case strings.Contains(n, "quarterly"):
		return "quarterly"
	}
	return "monthly"
}
