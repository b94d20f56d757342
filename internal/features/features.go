// Package features turns a window of raw events into one fixed-shape
// feature vector per customer.
//
// The vector layout is shared with the scoring model and must not be
// reordered: see FieldOrder.
package features

import (
	"sort"
	"strings"
	"time"

	"github.com/mbd888/churnwatch/internal/events"
)

// FieldOrder is the canonical order of Vector fields as the model expects
// them.
var FieldOrder = []string{
	"added_to_wishlist",
	"removed_from_wishlist",
	"added_to_cart",
	"removed_from_cart",
	"cart_quantity_updated",
	"total_sessions",
	"days_since_last_activity",
	"total_spent_usd",
}

// Vector holds the behavioral features of one customer over one window.
type Vector struct {
	AddedToWishlist       int     `json:"added_to_wishlist"`
	RemovedFromWishlist   int     `json:"removed_from_wishlist"`
	AddedToCart           int     `json:"added_to_cart"`
	RemovedFromCart       int     `json:"removed_from_cart"`
	CartQuantityUpdated   int     `json:"cart_quantity_updated"`
	TotalSessions         int     `json:"total_sessions"`
	DaysSinceLastActivity int     `json:"days_since_last_activity"`
	TotalSpentUSD         float64 `json:"total_spent_usd"`
}

// Values returns the vector as floats in FieldOrder.
func (v Vector) Values() []float64 {
	return []float64{
		float64(v.AddedToWishlist),
		float64(v.RemovedFromWishlist),
		float64(v.AddedToCart),
		float64(v.RemovedFromCart),
		float64(v.CartQuantityUpdated),
		float64(v.TotalSessions),
		float64(v.DaysSinceLastActivity),
		v.TotalSpentUSD,
	}
}

// Customer is one identity seen in the window together with its features.
type Customer struct {
	Key          string    `json:"key"`
	UserID       string    `json:"userId,omitempty"`
	Email        string    `json:"email,omitempty"`
	Features     Vector    `json:"features"`
	LastActivity time.Time `json:"lastActivity"`
	EventCount   int       `json:"eventCount"`
}

type group struct {
	customer *Customer
	sessions map[string]struct{}
}

// Aggregate groups events by identity (see events.Event.IdentityKey) and
// computes each customer's vector. Days since last activity is measured
// against now, in whole UTC calendar days, never negative.
//
// Events without any identity are skipped and counted in the second
// return value. Customers are returned sorted by key.
func Aggregate(evts []*events.Event, now time.Time) ([]*Customer, int) {
	groups := make(map[string]*group)
	skipped := 0

	for _, e := range evts {
		key, ok := e.IdentityKey()
		if !ok {
			skipped++
			continue
		}

		g, exists := groups[key]
		if !exists {
			g = &group{
				customer: &Customer{Key: key, UserID: strings.TrimSpace(e.UserID)},
				sessions: make(map[string]struct{}),
			}
			groups[key] = g
		}
		c := g.customer
		c.EventCount++
		if c.Email == "" && e.Email != "" {
			c.Email = e.Email
		}
		if e.OccurredAt.After(c.LastActivity) {
			c.LastActivity = e.OccurredAt
		}
		if e.SessionID != "" {
			g.sessions[e.SessionID] = struct{}{}
		}

		switch {
		case e.Type == events.TypeAddedToWishlist:
			c.Features.AddedToWishlist++
		case e.Type == events.TypeRemovedFromWishlist:
			c.Features.RemovedFromWishlist++
		case e.Type == events.TypeAddedToCart:
			c.Features.AddedToCart++
		case e.Type == events.TypeRemovedFromCart:
			c.Features.RemovedFromCart++
		case e.Type == events.TypeCartQuantityUpdated:
			c.Features.CartQuantityUpdated++
		case e.Type.IsPurchase():
			c.Features.TotalSpentUSD += e.LineAmount()
		}
	}

	customers := make([]*Customer, 0, len(groups))
	for _, g := range groups {
		c := g.customer
		c.Features.TotalSessions = len(g.sessions)
		c.Features.DaysSinceLastActivity = DaysBetween(c.LastActivity, now)
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].Key < customers[j].Key })

	return customers, skipped
}

// DaysBetween returns the number of UTC calendar days from then to now,
// clamped at zero.
func DaysBetween(then, now time.Time) int {
	a := truncateDay(then)
	b := truncateDay(now)
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
