// Package events models recorded customer behavior and reads it back
// per client and time window.
//
// Events are immutable once stored. Ingestion happens elsewhere; this
// package only exposes the read side used by report generation.
package events

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidWindow = errors.New("window end is before start")
)

// Type is the kind of action a customer performed.
type Type string

const (
	TypeAddedToCart         Type = "added_to_cart"
	TypeRemovedFromCart     Type = "removed_from_cart"
	TypeAddedToWishlist     Type = "added_to_wishlist"
	TypeRemovedFromWishlist Type = "removed_from_wishlist"
	TypeCartQuantityUpdated Type = "cart_quantity_updated"
	TypePurchase            Type = "purchase"
	TypeProceedToCheckout   Type = "proceed_to_checkout"
	TypePageView            Type = "page_view"
	TypeSearch              Type = "search"
	TypeLogin               Type = "login"
	TypeLogout              Type = "logout"

	// TypeOrderCompleted is written by older storefront integrations and
	// is treated exactly like TypePurchase.
	TypeOrderCompleted Type = "order_completed"
)

var knownTypes = map[Type]bool{
	TypeAddedToCart:         true,
	TypeRemovedFromCart:     true,
	TypeAddedToWishlist:     true,
	TypeRemovedFromWishlist: true,
	TypeCartQuantityUpdated: true,
	TypePurchase:            true,
	TypeProceedToCheckout:   true,
	TypePageView:            true,
	TypeSearch:              true,
	TypeLogin:               true,
	TypeLogout:              true,
	TypeOrderCompleted:      true,
}

// Valid reports whether t is a recognized event type.
func (t Type) Valid() bool {
	return knownTypes[t]
}

// IsPurchase reports whether t denotes a completed purchase.
func (t Type) IsPurchase() bool {
	return t == TypePurchase || t == TypeOrderCompleted
}

// Event is one recorded user action.
type Event struct {
	ID         int64          `json:"id"`
	ClientID   string         `json:"clientId"`
	UserID     string         `json:"userId,omitempty"` // empty for anonymous visitors
	Email      string         `json:"email,omitempty"`
	Type       Type           `json:"eventType"`
	OccurredAt time.Time      `json:"timestamp"`
	ProductID  string         `json:"productId,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	Quantity   *int           `json:"quantity,omitempty"`
	Price      *float64       `json:"price,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// IdentityKey returns the key events are grouped under. The user id wins
// when present; otherwise the normalized email is used with an "email:"
// prefix so it can never collide with a real user id. Events carrying
// neither are not attributable and return ok=false.
func (e *Event) IdentityKey() (key string, ok bool) {
	if id := strings.TrimSpace(e.UserID); id != "" {
		return id, true
	}
	if email := strings.ToLower(strings.TrimSpace(e.Email)); email != "" {
		return "email:" + email, true
	}
	return "", false
}

// LineAmount is the monetary value of a purchase line: price times
// quantity, where a missing quantity counts as one unit and an explicit
// zero quantity contributes nothing.
func (e *Event) LineAmount() float64 {
	if e.Price == nil || *e.Price <= 0 {
		return 0
	}
	qty := 1
	if e.Quantity != nil {
		qty = *e.Quantity
	}
	if qty <= 0 {
		return 0
	}
	return *e.Price * float64(qty)
}

// Store reads events for a client. Implementations return only events
// with start <= OccurredAt <= end, ordered by identity key then time.
type Store interface {
	Query(ctx context.Context, clientID string, start, end time.Time) ([]*Event, error)
}
