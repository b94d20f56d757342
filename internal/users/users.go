// Package users resolves user ids to display details for customer-facing
// report fields.
package users

import (
	"context"
	"strings"
	"sync"
)

// User is a known customer of a client.
type User struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Directory looks up users by id. Unknown ids are simply absent from the
// returned map.
type Directory interface {
	Lookup(ctx context.Context, clientID string, userIDs []string) (map[string]*User, error)
}

// DisplayName returns the name to show for a customer, falling back to
// the email and then to the identity itself.
func DisplayName(u *User, fallback string) string {
	if u != nil {
		if name := strings.TrimSpace(u.Name); name != "" {
			return name
		}
		if email := strings.TrimSpace(u.Email); email != "" {
			return email
		}
	}
	return fallback
}

// DisplayEmail returns the email to show for a customer, falling back to
// the identity itself.
func DisplayEmail(u *User, fallback string) string {
	if u != nil {
		if email := strings.TrimSpace(u.Email); email != "" {
			return email
		}
	}
	return fallback
}

// MemoryDirectory is an in-memory Directory for demo and test use.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]map[string]*User // clientID → userID → user
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]map[string]*User)}
}

// Put adds or replaces a user.
func (d *MemoryDirectory) Put(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	byID, ok := d.users[u.ClientID]
	if !ok {
		byID = make(map[string]*User)
		d.users[u.ClientID] = byID
	}
	cp := *u
	byID[u.UserID] = &cp
}

func (d *MemoryDirectory) Lookup(ctx context.Context, clientID string, userIDs []string) (map[string]*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make(map[string]*User, len(userIDs))
	byID := d.users[clientID]
	for _, id := range userIDs {
		if u, ok := byID[id]; ok {
			cp := *u
			result[id] = &cp
		}
	}
	return result, nil
}
