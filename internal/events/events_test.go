package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		name   string
		event  Event
		want   string
		wantOK bool
	}{
		{"user id only", Event{UserID: "u1"}, "u1", true},
		{"user id wins over email", Event{UserID: "u1", Email: "a@example.com"}, "u1", true},
		{"email fallback is normalized", Event{Email: "  A@Example.com "}, "email:a@example.com", true},
		{"anonymous", Event{}, "", false},
		{"whitespace user id falls back", Event{UserID: "  ", Email: "b@example.com"}, "email:b@example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.event.IdentityKey()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLineAmount(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  float64
	}{
		{"price times quantity", Event{Price: floatPtr(50), Quantity: intPtr(2)}, 100},
		{"missing quantity counts once", Event{Price: floatPtr(19.5)}, 19.5},
		{"zero quantity contributes nothing", Event{Price: floatPtr(50), Quantity: intPtr(0)}, 0},
		{"missing price", Event{Quantity: intPtr(3)}, 0},
		{"negative price ignored", Event{Price: floatPtr(-5), Quantity: intPtr(1)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.event.LineAmount(), 1e-9)
		})
	}
}

func TestTypeClassification(t *testing.T) {
	assert.True(t, TypePurchase.IsPurchase())
	assert.True(t, TypeOrderCompleted.IsPurchase())
	assert.False(t, TypeAddedToCart.IsPurchase())
	assert.True(t, TypeLogout.Valid())
	assert.False(t, Type("teleported").Valid())
}

func TestMemoryStore_QueryWindowIsInclusive(t *testing.T) {
	store := NewMemoryStore()
	start := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 19, 23, 59, 59, 0, time.UTC)

	store.Add(
		&Event{ClientID: "c1", UserID: "u1", Type: TypeLogin, OccurredAt: start},
		&Event{ClientID: "c1", UserID: "u1", Type: TypeLogout, OccurredAt: end},
		&Event{ClientID: "c1", UserID: "u1", Type: TypeSearch, OccurredAt: start.Add(-time.Second)},
		&Event{ClientID: "c1", UserID: "u1", Type: TypeSearch, OccurredAt: end.Add(time.Second)},
		&Event{ClientID: "c2", UserID: "u9", Type: TypeLogin, OccurredAt: start.Add(time.Hour)},
	)

	got, err := store.Query(context.Background(), "c1", start, end)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, TypeLogin, got[0].Type)
	assert.Equal(t, TypeLogout, got[1].Type)
}

func TestMemoryStore_OrdersByIdentityThenTime(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	store.Add(
		&Event{ClientID: "c1", UserID: "u2", Type: TypeLogin, OccurredAt: base},
		&Event{ClientID: "c1", UserID: "u1", Type: TypeSearch, OccurredAt: base.Add(time.Hour)},
		&Event{ClientID: "c1", UserID: "u1", Type: TypeLogin, OccurredAt: base},
	)

	got, err := store.Query(context.Background(), "c1", base.Add(-time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, TypeLogin, got[0].Type)
	assert.Equal(t, "u1", got[1].UserID)
	assert.Equal(t, "u2", got[2].UserID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	at := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	store.Add(&Event{ClientID: "c1", UserID: "u1", Type: TypePurchase, OccurredAt: at, Price: floatPtr(10)})

	first, err := store.Query(context.Background(), "c1", at, at)
	require.NoError(t, err)
	*first[0].Price = 999

	second, err := store.Query(context.Background(), "c1", at, at)
	require.NoError(t, err)
	assert.Equal(t, 10.0, *second[0].Price)
}

func TestMemoryStore_RejectsInvertedWindow(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	_, err := store.Query(context.Background(), "c1", now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}
