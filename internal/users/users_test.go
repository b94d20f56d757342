package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory_Lookup(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.Put(&User{ClientID: "c1", UserID: "u1", Email: "ada@example.com", Name: "Ada"})
	dir.Put(&User{ClientID: "c2", UserID: "u2", Email: "bob@example.com"})

	got, err := dir.Lookup(context.Background(), "c1", []string{"u1", "u2", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ada", got["u1"].Name)

	// Returned values are copies.
	got["u1"].Name = "changed"
	again, _ := dir.Lookup(context.Background(), "c1", []string{"u1"})
	assert.Equal(t, "Ada", again["u1"].Name)
}

func TestDisplayFallbacks(t *testing.T) {
	full := &User{UserID: "u1", Email: "ada@example.com", Name: "Ada"}
	noName := &User{UserID: "u2", Email: "bob@example.com"}

	assert.Equal(t, "Ada", DisplayName(full, "u1"))
	assert.Equal(t, "bob@example.com", DisplayName(noName, "u2"))
	assert.Equal(t, "u3", DisplayName(nil, "u3"))

	assert.Equal(t, "ada@example.com", DisplayEmail(full, "u1"))
	assert.Equal(t, "u3", DisplayEmail(nil, "u3"))
}
