package idgen

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	id := RequestID()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, id, RequestID())
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("rpt_")
	assert.Regexp(t, regexp.MustCompile(`^rpt_[0-9a-f]{24}$`), id)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := WithPrefix("rpt_")
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
