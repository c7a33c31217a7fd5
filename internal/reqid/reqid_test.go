package reqid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}

func TestWithID(t *testing.T) {
	got, _ := FromContext(WithID(context.Background(), "abc-123"))
	require.Equal(t, "abc-123", got)

	generated, ok := FromContext(WithID(context.Background(), ""))
	require.True(t, ok)
	require.NotEmpty(t, generated)
}

func TestUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := New()
		require.False(t, seen[id])
		seen[id] = true
	}
}
