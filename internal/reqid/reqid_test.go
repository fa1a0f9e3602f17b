package reqid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	_, ok = FromContext(context.Background())
	assert.False(t, ok, "unexpected id in empty context")
}

func TestWithID(t *testing.T) {
	const given = "7d0f6a1e-3c1b-4d52-9d7e-0a4f2b6c8e11"
	ctx, id := WithID(context.Background(), given)
	assert.Equal(t, given, id)
	got, _ := FromContext(ctx)
	assert.Equal(t, given, got)

	_, id = WithID(context.Background(), "not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", id)
	_, id2 := WithID(context.Background(), "")
	assert.NotEmpty(t, id2)
}
