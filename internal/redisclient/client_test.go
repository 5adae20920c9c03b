package redisclient_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-transform-backend/internal/redisclient"
)

func TestClient_MarkProcessed(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client, err := redisclient.NewClient(addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	id := "evt_" + uuid.NewString()

	seen, err := client.IsProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	first, err := client.MarkProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := client.MarkProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, again)

	seen, err = client.IsProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)
}
