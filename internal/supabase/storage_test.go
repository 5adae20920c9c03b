package supabase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-transform-backend/internal/supabase"
)

func TestStorageClient_PublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://abc.supabase.co/", "service-key")
	require.NoError(t, err)

	url := client.PublicURL("input-images", "input-1700000000000-photo.png")
	assert.Equal(t, "https://abc.supabase.co/storage/v1/object/public/input-images/input-1700000000000-photo.png", url)
}

func TestStorageClient_RequiresURL(t *testing.T) {
	_, err := supabase.NewStorageClient("", "service-key")
	assert.Error(t, err)
}

func TestStorageClient_RemoveNothing(t *testing.T) {
	client, err := supabase.NewStorageClient("https://abc.supabase.co", "service-key")
	require.NoError(t, err)

	assert.NoError(t, client.Remove(context.Background(), "output-images", nil))
}
