package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/models"
	"bookvault/internal/redis"
)

func TestPublishCoverUpdated(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, CoverChannel)
	defer sub.Close()

	// Wait for the subscription before publishing.
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewRedisPublisher(client, nil)
	publisher.PublishCoverUpdated(ctx, "book-1", &models.ImageDetails{
		URL:     "https://example.com/cover.jpg",
		Source:  "googlebooks",
		HighRes: true,
	})

	select {
	case msg := <-sub.Channel():
		var event models.CoverUpdatedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, "book-1", event.BookID)
		require.NotNil(t, event.Image)
		assert.Equal(t, "googlebooks", event.Image.Source)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestNoopPublisherIsSafe(t *testing.T) {
	NoopPublisher{}.PublishCoverUpdated(context.Background(), "book-1", nil)
}
