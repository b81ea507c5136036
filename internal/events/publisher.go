// Package events publishes domain events over Redis pub/sub. Cover
// updates are the only event type today; consumers subscribe to refresh
// stale images without polling.
package events

import (
	"context"
	"time"

	"bookvault/internal/common/logging"
	"bookvault/internal/models"
	"bookvault/internal/redis"
)

// CoverChannel carries CoverUpdatedEvent payloads as JSON.
const CoverChannel = "bookvault:events:cover"

// Publisher emits domain events. Implementations must be safe for
// concurrent use and must never fail a caller's request path.
type Publisher interface {
	PublishCoverUpdated(ctx context.Context, bookID string, image *models.ImageDetails)
}

// RedisPublisher fans events out over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	logger logging.Logger
}

func NewRedisPublisher(client *redis.Client, logger logging.Logger) *RedisPublisher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) PublishCoverUpdated(ctx context.Context, bookID string, image *models.ImageDetails) {
	event := models.CoverUpdatedEvent{
		BookID:    bookID,
		Image:     image,
		Timestamp: time.Now().UTC(),
	}
	if err := p.client.Publish(ctx, CoverChannel, event); err != nil {
		p.logger.Warn("Failed to publish cover event",
			logging.String("book_id", bookID),
			logging.String("error", err.Error()),
		)
	}
}

// NoopPublisher is used when Redis is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishCoverUpdated(ctx context.Context, bookID string, image *models.ImageDetails) {
}

var (
	_ Publisher = (*RedisPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
