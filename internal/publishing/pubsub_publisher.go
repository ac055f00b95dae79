// Package publishing fans coordinate updates out to Google Cloud Pub/Sub.
package publishing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/rs/zerolog"
)

// updateMessage is the wire form of a location update. The position is
// encoded as [latitude, longitude].
type updateMessage struct {
	LocationID string             `json:"location_id"`
	Name       string             `json:"name"`
	Position   locations.Position `json:"position"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// PubsubPublisher publishes one message per location update.
type PubsubPublisher struct {
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// NewPubsubPublisher wraps a Pub/Sub publisher for a topic.
func NewPubsubPublisher(publisher *pubsub.Publisher, logger zerolog.Logger) *PubsubPublisher {
	return &PubsubPublisher{
		publisher: publisher,
		logger:    logger.With().Str("component", "pubsub-publisher").Logger(),
	}
}

// Publish sends rec and waits for the server to acknowledge it.
func (p *PubsubPublisher) Publish(ctx context.Context, rec locations.Record) error {
	data, err := json.Marshal(updateMessage{
		LocationID: rec.ID.String(),
		Name:       rec.Name,
		Position:   rec.Position,
		UpdatedAt:  rec.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal location update: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"location_id": rec.ID.String(),
		},
	})
	msgID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish location update: %w", err)
	}

	p.logger.Debug().Str("message_id", msgID).Stringer("location_id", rec.ID).Msg("Published location update")
	return nil
}

// Stop flushes pending messages.
func (p *PubsubPublisher) Stop() {
	p.publisher.Stop()
}
