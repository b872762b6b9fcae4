package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tripmate/service-routemap/internal/common/kafka"
)

// SessionReloader re-runs the map load for every session showing an itinerary.
type SessionReloader interface {
	Reload(ctx context.Context, scheduleID uuid.UUID) int
}

// ItineraryEventConsumer listens to itinerary changes made by other
// instances and refreshes the map sessions mounted here.
type ItineraryEventConsumer struct {
	consumer *kafka.Consumer
	reloader SessionReloader
	source   string
	logger   *zap.Logger
}

// NewItineraryEventConsumer creates a new ItineraryEventConsumer. Events
// stamped with ownSource are skipped because the local service already
// reloaded its sessions.
func NewItineraryEventConsumer(
	brokers []string,
	groupID string,
	ownSource string,
	reloader SessionReloader,
	logger *zap.Logger,
) *ItineraryEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicItineraryEvents, logger)
	return &ItineraryEventConsumer{
		consumer: consumer,
		reloader: reloader,
		source:   ownSource,
		logger:   logger,
	}
}

// Start begins consuming itinerary events. This blocks until the context is cancelled.
func (c *ItineraryEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *ItineraryEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *ItineraryEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from itinerary topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	if cloudEvent.Source == c.source {
		return nil
	}

	switch cloudEvent.Type {
	case ItineraryRegenerated:
		var evt ItineraryRegeneratedEvent
		if err := cloudEvent.ParseData(&evt); err != nil {
			c.logger.Error("failed to parse ItineraryRegeneratedEvent data", zap.Error(err))
			return nil
		}
		c.reload(ctx, evt.ItineraryID, cloudEvent.Type)
	case ItineraryPlaceRemoved:
		var evt PlaceRemovedEvent
		if err := cloudEvent.ParseData(&evt); err != nil {
			c.logger.Error("failed to parse PlaceRemovedEvent data", zap.Error(err))
			return nil
		}
		c.reload(ctx, evt.ItineraryID, cloudEvent.Type)
	default:
		c.logger.Debug("ignoring unhandled itinerary event type",
			zap.String("type", cloudEvent.Type),
		)
	}
	return nil
}

func (c *ItineraryEventConsumer) reload(ctx context.Context, id uuid.UUID, cause string) {
	n := c.reloader.Reload(ctx, id)
	if n == 0 {
		return
	}
	c.logger.Info("map sessions reloaded",
		zap.String("itinerary_id", id.String()),
		zap.String("cause", cause),
		zap.Int("sessions", n),
	)
}
