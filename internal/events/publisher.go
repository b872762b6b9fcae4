package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tripmate/service-routemap/internal/bridge"
	"github.com/tripmate/service-routemap/internal/common/kafka"
)

// EventWriter is the part of kafka.Producer the publisher needs.
type EventWriter interface {
	PublishEventWithKey(ctx context.Context, topic, key string, event kafka.CloudEvent) error
}

// InstanceSource returns the CloudEvent source for one running instance, so
// consumers can recognise their own events.
func InstanceSource(instanceID string) string {
	return Source + "/" + instanceID
}

// Publisher wraps domain payloads in CloudEvents and writes them to Kafka.
type Publisher struct {
	writer EventWriter
	source string
	logger *zap.Logger
}

// NewPublisher creates a publisher that stamps every event with source.
func NewPublisher(writer EventWriter, source string, logger *zap.Logger) *Publisher {
	return &Publisher{writer: writer, source: source, logger: logger}
}

// Publish writes data as eventType on topic, partitioned by key.
func (p *Publisher) Publish(ctx context.Context, topic, eventType, key string, data interface{}) error {
	ce, err := kafka.NewCloudEvent(p.source, eventType, data)
	if err != nil {
		return err
	}
	if err := p.writer.PublishEventWithKey(ctx, topic, key, ce); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

// PublishMarkerSelected announces a tapped marker, keyed by schedule so all
// selections of one itinerary stay ordered.
func (p *Publisher) PublishMarkerSelected(ctx context.Context, sel bridge.MarkerSelected) error {
	return p.Publish(ctx, TopicMapEvents, MarkerSelected, sel.ScheduleID, sel)
}
