package service

import (
	"context"
	"encoding/json"
	"fmt"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// EventBridge forwards events outside the process (NATS in production).
type EventBridge interface {
	Publish(ctx context.Context, event events.Event) error
}

type IPublisherService interface {
	Publish(ctx context.Context, event events.Event) error
}

// eventEnvelope is the wire shape of an in-process event message.
type eventEnvelope struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type publisherService struct {
	topicName string
	pubSub    message.Publisher
	bridge    EventBridge
	logger    logger.ILogger
}

// NewPublisherService publishes to the in-process topic and, when bridge is
// non-nil, to the external bus as well.
func NewPublisherService(topicName string, pubSub message.Publisher, bridge EventBridge, logger logger.ILogger) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
		bridge:    bridge,
		logger:    logger,
	}
}

func (p *publisherService) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(eventEnvelope{Type: event.EventType(), Data: event.Payload()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	if err := p.pubSub.Publish(p.topicName, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if p.bridge != nil {
		if err := p.bridge.Publish(ctx, event); err != nil {
			p.logger.Warn("PUBLISHER", "Failed to forward event to bus", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}
	return nil
}
