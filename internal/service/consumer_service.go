// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/events"
	pktNats "docchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Invalidator drops derived state for a session.
type Invalidator interface {
	Invalidate(session string)
}

// RemoteSubscriber delivers events published by other instances.
type RemoteSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub      message.Subscriber
	topicName   string
	invalidator Invalidator
	remote      RemoteSubscriber
	durableName string
	logger      logger.ILogger
}

// NewConsumerService builds the documents.changed consumer. remote may be nil.
func NewConsumerService(
	pubSub message.Subscriber,
	topicName string,
	invalidator Invalidator,
	remote RemoteSubscriber,
	durableName string,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:      pubSub,
		topicName:   topicName,
		invalidator: invalidator,
		remote:      remote,
		durableName: durableName,
		logger:      logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	if cs.remote != nil {
		subject := pktNats.Subject(events.TypeDocumentsChanged)
		if err := cs.remote.Subscribe(ctx, subject, cs.durableName, cs.handleRemote); err != nil {
			cs.logger.Warn("CONSUMER", "Remote subscription failed, continuing with local events only", map[string]interface{}{
				"subject": subject,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// Ack invalid messages to prevent infinite redelivery.
		msg.Ack()
		return
	}

	if envelope.Type != events.TypeDocumentsChanged {
		msg.Ack()
		return
	}

	if err := cs.apply(envelope.Data); err != nil {
		cs.logger.Error("CONSUMER", "Invalid documents.changed event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
	}
	msg.Ack()
}

func (cs *consumerService) handleRemote(ctx context.Context, event events.Event) error {
	return cs.apply(event.Payload())
}

func (cs *consumerService) apply(data map[string]interface{}) error {
	evt, err := events.DocumentsChangedFrom(data)
	if err != nil {
		return err
	}
	cs.invalidator.Invalidate(evt.Session)
	cs.logger.Debug("CONSUMER", "Derived state invalidated", map[string]interface{}{
		"session": evt.Session,
		"action":  evt.Action,
	})
	return nil
}
