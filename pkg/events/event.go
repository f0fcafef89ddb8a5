// Package events holds the domain events shared by the in-process bus and
// the NATS bridge.
package events

import "time"

type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// Received is an event decoded off the wire whose concrete type is not
// known to the transport.
type Received struct {
	Type       string
	Data       map[string]interface{}
	ReceivedAt time.Time
}

func (e Received) EventType() string { return e.Type }

func (e Received) Payload() map[string]interface{} { return e.Data }

func (e Received) Timestamp() time.Time { return e.ReceivedAt }
