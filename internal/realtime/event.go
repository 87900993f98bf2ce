// Package realtime fans newly ingested messages out to the live viewers of
// a thread.
//
// A Session is one websocket connection. It subscribes to at most one
// thread at a time through the Hub. The write path never talks to the Hub
// directly: it hands events to a Notifier, which forwards them over a Bus
// (in-process or Redis) to every instance's Hub.
package realtime

import (
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageCreated  EventType = "message-created"
	EventReactionUpdated EventType = "reaction-updated"
)

// Event is both the bus payload and the frame written to subscribers.
type Event struct {
	Type     EventType       `json:"type"`
	ThreadID uuid.UUID       `json:"threadId"`
	Message  *models.Message `json:"message"`
}

func MessageCreated(msg *models.Message) Event {
	return Event{Type: EventMessageCreated, ThreadID: msg.ThreadID, Message: msg}
}

func ReactionUpdated(msg *models.Message) Event {
	return Event{Type: EventReactionUpdated, ThreadID: msg.ThreadID, Message: msg}
}
