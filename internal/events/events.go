package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	ConversationCreated Type = "conversation.created"
	ConversationUpdated Type = "conversation.updated"
	ParticipantAdded    Type = "participant.added"
	ParticipantRemoved  Type = "participant.removed"
	MessageSent         Type = "message.sent"
	MessageEdited       Type = "message.edited"
	MessageDeleted      Type = "message.deleted"
	MessageRead         Type = "message.read"
	ReactionAdded       Type = "reaction.added"
	ReactionRemoved     Type = "reaction.removed"
)

// Event is the fire-and-forget payload handed to the realtime/notification
// side. Recipients steer in-process fan-out and are not serialized.
type Event struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ActorID        int64     `json:"actor_id"`
	Recipients     []int64   `json:"-"`
	Payload        any       `json:"payload,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func New(eventType Type, conversationID string, actorID int64, recipients []int64, payload any) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		ConversationID: conversationID,
		ActorID:        actorID,
		Recipients:     recipients,
		Payload:        payload,
		Timestamp:      time.Now().UTC(),
	}
}
