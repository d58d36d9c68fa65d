package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConversationKind string

const (
	ConversationPrivate ConversationKind = "private"
	ConversationGroup   ConversationKind = "group"
)

func ValidConversationKind(kind ConversationKind) bool {
	return kind == ConversationPrivate || kind == ConversationGroup
}

type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageImage  MessageKind = "image"
	MessageVideo  MessageKind = "video"
	MessageFile   MessageKind = "file"
	MessageSystem MessageKind = "system"
)

func ValidMessageKind(kind MessageKind) bool {
	switch kind {
	case MessageText, MessageImage, MessageVideo, MessageFile, MessageSystem:
		return true
	default:
		return false
	}
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

type ConversationConfig struct {
	NotificationsEnabled bool `bson:"notifications_enabled" json:"notifications_enabled"`
	OnlyAdminsCanPost    bool `bson:"only_admins_can_post" json:"only_admins_can_post"`
}

// LastMessage is a display cache refreshed on every send; message retrieval
// never reads it.
type LastMessage struct {
	Content   string    `bson:"content" json:"content"`
	AuthorID  int64     `bson:"author_id" json:"author_id"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type Conversation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind         ConversationKind   `bson:"kind" json:"kind"`
	Name         string             `bson:"name,omitempty" json:"name,omitempty"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Participants []int64            `bson:"participants" json:"participants"`
	CreatorID    int64              `bson:"creator_id" json:"creator_id"`
	Admins       []int64            `bson:"admins" json:"admins"`
	Config       ConversationConfig `bson:"config" json:"config"`
	LastMessage  *LastMessage       `bson:"last_message,omitempty" json:"last_message,omitempty"`
	Active       bool               `bson:"active" json:"active"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID int64) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

type Attachment struct {
	Name      string `bson:"name" json:"name"`
	URL       string `bson:"url" json:"url"`
	MimeType  string `bson:"mime_type" json:"mime_type"`
	SizeBytes int64  `bson:"size_bytes" json:"size_bytes"`
}

// Reaction holds one user's emoji on a message; a user has at most one entry
// per message.
type Reaction struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	Emoji     string    `bson:"emoji" json:"emoji"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type Message struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID  `bson:"conversation_id" json:"conversation_id"`
	AuthorID       int64               `bson:"author_id" json:"author_id"`
	Content        string              `bson:"content" json:"content"`
	Kind           MessageKind         `bson:"kind" json:"kind"`
	Attachments    []Attachment        `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Status         MessageStatus       `bson:"status" json:"status"`
	Edited         bool                `bson:"edited" json:"edited"`
	EditedAt       *time.Time          `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	ReplyTo        *primitive.ObjectID `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	Reactions      []Reaction          `bson:"reactions,omitempty" json:"reactions,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}

// ReadState is the per-user cursor into a conversation, keyed by the
// (conversation, user) pair.
type ReadState struct {
	ConversationID    primitive.ObjectID `bson:"conversation_id" json:"conversation_id"`
	UserID            int64              `bson:"user_id" json:"user_id"`
	LastReadMessageID primitive.ObjectID `bson:"last_read_message_id" json:"last_read_message_id"`
	LastReadAt        time.Time          `bson:"last_read_at" json:"last_read_at"`
}
