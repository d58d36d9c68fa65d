package models

import "time"

// ConversationView is what the API returns for a conversation: participant
// ids resolved into directory entries. Participants no longer present in the
// user directory keep a bare entry carrying only their id.
type ConversationView struct {
	ID           string             `json:"id"`
	Kind         ConversationKind   `json:"kind"`
	Name         string             `json:"name,omitempty"`
	Description  string             `json:"description,omitempty"`
	Participants []DirectoryEntry   `json:"participants"`
	CreatorID    int64              `json:"creator_id"`
	Admins       []int64            `json:"admins"`
	Config       ConversationConfig `json:"config"`
	LastMessage  *LastMessage       `json:"last_message,omitempty"`
	Active       bool               `json:"active"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ReplyPreview is the one-level resolution of a message's reply_to reference.
// A dangling reference (target deleted) is omitted entirely.
type ReplyPreview struct {
	ID        string      `json:"id"`
	AuthorID  int64       `json:"author_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}

type MessageView struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Author         DirectoryEntry `json:"author"`
	Content        string         `json:"content"`
	Kind           MessageKind    `json:"kind"`
	Attachments    []Attachment   `json:"attachments,omitempty"`
	Status         MessageStatus  `json:"status"`
	Edited         bool           `json:"edited"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	ReplyTo        *ReplyPreview  `json:"reply_to,omitempty"`
	Reactions      []Reaction     `json:"reactions,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type ChatStatistics struct {
	TotalConversations  int64 `json:"total_conversations"`
	ActiveConversations int64 `json:"active_conversations"`
	TotalMessages       int64 `json:"total_messages"`
	MessagesToday       int64 `json:"messages_today"`
	OnlineUsers         int64 `json:"online_users"`
}

type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}
