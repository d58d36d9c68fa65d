package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/factorx-007/Practicas-Backend-sub001/internal/models"
)

// Denormalization lives here and nowhere else: stored chat entities are never
// returned raw, and every view resolves user ids through one batched
// directory lookup. A participant missing from the directory (account since
// deleted) keeps a bare entry carrying only the id.

func directoryEntry(user models.User) models.DirectoryEntry {
	entry := models.DirectoryEntry{
		ID:       user.ID,
		Name:     user.FirstName,
		LastName: user.LastName,
		Role:     user.Role,
	}
	if user.AvatarURL != nil {
		entry.Avatar = *user.AvatarURL
	}
	return entry
}

func directoryEntries(users []models.User) map[int64]models.DirectoryEntry {
	entries := make(map[int64]models.DirectoryEntry, len(users))
	for _, user := range users {
		entries[user.ID] = directoryEntry(user)
	}
	return entries
}

func (s *ChatService) resolveUsers(ctx context.Context, ids []int64) (map[int64]models.DirectoryEntry, error) {
	users, err := s.users.GetByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		return nil, err
	}
	return directoryEntries(users), nil
}

func formatConversationWith(
	conversation *models.Conversation,
	entries map[int64]models.DirectoryEntry,
) *models.ConversationView {
	participants := make([]models.DirectoryEntry, 0, len(conversation.Participants))
	for _, id := range conversation.Participants {
		entry, ok := entries[id]
		if !ok {
			entry = models.DirectoryEntry{ID: id}
		}
		participants = append(participants, entry)
	}

	admins := conversation.Admins
	if admins == nil {
		admins = []int64{}
	}

	return &models.ConversationView{
		ID:           conversation.ID.Hex(),
		Kind:         conversation.Kind,
		Name:         conversation.Name,
		Description:  conversation.Description,
		Participants: participants,
		CreatorID:    conversation.CreatorID,
		Admins:       admins,
		Config:       conversation.Config,
		LastMessage:  conversation.LastMessage,
		Active:       conversation.Active,
		CreatedAt:    conversation.CreatedAt,
		UpdatedAt:    conversation.UpdatedAt,
	}
}

func (s *ChatService) formatConversation(
	ctx context.Context,
	conversation *models.Conversation,
) (*models.ConversationView, error) {
	entries, err := s.resolveUsers(ctx, conversation.Participants)
	if err != nil {
		return nil, err
	}
	return formatConversationWith(conversation, entries), nil
}

func (s *ChatService) formatConversations(
	ctx context.Context,
	conversations []models.Conversation,
) ([]models.ConversationView, error) {
	ids := make([]int64, 0)
	for _, conversation := range conversations {
		ids = append(ids, conversation.Participants...)
	}

	entries, err := s.resolveUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.ConversationView, 0, len(conversations))
	for i := range conversations {
		views = append(views, *formatConversationWith(&conversations[i], entries))
	}
	return views, nil
}

func (s *ChatService) formatMessages(
	ctx context.Context,
	messages []models.Message,
) ([]models.MessageView, error) {
	authorIDs := make([]int64, 0, len(messages))
	replyIDs := make([]primitive.ObjectID, 0)
	for _, message := range messages {
		authorIDs = append(authorIDs, message.AuthorID)
		if message.ReplyTo != nil {
			replyIDs = append(replyIDs, *message.ReplyTo)
		}
	}

	entries, err := s.resolveUsers(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	replies := make(map[primitive.ObjectID]models.Message, len(replyIDs))
	if len(replyIDs) > 0 {
		targets, err := s.messages.GetByIDs(ctx, replyIDs)
		if err != nil {
			return nil, err
		}
		for _, target := range targets {
			replies[target.ID] = target
		}
	}

	views := make([]models.MessageView, 0, len(messages))
	for _, message := range messages {
		author, ok := entries[message.AuthorID]
		if !ok {
			author = models.DirectoryEntry{ID: message.AuthorID}
		}

		view := models.MessageView{
			ID:             message.ID.Hex(),
			ConversationID: message.ConversationID.Hex(),
			Author:         author,
			Content:        message.Content,
			Kind:           message.Kind,
			Attachments:    message.Attachments,
			Status:         message.Status,
			Edited:         message.Edited,
			EditedAt:       message.EditedAt,
			Reactions:      message.Reactions,
			CreatedAt:      message.CreatedAt,
			UpdatedAt:      message.UpdatedAt,
		}

		// One level deep; a dangling reference is dropped, never an error.
		if message.ReplyTo != nil {
			if target, ok := replies[*message.ReplyTo]; ok {
				view.ReplyTo = &models.ReplyPreview{
					ID:        target.ID.Hex(),
					AuthorID:  target.AuthorID,
					Content:   target.Content,
					Kind:      target.Kind,
					CreatedAt: target.CreatedAt,
				}
			}
		}

		views = append(views, view)
	}
	return views, nil
}

func (s *ChatService) formatMessage(ctx context.Context, message *models.Message) (*models.MessageView, error) {
	views, err := s.formatMessages(ctx, []models.Message{*message})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
