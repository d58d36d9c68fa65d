package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/factorx-007/Practicas-Backend-sub001/internal/events"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/models"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/repository"
)

const maxMessageLength = 4000

type conversationStore interface {
	Insert(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error)
	FindActivePrivate(ctx context.Context, a, b int64) (*models.Conversation, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	GetActiveForParticipant(ctx context.Context, id primitive.ObjectID, userID int64) (*models.Conversation, error)
	List(ctx context.Context, filter repository.ConversationFilter) ([]models.Conversation, int64, error)
	ApplyPatch(ctx context.Context, id primitive.ObjectID, patch repository.ConversationPatch) (*models.Conversation, error)
	AddParticipant(ctx context.Context, id primitive.ObjectID, userID int64) (*models.Conversation, error)
	RemoveParticipant(ctx context.Context, id primitive.ObjectID, userID int64) (*models.Conversation, error)
	SetLastMessage(ctx context.Context, id primitive.ObjectID, last models.LastMessage) error
}

type messageStore interface {
	Insert(ctx context.Context, message *models.Message) (*models.Message, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Message, error)
	List(ctx context.Context, filter repository.MessageFilter) ([]models.Message, int64, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, authorID int64, content string) (*models.Message, error)
	Delete(ctx context.Context, id primitive.ObjectID, authorID int64) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.MessageStatus) error
	SetReaction(ctx context.Context, id primitive.ObjectID, reaction models.Reaction) (*models.Message, error)
	RemoveReaction(ctx context.Context, id primitive.ObjectID, userID int64) (*models.Message, error)
}

type readStateStore interface {
	Upsert(ctx context.Context, conversationID primitive.ObjectID, userID int64, messageID primitive.ObjectID, readAt time.Time) error
}

type userDirectory interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.User, error)
}

type ChatService struct {
	conversations conversationStore
	messages      messageStore
	readStates    readStateStore
	users         userDirectory
	dispatcher    events.Dispatcher
	log           *zap.SugaredLogger
}

func NewChatService(
	conversations conversationStore,
	messages messageStore,
	readStates readStateStore,
	users userDirectory,
	dispatcher events.Dispatcher,
	log *zap.SugaredLogger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		readStates:    readStates,
		users:         users,
		dispatcher:    dispatcher,
		log:           log,
	}
}

type CreateConversationInput struct {
	Kind         models.ConversationKind
	Name         string
	Description  string
	Participants []int64
	Config       *models.ConversationConfig
}

func (s *ChatService) CreateConversation(
	ctx context.Context,
	input CreateConversationInput,
	creatorID int64,
) (*models.ConversationView, error) {
	if !models.ValidConversationKind(input.Kind) {
		return nil, fmt.Errorf("%w: unknown conversation kind", ErrInvalidInput)
	}

	participants := dedupeIDs(input.Participants)
	if !containsID(participants, creatorID) {
		participants = append(participants, creatorID)
	}

	if input.Kind == models.ConversationPrivate {
		if len(participants) != 2 {
			return nil, fmt.Errorf("%w: private conversations require exactly two participants", ErrInvalidInput)
		}

		existing, err := s.conversations.FindActivePrivate(ctx, participants[0], participants[1])
		if err == nil {
			return s.formatConversation(ctx, existing)
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	}

	users, err := s.users.GetByIDs(ctx, participants)
	if err != nil {
		return nil, err
	}
	if len(users) != len(participants) {
		return nil, fmt.Errorf("%w: some participants do not exist", ErrNotFound)
	}

	conversation := &models.Conversation{
		Kind:         input.Kind,
		Participants: participants,
		CreatorID:    creatorID,
		Admins:       []int64{},
		Config:       models.ConversationConfig{NotificationsEnabled: true},
		Active:       true,
	}
	if input.Kind == models.ConversationGroup {
		conversation.Name = strings.TrimSpace(input.Name)
		conversation.Description = strings.TrimSpace(input.Description)
		conversation.Admins = []int64{creatorID}
	}
	if input.Config != nil {
		conversation.Config = *input.Config
	}

	created, err := s.conversations.Insert(ctx, conversation)
	if err != nil {
		return nil, err
	}

	s.log.Infow("conversation created",
		"actor", creatorID,
		"conversation", created.ID.Hex(),
		"kind", created.Kind,
	)
	s.dispatcher.Dispatch(ctx, events.New(
		events.ConversationCreated, created.ID.Hex(), creatorID, created.Participants, created,
	))

	return formatConversationWith(created, directoryEntries(users)), nil
}

type ListConversationsInput struct {
	Page    int
	Limit   int
	Kind    models.ConversationKind
	Search  string
	Active  *bool
	OrderBy string
	Order   string
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	userID int64,
	input ListConversationsInput,
) ([]models.ConversationView, int64, error) {
	if input.Page <= 0 || input.Limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	if input.Kind != "" && !models.ValidConversationKind(input.Kind) {
		return nil, 0, fmt.Errorf("%w: unknown conversation kind", ErrInvalidInput)
	}
	orderBy, err := normalizeConversationOrder(input.OrderBy)
	if err != nil {
		return nil, 0, err
	}
	descending, err := normalizeDirection(input.Order)
	if err != nil {
		return nil, 0, err
	}

	conversations, total, err := s.conversations.List(ctx, repository.ConversationFilter{
		Participant: userID,
		Kind:        input.Kind,
		Search:      strings.TrimSpace(input.Search),
		Active:      input.Active,
		OrderBy:     orderBy,
		Descending:  descending,
		Offset:      int64(input.Page-1) * int64(input.Limit),
		Limit:       int64(input.Limit),
	})
	if err != nil {
		return nil, 0, err
	}

	views, err := s.formatConversations(ctx, conversations)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *ChatService) GetConversation(
	ctx context.Context,
	conversationID string,
	userID int64,
) (*models.ConversationView, error) {
	id, err := parseObjectID(conversationID)
	if err != nil {
		return nil, err
	}

	conversation, err := s.conversations.GetActiveForParticipant(ctx, id, userID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}
	return s.formatConversation(ctx, conversation)
}

type UpdateConversationInput struct {
	Name                 *string
	Description          *string
	NotificationsEnabled *bool
	OnlyAdminsCanPost    *bool
}

func (s *ChatService) UpdateConversation(
	ctx context.Context,
	conversationID string,
	userID int64,
	input UpdateConversationInput,
) (*models.ConversationView, error) {
	id, err := parseObjectID(conversationID)
	if err != nil {
		return nil, err
	}

	patch := repository.ConversationPatch{
		Name:                 input.Name,
		Description:          input.Description,
		NotificationsEnabled: input.NotificationsEnabled,
		OnlyAdminsCanPost:    input.OnlyAdminsCanPost,
	}
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	conversation, err := s.conversations.GetActiveForParticipant(ctx, id, userID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}
	if conversation.Kind == models.ConversationGroup && !conversation.IsAdmin(userID) {
		return nil, fmt.Errorf("%w: only admins can update the group", ErrForbidden)
	}

	updated, err := s.conversations.ApplyPatch(ctx, id, patch)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}

	s.log.Infow("conversation updated", "actor", userID, "conversation", conversationID)
	s.dispatcher.Dispatch(ctx, events.New(
		events.ConversationUpdated, conversationID, userID, updated.Participants, updated,
	))

	return s.formatConversation(ctx, updated)
}

func (s *ChatService) AddParticipant(
	ctx context.Context,
	conversationID string,
	callerID int64,
	newUserID int64,
) (*models.ConversationView, error) {
	id, err := parseObjectID(conversationID)
	if err != nil {
		return nil, err
	}

	conversation, err := s.conversations.GetActiveForParticipant(ctx, id, callerID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}
	if conversation.Kind != models.ConversationGroup {
		return nil, fmt.Errorf("%w: only groups support adding participants", ErrInvalidInput)
	}
	if !conversation.IsAdmin(callerID) {
		return nil, fmt.Errorf("%w: only admins can add participants", ErrForbidden)
	}

	if _, err := s.users.GetByID(ctx, newUserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return nil, err
	}
	if conversation.HasParticipant(newUserID) {
		return nil, fmt.Errorf("%w: user is already a participant", ErrConflict)
	}

	updated, err := s.conversations.AddParticipant(ctx, id, newUserID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}

	s.log.Infow("participant added",
		"actor", callerID,
		"conversation", conversationID,
		"participant", newUserID,
	)
	s.dispatcher.Dispatch(ctx, events.New(
		events.ParticipantAdded, conversationID, callerID, updated.Participants,
		map[string]int64{"user_id": newUserID},
	))

	return s.formatConversation(ctx, updated)
}

func (s *ChatService) RemoveParticipant(
	ctx context.Context,
	conversationID string,
	callerID int64,
	targetID int64,
) (*models.ConversationView, error) {
	id, err := parseObjectID(conversationID)
	if err != nil {
		return nil, err
	}

	conversation, err := s.conversations.GetActiveForParticipant(ctx, id, callerID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}
	if conversation.Kind != models.ConversationGroup {
		return nil, fmt.Errorf("%w: only groups support removing participants", ErrInvalidInput)
	}
	if !conversation.IsAdmin(callerID) && callerID != targetID {
		return nil, fmt.Errorf("%w: only admins can remove other participants", ErrForbidden)
	}
	if targetID == conversation.CreatorID {
		return nil, fmt.Errorf("%w: the creator cannot leave the group", ErrForbidden)
	}
	if !conversation.HasParticipant(targetID) {
		return nil, fmt.Errorf("%w: user is not a participant", ErrNotFound)
	}

	updated, err := s.conversations.RemoveParticipant(ctx, id, targetID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}

	s.log.Infow("participant removed",
		"actor", callerID,
		"conversation", conversationID,
		"participant", targetID,
	)
	// The removed user still gets this event so their client can drop the room.
	recipients := append(append([]int64{}, updated.Participants...), targetID)
	s.dispatcher.Dispatch(ctx, events.New(
		events.ParticipantRemoved, conversationID, callerID, recipients,
		map[string]int64{"user_id": targetID},
	))

	return s.formatConversation(ctx, updated)
}

type SendMessageInput struct {
	ConversationID string
	Content        string
	Kind           models.MessageKind
	Attachments    []models.Attachment
	ReplyTo        string
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	input SendMessageInput,
	authorID int64,
) (*models.MessageView, error) {
	id, err := parseObjectID(input.ConversationID)
	if err != nil {
		return nil, err
	}

	conversation, err := s.conversations.GetActiveForParticipant(ctx, id, authorID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}
	if conversation.Config.OnlyAdminsCanPost && !conversation.IsAdmin(authorID) {
		return nil, fmt.Errorf("%w: only admins can post in this conversation", ErrForbidden)
	}

	kind := input.Kind
	if kind == "" {
		kind = models.MessageText
	}
	if !models.ValidMessageKind(kind) {
		return nil, fmt.Errorf("%w: unknown message kind", ErrInvalidInput)
	}

	content := strings.TrimSpace(input.Content)
	if content == "" && len(input.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, fmt.Errorf("%w: message content is too long", ErrInvalidInput)
	}

	var replyTo *primitive.ObjectID
	if input.ReplyTo != "" {
		parsed, err := parseObjectID(input.ReplyTo)
		if err != nil {
			return nil, err
		}
		replyTo = &parsed
	}

	message, err := s.messages.Insert(ctx, &models.Message{
		ConversationID: id,
		AuthorID:       authorID,
		Content:        content,
		Kind:           kind,
		Attachments:    input.Attachments,
		Status:         models.StatusSent,
		ReplyTo:        replyTo,
	})
	if err != nil {
		return nil, err
	}

	// The cache is a display hint; a failed refresh must not fail the send.
	if err := s.conversations.SetLastMessage(ctx, id, models.LastMessage{
		Content:   message.Content,
		AuthorID:  authorID,
		Timestamp: message.CreatedAt,
	}); err != nil {
		s.log.Warnw("refresh last message cache",
			"conversation", input.ConversationID, "error", err)
	}

	s.log.Infow("message sent",
		"actor", authorID,
		"conversation", input.ConversationID,
		"message", message.ID.Hex(),
		"kind", kind,
	)
	s.dispatcher.Dispatch(ctx, events.New(
		events.MessageSent, input.ConversationID, authorID, conversation.Participants, message,
	))

	return s.formatMessage(ctx, message)
}

type ListMessagesInput struct {
	Page     int
	Limit    int
	DateFrom *time.Time
	DateTo   *time.Time
	Kind     models.MessageKind
	AuthorID int64
	Search   string
	Order    string
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	conversationID string,
	userID int64,
	input ListMessagesInput,
) ([]models.MessageView, int64, error) {
	id, err := parseObjectID(conversationID)
	if err != nil {
		return nil, 0, err
	}
	if input.Page <= 0 || input.Limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	if input.Kind != "" && !models.ValidMessageKind(input.Kind) {
		return nil, 0, fmt.Errorf("%w: unknown message kind", ErrInvalidInput)
	}

	// Newest first unless asked otherwise.
	descending := true
	if input.Order != "" {
		descending, err = normalizeDirection(input.Order)
		if err != nil {
			return nil, 0, err
		}
	}

	if _, err := s.conversations.GetActiveForParticipant(ctx, id, userID); err != nil {
		return nil, 0, collapseNoDocuments(err)
	}

	messages, total, err := s.messages.List(ctx, repository.MessageFilter{
		ConversationID: id,
		DateFrom:       input.DateFrom,
		DateTo:         input.DateTo,
		Kind:           input.Kind,
		AuthorID:       input.AuthorID,
		Search:         strings.TrimSpace(input.Search),
		Descending:     descending,
		Offset:         int64(input.Page-1) * int64(input.Limit),
		Limit:          int64(input.Limit),
	})
	if err != nil {
		return nil, 0, err
	}

	views, err := s.formatMessages(ctx, messages)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *ChatService) EditMessage(
	ctx context.Context,
	messageID string,
	userID int64,
	content string,
) (*models.MessageView, error) {
	id, err := parseObjectID(messageID)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, fmt.Errorf("%w: message content is too long", ErrInvalidInput)
	}

	// Authorship is enforced by the conditional update, so a foreign message
	// is indistinguishable from a missing one.
	message, err := s.messages.UpdateContent(ctx, id, userID, content)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}

	s.log.Infow("message edited", "actor", userID, "message", messageID)
	if conversation, err := s.conversations.GetByID(ctx, message.ConversationID); err == nil {
		s.dispatcher.Dispatch(ctx, events.New(
			events.MessageEdited, message.ConversationID.Hex(), userID, conversation.Participants, message,
		))
	} else {
		s.log.Debugw("realtime fan-out skipped",
			"message", messageID, "conversation", message.ConversationID.Hex(), "error", err)
	}

	return s.formatMessage(ctx, message)
}

func (s *ChatService) DeleteMessage(ctx context.Context, messageID string, userID int64) error {
	id, err := parseObjectID(messageID)
	if err != nil {
		return err
	}

	message, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return collapseNoDocuments(err)
	}
	if message.AuthorID != userID {
		return ErrNotFound
	}

	if err := s.messages.Delete(ctx, id, userID); err != nil {
		return collapseNoDocuments(err)
	}

	s.log.Infow("message deleted", "actor", userID, "message", messageID)
	if conversation, err := s.conversations.GetByID(ctx, message.ConversationID); err == nil {
		s.dispatcher.Dispatch(ctx, events.New(
			events.MessageDeleted, message.ConversationID.Hex(), userID, conversation.Participants,
			map[string]string{"message_id": messageID},
		))
	} else {
		s.log.Debugw("realtime fan-out skipped",
			"message", messageID, "conversation", message.ConversationID.Hex(), "error", err)
	}

	return nil
}

func (s *ChatService) MarkRead(
	ctx context.Context,
	conversationID string,
	messageID string,
	userID int64,
) error {
	convID, err := parseObjectID(conversationID)
	if err != nil {
		return err
	}
	msgID, err := parseObjectID(messageID)
	if err != nil {
		return err
	}

	conversation, err := s.conversations.GetActiveForParticipant(ctx, convID, userID)
	if err != nil {
		return collapseNoDocuments(err)
	}

	message, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return collapseNoDocuments(err)
	}
	if message.ConversationID != convID {
		return fmt.Errorf("%w: message does not belong to the conversation", ErrInvalidInput)
	}

	if err := s.readStates.Upsert(ctx, convID, userID, msgID, time.Now().UTC()); err != nil {
		return err
	}

	// Single global status: the first read event flips it for everyone.
	if err := s.messages.SetStatus(ctx, msgID, models.StatusRead); err != nil {
		return err
	}

	s.log.Infow("conversation read",
		"actor", userID,
		"conversation", conversationID,
		"message", messageID,
	)
	s.dispatcher.Dispatch(ctx, events.New(
		events.MessageRead, conversationID, userID, conversation.Participants,
		map[string]string{"message_id": messageID},
	))

	return nil
}

func (s *ChatService) AddReaction(
	ctx context.Context,
	messageID string,
	userID int64,
	emoji string,
) (*models.MessageView, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji is required", ErrInvalidInput)
	}

	id, err := parseObjectID(messageID)
	if err != nil {
		return nil, err
	}

	message, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}
	conversation, err := s.conversations.GetActiveForParticipant(ctx, message.ConversationID, userID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}

	updated, err := s.messages.SetReaction(ctx, id, models.Reaction{
		UserID:    userID,
		Emoji:     emoji,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, collapseNoDocuments(err)
	}

	s.log.Infow("reaction added", "actor", userID, "message", messageID, "emoji", emoji)
	s.dispatcher.Dispatch(ctx, events.New(
		events.ReactionAdded, message.ConversationID.Hex(), userID, conversation.Participants,
		map[string]string{"message_id": messageID, "emoji": emoji},
	))

	return s.formatMessage(ctx, updated)
}

func (s *ChatService) RemoveReaction(
	ctx context.Context,
	messageID string,
	userID int64,
) (*models.MessageView, error) {
	id, err := parseObjectID(messageID)
	if err != nil {
		return nil, err
	}

	message, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}
	conversation, err := s.conversations.GetActiveForParticipant(ctx, message.ConversationID, userID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}

	updated, err := s.messages.RemoveReaction(ctx, id, userID)
	if err != nil {
		return nil, collapseNoDocuments(err)
	}

	s.log.Infow("reaction removed", "actor", userID, "message", messageID)
	s.dispatcher.Dispatch(ctx, events.New(
		events.ReactionRemoved, message.ConversationID.Hex(), userID, conversation.Participants,
		map[string]string{"message_id": messageID},
	))

	return s.formatMessage(ctx, updated)
}

func parseObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: malformed id", ErrInvalidInput)
	}
	return id, nil
}

func collapseNoDocuments(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func normalizeConversationOrder(orderBy string) (string, error) {
	switch orderBy {
	case "", repository.ConversationOrderLastMessage:
		return repository.ConversationOrderLastMessage, nil
	case repository.ConversationOrderCreatedAt, repository.ConversationOrderUpdatedAt:
		return orderBy, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key", ErrInvalidInput)
	}
}

func normalizeDirection(order string) (bool, error) {
	switch strings.ToLower(order) {
	case "", "desc":
		return true, nil
	case "asc":
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown sort direction", ErrInvalidInput)
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
