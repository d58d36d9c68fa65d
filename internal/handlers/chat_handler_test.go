package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/factorx-007/Practicas-Backend-sub001/internal/models"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/services"
	chatws "github.com/factorx-007/Practicas-Backend-sub001/internal/websocket"
)

type stubChatService struct {
	conversationView  *models.ConversationView
	conversationViews []models.ConversationView
	messageView       *models.MessageView
	messageViews      []models.MessageView
	total             int64
	err               error

	lastConversationID     string
	lastMessageID          string
	lastActorID            int64
	lastMessagesInput      services.ListMessagesInput
	lastConversationsInput services.ListConversationsInput
}

func (s *stubChatService) CreateConversation(
	_ context.Context,
	_ services.CreateConversationInput,
	creatorID int64,
) (*models.ConversationView, error) {
	s.lastActorID = creatorID
	return s.conversationView, s.err
}

func (s *stubChatService) ListConversations(
	_ context.Context,
	userID int64,
	input services.ListConversationsInput,
) ([]models.ConversationView, int64, error) {
	s.lastActorID = userID
	s.lastConversationsInput = input
	return s.conversationViews, s.total, s.err
}

func (s *stubChatService) GetConversation(
	_ context.Context,
	conversationID string,
	userID int64,
) (*models.ConversationView, error) {
	s.lastConversationID = conversationID
	s.lastActorID = userID
	return s.conversationView, s.err
}

func (s *stubChatService) UpdateConversation(
	_ context.Context,
	conversationID string,
	userID int64,
	_ services.UpdateConversationInput,
) (*models.ConversationView, error) {
	s.lastConversationID = conversationID
	s.lastActorID = userID
	return s.conversationView, s.err
}

func (s *stubChatService) AddParticipant(
	_ context.Context,
	conversationID string,
	callerID, _ int64,
) (*models.ConversationView, error) {
	s.lastConversationID = conversationID
	s.lastActorID = callerID
	return s.conversationView, s.err
}

func (s *stubChatService) RemoveParticipant(
	_ context.Context,
	conversationID string,
	callerID, _ int64,
) (*models.ConversationView, error) {
	s.lastConversationID = conversationID
	s.lastActorID = callerID
	return s.conversationView, s.err
}

func (s *stubChatService) SendMessage(
	_ context.Context,
	input services.SendMessageInput,
	authorID int64,
) (*models.MessageView, error) {
	s.lastConversationID = input.ConversationID
	s.lastActorID = authorID
	return s.messageView, s.err
}

func (s *stubChatService) ListMessages(
	_ context.Context,
	conversationID string,
	userID int64,
	input services.ListMessagesInput,
) ([]models.MessageView, int64, error) {
	s.lastConversationID = conversationID
	s.lastActorID = userID
	s.lastMessagesInput = input
	return s.messageViews, s.total, s.err
}

func (s *stubChatService) EditMessage(
	_ context.Context,
	messageID string,
	userID int64,
	_ string,
) (*models.MessageView, error) {
	s.lastMessageID = messageID
	s.lastActorID = userID
	return s.messageView, s.err
}

func (s *stubChatService) DeleteMessage(_ context.Context, messageID string, userID int64) error {
	s.lastMessageID = messageID
	s.lastActorID = userID
	return s.err
}

func (s *stubChatService) MarkRead(_ context.Context, conversationID, messageID string, userID int64) error {
	s.lastConversationID = conversationID
	s.lastMessageID = messageID
	s.lastActorID = userID
	return s.err
}

func (s *stubChatService) AddReaction(
	_ context.Context,
	messageID string,
	userID int64,
	_ string,
) (*models.MessageView, error) {
	s.lastMessageID = messageID
	s.lastActorID = userID
	return s.messageView, s.err
}

func (s *stubChatService) RemoveReaction(
	_ context.Context,
	messageID string,
	userID int64,
) (*models.MessageView, error) {
	s.lastMessageID = messageID
	s.lastActorID = userID
	return s.messageView, s.err
}

type stubStatsService struct {
	statistics *models.ChatStatistics
	err        error
}

func (s *stubStatsService) Statistics(_ context.Context) (*models.ChatStatistics, error) {
	return s.statistics, s.err
}

type noopPresence struct{}

func (noopPresence) SetOnline(context.Context, int64) error  { return nil }
func (noopPresence) SetOffline(context.Context, int64) error { return nil }
func (noopPresence) Refresh(context.Context, int64) error    { return nil }

func newTestApp(service *stubChatService, stats *stubStatsService, authenticated bool) *fiber.App {
	hub := chatws.NewHub(noopPresence{}, zap.NewNop().Sugar())
	handler := NewChatHandler(service, stats, hub, "test-secret")

	app := fiber.New()
	if authenticated {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user_id", "42")
			c.Locals("role", models.RoleStudent)
			return c.Next()
		})
	}

	api := app.Group("/api/v1")
	api.Get("/chat/statistics", handler.GetStatistics)
	api.Get("/conversations", handler.ListConversations)
	api.Post("/conversations", handler.CreateConversation)
	api.Get("/conversations/:id", handler.GetConversation)
	api.Put("/conversations/:id", handler.UpdateConversation)
	api.Post("/conversations/:id/participants", handler.AddParticipant)
	api.Delete("/conversations/:id/participants/:userId", handler.RemoveParticipant)
	api.Get("/conversations/:id/messages", handler.ListMessages)
	api.Post("/conversations/:id/messages", handler.SendMessage)
	api.Post("/conversations/:id/read", handler.MarkRead)
	api.Put("/messages/:id", handler.EditMessage)
	api.Delete("/messages/:id", handler.DeleteMessage)
	api.Post("/messages/:id/reactions", handler.AddReaction)
	api.Delete("/messages/:id/reactions", handler.RemoveReaction)

	return app
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestListConversationsReturnsPaginationMeta(t *testing.T) {
	service := &stubChatService{
		conversationViews: []models.ConversationView{
			{ID: primitive.NewObjectID().Hex(), Kind: models.ConversationGroup},
			{ID: primitive.NewObjectID().Hex(), Kind: models.ConversationPrivate},
		},
		total: 45,
	}
	app := newTestApp(service, &stubStatsService{}, true)

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/v1/conversations?page=2&limit=20", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("expected actor 42, got %d", service.lastActorID)
	}

	var body struct {
		Conversations []models.ConversationView `json:"conversations"`
		Pagination    models.PaginationMeta     `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(body.Conversations))
	}
	meta := body.Pagination
	if meta.Page != 2 || meta.Limit != 20 || meta.Total != 45 || meta.TotalPages != 3 {
		t.Fatalf("unexpected pagination meta: %+v", meta)
	}
	if !meta.HasNext || !meta.HasPrev {
		t.Fatalf("expected has_next and has_prev on the middle page: %+v", meta)
	}
}

func TestListEndpointsClampLimit(t *testing.T) {
	service := &stubChatService{}
	app := newTestApp(service, &stubStatsService{}, true)

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/v1/conversations?page=3&limit=500", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastConversationsInput.Limit != maxPageLimit {
		t.Fatalf("expected conversation limit clamped to %d, got %d",
			maxPageLimit, service.lastConversationsInput.Limit)
	}
	if service.lastConversationsInput.Page != 3 {
		t.Fatalf("expected page 3 untouched, got %d", service.lastConversationsInput.Page)
	}

	target := "/api/v1/conversations/" + primitive.NewObjectID().Hex() + "/messages?limit=500"
	resp, err = app.Test(jsonRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastMessagesInput.Limit != maxPageLimit {
		t.Fatalf("expected message limit clamped to %d, got %d",
			maxPageLimit, service.lastMessagesInput.Limit)
	}
}

func TestCreateConversationReturnsCreated(t *testing.T) {
	view := &models.ConversationView{
		ID:        primitive.NewObjectID().Hex(),
		Kind:      models.ConversationGroup,
		Name:      "Hiring drive",
		CreatorID: 42,
	}
	service := &stubChatService{conversationView: view}
	app := newTestApp(service, &stubStatsService{}, true)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/conversations", fiber.Map{
		"kind":         "group",
		"name":         "Hiring drive",
		"participants": []int64{42, 7},
	}))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var body struct {
		Conversation models.ConversationView `json:"conversation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Conversation.ID != view.ID {
		t.Fatalf("expected conversation %s, got %s", view.ID, body.Conversation.ID)
	}
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", services.ErrInvalidInput, http.StatusBadRequest},
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"conflict", services.ErrConflict, http.StatusConflict},
		{"unexpected", errors.New("mongo went away"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubChatService{err: tc.err}
			app := newTestApp(service, &stubStatsService{}, true)

			target := "/api/v1/conversations/" + primitive.NewObjectID().Hex()
			resp, err := app.Test(jsonRequest(http.MethodGet, target, nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestMissingUserContextIsUnauthorized(t *testing.T) {
	app := newTestApp(&stubChatService{}, &stubStatsService{}, false)

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/v1/conversations", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestDeleteMessageReturnsNoContent(t *testing.T) {
	service := &stubChatService{}
	app := newTestApp(service, &stubStatsService{}, true)

	messageID := primitive.NewObjectID().Hex()
	resp, err := app.Test(jsonRequest(http.MethodDelete, "/api/v1/messages/"+messageID, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if service.lastMessageID != messageID || service.lastActorID != 42 {
		t.Fatalf("expected delete of %s by 42, got %s by %d",
			messageID, service.lastMessageID, service.lastActorID)
	}
}

func TestMarkReadValidatesBody(t *testing.T) {
	service := &stubChatService{}
	app := newTestApp(service, &stubStatsService{}, true)

	conversationID := primitive.NewObjectID().Hex()
	target := "/api/v1/conversations/" + conversationID + "/read"

	resp, err := app.Test(jsonRequest(http.MethodPost, target, fiber.Map{"message_id": "  "}))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message_id, got %d", resp.StatusCode)
	}

	messageID := primitive.NewObjectID().Hex()
	resp, err = app.Test(jsonRequest(http.MethodPost, target, fiber.Map{"message_id": messageID}))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if service.lastConversationID != conversationID || service.lastMessageID != messageID {
		t.Fatalf("expected mark read %s/%s, got %s/%s",
			conversationID, messageID, service.lastConversationID, service.lastMessageID)
	}
}

func TestListMessagesParsesFilters(t *testing.T) {
	service := &stubChatService{messageViews: []models.MessageView{}, total: 0}
	app := newTestApp(service, &stubStatsService{}, true)

	conversationID := primitive.NewObjectID().Hex()
	base := "/api/v1/conversations/" + conversationID + "/messages"

	resp, err := app.Test(jsonRequest(http.MethodGet, base+"?author_id=abc", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad author_id, got %d", resp.StatusCode)
	}

	resp, err = app.Test(jsonRequest(http.MethodGet, base+"?date_from=yesterday", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date_from, got %d", resp.StatusCode)
	}

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	target := base + "?author_id=7&kind=text&date_from=" + from.Format(time.RFC3339)
	resp, err = app.Test(jsonRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	input := service.lastMessagesInput
	if input.Page != 1 || input.Limit != defaultPageLimit {
		t.Fatalf("expected default pagination, got page=%d limit=%d", input.Page, input.Limit)
	}
	if input.AuthorID != 7 || input.Kind != models.MessageText {
		t.Fatalf("unexpected filters: %+v", input)
	}
	if input.DateFrom == nil || !input.DateFrom.Equal(from) {
		t.Fatalf("expected date_from %v, got %v", from, input.DateFrom)
	}
}

func TestGetStatisticsReturnsSnapshot(t *testing.T) {
	stats := &stubStatsService{statistics: &models.ChatStatistics{
		TotalConversations:  10,
		ActiveConversations: 8,
		TotalMessages:       240,
		MessagesToday:       12,
		OnlineUsers:         3,
	}}
	app := newTestApp(&stubChatService{}, stats, true)

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/v1/chat/statistics", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Statistics models.ChatStatistics `json:"statistics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Statistics.TotalMessages != 240 || body.Statistics.OnlineUsers != 3 {
		t.Fatalf("unexpected statistics: %+v", body.Statistics)
	}
}
