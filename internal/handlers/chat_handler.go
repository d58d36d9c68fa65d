package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/factorx-007/Practicas-Backend-sub001/internal/models"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/services"
	chatws "github.com/factorx-007/Practicas-Backend-sub001/internal/websocket"
	"github.com/factorx-007/Practicas-Backend-sub001/pkg/utils"
)

type chatApplicationService interface {
	CreateConversation(ctx context.Context, input services.CreateConversationInput, creatorID int64) (*models.ConversationView, error)
	ListConversations(ctx context.Context, userID int64, input services.ListConversationsInput) ([]models.ConversationView, int64, error)
	GetConversation(ctx context.Context, conversationID string, userID int64) (*models.ConversationView, error)
	UpdateConversation(ctx context.Context, conversationID string, userID int64, input services.UpdateConversationInput) (*models.ConversationView, error)
	AddParticipant(ctx context.Context, conversationID string, callerID, newUserID int64) (*models.ConversationView, error)
	RemoveParticipant(ctx context.Context, conversationID string, callerID, targetID int64) (*models.ConversationView, error)
	SendMessage(ctx context.Context, input services.SendMessageInput, authorID int64) (*models.MessageView, error)
	ListMessages(ctx context.Context, conversationID string, userID int64, input services.ListMessagesInput) ([]models.MessageView, int64, error)
	EditMessage(ctx context.Context, messageID string, userID int64, content string) (*models.MessageView, error)
	DeleteMessage(ctx context.Context, messageID string, userID int64) error
	MarkRead(ctx context.Context, conversationID, messageID string, userID int64) error
	AddReaction(ctx context.Context, messageID string, userID int64, emoji string) (*models.MessageView, error)
	RemoveReaction(ctx context.Context, messageID string, userID int64) (*models.MessageView, error)
}

type chatStatsService interface {
	Statistics(ctx context.Context) (*models.ChatStatistics, error)
}

type ChatHandler struct {
	service   chatApplicationService
	stats     chatStatsService
	hub       *chatws.Hub
	jwtSecret string
}

func NewChatHandler(
	service chatApplicationService,
	stats chatStatsService,
	hub *chatws.Hub,
	jwtSecret string,
) *ChatHandler {
	return &ChatHandler{
		service:   service,
		stats:     stats,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

type createConversationRequest struct {
	Kind         string                     `json:"kind"`
	Name         string                     `json:"name"`
	Description  string                     `json:"description"`
	Participants []int64                    `json:"participants"`
	Config       *models.ConversationConfig `json:"config"`
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	conversation, err := h.service.CreateConversation(c.Context(), services.CreateConversationInput{
		Kind:         models.ConversationKind(req.Kind),
		Name:         req.Name,
		Description:  req.Description,
		Participants: req.Participants,
		Config:       req.Config,
	}, userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	input := services.ListConversationsInput{
		Page:    page,
		Limit:   limit,
		Kind:    models.ConversationKind(c.Query("kind")),
		Search:  c.Query("search"),
		OrderBy: c.Query("order_by"),
		Order:   c.Query("order"),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true" || raw == "1"
		input.Active = &active
	}

	conversations, total, err := h.service.ListConversations(c.Context(), userID, input)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversations": conversations,
		"pagination":    buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversation, err := h.service.GetConversation(c.Context(), c.Params("id"), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

type updateConversationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Config      *struct {
		NotificationsEnabled *bool `json:"notifications_enabled"`
		OnlyAdminsCanPost    *bool `json:"only_admins_can_post"`
	} `json:"config"`
}

func (h *ChatHandler) UpdateConversation(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req updateConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	input := services.UpdateConversationInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Config != nil {
		input.NotificationsEnabled = req.Config.NotificationsEnabled
		input.OnlyAdminsCanPost = req.Config.OnlyAdminsCanPost
	}

	conversation, err := h.service.UpdateConversation(c.Context(), c.Params("id"), userID, input)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

type addParticipantRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *ChatHandler) AddParticipant(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req addParticipantRequest
	if err := c.BodyParser(&req); err != nil || req.UserID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	conversation, err := h.service.AddParticipant(c.Context(), c.Params("id"), userID, req.UserID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) RemoveParticipant(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	targetID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || targetID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	conversation, err := h.service.RemoveParticipant(c.Context(), c.Params("id"), userID, targetID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

type sendMessageRequest struct {
	Content     string              `json:"content"`
	Kind        string              `json:"kind"`
	Attachments []models.Attachment `json:"attachments"`
	ReplyTo     string              `json:"reply_to"`
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), services.SendMessageInput{
		ConversationID: c.Params("id"),
		Content:        req.Content,
		Kind:           models.MessageKind(req.Kind),
		Attachments:    req.Attachments,
		ReplyTo:        req.ReplyTo,
	}, userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	input := services.ListMessagesInput{
		Page:   page,
		Limit:  limit,
		Kind:   models.MessageKind(c.Query("kind")),
		Search: c.Query("search"),
		Order:  c.Query("order"),
	}
	if raw := c.Query("author_id"); raw != "" {
		authorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || authorID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid author id"})
		}
		input.AuthorID = authorID
	}
	if raw := c.Query("date_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date_from"})
		}
		input.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date_to"})
		}
		input.DateTo = &to
	}

	messages, total, err := h.service.ListMessages(c.Context(), c.Params("id"), userID, input)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req editMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.EditMessage(c.Context(), c.Params("id"), userID, req.Content)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	if err := h.service.DeleteMessage(c.Context(), c.Params("id"), userID); err != nil {
		return mapChatError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type markReadRequest struct {
	MessageID string `json:"message_id"`
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req markReadRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.MessageID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.service.MarkRead(c.Context(), c.Params("id"), req.MessageID, userID); err != nil {
		return mapChatError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type addReactionRequest struct {
	Emoji string `json:"emoji"`
}

func (h *ChatHandler) AddReaction(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req addReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.AddReaction(c.Context(), c.Params("id"), userID, req.Emoji)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) RemoveReaction(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	message, err := h.service.RemoveReaction(c.Context(), c.Params("id"), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) GetStatistics(c *fiber.Ctx) error {
	if _, err := parseActorID(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	statistics, err := h.stats.Statistics(c.Context())
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"statistics": statistics})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	raw, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		_ = conn.Close()
		return
	}

	client := chatws.NewClient(h.hub, conn, userID)
	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Conflict"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}

func parseActorID(c *fiber.Ctx) (int64, error) {
	userIDValue := c.Locals("user_id")
	userIDStr, ok := userIDValue.(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(userIDStr, 10, 64)
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
