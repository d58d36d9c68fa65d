package routes

import (
	"context"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/factorx-007/Practicas-Backend-sub001/internal/config"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/events"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/handlers"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/middleware"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/presence"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/repository"
	"github.com/factorx-007/Practicas-Backend-sub001/internal/services"
	chatws "github.com/factorx-007/Practicas-Backend-sub001/internal/websocket"
)

type Deps struct {
	PG    *pgxpool.Pool
	Mongo *mongo.Database
	Redis *redis.Client
	Log   *zap.SugaredLogger
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, deps Deps) error {
	userRepo := repository.NewUserRepository(deps.PG)
	conversationRepo := repository.NewConversationRepository(deps.Mongo)
	messageRepo := repository.NewMessageRepository(deps.Mongo)
	readStateRepo := repository.NewReadStateRepository(deps.Mongo)

	ctx := context.Background()
	if err := conversationRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := readStateRepo.EnsureIndexes(ctx); err != nil {
		return err
	}

	presenceService := presence.New(deps.Redis)
	hub := chatws.NewHub(presenceService, deps.Log)
	go hub.Run()

	dispatcher := events.Fanout{hub}
	if len(cfg.KafkaBrokers) > 0 {
		dispatcher = append(dispatcher, events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, deps.Log))
	}

	chatService := services.NewChatService(
		conversationRepo,
		messageRepo,
		readStateRepo,
		userRepo,
		dispatcher,
		deps.Log,
	)
	statsService := services.NewStatsService(conversationRepo, messageRepo, presenceService)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	chatHandler := handlers.NewChatHandler(chatService, statsService, hub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	protected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	chat := protected.Group("/chat")
	chat.Get("/statistics", chatHandler.GetStatistics)

	conversations := protected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id", chatHandler.GetConversation)
	conversations.Put("/:id", chatHandler.UpdateConversation)
	conversations.Post("/:id/participants", chatHandler.AddParticipant)
	conversations.Delete("/:id/participants/:userId", chatHandler.RemoveParticipant)
	conversations.Get("/:id/messages", chatHandler.ListMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)

	messages := protected.Group("/messages")
	messages.Put("/:id", chatHandler.EditMessage)
	messages.Delete("/:id", chatHandler.DeleteMessage)
	messages.Post("/:id/reactions", chatHandler.AddReaction)
	messages.Delete("/:id/reactions", chatHandler.RemoveReaction)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	return nil
}
