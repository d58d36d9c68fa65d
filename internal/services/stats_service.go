package services

import (
	"context"
	"time"

	"github.com/factorx-007/Practicas-Backend-sub001/internal/models"
)

type conversationCounter interface {
	CountAll(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

type messageCounter interface {
	CountAll(ctx context.Context) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

// presenceReader is the externally-owned presence registry; the service holds
// no online-user state of its own.
type presenceReader interface {
	OnlineCount(ctx context.Context) (int64, error)
}

type StatsService struct {
	conversations conversationCounter
	messages      messageCounter
	presence      presenceReader
}

func NewStatsService(
	conversations conversationCounter,
	messages messageCounter,
	presence presenceReader,
) *StatsService {
	return &StatsService{
		conversations: conversations,
		messages:      messages,
		presence:      presence,
	}
}

func (s *StatsService) Statistics(ctx context.Context) (*models.ChatStatistics, error) {
	totalConversations, err := s.conversations.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	activeConversations, err := s.conversations.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	totalMessages, err := s.messages.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	messagesToday, err := s.messages.CountCreatedSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	onlineUsers, err := s.presence.OnlineCount(ctx)
	if err != nil {
		return nil, err
	}

	return &models.ChatStatistics{
		TotalConversations:  totalConversations,
		ActiveConversations: activeConversations,
		TotalMessages:       totalMessages,
		MessagesToday:       messagesToday,
		OnlineUsers:         onlineUsers,
	}, nil
}
