package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "presence:"
	defaultTTL = 90 * time.Second
)

// Service tracks which users currently hold a realtime connection. Keys
// expire on their own, so a crashed node never leaves ghosts online.
type Service struct {
	cli *redis.Client
	ttl time.Duration
}

func New(cli *redis.Client) *Service {
	return &Service{cli: cli, ttl: defaultTTL}
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func (s *Service) SetOnline(ctx context.Context, userID int64) error {
	return s.cli.Set(ctx, key(userID), "1", s.ttl).Err()
}

// Refresh extends the TTL for a still-connected user.
func (s *Service) Refresh(ctx context.Context, userID int64) error {
	return s.cli.Expire(ctx, key(userID), s.ttl).Err()
}

func (s *Service) SetOffline(ctx context.Context, userID int64) error {
	return s.cli.Del(ctx, key(userID)).Err()
}

func (s *Service) IsOnline(ctx context.Context, userID int64) (bool, error) {
	_, err := s.cli.Get(ctx, key(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) OnlineCount(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64
	for {
		keys, next, err := s.cli.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return 0, err
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}
