package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrTokenNotFound = errors.New("refresh token not found")

// TokenStore maps opaque refresh tokens to user IDs.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func refreshKey(token string) string {
	return fmt.Sprintf("refresh:%s", token)
}

func (s *TokenStore) Save(ctx context.Context, token string, userID uint, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKey(token), userID, ttl).Err()
}

// Redeem deletes the token and returns its user in one GETDEL, so a token
// can be spent only once even under concurrent refreshes.
func (s *TokenStore) Redeem(ctx context.Context, token string) (uint, error) {
	id, err := s.client.GetDel(ctx, refreshKey(token)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
