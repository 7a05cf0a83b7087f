package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionPrefix = "session:"

var ErrSessionNotFound = errors.New("session not found")

// Session is what the server remembers about an issued token.
type Session struct {
	AccountID int64     `json:"account_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisSessionStore keeps one key per token id so logout can revoke a token before it expires.
type RedisSessionStore struct {
	Client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Client: client}
}

func sessionKey(jti string) string {
	return sessionPrefix + jti
}

func (s *RedisSessionStore) Save(ctx context.Context, jti string, session Session) error {
	if s.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session for %s already expired", session.Username)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.Client.Set(ctx, sessionKey(jti), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, jti string) (*Session, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	raw, err := s.Client.Get(ctx, sessionKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, jti string) error {
	if s.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if err := s.Client.Del(ctx, sessionKey(jti)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
