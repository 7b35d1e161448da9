package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

type sessionRecord struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// SessionService issues and validates opaque bearer tokens backed by
// Redis. A login invalidates the user's previous session so the 7-day
// timer always runs from the most recent sign-in.
type SessionService struct {
	client *redis.Client
}

func NewSessionService(client *redis.Client) *SessionService {
	return &SessionService{client: client}
}

// Create issues a new session token for a user.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, username string) (string, error) {
	// Invalidate any existing session for this user
	_ = s.InvalidateUser(ctx, userID)

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	payload, err := json.Marshal(sessionRecord{UserID: userID.String(), Username: username})
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, SessionKeyPrefix+token, payload, SessionDuration).Err(); err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, UserSessionKeyPrefix+userID.String(), token, SessionDuration).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Validate resolves a session token to the identity it was issued for.
// An unknown or expired token returns ok=false, not an error.
func (s *SessionService) Validate(ctx context.Context, token string) (Identity, bool, error) {
	if token == "" {
		return Identity{}, false, nil
	}

	payload, err := s.client.Get(ctx, SessionKeyPrefix+token).Result()
	if err != nil {
		return Identity{}, false, nil
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Identity{}, false, err
	}
	return Identity{UserID: rec.UserID, Username: rec.Username}, true, nil
}

// Invalidate removes a session token.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if payload, err := s.client.Get(ctx, SessionKeyPrefix+token).Result(); err == nil {
		var rec sessionRecord
		if json.Unmarshal([]byte(payload), &rec) == nil {
			s.client.Del(ctx, UserSessionKeyPrefix+rec.UserID)
		}
	}
	return s.client.Del(ctx, SessionKeyPrefix+token).Err()
}

// InvalidateUser removes whatever session the user currently holds.
func (s *SessionService) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	userKey := UserSessionKeyPrefix + userID.String()

	token, err := s.client.Get(ctx, userKey).Result()
	if err == nil && token != "" {
		s.client.Del(ctx, SessionKeyPrefix+token)
	}
	return s.client.Del(ctx, userKey).Err()
}
