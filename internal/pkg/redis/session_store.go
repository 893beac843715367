package redis

import (
	"Concierge/internal/pkg/consts"
	"context"
	"time"
)

// SessionStore 以 Redis 记住访客身份对应的会话 ID，便于重新打开挂件时续接
type SessionStore struct {
	ttl time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{ttl: ttl}
}

func (s *SessionStore) Remember(ctx context.Context, identityKey, sessionID string) error {
	return SetWithExpiration(ctx, consts.GuestSessionKey+identityKey, sessionID, s.ttl)
}

func (s *SessionStore) Recall(ctx context.Context, identityKey string) (string, error) {
	return GetValue(ctx, consts.GuestSessionKey+identityKey)
}

func (s *SessionStore) Forget(ctx context.Context, identityKey string) error {
	return DeleteKey(ctx, consts.GuestSessionKey+identityKey)
}
