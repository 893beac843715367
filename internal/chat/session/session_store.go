package session

import (
	"context"
	"strings"
	"sync"
)

// SessionStore 记住身份对应的会话 ID，重新打开挂件时续接
type SessionStore interface {
	Remember(ctx context.Context, identityKey, sessionID string) error
	Recall(ctx context.Context, identityKey string) (string, error)
	Forget(ctx context.Context, identityKey string) error
}

// MemoryStore 进程内实现
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Remember(_ context.Context, identityKey, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[identityKey] = sessionID
	return nil
}

func (m *MemoryStore) Recall(_ context.Context, identityKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[identityKey], nil
}

func (m *MemoryStore) Forget(_ context.Context, identityKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, identityKey)
	return nil
}

// identityKey 登录用户按 ID，访客按名称与邮箱
func identityKey(userID, name, email string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "guest:" + strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(email))
}
