package security

import (
	"Concierge/internal/model"
	"errors"
	"sync"
)

var ErrTokenExpired = errors.New("token 已过期")

// Identity 当前登录身份
type Identity struct {
	UserID string
	Name   string
	Email  string
	Role   model.SenderRole
	Token  string
}

// IdentityProvider 外部鉴权协作者：是否存在登录身份，以及要附带的 Bearer 凭据
type IdentityProvider interface {
	Current() (Identity, bool)
}

// TokenSource 返回当前 Bearer 凭据，匿名时为空
type TokenSource func() string

// Bearer 从 IdentityProvider 派生 TokenSource
func Bearer(p IdentityProvider) TokenSource {
	return func() string {
		if p == nil {
			return ""
		}
		id, ok := p.Current()
		if !ok {
			return ""
		}
		return id.Token
	}
}

// StaticIdentity 可替换的固定身份，零值为匿名
type StaticIdentity struct {
	mu  sync.RWMutex
	id  Identity
	set bool
}

// NewStaticIdentity 以已有身份构造
func NewStaticIdentity(id Identity) *StaticIdentity {
	return &StaticIdentity{id: id, set: true}
}

func (s *StaticIdentity) Current() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.set
}

// Set 登录
func (s *StaticIdentity) Set(id Identity) {
	s.mu.Lock()
	s.id, s.set = id, true
	s.mu.Unlock()
}

// Clear 登出
func (s *StaticIdentity) Clear() {
	s.mu.Lock()
	s.id, s.set = Identity{}, false
	s.mu.Unlock()
}

// IdentityFromToken 由 Bearer Token 构造身份，拥有 ADMIN 角色时以管理员身份发言
func IdentityFromToken(token string) (Identity, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return Identity{}, err
	}
	role := model.RoleUser
	if claims.HasRole(string(model.RoleAdmin)) {
		role = model.RoleAdmin
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return Identity{
		UserID: userID,
		Name:   claims.Name,
		Email:  claims.Email,
		Role:   role,
		Token:  token,
	}, nil
}
