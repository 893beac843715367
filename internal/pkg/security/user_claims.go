package security

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer            = "Concierge"
	JWTExpirationTime = time.Hour * 24
)

// UserClaims Token 中携带的身份信息
type UserClaims struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole 是否拥有指定角色
func (c *UserClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}
