package util

import (
	"Concierge/internal/pkg/consts"
	"strings"
)

// ClampPageSize 页大小兜底
func ClampPageSize(size int, def int) int {
	if size <= 0 {
		return def
	}
	if size > consts.MaxPageSize {
		return consts.MaxPageSize
	}
	return size
}

// ContainsFold 忽略大小写的包含判断
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Truncate 按 rune 截断
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
