package util

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// SanitizeText 渲染前去除消息中的标记
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(s)))
}
