package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	require.Equal(t, "/topic/chat/s1", ChatTopic("s1"))
	require.Equal(t, "/topic/chat/s1/typing", TypingTopic("s1"))

	sid, typing, ok := ParseTopic(TypingTopic("s1"))
	require.True(t, ok)
	require.True(t, typing)
	require.Equal(t, "s1", sid)

	sid, typing, ok = ParseTopic(ChatTopic("s2"))
	require.True(t, ok)
	require.False(t, typing)
	require.Equal(t, "s2", sid)

	for _, bad := range []string{"/topic/chat/", "/topic/other/s1", "/topic/chat/s1/extra", "/topic/chat//typing"} {
		_, _, ok = ParseTopic(bad)
		require.False(t, ok, bad)
	}

	sid, ok = ParseTypingDestination(TypingDestination("s3"))
	require.True(t, ok)
	require.Equal(t, "s3", sid)
	_, ok = ParseTypingDestination("/app/chat.send")
	require.False(t, ok)
}

func TestSanitizeText(t *testing.T) {
	require.Equal(t, "Welcome", SanitizeText("<b>Welcome</b><script>alert(1)</script>"))
	require.Equal(t, "Tom & Jerry", SanitizeText("Tom &amp; Jerry"))
	require.Equal(t, "", SanitizeText(""))
}

func TestHelpers(t *testing.T) {
	require.Equal(t, 20, ClampPageSize(0, 20))
	require.Equal(t, 100, ClampPageSize(1000, 20))
	require.Equal(t, 7, ClampPageSize(7, 20))

	require.True(t, ContainsFold("Alice Smith", "smith"))
	require.Equal(t, "酒店…", Truncate("酒店预订", 2))
	require.Equal(t, "ok", Truncate("ok", 5))
}

func TestValidateDTO(t *testing.T) {
	type form struct {
		Name string `validate:"required"`
	}
	require.NoError(t, ValidateDTO(&form{Name: "Alice"}))
	err := ValidateDTO(&form{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Name")
}
