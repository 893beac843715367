package console

import (
	"Concierge/internal/chat/session"
	"Concierge/internal/chat/transport"
	"Concierge/internal/chat/typing"
	"Concierge/internal/model"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrinter_RendersOnlyNewConfirmedMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)

	v := session.View{
		SessionID: "s1",
		State:     transport.Connected,
		Messages: []model.Message{
			{ID: "m1", SenderName: "Alice", SenderType: model.RoleUser, Content: "Hello", CreatedAt: at},
			{ID: "", Pending: true, Content: "sending"},
		},
	}
	p.Render(v)
	p.Render(v)

	out := buf.String()
	require.Equal(t, 1, strings.Count(out, "Hello"))
	require.NotContains(t, out, "sending")
	require.Contains(t, out, "== session s1 ==")
	require.Contains(t, out, "[connected]")

	buf.Reset()
	v.Typing = typing.Indicator{SenderName: "Front Desk", Typing: true}
	p.Render(v)
	require.Equal(t, "... Front Desk is typing\n", buf.String())
}
