package service

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/model"
	"Concierge/internal/pkg/util"
	"Concierge/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (ChatService, Bus, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	bus := NewMemoryBus()
	return NewChatService(repository.NewChatRepo(), bus, clk), bus, clk
}

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(time.Second):
		t.Fatal("no payload published")
		return nil
	}
}

func TestInitChat_GuestRequiresName(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.InitChat(context.Background(), Caller{}, &dto.InitChatReq{})
	require.ErrorIs(t, err, ErrGuestNameRequired)

	_, err = svc.InitChat(context.Background(), Caller{}, &dto.InitChatReq{GuestName: "Alice", GuestEmail: "not-an-email"})
	require.ErrorIs(t, err, ErrParamInvalid)
}

func TestInitChat_ResumeBySessionAndUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	guest, err := svc.InitChat(ctx, Caller{}, &dto.InitChatReq{GuestName: "Alice", RoomID: "101"})
	require.NoError(t, err)
	require.NotEmpty(t, guest.SessionID)
	require.Empty(t, guest.Messages)

	_, err = svc.SendMessage(ctx, Caller{}, &dto.SendMessagePayload{SessionID: guest.SessionID, Content: "Hello", MessageType: "TEXT"})
	require.NoError(t, err)

	again, err := svc.InitChat(ctx, Caller{}, &dto.InitChatReq{SessionID: guest.SessionID})
	require.NoError(t, err)
	require.Equal(t, guest.SessionID, again.SessionID)
	require.Len(t, again.Messages, 1)
	require.Equal(t, "Alice", again.Messages[0].SenderName)

	bob := Caller{UserID: "u1", Name: "Bob"}
	first, err := svc.InitChat(ctx, bob, &dto.InitChatReq{})
	require.NoError(t, err)
	second, err := svc.InitChat(ctx, bob, &dto.InitChatReq{})
	require.NoError(t, err)
	require.Equal(t, first.SessionID, second.SessionID)

	// 他人会话 ID 不可续接
	other, err := svc.InitChat(ctx, Caller{UserID: "u2", Name: "Carol"}, &dto.InitChatReq{SessionID: first.SessionID})
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID, other.SessionID)
}

func TestSendMessage_PublishesAndUpdatesSummary(t *testing.T) {
	svc, bus, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.InitChat(ctx, Caller{}, &dto.InitChatReq{GuestName: "Alice"})
	require.NoError(t, err)

	ch, cancel := bus.Subscribe(ctx, util.ChatTopic(res.SessionID))
	defer cancel()

	msg, err := svc.SendMessage(ctx, Caller{}, &dto.SendMessagePayload{
		SessionID: res.SessionID, ClientID: "c-1", Content: "  Hello  ", MessageType: "TEXT",
	})
	require.NoError(t, err)
	require.Equal(t, "Hello", msg.Content)
	require.Equal(t, "c-1", msg.ClientID)
	require.Equal(t, "USER", msg.SenderType)

	var echoed dto.MessageDTO
	require.NoError(t, json.Unmarshal(recv(t, ch), &echoed))
	require.Equal(t, msg.ID, echoed.ID)
	require.Equal(t, "c-1", echoed.ClientID)

	page, err := svc.ListConversations(ctx, model.ConversationQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	conv := page.Items[0]
	require.Equal(t, "Hello", conv.LastMessage)
	require.False(t, conv.ReadByAdmin)
	require.Equal(t, 1, conv.UnreadCount)

	require.NoError(t, svc.MarkConversationRead(ctx, res.SessionID))
	page, err = svc.ListConversations(ctx, model.ConversationQuery{})
	require.NoError(t, err)
	require.True(t, page.Items[0].ReadByAdmin)
	require.Zero(t, page.Items[0].UnreadCount)

	_, err = svc.SendMessage(ctx, Caller{Admin: true, Name: "Front Desk"}, &dto.SendMessagePayload{
		SessionID: res.SessionID, Content: "Hi", MessageType: "TEXT",
	})
	require.NoError(t, err)
	page, err = svc.ListConversations(ctx, model.ConversationQuery{})
	require.NoError(t, err)
	require.False(t, page.Items[0].ReadByUser)

	require.NoError(t, svc.MarkChatRead(ctx, Caller{}, res.SessionID))
	page, err = svc.ListConversations(ctx, model.ConversationQuery{})
	require.NoError(t, err)
	require.True(t, page.Items[0].ReadByUser)
}

func TestSendMessage_Rejects(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, Caller{}, &dto.SendMessagePayload{SessionID: "missing", Content: "x", MessageType: "TEXT"})
	require.ErrorIs(t, err, ErrConversationNotFound)

	res, err := svc.InitChat(ctx, Caller{UserID: "u1", Name: "Bob"}, &dto.InitChatReq{})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, Caller{UserID: "u1"}, &dto.SendMessagePayload{SessionID: res.SessionID, Content: "   ", MessageType: "TEXT"})
	require.ErrorIs(t, err, ErrMessageEmpty)

	_, err = svc.SendMessage(ctx, Caller{UserID: "u1"}, &dto.SendMessagePayload{SessionID: res.SessionID, Content: "x", MessageType: "VIDEO"})
	require.ErrorIs(t, err, ErrParamInvalid)

	_, err = svc.SendMessage(ctx, Caller{UserID: "u2"}, &dto.SendMessagePayload{SessionID: res.SessionID, Content: "x", MessageType: "TEXT"})
	require.ErrorIs(t, err, UnauthorizedError)

	msg, err := svc.SendMessage(ctx, Caller{UserID: "u1", Name: "Bob"}, &dto.SendMessagePayload{
		SessionID: res.SessionID, MessageType: "IMAGE", FileURL: "http://files/a.png",
	})
	require.NoError(t, err)
	require.Equal(t, "IMAGE", msg.MessageType)

	page, err := svc.ListConversations(ctx, model.ConversationQuery{})
	require.NoError(t, err)
	require.Equal(t, "[图片]", page.Items[0].LastMessage)
}

func TestGetMessages_Paging(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	res, err := svc.InitChat(ctx, Caller{}, &dto.InitChatReq{GuestName: "Alice"})
	require.NoError(t, err)

	for _, c := range []string{"one", "two", "three"} {
		clk.Add(time.Second)
		_, err = svc.SendMessage(ctx, Caller{}, &dto.SendMessagePayload{SessionID: res.SessionID, Content: c, MessageType: "TEXT"})
		require.NoError(t, err)
	}

	page, err := svc.GetMessages(ctx, Caller{}, res.SessionID, 0, 2)
	require.NoError(t, err)
	require.True(t, page.HasNextPage)
	require.Equal(t, "three", page.Items[0].Content)
	require.Equal(t, "two", page.Items[1].Content)

	page, err = svc.GetMessages(ctx, Caller{}, res.SessionID, 1, 2)
	require.NoError(t, err)
	require.False(t, page.HasNextPage)
	require.Equal(t, "one", page.Items[0].Content)

	_, err = svc.GetMessages(ctx, Caller{}, res.SessionID, -1, 2)
	require.ErrorIs(t, err, ErrParamInvalid)
}

func TestTyping_Published(t *testing.T) {
	svc, bus, _ := newTestService(t)
	ctx := context.Background()
	res, err := svc.InitChat(ctx, Caller{}, &dto.InitChatReq{GuestName: "Alice"})
	require.NoError(t, err)

	ch, cancel := bus.Subscribe(ctx, util.TypingTopic(res.SessionID))
	defer cancel()

	require.NoError(t, svc.Typing(ctx, Caller{Admin: true, Name: "Front Desk"}, res.SessionID, &dto.TypingPayload{Typing: true}))

	var sig model.TypingSignal
	require.NoError(t, json.Unmarshal(recv(t, ch), &sig))
	require.True(t, sig.Typing)
	require.Equal(t, model.RoleAdmin, sig.SenderType)
	require.Equal(t, "Front Desk", sig.SenderName)
}

func TestStatusAndDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	res, err := svc.InitChat(ctx, Caller{}, &dto.InitChatReq{GuestName: "Alice"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.UpdateStatus(ctx, res.SessionID, "ARCHIVED"), ErrStatusInvalid)
	require.NoError(t, svc.UpdateStatus(ctx, res.SessionID, "RESOLVED"))

	page, err := svc.ListConversations(ctx, model.ConversationQuery{Status: model.FilterActive})
	require.NoError(t, err)
	require.Empty(t, page.Items)

	page, err = svc.ListConversations(ctx, model.ConversationQuery{Status: model.FilterResolved})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	require.NoError(t, svc.DeleteConversation(ctx, res.SessionID))
	require.ErrorIs(t, svc.DeleteConversation(ctx, res.SessionID), ErrConversationNotFound)
}

func TestMemoryBus_CancelClosesChannel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, stop := context.WithCancel(context.Background())

	a, cancelA := bus.Subscribe(ctx, "t")
	b, _ := bus.Subscribe(ctx, "t")
	require.NoError(t, bus.Publish(ctx, "t", []byte("x")))
	require.Equal(t, []byte("x"), recv(t, a))
	require.Equal(t, []byte("x"), recv(t, b))

	cancelA()
	cancelA()
	_, ok := <-a
	require.False(t, ok)

	stop()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-b:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
