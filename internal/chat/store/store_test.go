package store

import (
	"Concierge/internal/model"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func msg(sid string, n int) model.Message {
	return model.Message{
		ID:          fmt.Sprintf("m%d", n),
		SessionID:   sid,
		SenderType:  model.RoleUser,
		Content:     fmt.Sprintf("message %d", n),
		MessageType: model.KindText,
		CreatedAt:   base.Add(time.Duration(n) * time.Minute),
	}
}

// pagedFetcher 按页返回预置数据，页内按时间倒序
type pagedFetcher struct {
	mu      sync.Mutex
	pages   map[string][][]model.Message
	gates   map[string]chan struct{}
	started chan string
	calls   int
}

func (f *pagedFetcher) FetchMessages(_ context.Context, sid string, pageNo, _ int) (*model.Page[model.Message], error) {
	f.mu.Lock()
	f.calls++
	gate, started := f.gates[sid], f.started
	pages := f.pages[sid]
	f.mu.Unlock()
	if started != nil {
		started <- sid
	}
	if gate != nil {
		<-gate
	}
	if pageNo >= len(pages) {
		return &model.Page[model.Message]{PageNo: pageNo}, nil
	}
	return &model.Page[model.Message]{
		Items:       append([]model.Message(nil), pages[pageNo]...),
		PageNo:      pageNo,
		HasNextPage: pageNo < len(pages)-1,
	}, nil
}

func fixedHeight(model.Message) float64 { return 50 }

func newStore(f PageFetcher, size int) *Store {
	return New(f, Options{PageSize: size, ClientHeight: 200, NearBottom: 100, NearTop: 50, Height: fixedHeight})
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestStore_MergeOrdering(t *testing.T) {
	f := &pagedFetcher{pages: map[string][][]model.Message{
		"s1": {{msg("s1", 5), msg("s1", 4)}, {msg("s1", 3), msg("s1", 2)}},
	}}
	s := newStore(f, 2)
	ctx := context.Background()

	s.Reset("s1")
	require.NoError(t, s.LoadPage(ctx, 0))
	require.Equal(t, []string{"m4", "m5"}, ids(s.Messages()))
	require.True(t, s.Snapshot().HasNextPage)

	require.NoError(t, s.LoadPage(ctx, 1))
	require.Equal(t, []string{"m2", "m3", "m4", "m5"}, ids(s.Messages()))
	require.False(t, s.Snapshot().HasNextPage)

	require.NoError(t, s.LoadMore(ctx))
	require.Equal(t, 2, f.calls)
}

func TestStore_IdempotentReset(t *testing.T) {
	f := &pagedFetcher{pages: map[string][][]model.Message{
		"s1": {{msg("s1", 3), msg("s1", 2), msg("s1", 1)}},
	}}
	once := newStore(f, 3)
	once.Reset("s1")
	require.NoError(t, once.LoadPage(context.Background(), 0))

	twice := newStore(f, 3)
	twice.Reset("s1")
	require.NoError(t, twice.LoadPage(context.Background(), 0))
	require.NoError(t, twice.LoadPage(context.Background(), 0))

	require.Equal(t, once.Messages(), twice.Messages())
	require.Equal(t, []string{"m1", "m2", "m3"}, ids(twice.Messages()))
}

func TestStore_ScrollPreservation(t *testing.T) {
	var newest, older []model.Message
	for n := 10; n >= 5; n-- {
		newest = append(newest, msg("s1", n))
	}
	for n := 4; n >= 1; n-- {
		older = append(older, msg("s1", n))
	}
	f := &pagedFetcher{pages: map[string][][]model.Message{"s1": {newest, older}}}
	s := newStore(f, 6)
	ctx := context.Background()

	s.Reset("s1")
	require.NoError(t, s.LoadPage(ctx, 0))
	snap := s.Snapshot()
	require.Equal(t, float64(300), snap.ScrollHeight)
	require.Equal(t, float64(100), snap.ScrollTop)

	require.True(t, s.Scroll(0))
	idx, offset := s.TopVisible()
	require.Equal(t, 0, idx)
	topID := s.Messages()[idx].ID

	require.NoError(t, s.LoadMore(ctx))
	idx2, offset2 := s.TopVisible()
	require.Equal(t, topID, s.Messages()[idx2].ID)
	require.Equal(t, 4, idx2)
	require.Equal(t, offset, offset2)
	require.Equal(t, float64(200), s.Snapshot().ScrollTop)
}

func TestStore_AutoScrollGating(t *testing.T) {
	var page []model.Message
	for n := 6; n >= 1; n-- {
		page = append(page, msg("s1", n))
	}
	f := &pagedFetcher{pages: map[string][][]model.Message{"s1": {page}}}
	s := newStore(f, 6)
	s.Reset("s1")
	require.NoError(t, s.LoadPage(context.Background(), 0))

	appended, scrolled := s.AppendLive(msg("s1", 7))
	require.True(t, appended)
	require.True(t, scrolled)
	snap := s.Snapshot()
	require.Equal(t, snap.ScrollHeight-snap.ClientHeight, snap.ScrollTop)

	require.False(t, s.Scroll(0))
	require.False(t, s.Snapshot().AutoScroll)
	appended, scrolled = s.AppendLive(msg("s1", 8))
	require.True(t, appended)
	require.False(t, scrolled)
	require.Equal(t, float64(0), s.Snapshot().ScrollTop)
	require.Equal(t, "m8", s.Messages()[7].ID)

	s.Scroll(s.Snapshot().ScrollHeight - 200 - 80)
	require.True(t, s.Snapshot().AutoScroll)
	_, scrolled = s.AppendLive(msg("s1", 9))
	require.True(t, scrolled)
}

func TestStore_SwitchDiscardsStaleFetch(t *testing.T) {
	gate := make(chan struct{})
	f := &pagedFetcher{
		pages: map[string][][]model.Message{
			"A": {{msg("A", 2), msg("A", 1)}},
			"B": {{msg("B", 4), msg("B", 3)}},
		},
		gates:   map[string]chan struct{}{"A": gate},
		started: make(chan string, 4),
	}
	s := newStore(f, 2)
	ctx := context.Background()

	s.Reset("A")
	done := make(chan error, 1)
	go func() { done <- s.LoadPage(ctx, 0) }()
	require.Equal(t, "A", <-f.started)

	require.ErrorIs(t, s.LoadPage(ctx, 0), ErrBusy)

	s.Reset("B")
	require.NoError(t, s.LoadPage(ctx, 0))
	<-f.started
	close(gate)
	require.ErrorIs(t, <-done, ErrStale)

	require.Equal(t, "B", s.SessionID())
	require.Equal(t, []string{"m3", "m4"}, ids(s.Messages()))
}

func TestStore_Reconciliation(t *testing.T) {
	s := newStore(&pagedFetcher{}, 20)
	s.Seed("s1", []model.Message{msg("s1", 2), msg("s1", 1)}, false)
	require.Equal(t, []string{"m1", "m2"}, ids(s.Messages()))

	s.Scroll(0)
	require.True(t, s.AddOptimistic(model.Message{
		SessionID: "s1", ClientID: "c1", SenderType: model.RoleUser,
		Content: "Hello", MessageType: model.KindText, CreatedAt: base.Add(10 * time.Minute),
	}))
	snap := s.Snapshot()
	require.True(t, snap.AutoScroll)
	require.True(t, snap.Messages[2].Pending)

	echo := model.Message{
		ID: "m3", SessionID: "s1", ClientID: "c1", SenderType: model.RoleUser,
		Content: "Hello", MessageType: model.KindText, CreatedAt: base.Add(11 * time.Minute),
	}
	appended, _ := s.AppendLive(echo)
	require.True(t, appended)
	appended, _ = s.AppendLive(echo)
	require.False(t, appended)
	appended, _ = s.AppendLive(msg("other", 9))
	require.False(t, appended)

	msgs := s.Messages()
	require.Equal(t, []string{"m1", "m2", "m3"}, ids(msgs))
	require.False(t, msgs[2].Pending)

	require.False(t, s.AddOptimistic(model.Message{SessionID: "other", ClientID: "c2"}))
	s.AddOptimistic(model.Message{SessionID: "s1", ClientID: "c3", Content: "x", CreatedAt: base.Add(time.Hour)})
	s.DropPending("c3")
	require.Len(t, s.Messages(), 3)
}

func TestStore_OptimisticAfterEcho(t *testing.T) {
	s := newStore(&pagedFetcher{}, 20)
	s.Seed("s1", nil, false)

	appended, _ := s.AppendLive(model.Message{
		ID: "m1", SessionID: "s1", ClientID: "c1", SenderType: model.RoleUser,
		Content: "Hello", MessageType: model.KindText, CreatedAt: base,
	})
	require.True(t, appended)
	require.False(t, s.AddOptimistic(model.Message{
		SessionID: "s1", ClientID: "c1", SenderType: model.RoleUser,
		Content: "Hello", MessageType: model.KindText, CreatedAt: base,
	}))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	require.False(t, msgs[0].Pending)
}

func TestStore_NoConversation(t *testing.T) {
	s := newStore(&pagedFetcher{}, 20)
	require.ErrorIs(t, s.LoadPage(context.Background(), 0), ErrNoConversation)
	appended, _ := s.AppendLive(msg("s1", 1))
	require.False(t, appended)
}

func TestEstimateHeight(t *testing.T) {
	require.Equal(t, float64(36), EstimateHeight(model.Message{}))
	require.Equal(t, float64(56), EstimateHeight(model.Message{Content: "hi"}))
	require.Equal(t, float64(36+40+180), EstimateHeight(model.Message{Content: "a\nb", MessageType: model.KindImage}))
	require.Equal(t, float64(36+28), EstimateHeight(model.Message{MessageType: model.KindFile}))
}

func TestStore_ResizeFollowsBottomOnlyWhenPinned(t *testing.T) {
	s := newStore(&pagedFetcher{}, 10)
	batch := make([]model.Message, 0, 10)
	for i := 1; i <= 10; i++ {
		batch = append(batch, msg("s1", i))
	}
	s.Seed("s1", batch, false)
	require.Equal(t, 300.0, s.Snapshot().ScrollTop)

	s.Resize(300)
	require.Equal(t, 200.0, s.Snapshot().ScrollTop)
	require.True(t, s.Snapshot().AutoScroll)

	s.Scroll(0)
	require.False(t, s.Snapshot().AutoScroll)
	s.Resize(100)
	require.Equal(t, 0.0, s.Snapshot().ScrollTop)
	require.False(t, s.Snapshot().AutoScroll)
}
