package job

import (
	"Concierge/internal/chat/conversation"
	"Concierge/internal/model"
	"Concierge/internal/pkg/logger"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls   int
	traceID string
	err     error
}

func (f *fakeRefresher) Refresh(ctx context.Context) (*model.Page[model.Conversation], error) {
	f.calls++
	f.traceID = logger.TraceID(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &model.Page[model.Conversation]{}, nil
}

func TestConversationRefreshJob_Run(t *testing.T) {
	r := &fakeRefresher{}
	NewConversationRefreshJob(r, time.Second).Run()
	require.Equal(t, 1, r.calls)
	require.Contains(t, r.traceID, "job-conversation-refresh-")

	r.err = conversation.ErrStale
	NewConversationRefreshJob(r, 0).Run()
	r.err = errors.New("boom")
	NewConversationRefreshJob(r, 0).Run()
	require.Equal(t, 3, r.calls)
}
