package job

import (
	"Concierge/internal/chat/conversation"
	"Concierge/internal/model"
	"Concierge/internal/pkg/logger"
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// ListRefresher 会话列表刷新
type ListRefresher interface {
	Refresh(ctx context.Context) (*model.Page[model.Conversation], error)
}

// ConversationRefreshJob 定期刷新管理端会话列表
type ConversationRefreshJob struct {
	list    ListRefresher
	timeout time.Duration
}

func NewConversationRefreshJob(list ListRefresher, timeout time.Duration) *ConversationRefreshJob {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ConversationRefreshJob{list: list, timeout: timeout}
}

func (s *ConversationRefreshJob) Run() {
	traceID := "job-conversation-refresh-" + uuid.NewString()
	ctx := logger.WithTraceID(context.Background(), traceID)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	page, err := s.list.Refresh(ctx)
	if err != nil {
		if errors.Is(err, conversation.ErrStale) {
			return
		}
		log.WarnContext(ctx, "refresh conversation list error", "err", err)
		return
	}
	log.DebugContext(ctx, "conversation list refreshed", "count", len(page.Items), "hasNext", page.HasNextPage)
}
