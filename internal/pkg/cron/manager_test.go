package cron

import (
	"Concierge/internal/job"
	"Concierge/internal/model"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type noopRefresher struct{}

func (noopRefresher) Refresh(context.Context) (*model.Page[model.Conversation], error) {
	return &model.Page[model.Conversation]{}, nil
}

func TestManager_RegisterJobs(t *testing.T) {
	mgr := NewCronManager("@every 30s", job.NewConversationRefreshJob(noopRefresher{}, 0))
	require.NoError(t, mgr.RegisterJobs())
	require.Len(t, mgr.engine.Entries(), 1)

	bad := NewCronManager("every now and then", job.NewConversationRefreshJob(noopRefresher{}, 0))
	require.Error(t, bad.RegisterJobs())

	empty := NewCronManager("", nil)
	require.NoError(t, empty.RegisterJobs())
	require.Empty(t, empty.engine.Entries())
}
