package wire

import (
	"Concierge/internal/api"
	"Concierge/internal/api/config"
	"Concierge/internal/api/handler"
	"Concierge/internal/chat/conversation"
	"Concierge/internal/chat/session"
	"Concierge/internal/chat/store"
	"Concierge/internal/chat/transport"
	"Concierge/internal/chat/typing"
	"Concierge/internal/job"
	"Concierge/internal/pkg/attachment"
	"Concierge/internal/pkg/backend"
	"Concierge/internal/pkg/cron"
	"Concierge/internal/pkg/notify"
	"Concierge/internal/pkg/security"
	"Concierge/internal/repository"
	"Concierge/internal/service"
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/raulk/clock"
)

// ErrStorageUnavailable 未配置或无法连接对象存储
var ErrStorageUnavailable = errors.New("attachment storage unavailable")

// ApplicationContainer 开发用后端桩的顶级组件
type ApplicationContainer struct {
	Router  *gin.Engine
	Service service.ChatService
	Bus     service.Bus
}

// BuildApplication 组装后端桩；bus 为空时使用进程内总线
func BuildApplication(cfg *config.Config, bus service.Bus) *ApplicationContainer {
	if bus == nil {
		bus = service.NewMemoryBus()
	}
	chatRepo := repository.NewChatRepo()
	chatService := service.NewChatService(chatRepo, bus, clock.New())

	handlers := &api.HandlersGroup{
		ChatHandler:         handler.NewChatHandler(chatService),
		ConversationHandler: handler.NewConversationHandler(chatService),
		WSHandler:           handler.NewWsHandler(chatService, bus, cfg.Server.JWTSecret),
		DevHandler:          handler.NewDevHandler(cfg.Server.JWTSecret),
	}

	router := api.SetupRouter(handlers, api.RouterOptions{
		JWTSecret: cfg.Server.JWTSecret,
		LogIndex:  cfg.Logstash.Index,
	})

	return &ApplicationContainer{
		Router:  router,
		Service: chatService,
		Bus:     bus,
	}
}

// ClientDeps 访客端与管理端共用的外部协作者
type ClientDeps struct {
	Identity security.IdentityProvider
	Uploader session.Uploader
	Sessions session.SessionStore
	Notifier notify.Notifier
	Clock    clock.Clock
}

func (d *ClientDeps) defaults() {
	if d.Identity == nil {
		d.Identity = &security.StaticIdentity{}
	}
	if d.Uploader == nil {
		d.Uploader = unavailableUploader{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.Discard
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
}

// WidgetContainer 访客挂件及其实时通道
type WidgetContainer struct {
	Widget  *session.Widget
	Channel *transport.Client
}

// BuildWidget 组装访客挂件，调用方负责 Channel.Connect
func BuildWidget(cfg *config.Config, deps ClientDeps) *WidgetContainer {
	deps.defaults()
	client := backend.NewClient(cfg.Backend, security.Bearer(deps.Identity))
	channel := newChannel(cfg, deps)

	w := session.NewWidget(session.WidgetOptions{
		Options:  surfaceOptions(cfg, deps, channel, client),
		API:      client,
		Identity: deps.Identity,
		Sessions: deps.Sessions,
		RoomID:   cfg.Guest.RoomID,
		PageSize: cfg.Backend.MessagePageSize,
	})
	return &WidgetContainer{Widget: w, Channel: channel}
}

// DashboardContainer 管理面板、实时通道与列表定时刷新
type DashboardContainer struct {
	Dashboard *session.Dashboard
	Channel   *transport.Client
	CronMgr   *cron.Manager
}

// BuildDashboard 组装管理面板，name 为管理员展示名
func BuildDashboard(cfg *config.Config, deps ClientDeps, name string) *DashboardContainer {
	deps.defaults()
	client := backend.NewClient(cfg.Backend, security.Bearer(deps.Identity))
	channel := newChannel(cfg, deps)

	list := conversation.New(client, conversation.Options{
		PageSize: cfg.Backend.ConversationSize,
		Debounce: cfg.Chat.SearchDebounce,
		Clock:    deps.Clock,
		Notifier: deps.Notifier,
	})
	d := session.NewDashboard(session.DashboardOptions{
		Options: surfaceOptions(cfg, deps, channel, client),
		List:    list,
		Name:    name,
	})

	refreshJob := job.NewConversationRefreshJob(list, cfg.Backend.Timeout)
	return &DashboardContainer{
		Dashboard: d,
		Channel:   channel,
		CronMgr:   cron.NewCronManager(cfg.Chat.ListRefreshSpec, refreshJob),
	}
}

func newChannel(cfg *config.Config, deps ClientDeps) *transport.Client {
	return transport.NewClient(transport.Options{
		URL:               cfg.Backend.WSURL,
		Token:             security.Bearer(deps.Identity),
		ReconnectDelay:    cfg.Chat.ReconnectDelay,
		HeartbeatInterval: cfg.Chat.HeartbeatInterval,
		Clock:             deps.Clock,
	})
}

func surfaceOptions(cfg *config.Config, deps ClientDeps, channel session.Channel, fetcher store.PageFetcher) session.Options {
	return session.Options{
		Channel: channel,
		Store: store.New(fetcher, store.Options{
			PageSize:     cfg.Backend.MessagePageSize,
			ClientHeight: cfg.Chat.ViewportHeight,
			NearBottom:   cfg.Chat.NearBottomThreshold,
			NearTop:      cfg.Chat.NearTopThreshold,
		}),
		Uploader: deps.Uploader,
		Preparer: attachment.NewPreparer(cfg.Attachment),
		Notifier: deps.Notifier,
		Clock:    deps.Clock,
		Typing:   typing.TimingFrom(cfg.Chat),
	}
}

type unavailableUploader struct{}

func (unavailableUploader) Upload(context.Context, string, attachment.File) (string, error) {
	return "", ErrStorageUnavailable
}
