package handler

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/api/middleware"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/response"
	"Concierge/internal/pkg/security"
	"Concierge/internal/pkg/util"
	"Concierge/internal/service"
	"context"
	"fmt"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	chatService service.ChatService
	bus         service.Bus
	secret      string
}

func NewWsHandler(chatService service.ChatService, bus service.Bus, secret string) *WsHandler {
	return &WsHandler{chatService: chatService, bus: bus, secret: secret}
}

// Connect 实时通道：匿名访客可连接，携带 Token 时以登录身份收发
func (s *WsHandler) Connect(c *gin.Context) {
	caller := service.Caller{}
	if token := middleware.BearerToken(c); token != "" {
		claims, err := security.ValidateToken(s.secret, token)
		if err != nil {
			log.WarnContext(c.Request.Context(), "WS 鉴权失败", "err", err)
			response.Error(c, service.UnauthorizedError)
			return
		}
		caller = service.Caller{
			UserID: claims.UserID,
			Name:   claims.Name,
			Email:  claims.Email,
			Admin:  claims.HasRole(consts.RoleAdmin),
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "WS 协议升级失败", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	sess := &wsSession{
		conn:   conn,
		caller: caller,
		chat:   s.chatService,
		bus:    s.bus,
		subs:   make(map[string]func()),
	}
	log.InfoContext(ctx, "WS 连接已建立", "user", caller.UserID, "admin", caller.Admin)
	sess.run(ctx)
	cancel()
	log.InfoContext(ctx, "WS 连接已断开", "user", caller.UserID)
}

// wsSession 单条连接的订阅表与写锁
type wsSession struct {
	conn    *websocket.Conn
	caller  service.Caller
	chat    service.ChatService
	bus     service.Bus
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]func()
}

func (s *wsSession) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		for _, cancel := range s.subs {
			cancel()
		}
		s.subs = map[string]func(){}
		s.mu.Unlock()
		_ = s.conn.Close()
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	s.conn.SetPingHandler(func(data string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(wsWriteTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var frame dto.Frame
		if err = json.Unmarshal(data, &frame); err != nil {
			s.fail("", "帧格式错误")
			continue
		}
		if err = s.handle(ctx, frame); err != nil {
			log.WarnContext(ctx, "WS 帧处理失败", "type", frame.Type, "destination", frame.Destination, "err", err)
			s.fail(frame.Destination, err.Error())
		}
	}
}

func (s *wsSession) handle(ctx context.Context, frame dto.Frame) error {
	switch frame.Type {
	case dto.FrameSubscribe:
		return s.subscribe(ctx, frame.Destination)
	case dto.FrameUnsubscribe:
		s.unsubscribe(frame.Destination)
		return nil
	case dto.FrameSend:
		return s.send(ctx, frame)
	default:
		return fmt.Errorf("不支持的帧类型 %q", frame.Type)
	}
}

func (s *wsSession) subscribe(ctx context.Context, topic string) error {
	sessionID, _, ok := util.ParseTopic(topic)
	if !ok {
		return fmt.Errorf("未知主题 %q", topic)
	}
	if err := s.chat.CanAccess(ctx, s.caller, sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[topic]; exists {
		return nil
	}
	ch, cancel := s.bus.Subscribe(ctx, topic)
	s.subs[topic] = cancel
	go s.forward(topic, ch)
	return nil
}

func (s *wsSession) unsubscribe(topic string) {
	s.mu.Lock()
	cancel, ok := s.subs[topic]
	delete(s.subs, topic)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *wsSession) forward(topic string, ch <-chan []byte) {
	for payload := range ch {
		if err := s.write(dto.Frame{Type: dto.FrameMessage, Destination: topic, Body: payload}); err != nil {
			return
		}
	}
}

func (s *wsSession) send(ctx context.Context, frame dto.Frame) error {
	if frame.Destination == consts.DestSendMessage {
		var req dto.SendMessagePayload
		if err := json.Unmarshal(frame.Body, &req); err != nil {
			return service.ErrParamInvalid
		}
		_, err := s.chat.SendMessage(ctx, s.caller, &req)
		return err
	}

	if sessionID, ok := util.ParseTypingDestination(frame.Destination); ok {
		var req dto.TypingPayload
		if err := json.Unmarshal(frame.Body, &req); err != nil {
			return service.ErrParamInvalid
		}
		return s.chat.Typing(ctx, s.caller, sessionID, &req)
	}
	return fmt.Errorf("未知目的地 %q", frame.Destination)
}

func (s *wsSession) fail(destination, msg string) {
	_ = s.write(dto.Frame{Type: dto.FrameError, Destination: destination, Message: msg})
}

func (s *wsSession) write(frame dto.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
