package transport

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/pkg/consts"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/raulk/clock"
)

var (
	ErrNotConnected = errors.New("live channel not connected")
	ErrClosed       = errors.New("live channel closed")
)

// Handler 订阅回调，参数为帧的 JSON 载荷
type Handler func(body []byte)

// Options 客户端参数
type Options struct {
	URL               string
	Token             func() string
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	Dialer            *websocket.Dialer
	Clock             clock.Clock
}

// Client 每个运行上下文一条实时连接；订阅按主题注册，重连后自动恢复。
// 业务状态只有连接状态，入站载荷全部交给已注册的 Handler。
type Client struct {
	opts Options

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	handlers map[string]Handler
	onState  func(State)
	onError  func(error)
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex
}

// NewClient 构造客户端，未设置的参数取默认值
func NewClient(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Client{
		opts:     opts,
		handlers: make(map[string]Handler),
	}
}

// OnStateChange 注册连接状态回调，后注册者覆盖先注册者
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// OnError 注册非致命错误回调
func (c *Client) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// State 当前连接状态
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect 启动连接循环并立即返回；断线后以固定间隔重连，直到 Disconnect 或 ctx 结束
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.run(ctx, done)
}

// Disconnect 关闭连接并停止重连，清空所有订阅
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel = nil
	c.handlers = make(map[string]Handler)
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		if err = conn.Close(); errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	<-done
	return err
}

// Subscribe 注册主题回调；同一主题重复注册时替换为最新的 Handler
func (c *Client) Subscribe(topic string, h Handler) {
	c.mu.Lock()
	_, existed := c.handlers[topic]
	c.handlers[topic] = h
	conn := c.conn
	c.mu.Unlock()

	if existed || conn == nil {
		return
	}
	if err := c.writeFrame(conn, dto.Frame{Type: dto.FrameSubscribe, Destination: topic}); err != nil {
		log.Warn("live channel subscribe failed, will retry on reconnect", "topic", topic, "err", err)
	}
}

// Unsubscribe 注销主题回调
func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	_, existed := c.handlers[topic]
	delete(c.handlers, topic)
	conn := c.conn
	c.mu.Unlock()

	if !existed || conn == nil {
		return
	}
	_ = c.writeFrame(conn, dto.Frame{Type: dto.FrameUnsubscribe, Destination: topic})
}

// Publish 向目的地发送载荷，未连接时返回 ErrNotConnected；无应用层回执
func (c *Client) Publish(destination string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if conn == nil || state != Connected {
		return ErrNotConnected
	}
	return c.writeFrame(conn, dto.Frame{Type: dto.FrameSend, Destination: destination, Body: body})
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.setState(Disconnected)

	policy := backoff.WithContext(backoff.NewConstantBackOff(c.opts.ReconnectDelay), ctx)
	err := backoff.RetryNotify(func() error {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, policy, func(err error, next time.Duration) {
		log.Warn("live channel lost, reconnecting", "err", err, "retryIn", next)
		c.reportError(err)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("live channel stopped", "err", err)
	}
}

// session 单次连接生命周期：拨号、恢复订阅、心跳、读循环，返回断线原因
func (c *Client) session(ctx context.Context) error {
	c.setState(Connecting)

	header := http.Header{}
	if c.opts.Token != nil {
		if token := c.opts.Token(); token != "" {
			header.Set(consts.AuthorizationHeader, consts.BearerPrefix+token)
		}
	}

	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("dial live channel: %w", err)
	}

	readTimeout := 3 * c.opts.HeartbeatInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.opts.WriteTimeout))
	})

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return ctx.Err()
	}
	c.conn = conn
	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
		c.setState(Disconnected)
	}()

	for _, topic := range topics {
		if err = c.writeFrame(conn, dto.Frame{Type: dto.FrameSubscribe, Destination: topic}); err != nil {
			return fmt.Errorf("resubscribe %s: %w", topic, err)
		}
	}
	c.setState(Connected)
	log.Info("live channel connected", "url", c.opts.URL, "topics", len(topics))

	stop := make(chan struct{})
	defer close(stop)
	go c.heartbeat(conn, stop)

	return c.readLoop(conn)
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read live channel: %w", err)
		}
		var frame dto.Frame
		if err = json.Unmarshal(data, &frame); err != nil {
			log.Warn("malformed live channel frame", "err", err)
			continue
		}
		switch frame.Type {
		case dto.FrameMessage:
			c.dispatch(frame)
		case dto.FrameError:
			c.reportError(fmt.Errorf("live channel error frame: %s", frame.Message))
		}
	}
}

// dispatch 在投递时查找 Handler，保证调用的总是最新注册的回调
func (c *Client) dispatch(frame dto.Frame) {
	c.mu.Lock()
	h, ok := c.handlers[frame.Destination]
	c.mu.Unlock()
	if !ok {
		return
	}
	h(frame.Body)
}

func (c *Client) heartbeat(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := c.opts.Clock.Ticker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			if err != nil {
				log.Debug("heartbeat failed", "err", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) writeFrame(conn *websocket.Conn, frame dto.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (c *Client) reportError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
