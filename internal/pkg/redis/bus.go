package redis

import (
	"Concierge/internal/pkg/consts"
	"context"
	log "log/slog"
)

// Bus 基于 Redis Pub/Sub 的实时通道总线，多实例部署时共享推送
type Bus struct{}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	return Publish(ctx, consts.ChatBusKey+topic, payload)
}

// Subscribe 订阅主题，返回的通道在 ctx 结束或 cancel 后关闭
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan []byte, func()) {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := Subscribe(ctx, consts.ChatBusKey+topic)
	out := make(chan []byte, consts.LiveChannelBufferSize)

	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					log.Warn("bus subscriber lagging, dropping payload", "topic", topic)
				}
			}
		}
	}()

	return out, cancel
}
