package service

import (
	"Concierge/internal/pkg/consts"
	"context"
	log "log/slog"
	"sync"
)

// Bus 实时通道推送总线，单实例用内存实现，多实例用 Redis Pub/Sub
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func())
}

type memoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewMemoryBus() Bus {
	return &memoryBus{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *memoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			log.Warn("bus subscriber lagging, dropping payload", "topic", topic)
		}
	}
	return nil
}

// Subscribe 返回的通道在 ctx 结束或 cancel 后关闭
func (b *memoryBus) Subscribe(ctx context.Context, topic string) (<-chan []byte, func()) {
	ch := make(chan []byte, consts.LiveChannelBufferSize)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan []byte]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			delete(b.subs[topic], ch)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel
}
