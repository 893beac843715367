package session

import (
	"Concierge/internal/api/config"
	"Concierge/internal/api/dto"
	"Concierge/internal/chat/store"
	"Concierge/internal/chat/transport"
	"Concierge/internal/chat/typing"
	"Concierge/internal/model"
	"Concierge/internal/pkg/attachment"
	"Concierge/internal/pkg/notify"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
)

type published struct {
	Dest    string
	Payload any
}

type fakeChannel struct {
	mu           sync.Mutex
	handlers     map[string]transport.Handler
	state        transport.State
	sent         []published
	disconnected bool
	onState      func(transport.State)
	onError      func(error)
	// onPublish 在 Publish 返回前调用，模拟服务端立即回显
	onPublish  func(dest string, payload any)
	publishErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: map[string]transport.Handler{}, state: transport.Connected}
}

func (f *fakeChannel) Subscribe(topic string, h transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = h
}

func (f *fakeChannel) Unsubscribe(topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
}

func (f *fakeChannel) Publish(dest string, payload any) error {
	f.mu.Lock()
	if f.state != transport.Connected {
		f.mu.Unlock()
		return transport.ErrNotConnected
	}
	if f.publishErr != nil {
		err := f.publishErr
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, published{Dest: dest, Payload: payload})
	hook := f.onPublish
	f.mu.Unlock()
	if hook != nil {
		hook(dest, payload)
	}
	return nil
}

func (f *fakeChannel) State() transport.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeChannel) setState(s transport.State) {
	f.mu.Lock()
	f.state = s
	fn := f.onState
	f.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (f *fakeChannel) OnStateChange(fn func(transport.State)) { f.onState = fn }
func (f *fakeChannel) OnError(fn func(error))                 { f.onError = fn }

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	f.handlers = map[string]transport.Handler{}
	return nil
}

func (f *fakeChannel) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for t := range f.handlers {
		out = append(out, t)
	}
	return out
}

// deliver 模拟服务端推送
func (f *fakeChannel) deliver(t *testing.T, topic string, v any) {
	t.Helper()
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	require.NotNil(t, h, "no handler for %s", topic)
	body, err := json.Marshal(v)
	require.NoError(t, err)
	h(body)
}

func (f *fakeChannel) messages() []dto.SendMessagePayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dto.SendMessagePayload
	for _, p := range f.sent {
		if m, ok := p.Payload.(dto.SendMessagePayload); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeChannel) typingSignals() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bool
	for _, p := range f.sent {
		if m, ok := p.Payload.(dto.TypingPayload); ok {
			out = append(out, m.Typing)
		}
	}
	return out
}

type fakeUploader struct {
	err   error
	files []attachment.File
}

func (f *fakeUploader) Upload(_ context.Context, sessionID string, file attachment.File) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.files = append(f.files, file)
	return "http://cdn.local/chat/" + sessionID + "/" + file.Name, nil
}

type fakeWidgetAPI struct {
	mu       sync.Mutex
	inits    []model.InitRequest
	reads    []string
	result   *model.InitResult
	initErr  error
}

func (f *fakeWidgetAPI) InitChat(_ context.Context, in model.InitRequest) (*model.InitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, in)
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.result, nil
}

func (f *fakeWidgetAPI) MarkChatRead(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, sid)
	return nil
}

func (f *fakeWidgetAPI) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reads)
}

type noFetch struct{}

func (noFetch) FetchMessages(context.Context, string, int, int) (*model.Page[model.Message], error) {
	return nil, errors.New("not used")
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (r *recordingNotifier) Notify(n notify.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, n := range r.notices {
		out = append(out, n.Kind)
	}
	return out
}

type harness struct {
	ch       *fakeChannel
	store    *store.Store
	uploader *fakeUploader
	notifier *recordingNotifier
	clock    *clock.Mock
}

func newHarness(fetcher store.PageFetcher) (*harness, Options) {
	h := &harness{
		ch:       newFakeChannel(),
		store:    store.New(fetcher, store.Options{PageSize: 20, ClientHeight: 400, NearBottom: 100, NearTop: 50}),
		uploader: &fakeUploader{},
		notifier: &recordingNotifier{},
		clock:    clock.NewMock(),
	}
	h.clock.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	opts := Options{
		Channel:  h.ch,
		Store:    h.store,
		Uploader: h.uploader,
		Preparer: attachment.NewPreparer(config.AttachmentConfig{MaxSize: 1 << 20, AllowedPrefixes: []string{"image/", "application/pdf"}}),
		Notifier: h.notifier,
		Clock:    h.clock,
		Typing:   typing.Timing{Idle: 3 * time.Second, Reassert: 2 * time.Second, Expiry: 5 * time.Second},
	}
	return h, opts
}
