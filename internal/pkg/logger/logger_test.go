package logger

import (
	"bytes"
	"context"
	log "log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_AddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)})

	ctx := WithTraceID(context.Background(), "trace-42")
	l.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "trace-42", rec[TraceIDKey])

	require.NotEmpty(t, TraceID(WithTraceID(context.Background(), "")))
	require.Empty(t, TraceID(context.Background()))
}

func TestTeeHandler_RemoteOnlyWithTrace(t *testing.T) {
	var local, remote bytes.Buffer
	tee := &TeeHandler{handlers: []log.Handler{
		log.NewJSONHandler(&local, nil),
		&RemoteFilterHandler{next: log.NewJSONHandler(&remote, nil)},
	}}
	l := log.New(&ContextHandler{tee}).With("component", "test")

	l.Info("no trace")
	l.InfoContext(WithTraceID(context.Background(), "t-1"), "with trace")

	require.Equal(t, 2, strings.Count(local.String(), "\n"))
	require.Equal(t, 1, strings.Count(remote.String(), "\n"))
	require.Contains(t, remote.String(), `"component":"test"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, log.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, log.LevelWarn, ParseLevel("warning"))
	require.Equal(t, log.LevelError, ParseLevel("error"))
	require.Equal(t, log.LevelInfo, ParseLevel("bogus"))
}

func TestHTTPTransport_PreservesBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := new(bytes.Buffer)
		_, _ = body.ReadFrom(r.Body)
		_, _ = w.Write([]byte("echo:" + body.String()))
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewHTTPTransport(nil)}
	resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("ping"))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := new(bytes.Buffer)
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "echo:ping", out.String())
	require.Equal(t, strings.Repeat("a", bodyLimit)+"...[truncated]", truncate([]byte(strings.Repeat("a", bodyLimit+5))))
}

func TestFormatAccess(t *testing.T) {
	line := formatAccess(gin.LogFormatterParams{
		TimeStamp:  time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		StatusCode: 502,
		Latency:    1500 * time.Millisecond,
		ClientIP:   "10.0.0.1",
		Method:     "GET",
		Path:       `/api/chat/"x"/messages`,
		Keys:       map[any]any{TraceIDKey: "t-9", "user_id": "u1"},
	}, "logstash-concierge")
	require.True(t, strings.HasSuffix(line, "\n"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	require.Equal(t, "ERROR", rec["level"])
	require.Equal(t, "t-9", rec["trace_id"])
	require.Equal(t, "u1", rec["user_id"])
	require.Equal(t, `/api/chat/"x"/messages`, rec["path"])
	require.Equal(t, "1.5s", rec["latency"])
}
