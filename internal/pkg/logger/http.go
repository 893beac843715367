package logger

import (
	"bytes"
	"io"
	log "log/slog"
	"net/http"
	"time"
)

const bodyLimit = 1000

// HTTPTransport 记录 REST 调用的请求、响应与耗时
type HTTPTransport struct {
	Transport     http.RoundTripper
	SlowThreshold time.Duration
}

// NewHTTPTransport 包装默认 Transport
func NewHTTPTransport(next http.RoundTripper) *HTTPTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &HTTPTransport{Transport: next, SlowThreshold: 500 * time.Millisecond}
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(reqBody))
	}

	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(start)

	fields := []any{
		log.String("method", req.Method),
		log.String("url", req.URL.String()),
		log.Duration("latency", elapsed),
		log.String("req_body", truncate(reqBody)),
	}

	if err != nil {
		log.ErrorContext(req.Context(), "HTTP_CALL_ERROR", append(fields, log.Any("err", err))...)
		return nil, err
	}

	var resBody []byte
	if resp.Body != nil {
		resBody, _ = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewBuffer(resBody))
	}
	fields = append(fields, log.Int("status", resp.StatusCode), log.String("res_body", truncate(resBody)))

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		log.ErrorContext(req.Context(), "HTTP_CALL_FAILED", fields...)
	case elapsed > t.SlowThreshold:
		log.WarnContext(req.Context(), "HTTP_CALL_SLOW", fields...)
	default:
		log.DebugContext(req.Context(), "HTTP_CALL", fields...)
	}

	return resp, nil
}

func truncate(b []byte) string {
	s := string(b)
	if len(s) > bodyLimit {
		return s[:bodyLimit] + "...[truncated]"
	}
	return s
}
