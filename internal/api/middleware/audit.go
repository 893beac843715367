package middleware

import (
	"Concierge/internal/pkg/consts"
	"bytes"
	"io"
	log "log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
)

const auditBodyLimit = 16384

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r *responseBodyWriter) Write(b []byte) (int, error) {
	if r.body.Len() < auditBodyLimit {
		r.body.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

func (r *responseBodyWriter) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// AuditMiddleware 记录请求与响应；skipPaths（如实时通道升级）只记录请求行
func AuditMiddleware(skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if slices.Contains(skipPaths, c.Request.URL.Path) {
			log.InfoContext(ctx, "Recv Request",
				log.String("method", c.Request.Method),
				log.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		}

		log.InfoContext(ctx, "Recv Request",
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.String("query", redactQuery(c.Request.URL.Query())),
			log.String("req_body", truncateBody(reqBody)),
		)

		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w
		startTime := time.Now()

		c.Next()

		log.InfoContext(ctx, "Send Response",
			log.Int("status", c.Writer.Status()),
			log.Duration("latency", time.Since(startTime)),
			log.String("user_id", c.GetString(UserIDKey)),
			log.String("res_body", truncateBody(w.body.Bytes())),
		)
	}
}

func redactQuery(q url.Values) string {
	if q.Has(consts.TokenQueryParam) {
		q.Set(consts.TokenQueryParam, "***")
	}
	decoded, err := url.QueryUnescape(q.Encode())
	if err != nil {
		return q.Encode()
	}
	return decoded
}

func truncateBody(b []byte) string {
	if len(b) > auditBodyLimit {
		return string(b[:auditBodyLimit]) + "...[truncated]"
	}
	return string(b)
}
