package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type accessRecord struct {
	Time     string `json:"time"`
	Level    string `json:"level"`
	Msg      string `json:"msg"`
	TraceID  string `json:"trace_id,omitempty"`
	Index    string `json:"target_index"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	Status   int    `json:"status"`
	Latency  string `json:"latency"`
	ClientIP string `json:"client_ip"`
	UserID   string `json:"user_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SetupGin 访问日志与 Recovery；skipPaths 中的路径（探活、长连接）不记录
func SetupGin(r *gin.Engine, index string, skipPaths ...string) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    LogWriter,
		SkipPaths: skipPaths,
		Formatter: func(p gin.LogFormatterParams) string {
			return formatAccess(p, index)
		},
	}))

	r.Use(gin.Recovery())
}

func formatAccess(p gin.LogFormatterParams, index string) string {
	rec := accessRecord{
		Time:     p.TimeStamp.Format(time.RFC3339),
		Level:    "INFO",
		Msg:      "GIN_ACCESS",
		Index:    index,
		Method:   p.Method,
		Path:     p.Path,
		Status:   p.StatusCode,
		Latency:  p.Latency.String(),
		ClientIP: p.ClientIP,
		Error:    p.ErrorMessage,
	}
	if p.StatusCode >= 500 {
		rec.Level = "ERROR"
	}
	if p.Keys != nil {
		if id, ok := p.Keys[TraceIDKey].(string); ok {
			rec.TraceID = id
		}
		if uid, ok := p.Keys["user_id"].(string); ok {
			rec.UserID = uid
		}
	}
	if rec.TraceID == "" && p.Request != nil {
		rec.TraceID = TraceID(p.Request.Context())
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	return string(b) + "\n"
}
