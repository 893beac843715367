package minio

import (
	"Concierge/internal/api/config"
	"Concierge/internal/pkg/attachment"
	"bytes"
	"context"
	"fmt"
	log "log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// Upload 上传附件到 MinIO，返回公开 URL
func (u *Uploader) Upload(ctx context.Context, sessionID string, f attachment.File) (string, error) {
	if u == nil || u.client == nil {
		return "", fmt.Errorf("minio client is not initialized")
	}
	objectName := ObjectName(sessionID, f.Name, time.Now())

	info, err := u.client.PutObject(ctx, u.cfg.Bucket, objectName, bytes.NewReader(f.Data), f.Size(), minio.PutObjectOptions{
		ContentType: f.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	log.InfoContext(ctx, "attachment uploaded", "sessionID", sessionID, "key", info.Key, "size", info.Size)
	return PublicURL(u.cfg, info.Key), nil
}

// ObjectName chat/<session>/2006/01/02/<uuid><ext>
func ObjectName(sessionID, fileName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(fileName))
	return "chat/" + sessionID + "/" + now.Format("2006/01/02/") + uuid.NewString() + ext
}

// PublicURL 获取文件的公共访问URL
func PublicURL(cfg config.MinIOConfig, objectName string) string {
	endpoint := cfg.PublicEndpoint
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	protocol := "http"
	if cfg.UseSSL {
		protocol = "https"
	}

	u := url.URL{
		Scheme: protocol,
		Host:   endpoint,
		Path:   "/" + cfg.Bucket + "/" + objectName,
	}
	return u.String()
}
