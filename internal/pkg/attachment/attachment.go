package attachment

import (
	"Concierge/internal/api/config"
	"Concierge/internal/model"
	"Concierge/internal/pkg/util"
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrEmptyFile       = errors.New("附件为空")
	ErrFileTooLarge    = errors.New("附件超过大小限制")
	ErrTypeNotAllowed  = errors.New("不支持的附件类型")
	ErrMissingFileName = errors.New("附件缺少文件名")
)

// File 待发送的附件
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size 字节数
func (f File) Size() int64 { return int64(len(f.Data)) }

// Kind 附件对应的消息类型
func (f File) Kind() model.MessageKind { return model.KindForMime(f.ContentType) }

// Open 从本地路径读取附件并嗅探 MIME
func Open(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read attachment: %w", err)
	}
	return New(filepath.Base(path), "", data), nil
}

// New 构造附件，未提供 contentType 时按内容嗅探
func New(name, contentType string, data []byte) File {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return File{Name: name, ContentType: contentType, Data: data}
}

// Preparer 发送前的附件校验与预处理，全部在网络调用之前完成
type Preparer struct {
	maxSize      int64
	allowed      []string
	maxDimension int
}

// NewPreparer 按配置构造
func NewPreparer(cfg config.AttachmentConfig) *Preparer {
	return &Preparer{
		maxSize:      cfg.MaxSize,
		allowed:      cfg.AllowedPrefixes,
		maxDimension: cfg.MaxDimension,
	}
}

// Validate 校验文件名、大小与类型
func (p *Preparer) Validate(f File) error {
	if f.Name == "" {
		return ErrMissingFileName
	}
	if f.Size() == 0 {
		return ErrEmptyFile
	}
	if p.maxSize > 0 {
		if err := util.ValidateVar(f.Size(), fmt.Sprintf("lte=%d", p.maxSize)); err != nil {
			return fmt.Errorf("%w: %d > %d", ErrFileTooLarge, f.Size(), p.maxSize)
		}
	}
	if !p.allowedType(f.ContentType) {
		return fmt.Errorf("%w: %s", ErrTypeNotAllowed, f.ContentType)
	}
	return nil
}

// Prepare 校验后对超出尺寸的图片等比缩放
func (p *Preparer) Prepare(f File) (File, error) {
	if err := p.Validate(f); err != nil {
		return File{}, err
	}
	if f.Kind() != model.KindImage || p.maxDimension <= 0 {
		return f, nil
	}
	return p.downscale(f)
}

func (p *Preparer) allowedType(contentType string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	for _, prefix := range p.allowed {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

func (p *Preparer) downscale(f File) (File, error) {
	format, err := imaging.FormatFromFilename(f.Name)
	if err != nil {
		// 无法识别扩展名的图片原样上传
		return f, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return f, nil
	}
	if cfg.Width <= p.maxDimension && cfg.Height <= p.maxDimension {
		return f, nil
	}

	img, err := imaging.Decode(bytes.NewReader(f.Data), imaging.AutoOrientation(true))
	if err != nil {
		return File{}, fmt.Errorf("decode image: %w", err)
	}
	img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, img, format); err != nil {
		return File{}, fmt.Errorf("encode image: %w", err)
	}
	return File{Name: f.Name, ContentType: f.ContentType, Data: buf.Bytes()}, nil
}
