package store

import (
	"Concierge/internal/model"
	"strings"
	"unicode/utf8"
)

// HeightFunc 估算一条消息渲染后的像素高度
type HeightFunc func(m model.Message) float64

const (
	rowBase      = 36
	lineHeight   = 20
	charsPerLine = 48
	imageHeight  = 180
	fileHeight   = 28
)

// EstimateHeight 默认高度估算：基础行高 + 折行 + 附件
func EstimateHeight(m model.Message) float64 {
	h := float64(rowBase)
	if m.Content != "" {
		lines := 0
		for _, line := range strings.Split(m.Content, "\n") {
			lines += 1 + utf8.RuneCountInString(line)/charsPerLine
		}
		h += float64(lines * lineHeight)
	}
	switch m.MessageType {
	case model.KindImage:
		h += imageHeight
	case model.KindFile:
		h += fileHeight
	}
	return h
}

// viewport 可滚动消息窗格的几何状态
type viewport struct {
	scrollTop    float64
	clientHeight float64
	nearBottom   float64
	nearTop      float64
	autoScroll   bool
}

func (v *viewport) maxScroll(scrollHeight float64) float64 {
	if m := scrollHeight - v.clientHeight; m > 0 {
		return m
	}
	return 0
}

func (v *viewport) clamp(scrollHeight float64) {
	if v.scrollTop < 0 {
		v.scrollTop = 0
	}
	if m := v.maxScroll(scrollHeight); v.scrollTop > m {
		v.scrollTop = m
	}
}

func (v *viewport) toBottom(scrollHeight float64) {
	v.scrollTop = v.maxScroll(scrollHeight)
	v.autoScroll = true
}

func (v *viewport) distanceFromBottom(scrollHeight float64) float64 {
	return scrollHeight - v.clientHeight - v.scrollTop
}
