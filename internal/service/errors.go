package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrGuestNameRequired    = errors.New("访客需填写称呼")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrMessageEmpty         = errors.New("消息内容为空")
	ErrStatusInvalid        = errors.New("会话状态无效")
	UnauthorizedError       = errors.New("权限不足")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrGuestNameRequired:    BadRequest,
	ErrConversationNotFound: NotFound,
	ErrMessageEmpty:         BadRequest,
	ErrStatusInvalid:        BadRequest,
	UnauthorizedError:       Forbidden,
	UnExpectedError:         InternalServerError,
}
