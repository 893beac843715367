package consts

// 实时通道目的地
const (
	TopicChatPrefix       = "/topic/chat/"
	TopicTypingSuffix     = "/typing"
	DestSendMessage       = "/app/chat.send"
	DestTypingPrefix      = "/app/chat.typing/"
	AuthorizationHeader   = "Authorization"
	BearerPrefix          = "Bearer "
	TokenQueryParam       = "token"
	LiveChannelPath       = "/ws"
	LiveChannelBufferSize = 256
)
