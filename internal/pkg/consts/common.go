package consts

const (
	DefaultPageSize         = 20
	DefaultConversationSize = 15
	MaxPageSize             = 100
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)
