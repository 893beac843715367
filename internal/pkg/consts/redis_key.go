package consts

const (
	GuestSessionKey = "chat:guest:session:"
	ChatBusKey      = "chat:bus:"
)
