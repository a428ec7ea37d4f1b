package core

import "context"

// Messenger is the part of the chat transport the router talks to.
// Every call reports its own failure, callers decide what to do with it.
type Messenger interface {
	SendText(chatId int64, text string) (int, error)
	EditText(chatId int64, messageId int, text string) error
	SendImage(chatId int64, url string) error
}

type ImageService interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type MarketService interface {
	TopProjects(ctx context.Context) (string, error)
}
