package bot

import (
	"Muse/core"
	"Muse/lib/sl"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

const chatActionInterval = 5 * time.Second

type Handler interface {
	Handle(ctx context.Context, chatId int64, text string)
}

// TgBot receives Telegram updates and implements core.Messenger on top of the Bot API.
// Every message is handled in its own goroutine, so two messages from one chat
// may run two generation jobs at the same time.
type TgBot struct {
	conf        *core.Config
	api         *tgbotapi.BotAPI
	handler     Handler
	botUsername string
	log         *slog.Logger
	wg          sync.WaitGroup
}

func NewTgBot(conf *core.Config, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		conf:        conf,
		botUsername: conf.Username,
		log:         log.With(sl.Module("tgbot")),
	}

	api, err := tgbotapi.NewBotAPI(conf.TelegramApiKey)
	if err != nil {
		return nil, err
	}
	tgBot.api = api
	if tgBot.botUsername == "" {
		tgBot.botUsername = api.Self.UserName
	}

	return tgBot, nil
}

// SetHandler set the handler for incoming messages
func (t *TgBot) SetHandler(handler Handler) {
	t.handler = handler
}

// Start blocks until ctx is done or the update channel is closed
func (t *TgBot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates, err := t.api.GetUpdatesChan(u)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.dispatch(ctx, update)
		}
	}
}

// Stop stops receiving updates and waits for turns in progress
func (t *TgBot) Stop() {
	t.api.StopReceivingUpdates()
	t.wg.Wait()
}

func (t *TgBot) dispatch(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		return
	}

	incoming := update.Message
	chat := incoming.Chat
	text := incoming.Text
	if strings.TrimSpace(text) == "" {
		return
	}

	if !incoming.IsCommand() && !chat.IsPrivate() && !t.isMentioned(text) && !t.isReplyToBot(incoming) {
		return
	}
	if t.isMentioned(text) {
		text = strings.TrimSpace(strings.ReplaceAll(text, "@"+t.botUsername, ""))
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		stop := t.keepChatAction(chat.ID, tgbotapi.ChatTyping)
		defer stop()
		t.handler.Handle(ctx, chat.ID, text)
	}()
}

// keepChatAction repeats the chat action until the returned func is called
func (t *TgBot) keepChatAction(chatId int64, action string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(chatActionInterval)
		defer ticker.Stop()

		t.sendChatAction(chatId, action)
		for {
			select {
			case <-ticker.C:
				t.sendChatAction(chatId, action)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func (t *TgBot) sendChatAction(chatId int64, action string) {
	if _, err := t.api.Send(tgbotapi.NewChatAction(chatId, action)); err != nil {
		t.log.With(sl.Chat(chatId)).Debug("sending chat action", sl.Err(err))
	}
}

func (t *TgBot) SendText(chatId int64, text string) (int, error) {
	msg, err := t.api.Send(tgbotapi.NewMessage(chatId, text))
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (t *TgBot) EditText(chatId int64, messageId int, text string) error {
	_, err := t.api.Send(tgbotapi.NewEditMessageText(chatId, messageId, text))
	return err
}

// SendImage lets Telegram fetch the picture by its url
func (t *TgBot) SendImage(chatId int64, url string) error {
	_, err := t.api.Send(tgbotapi.NewPhotoShare(chatId, url))
	return err
}

// detect if we are mentioned in the message
func (t *TgBot) isMentioned(text string) bool {
	if t.botUsername != "" {
		return strings.Contains(text, "@"+t.botUsername)
	}
	return false
}

// detect if message is a reply to a message from the bot
func (t *TgBot) isReplyToBot(message *tgbotapi.Message) bool {
	if message.ReplyToMessage != nil && message.ReplyToMessage.From != nil {
		return message.ReplyToMessage.From.UserName == t.botUsername
	}
	return false
}
