package holder

import (
	"Muse/core"
	"Muse/lib/sl"
	"Muse/storage"
	"context"
	"fmt"
	"log/slog"
	"time"
)

const selectedModelKey = "selected_model"

// ConversationState is what the bot remembers about one chat
type ConversationState struct {
	ChatId        int64
	SelectedModel string
}

// StateManager reads and writes per-chat state. Read failures fall back to the
// default model, so a broken store never fails a turn.
type StateManager struct {
	storage      storage.KeyValueStore
	defaultModel string
	ttl          time.Duration
	log          *slog.Logger
}

func NewStateManager(store storage.KeyValueStore, defaultModel string, ttl time.Duration, log *slog.Logger) *StateManager {
	return &StateManager{
		storage:      store,
		defaultModel: defaultModel,
		ttl:          ttl,
		log:          log.With(sl.Module("state")),
	}
}

func stateKey(chatId int64, name string) string {
	return fmt.Sprintf("%d:%s", chatId, name)
}

// State returns the chat state with the selected model resolved
func (sm *StateManager) State(ctx context.Context, chatId int64) ConversationState {
	return ConversationState{
		ChatId:        chatId,
		SelectedModel: sm.SelectedModel(ctx, chatId),
	}
}

func (sm *StateManager) SelectedModel(ctx context.Context, chatId int64) string {
	key := stateKey(chatId, selectedModelKey)
	model, ok, err := sm.storage.Get(ctx, key)
	if err != nil {
		sm.log.With(sl.Chat(chatId)).Error("reading selected model, using default",
			sl.Err(&core.StateError{Op: "get", Key: key, Err: err}))
		return sm.defaultModel
	}
	if !ok || model == "" {
		return sm.defaultModel
	}
	return model
}

func (sm *StateManager) SetModel(ctx context.Context, chatId int64, model string) error {
	if model == "" {
		return fmt.Errorf("empty model identifier")
	}
	key := stateKey(chatId, selectedModelKey)
	if err := sm.storage.Set(ctx, key, model, sm.ttl); err != nil {
		return &core.StateError{Op: "set", Key: key, Err: err}
	}
	sm.log.With(
		sl.Chat(chatId),
		slog.String("model", model),
	).Info("model selected")
	return nil
}

func (sm *StateManager) DefaultModel() string {
	return sm.defaultModel
}

func (sm *StateManager) Close() error {
	return sm.storage.Close()
}
