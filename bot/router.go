package bot

import (
	"Muse/core"
	"Muse/lib/sl"
	"Muse/prompt"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	errorResponse        = "Sorry, I'm not feeling well today. Please try again later."
	timeoutResponse      = "The image is taking too long. Please try again later."
	marketErrorResponse  = "Sorry, market data is not available right now. Please try again later."
	disabledResponse     = "Image generation is not configured."
	saveFailedResponse   = "Sorry, I could not save your model. Please try again later."
	unknownResponse      = "Command not recognized."
	rejectedResponse     = "Please give a model name, for example /model inkpunk"
	modelSelectedPattern = "Model set to %s"
)

type ModelState interface {
	SelectedModel(ctx context.Context, chatId int64) string
	SetModel(ctx context.Context, chatId int64, model string) error
}

// Router turns one inbound text into replies. It owns reads and writes of the
// per-chat model selection; a generation request takes a copy of the model at
// build time, so later selections never touch a job in flight.
type Router struct {
	conf      *core.Config
	state     ModelState
	images    core.ImageService
	market    core.MarketService
	messenger core.Messenger
	catalog   Catalog
	log       *slog.Logger
}

// NewRouter wires the router; images may be nil when the provider is not configured
func NewRouter(
	conf *core.Config,
	state ModelState,
	images core.ImageService,
	market core.MarketService,
	messenger core.Messenger,
	log *slog.Logger,
) *Router {
	return &Router{
		conf:      conf,
		state:     state,
		images:    images,
		market:    market,
		messenger: messenger,
		catalog:   NewCatalog(conf.Generation.Models),
		log:       log.With(sl.Module("router")),
	}
}

func (r *Router) Classify(text string) Command {
	return Classify(text, r.catalog, !r.conf.Generation.AnyModel)
}

func (r *Router) Handle(ctx context.Context, chatId int64, text string) {
	cmd := r.Classify(text)
	r.log.With(
		sl.Chat(chatId),
		slog.String("command", cmd.Kind.String()),
		sl.Short("text", text, 50),
	).Info("incoming message")

	switch cmd.Kind {
	case CommandHelp:
		r.reply(chatId, r.helpText())
	case CommandSelectModel:
		r.selectModel(ctx, chatId, cmd.Model)
	case CommandRejected:
		r.reply(chatId, rejectedResponse)
	case CommandUnknown:
		r.reply(chatId, unknownResponse+"\n\n"+r.helpText())
	case CommandTop:
		r.top(ctx, chatId)
	default:
		r.generate(ctx, chatId, cmd.Text)
	}
}

// BuildRequest snapshots the chat's current model together with the parsed prompt
func (r *Router) BuildRequest(ctx context.Context, chatId int64, text string) core.GenerationRequest {
	p := prompt.Parse(text, r.conf.Generation.Delimiter)
	return core.GenerationRequest{
		ModelId:        r.state.SelectedModel(ctx, chatId),
		PositivePrompt: p.Positive,
		NegativePrompt: p.Negative,
	}
}

func (r *Router) selectModel(ctx context.Context, chatId int64, model string) {
	if err := r.state.SetModel(ctx, chatId, model); err != nil {
		r.log.With(sl.Chat(chatId)).Error("saving model", sl.Err(err))
		r.reply(chatId, saveFailedResponse)
		return
	}
	r.reply(chatId, fmt.Sprintf(modelSelectedPattern, model))
}

func (r *Router) generate(ctx context.Context, chatId int64, text string) {
	if r.images == nil {
		r.reply(chatId, disabledResponse)
		return
	}

	placeholderId := r.placeholder(chatId)
	req := r.BuildRequest(ctx, chatId, text)

	url, err := r.images.Generate(ctx, req)
	switch {
	case err == nil:
		r.finish(chatId, placeholderId, caption(req))
		if err = r.messenger.SendImage(chatId, url); err != nil {
			r.log.With(sl.Chat(chatId), slog.String("url", url)).Error("sending image", sl.Err(err))
			r.reply(chatId, url)
		}
	case core.IsTimeout(err):
		r.log.With(sl.Chat(chatId), slog.String("model", req.ModelId)).Warn("generation timed out", sl.Err(err))
		r.finish(chatId, placeholderId, timeoutResponse)
	default:
		r.log.With(sl.Chat(chatId), slog.String("model", req.ModelId)).Error("generating image", sl.Err(err))
		r.finish(chatId, placeholderId, errorResponse)
	}
}

func (r *Router) top(ctx context.Context, chatId int64) {
	placeholderId := r.placeholder(chatId)

	summary, err := r.market.TopProjects(ctx)
	if err != nil {
		r.log.With(sl.Chat(chatId)).Error("fetching market snapshot", sl.Err(err))
		r.finish(chatId, placeholderId, marketErrorResponse)
		return
	}
	r.finish(chatId, placeholderId, summary)
}

// placeholder returns 0 when the message could not be sent
func (r *Router) placeholder(chatId int64) int {
	messageId, err := r.messenger.SendText(chatId, r.conf.Placeholder)
	if err != nil {
		r.log.With(sl.Chat(chatId)).Error("sending placeholder", sl.Err(err))
		return 0
	}
	return messageId
}

// finish edits the placeholder in place, or sends a new message if there is none
func (r *Router) finish(chatId int64, placeholderId int, text string) {
	if placeholderId == 0 {
		r.reply(chatId, text)
		return
	}
	if err := r.messenger.EditText(chatId, placeholderId, text); err != nil {
		r.log.With(sl.Chat(chatId)).Error("editing placeholder", sl.Err(err))
		r.reply(chatId, text)
	}
}

func (r *Router) reply(chatId int64, text string) {
	if _, err := r.messenger.SendText(chatId, text); err != nil {
		r.log.With(sl.Chat(chatId)).Error("sending message", sl.Err(err))
	}
}

func (r *Router) helpText() string {
	var b strings.Builder
	b.WriteString(r.conf.HelpMessage)
	b.WriteString("\n\n")
	b.WriteString("/help - show this help\n")
	b.WriteString("/top - top projects by 24h volume\n")
	if r.images != nil {
		b.WriteString("/model <name> - choose an image model\n")
		if r.catalog.Len() > 0 {
			b.WriteString(strings.Join(r.catalog.Commands(), " ") + " - model shortcuts\n")
		}
		b.WriteString("Any other text is an image prompt, separate parts with \"" +
			r.conf.Generation.Delimiter + "\" and prefix unwanted ones with -")
	}
	return strings.TrimSpace(b.String())
}

func caption(req core.GenerationRequest) string {
	text := "Model: " + req.ModelId
	if req.PositivePrompt != "" {
		text += "\nPrompt: " + req.PositivePrompt
	}
	if req.NegativePrompt != "" {
		text += "\nNegative: " + req.NegativePrompt
	}
	return text
}
