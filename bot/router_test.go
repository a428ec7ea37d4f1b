package bot

import (
	"Muse/core"
	"Muse/holder"
	"Muse/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatId int64
	id     int
	text   string
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextId   int
	sent     []sentMessage
	edits    []sentMessage
	images   []string
	sendErr  error
	editErr  error
	imageErr error
}

func (m *fakeMessenger) SendText(chatId int64, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextId++
	m.sent = append(m.sent, sentMessage{chatId: chatId, id: m.nextId, text: text})
	return m.nextId, nil
}

func (m *fakeMessenger) EditText(chatId int64, messageId int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, sentMessage{chatId: chatId, id: messageId, text: text})
	return nil
}

func (m *fakeMessenger) SendImage(_ int64, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.imageErr != nil {
		return m.imageErr
	}
	m.images = append(m.images, url)
	return nil
}

func (m *fakeMessenger) lastText() string {
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].text
}

type fakeImages struct {
	requests []core.GenerationRequest
	url      string
	err      error
}

func (f *fakeImages) Generate(_ context.Context, req core.GenerationRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.url, f.err
}

type fakeMarket struct {
	summary string
	err     error
}

func (f *fakeMarket) TopProjects(context.Context) (string, error) {
	return f.summary, f.err
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConf() *core.Config {
	return &core.Config{
		Placeholder: "Typing ...",
		HelpMessage: "Type command /top to see what's hot!",
		Generation: core.GenerationConfig{
			DefaultModel: "stable-diffusion-v1-5",
			Models:       []string{"stable-diffusion-v1-5", "inkpunk", "anything-v4"},
			Delimiter:    ",",
		},
	}
}

type routerFixture struct {
	router    *Router
	messenger *fakeMessenger
	images    *fakeImages
	market    *fakeMarket
	state     *holder.StateManager
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	conf := testConf()
	f := &routerFixture{
		messenger: &fakeMessenger{},
		images:    &fakeImages{url: "https://cdn.example/out.png"},
		market:    &fakeMarket{summary: "Name: Axie\nAddress: 0x1\nPrice: 6.25"},
		state:     holder.NewStateManager(storage.NewMemoryStore(), conf.Generation.DefaultModel, 0, discardLogger()),
	}
	f.router = NewRouter(conf, f.state, f.images, f.market, f.messenger, discardLogger())
	return f
}

func TestHelp(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), 1, "/start")

	require.Len(t, f.messenger.sent, 1)
	help := f.messenger.lastText()
	assert.Contains(t, help, "Type command /top to see what's hot!")
	assert.Contains(t, help, "/model <name>")
	assert.Contains(t, help, "/inkpunk")
	assert.Contains(t, help, "/stable_diffusion_v1_5")
}

func TestSelectModelThenGenerate(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	f.router.Handle(ctx, 1, "/inkpunk")
	assert.Equal(t, "Model set to inkpunk", f.messenger.lastText())

	f.router.Handle(ctx, 1, "a cat, -blurry")
	f.router.Handle(ctx, 1, "a dog")

	require.Len(t, f.images.requests, 2)
	assert.Equal(t, core.GenerationRequest{
		ModelId:        "inkpunk",
		PositivePrompt: "a cat",
		NegativePrompt: "blurry",
	}, f.images.requests[0])
	assert.Equal(t, "inkpunk", f.images.requests[1].ModelId)

	f.router.Handle(ctx, 1, "/model anything_v4")
	f.router.Handle(ctx, 1, "a bird")
	assert.Equal(t, "anything-v4", f.images.requests[2].ModelId)
}

func TestGenerateUsesDefaultModel(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), 5, "castle at night")

	require.Len(t, f.images.requests, 1)
	assert.Equal(t, "stable-diffusion-v1-5", f.images.requests[0].ModelId)
}

func TestGenerateRepliesWithPlaceholderAndImage(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), 7, "a cat, -blurry")

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "Typing ...", f.messenger.sent[0].text)
	require.Len(t, f.messenger.edits, 1)
	assert.Equal(t, f.messenger.sent[0].id, f.messenger.edits[0].id)
	assert.Equal(t, "Model: stable-diffusion-v1-5\nPrompt: a cat\nNegative: blurry", f.messenger.edits[0].text)
	assert.Equal(t, []string{"https://cdn.example/out.png"}, f.messenger.images)
}

func TestGenerateTimeout(t *testing.T) {
	f := newRouterFixture(t)
	f.images.err = fmt.Errorf("%w after 12 attempts", core.ErrTimeout)

	f.router.Handle(context.Background(), 7, "a cat")

	require.Len(t, f.messenger.edits, 1)
	assert.Equal(t, timeoutResponse, f.messenger.edits[0].text)
	assert.Empty(t, f.messenger.images)
}

func TestGenerateSubmissionError(t *testing.T) {
	f := newRouterFixture(t)
	f.images.err = &core.SubmissionError{Reason: "response has no data.fetchKey"}

	f.router.Handle(context.Background(), 7, "a cat")

	require.Len(t, f.messenger.edits, 1)
	assert.Equal(t, errorResponse, f.messenger.edits[0].text)
	assert.Empty(t, f.messenger.images)
}

func TestGenerateDisabled(t *testing.T) {
	conf := testConf()
	messenger := &fakeMessenger{}
	state := holder.NewStateManager(storage.NewMemoryStore(), "stable-diffusion-v1-5", 0, discardLogger())
	router := NewRouter(conf, state, nil, &fakeMarket{}, messenger, discardLogger())

	router.Handle(context.Background(), 1, "a cat")

	assert.Equal(t, disabledResponse, messenger.lastText())
}

func TestImageSendFailureFallsBackToUrl(t *testing.T) {
	f := newRouterFixture(t)
	f.messenger.imageErr = errors.New("wrong file identifier")

	f.router.Handle(context.Background(), 7, "a cat")

	assert.Equal(t, "https://cdn.example/out.png", f.messenger.lastText())
}

func TestPlaceholderFailureDoesNotAbortTurn(t *testing.T) {
	f := newRouterFixture(t)
	f.messenger.sendErr = errors.New("bot was blocked by the user")

	f.router.Handle(context.Background(), 7, "a cat")

	require.Len(t, f.images.requests, 1)
	assert.Empty(t, f.messenger.edits, "nothing to edit without a placeholder")
	assert.Equal(t, []string{"https://cdn.example/out.png"}, f.messenger.images)
}

func TestEditFailureSendsNewMessage(t *testing.T) {
	f := newRouterFixture(t)
	f.messenger.editErr = errors.New("message to edit not found")

	f.router.Handle(context.Background(), 7, "/top")

	require.Len(t, f.messenger.sent, 2)
	assert.Equal(t, "Name: Axie\nAddress: 0x1\nPrice: 6.25", f.messenger.sent[1].text)
}

func TestSelectModelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	f.router.Handle(ctx, 3, "/inkpunk")
	f.router.Handle(ctx, 3, "/inkpunk")

	assert.Equal(t, "inkpunk", f.state.SelectedModel(ctx, 3))
	require.Len(t, f.messenger.sent, 2)
	assert.Equal(t, "Model set to inkpunk", f.messenger.sent[1].text)
}

func TestRejectedAndUnknownDoNotChangeState(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	f.router.Handle(ctx, 3, "/inkpunk")

	f.router.Handle(ctx, 3, "/model")
	assert.Equal(t, rejectedResponse, f.messenger.lastText())

	f.router.Handle(ctx, 3, "/dreamshaper")
	assert.Contains(t, f.messenger.lastText(), unknownResponse)
	assert.Contains(t, f.messenger.lastText(), "/top")

	assert.Equal(t, "inkpunk", f.state.SelectedModel(ctx, 3))
	assert.Empty(t, f.images.requests)
}

func TestSelectionsArePerChat(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	f.router.Handle(ctx, 1, "/inkpunk")
	f.router.Handle(ctx, 2, "a cat")

	require.Len(t, f.images.requests, 1)
	assert.Equal(t, "stable-diffusion-v1-5", f.images.requests[0].ModelId)
}

func TestBrokenStore(t *testing.T) {
	ctx := context.Background()
	conf := testConf()
	messenger := &fakeMessenger{}
	images := &fakeImages{url: "https://cdn.example/out.png"}
	state := holder.NewStateManager(brokenStore{}, conf.Generation.DefaultModel, 0, discardLogger())
	router := NewRouter(conf, state, images, &fakeMarket{}, messenger, discardLogger())

	router.Handle(ctx, 1, "/inkpunk")
	assert.Equal(t, saveFailedResponse, messenger.lastText())

	router.Handle(ctx, 1, "a cat")
	require.Len(t, images.requests, 1)
	assert.Equal(t, "stable-diffusion-v1-5", images.requests[0].ModelId, "store failures fall back to the default model")
}

func TestTop(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), 9, "/top")

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "Typing ...", f.messenger.sent[0].text)
	require.Len(t, f.messenger.edits, 1)
	assert.Equal(t, "Name: Axie\nAddress: 0x1\nPrice: 6.25", f.messenger.edits[0].text)
	assert.Empty(t, f.images.requests)
}

func TestTopFetchError(t *testing.T) {
	f := newRouterFixture(t)
	f.market.err = &core.FetchError{Reason: "response has no data.data array"}

	f.router.Handle(context.Background(), 9, "/top")

	require.Len(t, f.messenger.edits, 1)
	assert.Equal(t, marketErrorResponse, f.messenger.edits[0].text)
}

func TestBuildRequestSnapshotsModel(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	require.NoError(t, f.state.SetModel(ctx, 4, "inkpunk"))

	req := f.router.BuildRequest(ctx, 4, "a cat, -blurry")
	require.NoError(t, f.state.SetModel(ctx, 4, "anything-v4"))

	assert.Equal(t, "inkpunk", req.ModelId)
	assert.Equal(t, "a cat", req.PositivePrompt)
	assert.Equal(t, "blurry", req.NegativePrompt)
}
