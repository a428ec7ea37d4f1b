package ai

import (
	"Muse/core"
	"Muse/lib/sl"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type JobClient interface {
	StatusClient
	Submit(ctx context.Context, req core.GenerationRequest) (core.JobHandle, error)
}

// ImageGenerator runs one generation job from submission to the artifact url
type ImageGenerator struct {
	client JobClient
	poller *Poller
	log    *slog.Logger
}

func NewImageGenerator(conf *core.GenerationConfig, log *slog.Logger) *ImageGenerator {
	client := NewText2ImgClient(conf, log)
	return &ImageGenerator{
		client: client,
		poller: NewPoller(client, conf.PollAttempts, conf.PollInterval, log),
		log:    log.With(sl.Module("image-generator")),
	}
}

func (g *ImageGenerator) Generate(ctx context.Context, req core.GenerationRequest) (string, error) {
	log := g.log.With(
		slog.String("job", uuid.NewString()),
		slog.String("model", req.ModelId),
	)
	log.With(
		sl.Short("prompt", req.PositivePrompt, 50),
		sl.Short("negative", req.NegativePrompt, 50),
	).Info("submitting job")

	handle, err := g.client.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	log.Info("job accepted", slog.String("fetch_key", string(handle)))

	result, err := g.poller.Poll(ctx, handle)
	if err != nil {
		return "", err
	}
	if result.State != core.PollReady {
		return "", fmt.Errorf("job %s finished as %s", handle, result.State)
	}
	return result.Url, nil
}
