package ai

import (
	"Muse/core"
	"Muse/lib/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errNotReady = errors.New("artifact not ready")

type StatusClient interface {
	Status(ctx context.Context, handle core.JobHandle) (core.PollResult, error)
}

// Poller checks a job a bounded number of times with a constant pause before
// every check. The provider has no callback, so the bound is what caps latency.
type Poller struct {
	client   StatusClient
	attempts int
	interval time.Duration
	newTimer func() backoff.Timer
	log      *slog.Logger
}

func NewPoller(client StatusClient, attempts int, interval time.Duration, log *slog.Logger) *Poller {
	if attempts < 1 {
		attempts = 1
	}
	return &Poller{
		client:   client,
		attempts: attempts,
		interval: interval,
		newTimer: func() backoff.Timer { return &clockTimer{} },
		log:      log.With(sl.Module("poller")),
	}
}

// Poll blocks until the job has an artifact url, the attempts run out or ctx is done.
// A failed status call ends the sequence, it is not retried.
func (p *Poller) Poll(ctx context.Context, handle core.JobHandle) (core.PollResult, error) {
	log := p.log.With(slog.String("fetch_key", string(handle)))
	timer := p.newTimer()

	if err := wait(ctx, timer, p.interval); err != nil {
		return core.Failed(err.Error()), err
	}

	attempt := 0
	var artifact string
	operation := func() error {
		attempt++
		result, err := p.client.Status(ctx, handle)
		if err != nil {
			return backoff.Permanent(err)
		}
		if result.State == core.PollReady && result.Url != "" {
			artifact = result.Url
			return nil
		}
		log.Debug("job pending", slog.Int("attempt", attempt), slog.Int("attempts", p.attempts))
		return errNotReady
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), uint64(p.attempts-1)),
		ctx,
	)
	err := backoff.RetryNotifyWithTimer(operation, b, nil, timer)

	switch {
	case err == nil:
		log.Info("job ready", slog.Int("attempt", attempt))
		return core.Ready(artifact), nil
	case errors.Is(err, errNotReady):
		log.Warn("job timed out", slog.Int("attempts", attempt))
		return core.Failed("timeout"), fmt.Errorf("%w after %d attempts", core.ErrTimeout, attempt)
	default:
		return core.Failed(err.Error()), err
	}
}

func wait(ctx context.Context, timer backoff.Timer, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer.Start(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// clockTimer is a backoff.Timer on top of time.Timer, one per poll sequence
type clockTimer struct {
	timer *time.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
