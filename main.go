package main

import (
	"Muse/ai"
	"Muse/bot"
	"Muse/core"
	"Muse/holder"
	"Muse/lib/sl"
	"Muse/market"
	"Muse/storage"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	slogmulti "github.com/samber/slog-multi"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	conf := core.MustLoad(*configPath)
	log, closeLog := setupLogger(conf.Env, conf.LogFile)
	defer func() {
		_ = closeLog()
	}()
	log.With(
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		slog.String("default_model", conf.Generation.DefaultModel),
	).Info("starting muse bot")

	// Initialize storage based on config
	var store storage.KeyValueStore
	if conf.Mongo.Enabled {
		var err error
		store, err = storage.NewMongoStore(conf.Mongo.Uri(), conf.Mongo.Database, log)
		if err != nil {
			log.With(
				slog.String("db", conf.Mongo.Database),
				slog.String("user", conf.Mongo.User),
				slog.String("host", conf.Mongo.Host),
			).Error("falling back to memory", sl.Err(err))
			store = storage.NewMemoryStore()
		} else {
			log.Info("using MongoDB storage")
		}
	} else {
		store = storage.NewMemoryStore()
		log.Info("using in-memory storage")
	}
	state := holder.NewStateManager(store, conf.Generation.DefaultModel, conf.StateTTL, log)

	var images core.ImageService
	if conf.Generation.Enabled() {
		images = ai.NewImageGenerator(&conf.Generation, log)
		log.With(
			slog.String("provider", conf.Generation.BaseUrl),
			sl.Secret(conf.Generation.ApiKey),
			slog.Int("poll_attempts", conf.Generation.PollAttempts),
			slog.Duration("poll_interval", conf.Generation.PollInterval),
		).Info("image generation enabled")
	} else {
		log.Warn("image generation disabled: provider url or api key is empty")
	}

	tgBot, err := bot.NewTgBot(conf, log)
	if err != nil {
		log.Error("creating telegram", sl.Err(err))
		_ = state.Close()
		return
	}

	router := bot.NewRouter(conf, state, images, market.NewFetcher(&conf.Market, log), tgBot, log)
	tgBot.SetHandler(router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in goroutine
	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Error("bot stopped with error", sl.Err(err))
		}
	}()

	log.Info("bot started")

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("received signal, shutting down", slog.String("signal", sig.String()))

	// Graceful shutdown, jobs in flight see a cancelled context
	cancel()
	tgBot.Stop()

	// Close storage connection
	if err := state.Close(); err != nil {
		log.Error("error closing storage", sl.Err(err))
	}

	log.Info("shutdown complete")
}

// setupLogger writes text to stdout and, when logFile is set, JSON to that file as well
func setupLogger(env, logFile string) (*slog.Logger, func() error) {
	level := slog.LevelInfo
	switch env {
	case envLocal, envDev:
		level = slog.LevelDebug
	case envProd:
		level = slog.LevelInfo
	}

	return newLogger(os.Stdout, logFile, level)
}

func newLogger(stdout io.Writer, logFile string, level slog.Level) (*slog.Logger, func() error) {
	textHandler := slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level})
	if logFile == "" {
		return slog.New(textHandler), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log := slog.New(textHandler)
		log.Error("opening log file, using stdout only", sl.Err(err), slog.String("file", logFile))
		return log, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(textHandler, fileHandler)), file.Close
}
