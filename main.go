package main

import (
	"Artsy/ai"
	"Artsy/bot"
	"Artsy/core"
	"Artsy/lib/sl"
	"Artsy/provider"
	"Artsy/storage"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
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
	log := setupLogger(conf.Env)
	log.With(
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		slog.String("model", conf.Chat.Model),
		slog.Int("providers", len(conf.Providers)),
	).Info("starting artsy bot")

	maxTurns := conf.Session.MaxTurns
	idleTTL := time.Duration(conf.Session.IdleTTLHours) * time.Hour

	// Pick session storage; fall back to memory when Mongo is unreachable
	var store storage.SessionStore
	var memStore *storage.MemoryStore
	if conf.Mongo.Enabled {
		mongoURI := fmt.Sprintf("mongodb://%s:%s@%s:%s",
			conf.Mongo.User, conf.Mongo.Password,
			conf.Mongo.Host, conf.Mongo.Port)
		var err error
		store, err = storage.NewMongoStore(mongoURI, conf.Mongo.Database, maxTurns, idleTTL, log)
		if err != nil {
			log.With(
				slog.String("db", conf.Mongo.Database),
				slog.String("user", conf.Mongo.User),
				slog.String("host", conf.Mongo.Host),
			).Error("falling back to memory", sl.Err(err))
			memStore = storage.NewMemoryStore(maxTurns, idleTTL, log)
			store = memStore
		} else {
			log.Info("using MongoDB storage")
		}
	} else {
		memStore = storage.NewMemoryStore(maxTurns, idleTTL, log)
		store = memStore
		log.Info("using in-memory storage")
	}

	// Session eviction runs from startup, not lazily on first request;
	// the Mongo store expires sessions server-side instead
	if memStore != nil {
		memStore.StartSweeper(time.Duration(conf.Session.SweepMinutes) * time.Minute)
	}

	providers := conf.ProviderList()
	if len(providers) == 0 {
		log.Warn("no image providers configured, image requests will be refused")
	}
	orchestrator := provider.NewOrchestrator(providers, provider.NewExecutor(log), log)

	chat := ai.NewChat(conf, log, store)
	tgBot, err := bot.NewTgBot(conf, log)
	if err != nil {
		log.Error("creating telegram", sl.Err(err))
		return
	}

	tgBot.SetChat(chat)
	tgBot.SetImages(orchestrator)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in goroutine
	go func() {
		if err := tgBot.Start(); err != nil {
			log.Error("bot stopped with error", sl.Err(err))
		}
	}()

	log.Info("bot started")

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("received signal, shutting down", slog.String("signal", sig.String()))

	// Graceful shutdown
	tgBot.Stop()

	// Close storage connection and stop the sweeper
	if err := chat.Close(); err != nil {
		log.Error("error closing chat service", sl.Err(err))
	}

	log.Info("shutdown complete")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal, envDev:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
