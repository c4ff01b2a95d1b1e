package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filmbot/letterboxd-bot/internal/dedup"
	"github.com/filmbot/letterboxd-bot/internal/discord"
	"github.com/filmbot/letterboxd-bot/internal/guilds"
	"github.com/filmbot/letterboxd-bot/internal/health"
	"github.com/filmbot/letterboxd-bot/internal/letterboxd"
	"github.com/filmbot/letterboxd-bot/internal/lifecycle"
	"github.com/filmbot/letterboxd-bot/internal/poller"
	"github.com/filmbot/letterboxd-bot/internal/registry"
	"github.com/filmbot/letterboxd-bot/internal/scheduler"
	"github.com/filmbot/letterboxd-bot/internal/store"
	"github.com/filmbot/letterboxd-bot/pkg/config"
	"github.com/filmbot/letterboxd-bot/pkg/graceful"
	"github.com/filmbot/letterboxd-bot/pkg/logger"
	"github.com/filmbot/letterboxd-bot/pkg/metrics"
	appredis "github.com/filmbot/letterboxd-bot/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	sentryDSN := ""
	if cfg.Sentry.Enabled {
		sentryDSN = cfg.Sentry.DSN
	}
	log, logCleanup, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		SentryDSN:  sentryDSN,
		AppEnv:     cfg.AppEnv,
	})
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logCleanup()

	log.Info("starting letterboxd bot", "env", cfg.AppEnv)
	config.Watch(v, log)

	redisClient, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	kv := store.NewRedisStore(redisClient, log)
	lbx := letterboxd.NewClient(cfg.Letterboxd, log)
	reg := registry.New(kv, lbx, log)
	guildSvc := guilds.NewService(kv, log)
	delivered := dedup.NewCache(redisClient, cfg.Dedup.TTL, log)

	bot, err := discord.New(cfg.Discord, reg, guildSvc, log)
	if err != nil {
		log.Error("failed to build discord bot", "error", err)
		os.Exit(1)
	}

	notifier := discord.NewNotifier(bot.Session(), log)
	pol := poller.New(lbx, reg, log)
	sched := scheduler.New(cfg.Poller, guildSvc, reg, pol, notifier, delivered, log)

	if err := bot.Start(); err != nil {
		log.Error("failed to open discord session", "error", err)
		os.Exit(1)
	}

	if err := sched.Start(ctx); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector(sched, time.Minute)
	go collector.Run(ctx)

	checker := health.NewChecker(log)
	checker.AddCheck("redis", redisClient)
	checker.AddCheck("discord", health.NewSessionChecker(bot.Session()))

	mux := http.NewServeMux()
	mux.Handle("/healthz", checker.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	srv := graceful.NewServer(log, &http.Server{
		Addr:              ":" + port,
		Handler:           logger.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			log.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("scheduler", sched.Stop)
	shutdown.Register("discord", func(context.Context) error { return bot.Stop() })

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = shutdown.Execute(shutdownCtx)

	// after the pollers are drained
	if cerr := redisClient.Close(); cerr != nil {
		log.Error("error closing redis", "error", cerr)
	}
	if err != nil {
		log.Error("shutdown finished with errors", "error", err)
		os.Exit(1)
	}
}
