package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/korjavin/intakebot/admin"
	"github.com/korjavin/intakebot/config"
	"github.com/korjavin/intakebot/cooldown"
	"github.com/korjavin/intakebot/database"
	"github.com/korjavin/intakebot/discord"
	"github.com/korjavin/intakebot/interview"
	"github.com/korjavin/intakebot/keylock"
	"github.com/korjavin/intakebot/platform"
	"github.com/korjavin/intakebot/review"
	"github.com/korjavin/intakebot/server"
	"github.com/korjavin/intakebot/session"
	"github.com/korjavin/intakebot/telegram"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.DateTime})))
	slog.Info("Starting intake bot...")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.DateTime,
		AddSource:  cfg.Debug,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Bot stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("Bot stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := database.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	template, err := config.LoadTemplate(cfg.CategoryTemplate)
	if err != nil {
		return err
	}

	var (
		guilds    = &keylock.Map{}
		sessions  = session.NewMemory()
		cooldowns = cooldown.New(store)
		admins    = admin.New(store, template, guilds)
	)

	// the front-end is started after the core it feeds is built
	var start func(engine *interview.Engine, workflow *review.Workflow) error
	var p platform.Platform

	switch cfg.Platform {
	case config.PlatformDiscord:
		s, err := discord.NewSession(cfg.DiscordToken)
		if err != nil {
			return err
		}
		p = discord.NewPlatform(s)
		start = func(engine *interview.Engine, workflow *review.Workflow) error {
			b := discord.New(s, cfg.DiscordAppID, engine, workflow, admins)
			if err := b.Open(ctx); err != nil {
				return err
			}
			slog.Info("Bot initialized successfully", "platform", cfg.Platform)
			<-ctx.Done()
			return b.Close()
		}
	case config.PlatformTelegram:
		api, err := telegram.NewAPI(cfg.TelegramToken, cfg.Debug)
		if err != nil {
			return err
		}
		p = telegram.NewPlatform(api)
		start = func(engine *interview.Engine, workflow *review.Workflow) error {
			slog.Info("Bot initialized successfully", "platform", cfg.Platform)
			telegram.New(api, engine, workflow, admins).Start(ctx)
			return nil
		}
	}

	engine := interview.New(store, sessions, cooldowns, p, guilds)
	workflow := review.New(store, p, guilds)

	if cfg.HTTPAddr != "" {
		srv := server.New(workflow, store, sessions, cfg.HTTPAPIKey)
		go func() {
			if err := srv.Listen(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http server shutdown", "err", err)
			}
		}()
	}

	return start(engine, workflow)
}
