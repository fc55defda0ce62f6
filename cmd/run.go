package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/saiinc/lynxguard/internal/admin"
	"github.com/saiinc/lynxguard/internal/config"
	"github.com/saiinc/lynxguard/internal/content"
	"github.com/saiinc/lynxguard/internal/moderation"
	"github.com/saiinc/lynxguard/internal/quiet"
	"github.com/saiinc/lynxguard/internal/tenant"
	"github.com/saiinc/lynxguard/internal/transport/telegram"
)

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	store := content.NewFileStore(cfg.ContentDir)
	registry := tenant.NewRegistry(store)
	if err := registry.LoadAll(); err != nil {
		slog.Error("failed to load tenants", "error", err)
		os.Exit(1)
	}

	tr, err := telegram.NewTransport(cfg.Telegram.Token, cfg.Telegram.Proxy)
	if err != nil {
		slog.Error("failed to create telegram transport", "error", err)
		os.Exit(1)
	}

	sched, err := quiet.New(tr, registry, cfg.QuietHours)
	if err != nil {
		slog.Error("failed to create quiet-hours scheduler", "error", err)
		os.Exit(1)
	}
	sched.ReconcileAll()
	sched.Start()

	pipeline := moderation.NewPipeline(registry, tr, cfg.Admin.WarnKeyword)

	// reloadGlobal re-reads the config file and applies the hot fields:
	// admin vocabulary, warn keyword and the quiet-hours cron pair.
	// Token, proxy, content dir and timezone take effect on restart.
	var interpreter *admin.Interpreter
	reloadGlobal := func() error {
		fresh, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := fresh.Validate(); err != nil {
			return err
		}
		if fresh.Telegram.Token != cfg.Telegram.Token {
			slog.Warn("telegram token changed on disk, restart required to apply")
		}
		if fresh.QuietHours.Timezone != cfg.QuietHours.Timezone {
			slog.Warn("quiet-hours timezone changed on disk, restart required to apply")
		}
		if fresh.ContentDir != cfg.ContentDir {
			slog.Warn("content dir changed on disk, restart required to apply")
		}
		pipeline.SetWarnKeyword(fresh.Admin.WarnKeyword)
		interpreter.SetVocabulary(fresh.Admin)
		if err := sched.SetSchedule(fresh.QuietHours); err != nil {
			return err
		}
		cfg = fresh
		return nil
	}
	interpreter = admin.NewInterpreter(registry, tr, sched, cfg.Admin, reloadGlobal)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := content.NewWatcher(store, func(tenantID int64) {
		t, err := registry.LoadOne(tenantID)
		if err != nil {
			slog.Warn("hot reload failed", "tenant", tenantID, "error", err)
			return
		}
		if err := sched.Reconcile(t); err != nil {
			slog.Warn("hot reload reconcile failed", "tenant", tenantID, "error", err)
		}
	})
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("content watcher stopped", "error", err)
		}
	}()

	channel := telegram.NewChannel(tr, pipeline, interpreter, registry, cfg.Admin.OperatorChat)
	if err := channel.Start(ctx); err != nil {
		slog.Error("failed to start telegram channel", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	channel.Stop()
	sched.Stop()
	slog.Info("shutdown complete")
}
