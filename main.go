package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"awsbot/app/api"
	"awsbot/app/client/elevenlabs"
	"awsbot/app/client/llm"
	"awsbot/app/client/qdrant"
	"awsbot/app/client/speechkit"
	"awsbot/app/client/telegram"
	"awsbot/app/config"
	"awsbot/app/service/engine"
	"awsbot/app/service/memory"
	"awsbot/app/service/metrics"
	"awsbot/app/service/queue"
	"awsbot/app/service/tools"
	"awsbot/app/service/transcribe"
	"awsbot/app/service/workflow"
	"awsbot/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, metrics.New)
	do.Provide(di, llm.New)
	do.Provide(di, qdrant.New)
	do.Provide(di, elevenlabs.New)
	do.Provide(di, speechkit.NewClient)
	do.Provide(di, tools.New)
	do.Provide(di, workflow.New)
	do.Provide(di, memory.New)
	do.Provide(di, transcribe.New)
	do.Provide(di, queue.New)
	do.Provide(di, engine.New)
	do.Provide(di, api.New)
	if !cfg.Telegram.Disabled {
		do.Provide(di, telegram.NewClient)
	}

	engineSvc, err := do.Invoke[*engine.Service](di)
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}

	slog.Info("Service started", mylog.TelegramAttr, true)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	g, ctx := errgroup.WithContext(appCtx)

	if !cfg.Telegram.Disabled {
		tgClient, err := do.Invoke[*telegram.Client](di)
		if err != nil {
			log.Fatalf("telegram init failed: %v", err)
		}

		queueSvc := do.MustInvoke[*queue.Service](di)
		tgClient.SetListener(func(update telegram.Update) {
			queueSvc.Add(queue.Message{
				ConversationID: telegram.ConversationID(update.ChatID),
				ChatID:         update.ChatID,
				MessageID:      update.MessageID,
				Username:       update.Username,
				Text:           update.Text,
				VoiceFileID:    update.VoiceFileID,
			})
		})

		g.Go(func() error {
			return tgClient.Run(ctx)
		})
		g.Go(func() error {
			engineSvc.Run(ctx, tgClient)
			return nil
		})
	}

	if cfg.HTTP.Addr != "" {
		server := do.MustInvoke[*api.Server](di)
		g.Go(func() error {
			return server.Run(ctx)
		})
	}

	if err = g.Wait(); err != nil {
		slog.Error("Service failed", "error", err)
	}
}
