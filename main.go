package main

import (
	"chatdigest/app/api"
	"chatdigest/app/client/openrouter"
	"chatdigest/app/client/speechkit"
	"chatdigest/app/client/telegram"
	"chatdigest/app/client/twitch"
	"chatdigest/app/client/twitch_irc"
	"chatdigest/app/config"
	"chatdigest/app/service/conversation"
	"chatdigest/app/service/gateway"
	"chatdigest/app/service/inference"
	"chatdigest/app/service/ingest"
	"chatdigest/app/service/queue"
	"chatdigest/app/service/summary"
	"chatdigest/app/util/mylog"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
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

	do.Provide(di, openrouter.NewClient)
	do.Provide(di, conversation.New)
	do.Provide(di, queue.New)
	do.Provide(di, summary.New)
	do.Provide(di, ingest.New)
	do.Provide(di, gateway.New)
	do.Provide(di, api.New)
	do.Provide(di, inference.New)

	if cfg.Yandex.SpeechKit.KeyFile != "" {
		do.Provide(di, speechkit.NewClient)
	}

	gw := do.MustInvoke[*gateway.Service](di)

	if cfg.Telegram != nil {
		do.Provide(di, telegram.NewClient)
		gw.Register(do.MustInvoke[*telegram.Client](di))
	}

	if cfg.Twitch != nil {
		do.Provide(di, twitch.NewClient)
		do.Provide(di, twitch_irc.NewClient)

		ircClient := do.MustInvoke[*twitch_irc.Client](di)
		gw.Register(ircClient)

		go do.MustInvoke[*twitch.Client](di).RunRefreshLoop(appCtx)
		go ircClient.RunRefreshLoop(appCtx)
	}

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go gw.Run(appCtx)
	go do.MustInvoke[*ingest.Service](di).Run(appCtx)

	go func() {
		if err := do.MustInvoke[*api.Service](di).Run(appCtx); err != nil {
			slog.Error("HTTP server stopped", "error", err)
			cancel()
		}
	}()

	<-appCtx.Done()
}
