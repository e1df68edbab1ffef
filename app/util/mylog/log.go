package mylog

import (
	"chatdigest/app/config"
	"context"
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// TelegramAttr marks a record for delivery to the operator chat.
const TelegramAttr = "telegram"

func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

func Init(cfg *config.Config) error {
	level := ParseLevel(cfg.Log.Level)

	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			shouldForward,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

func ParseLevel(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func shouldForward(_ context.Context, r slog.Record) bool {
	if r.Level >= slog.LevelError {
		return true
	}

	tagged := false

	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == TelegramAttr && attr.Value.Kind() == slog.KindBool && attr.Value.Bool() {
			tagged = true
			return false
		}

		return true
	})

	return tagged
}
