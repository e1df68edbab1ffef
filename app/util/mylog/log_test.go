package mylog

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}

	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestShouldForward(t *testing.T) {
	plain := slog.NewRecord(time.Now(), slog.LevelInfo, "plain", 0)
	if shouldForward(context.Background(), plain) {
		t.Error("plain info record must not be forwarded")
	}

	tagged := slog.NewRecord(time.Now(), slog.LevelInfo, "tagged", 0)
	tagged.AddAttrs(slog.Bool(TelegramAttr, true))
	if !shouldForward(context.Background(), tagged) {
		t.Error("tagged record must be forwarded")
	}

	failed := slog.NewRecord(time.Now(), slog.LevelError, "failed", 0)
	if !shouldForward(context.Background(), failed) {
		t.Error("error record must be forwarded")
	}
}
