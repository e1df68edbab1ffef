package speechkit

import (
	"chatdigest/app/client/openrouter"
	"chatdigest/app/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/do"
	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
	ycsdk "github.com/yandex-cloud/go-sdk"
	"github.com/yandex-cloud/go-sdk/iamkey"
	"golang.org/x/sync/errgroup"
)

const chunkSize = 32 * 1024

var containers = map[string]stt.ContainerAudio_ContainerAudioType{
	"audio/ogg":   stt.ContainerAudio_OGG_OPUS,
	"audio/opus":  stt.ContainerAudio_OGG_OPUS,
	"audio/mpeg":  stt.ContainerAudio_MP3,
	"audio/mp3":   stt.ContainerAudio_MP3,
	"audio/wav":   stt.ContainerAudio_WAV,
	"audio/x-wav": stt.ContainerAudio_WAV,
}

type stream interface {
	Send(*stt.StreamingRequest) error
	Recv() (*stt.StreamingResponse, error)
	CloseSend() error
}

type YandexSpeechKit struct {
	languages []string
	sdk       *ycsdk.SDK
}

func NewClient(di *do.Injector) (*YandexSpeechKit, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	keyBytes, err := os.ReadFile(cfg.Yandex.SpeechKit.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("could not read service account key: %w", err)
	}

	var key iamkey.Key
	if err = json.Unmarshal(keyBytes, &key); err != nil {
		return nil, fmt.Errorf("could not parse service account key: %w", err)
	}

	creds, err := ycsdk.ServiceAccountKey(&key)
	if err != nil {
		return nil, fmt.Errorf("could not create service account key: %w", err)
	}

	sdk, err := ycsdk.Build(ctx, ycsdk.Config{
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Yandex SDK: %w", err)
	}

	return &YandexSpeechKit{
		languages: cfg.Yandex.SpeechKit.Languages,
		sdk:       sdk,
	}, nil
}

func (y *YandexSpeechKit) Supports(mimeType string) bool {
	_, ok := containers[normalizeMime(mimeType)]
	return ok
}

// Recognize streams a whole voice note and returns the joined final utterances.
func (y *YandexSpeechKit) Recognize(ctx context.Context, media openrouter.Media) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := y.sdk.AI().STTV3().Recognizer().RecognizeStreaming(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create client: %w", err)
	}

	return recognize(ctx, client, media, y.languages)
}

func recognize(ctx context.Context, client stream, media openrouter.Media, languages []string) (string, error) {
	container, ok := containers[normalizeMime(media.MimeType)]
	if !ok {
		return "", fmt.Errorf("unsupported audio format %q", media.MimeType)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := client.Send(sessionOptions(container, languages)); err != nil {
			return fmt.Errorf("failed to send config: %w", err)
		}

		for offset := 0; offset < len(media.Data); offset += chunkSize {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}

			end := min(offset+chunkSize, len(media.Data))

			var req stt.StreamingRequest
			req.SetChunk(&stt.AudioChunk{
				Data: media.Data[offset:end],
			})

			if err := client.Send(&req); err != nil {
				return fmt.Errorf("failed to send chunk: %w", err)
			}
		}

		return client.CloseSend()
	})

	var utterances []string

	group.Go(func() error {
		for {
			res, err := client.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to receive stt: %w", err)
			}

			if text := bestAlternative(res.GetFinal()); text != "" {
				utterances = append(utterances, text)
			}
		}
	})

	if err := group.Wait(); err != nil {
		return "", err
	}

	return strings.Join(utterances, " "), nil
}

func sessionOptions(container stt.ContainerAudio_ContainerAudioType, languages []string) *stt.StreamingRequest {
	var audioFormatOpts stt.AudioFormatOptions
	audioFormatOpts.SetContainerAudio(&stt.ContainerAudio{
		ContainerAudioType: container,
	})

	var req stt.StreamingRequest
	req.SetSessionOptions(&stt.StreamingOptions{
		RecognitionModel: &stt.RecognitionModelOptions{
			Model:       "general",
			AudioFormat: &audioFormatOpts,
			LanguageRestriction: &stt.LanguageRestrictionOptions{
				RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
				LanguageCode:    languages,
			},
		},
	})

	return &req
}

func bestAlternative(update *stt.AlternativeUpdate) string {
	if update == nil {
		return ""
	}

	for _, alt := range update.Alternatives {
		text := strings.TrimSpace(alt.Text)
		if text != "" {
			return text
		}
	}

	return ""
}

func normalizeMime(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
