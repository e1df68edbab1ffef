package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log            Log             `yaml:"log"`
	HTTP           HTTP            `yaml:"http"`
	Inference      Inference       `yaml:"inference"`
	Summary        Summary         `yaml:"summary"`
	Queue          Queue           `yaml:"queue"`
	Telegram       *TelegramSource `yaml:"telegram"`
	Twitch         *Twitch         `yaml:"twitch"`
	Yandex         Yandex          `yaml:"yandex"`
	ReconnectDelay time.Duration   `yaml:"reconnect_delay" example:"3s"`
}

type Inference struct {
	// OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required,url"`
	// Bearer token, falls back to OPENROUTER_API_KEY
	Token string `yaml:"token" example:"sk-or-v1-abc123" validate:"required"`
	// Sent as HTTP-Referer
	Referer string `yaml:"referer" example:"http://localhost:3000"`
	// Sent as X-Title
	Title string `yaml:"title" example:"Chat Digest"`
	// Per request timeout
	Timeout time.Duration `yaml:"timeout" example:"60s"`
	// Target language for transcriptions, descriptions and summaries
	Language string `yaml:"language" example:"Portuguese"`

	Transcription Plan `yaml:"transcription" validate:"required,min=1,dive"`
	Description   Plan `yaml:"description" validate:"required,min=1,dive"`
	Summary       Plan `yaml:"summary" validate:"required,min=1,dive"`
}

// Plan is an ordered list of attempts for a single logical inference request.
type Plan []Attempt

type Attempt struct {
	Model string `yaml:"model" example:"google/gemini-2.0-flash-exp:free" validate:"required"`
	// Wait before this attempt, ignored for the first one
	Delay time.Duration `yaml:"delay" example:"3s"`
}

type Summary struct {
	// Number of most recent messages sent along with the prior summary
	Window int `yaml:"window" example:"20" validate:"gte=1"`
	// Whether the prior summary is part of the prompt
	CarryOver *bool `yaml:"carry_over" example:"true"`
	// Sender label for messages sent through the API
	SelfName string `yaml:"self_name" example:"Me"`
}

type Queue struct {
	Size int `yaml:"size" example:"256" validate:"gte=1"`
}

type HTTP struct {
	Listen    string `yaml:"listen" example:":3000"`
	StaticDir string `yaml:"static_dir" example:"public"`
}

type TelegramSource struct {
	// Bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789" validate:"required"`
	// Long polling timeout in seconds
	PollTimeout int `yaml:"poll_timeout" example:"30"`
}

type Twitch struct {
	// ClientID of the twitch application
	ClientID string `yaml:"client_id" example:"a1b2c3d4e5f6g7h8i9j0k1l2m3n4o5p" validate:"required"`
	// Client secret of the twitch application
	ClientSecret string `yaml:"client_secret" example:"abc123def456ghi789jkl012mno345pqr678stu901" validate:"required"`
	// Username of the bot account
	Username string `yaml:"username" example:"PogChamp123" validate:"required"`
	// Channel to listen to
	Channel string `yaml:"channel" example:"PogChamp123" validate:"required"`
	// User refresh token of the bot account
	RefreshToken string `yaml:"refresh_token" example:"v1.abc123def456ghi789jkl012mno345pqr678stu901vwx234yz567" validate:"required"`
}

type Yandex struct {
	SpeechKit SpeechKit `yaml:"speech_kit"`
}

type SpeechKit struct {
	// Service account key, SpeechKit is disabled when empty
	KeyFile string `yaml:"key_file" example:"service-account-key.json"`
	// Recognition languages
	Languages []string `yaml:"languages" example:"[pt-BR]"`
}

type Log struct {
	// debug, info, warn or error
	Level string `yaml:"level" example:"info" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

// CarryOverEnabled reports whether summaries fold over the previous one.
func (s Summary) CarryOverEnabled() bool {
	return s.CarryOver == nil || *s.CarryOver
}

func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultPath
	}

	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(result *Config) {
	if result.Log.Level == "" {
		result.Log.Level = "info"
	}
	if result.HTTP.Listen == "" {
		result.HTTP.Listen = ":3000"
	}
	if result.HTTP.StaticDir == "" {
		result.HTTP.StaticDir = "public"
	}
	if result.ReconnectDelay <= 0 {
		result.ReconnectDelay = 3 * time.Second
	}

	inf := &result.Inference
	if inf.BaseURL == "" {
		inf.BaseURL = "https://openrouter.ai/api/v1"
	}
	if inf.Token == "" {
		inf.Token = os.Getenv("OPENROUTER_API_KEY")
	}
	if inf.Referer == "" {
		inf.Referer = "http://localhost:3000"
	}
	if inf.Title == "" {
		inf.Title = "Chat Digest"
	}
	if inf.Timeout <= 0 {
		inf.Timeout = time.Minute
	}
	if inf.Language == "" {
		inf.Language = "Portuguese"
	}
	if len(inf.Transcription) == 0 {
		inf.Transcription = defaultMediaPlan()
	}
	if len(inf.Description) == 0 {
		inf.Description = defaultMediaPlan()
	}
	if len(inf.Summary) == 0 {
		inf.Summary = Plan{
			{Model: "x-ai/grok-4.1-fast:free"},
			{Model: "x-ai/grok-4.1-fast:free", Delay: 3 * time.Second},
			{Model: "google/gemini-2.0-flash-exp:free", Delay: 5 * time.Second},
		}
	}

	if result.Summary.Window == 0 {
		result.Summary.Window = 20
	}
	if result.Summary.SelfName == "" {
		result.Summary.SelfName = "Me"
	}

	if result.Queue.Size == 0 {
		result.Queue.Size = 256
	}

	if result.Telegram != nil && result.Telegram.PollTimeout <= 0 {
		result.Telegram.PollTimeout = 30
	}

	if len(result.Yandex.SpeechKit.Languages) == 0 {
		result.Yandex.SpeechKit.Languages = []string{"pt-BR"}
	}
}

func defaultMediaPlan() Plan {
	return Plan{
		{Model: "google/gemini-2.0-flash-exp:free"},
		{Model: "google/gemini-2.0-flash-exp:free", Delay: 3 * time.Second},
		{Model: "google/gemini-2.0-flash-exp:free", Delay: 6 * time.Second},
		{Model: "google/gemini-2.0-flash-thinking-exp:free", Delay: 5 * time.Second},
	}
}
