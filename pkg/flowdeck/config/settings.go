package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FLOWDECK"

// Settings is the process configuration of the flowdeck server.
type Settings struct {
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT" validate:"oneof=development staging testing production"`

	HTTP          HTTPSettings          `yaml:"http" envconfig:"HTTP"`
	Log           LogSettings           `yaml:"log" envconfig:"LOG"`
	Store         StoreSettings         `yaml:"store" envconfig:"STORE"`
	Redis         RedisSettings         `yaml:"redis" envconfig:"REDIS"`
	RateLimit     RateLimitSettings     `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Flowise       FlowiseSettings       `yaml:"flowise" envconfig:"FLOWISE"`
	OpenAI        OpenAISettings        `yaml:"openai" envconfig:"OPENAI"`
	Voice         VoiceSettings         `yaml:"voice" envconfig:"VOICE"`
	Dispatch      DispatchSettings      `yaml:"dispatch" envconfig:"DISPATCH"`
	Observability ObservabilitySettings `yaml:"observability" envconfig:"OBSERVABILITY"`
}

// HTTPSettings configures the API listener.
type HTTPSettings struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gte=0"`
}

// LogSettings configures the slog handler.
type LogSettings struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// StoreSettings selects and configures the flow store.
type StoreSettings struct {
	Driver      string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=sqlite postgres memory"`
	SQLitePath  string `yaml:"sqlite_path" envconfig:"SQLITE_PATH" validate:"required_if=Driver sqlite"`
	PostgresURL string `yaml:"postgres_url" envconfig:"POSTGRES_URL" validate:"required_if=Driver postgres"`
}

// RedisSettings configures the Redis connection used for rate limiting.
// An empty URL selects the in-process limiter.
type RedisSettings struct {
	URL          string        `yaml:"url" envconfig:"URL"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	DialTimeout  time.Duration `yaml:"dial_timeout" envconfig:"DIAL_TIMEOUT"`
}

// RateLimitSettings holds per-kind daily quotas.
type RateLimitSettings struct {
	Window  time.Duration `yaml:"window" envconfig:"WINDOW" validate:"gt=0"`
	Flow    int           `yaml:"flow" envconfig:"FLOW" validate:"gt=0"`
	Chat    int           `yaml:"chat" envconfig:"CHAT" validate:"gt=0"`
	AIPhone int           `yaml:"aiphone" envconfig:"AIPHONE" validate:"gt=0"`
	ChatAPI int           `yaml:"chat_api" envconfig:"CHAT_API" validate:"gt=0"`
}

// FlowiseSettings points at the hosted LLM orchestration service.
type FlowiseSettings struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	APIKey         string        `yaml:"api_key" envconfig:"API_KEY"`
	PromptFlowID   string        `yaml:"prompt_flow_id" envconfig:"PROMPT_FLOW_ID"`
	DocumentFlowID string        `yaml:"document_flow_id" envconfig:"DOCUMENT_FLOW_ID"`
	CSVFlowID      string        `yaml:"csv_flow_id" envconfig:"CSV_FLOW_ID"`
	URLFlowID      string        `yaml:"url_flow_id" envconfig:"URL_FLOW_ID"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gte=0"`
}

// OpenAISettings configures the streaming chat endpoint.
type OpenAISettings struct {
	APIKey  string `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	Model   string `yaml:"model" envconfig:"MODEL"`
}

// VoiceSettings configures the voice-call provider.
type VoiceSettings struct {
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	APIKey  string `yaml:"api_key" envconfig:"API_KEY"`
}

// DispatchSettings tunes the execution dispatcher.
type DispatchSettings struct {
	RequireStructure bool `yaml:"require_structure" envconfig:"REQUIRE_STRUCTURE"`
}

// ObservabilitySettings toggles OpenTelemetry instrumentation.
// With Exporter "none" the SDK still aggregates in process, which only helps
// an embedding program that reads the global providers itself.
type ObservabilitySettings struct {
	Metrics        bool          `yaml:"metrics" envconfig:"METRICS"`
	Tracing        bool          `yaml:"tracing" envconfig:"TRACING"`
	Exporter       string        `yaml:"exporter" envconfig:"EXPORTER" validate:"oneof=none stdout"`
	ExportInterval time.Duration `yaml:"export_interval" envconfig:"EXPORT_INTERVAL" validate:"gte=0"`
}

// DefaultSettings returns the settings used when nothing overrides them.
func DefaultSettings() Settings {
	return Settings{
		Environment: "development",
		HTTP: HTTPSettings{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "json",
		},
		Store: StoreSettings{
			Driver:     "sqlite",
			SQLitePath: "./flowdeck.db",
		},
		Redis: RedisSettings{
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			DialTimeout:  5 * time.Second,
		},
		RateLimit: RateLimitSettings{
			Window:  24 * time.Hour,
			Flow:    50,
			Chat:    50,
			AIPhone: 50,
			ChatAPI: 200,
		},
		Flowise: FlowiseSettings{
			Timeout: 2 * time.Minute,
		},
		OpenAI: OpenAISettings{
			Model: "gpt-3.5-turbo",
		},
		Observability: ObservabilitySettings{
			Exporter:       "none",
			ExportInterval: time.Minute,
		},
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// SlogLevel maps Log.Level to a slog.Level.
func (s Settings) SlogLevel() slog.Level {
	switch s.Log.Level {
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

// Load builds Settings from defaults, the YAML file at path (skipped when path
// is empty), a .env file in the working directory if present, and finally
// FLOWDECK_* environment variables.
func Load(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("process environment: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
