// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"pcodcare/internal/completion"
	"pcodcare/internal/ipc"
	"pcodcare/internal/voice/device"
)

// Config holds all application configuration.
type Config struct {
	Addr           string        `env:"PCODCARE_ADDR"            envDefault:":8080"`
	APIKey         string        `env:"OPENROUTER_API_KEY"`
	AllowedOrigins []string      `env:"PCODCARE_ALLOWED_ORIGINS" envSeparator:","`
	Proxy          string        `env:"PCODCARE_PROXY"`
	Socket         string        `env:"PCODCARE_SOCKET"          envDefault:"/tmp/pcodcare.sock"`
	Completion     Completion    `envPrefix:"PCODCARE_"`
	Voice          Voice         `envPrefix:"PCODCARE_VOICE_"`
	ShutdownGrace  time.Duration `env:"PCODCARE_SHUTDOWN_GRACE"  envDefault:"10s"`
}

type Completion struct {
	BaseURL      string        `env:"BASE_URL"      envDefault:"https://openrouter.ai/api/v1"`
	Model        string        `env:"MODEL"         envDefault:"openai/gpt-3.5-turbo"`
	MaxTokens    int64         `env:"MAX_TOKENS"    envDefault:"1000"`
	Temperature  float64       `env:"TEMPERATURE"   envDefault:"0.7"`
	SystemPrompt string        `env:"SYSTEM_PROMPT"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"60s"`
}

// Voice configures the local device. It is only used when Enabled.
type Voice struct {
	Enabled      bool          `env:"ENABLED"`
	WhisperModel string        `env:"WHISPER_MODEL" envDefault:"models/ggml-base.en.bin"`
	Language     string        `env:"LANGUAGE"      envDefault:"en"`
	Threads      int           `env:"THREADS"`
	MaxCapture   time.Duration `env:"MAX_CAPTURE"   envDefault:"15s"`
	CueSound     string        `env:"CUE_SOUND"`
	TTSVoice     string        `env:"TTS_VOICE"     envDefault:"en"`
	TTSRate      int           `env:"TTS_RATE"      envDefault:"175"`
	DuckFactor   float64       `env:"DUCK_FACTOR"   envDefault:"0.3"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("PCODCARE_ADDR cannot be empty")
	}
	if c.APIKey == "" {
		return errors.New("OPENROUTER_API_KEY not set")
	}
	if c.Completion.BaseURL == "" {
		return errors.New("PCODCARE_BASE_URL cannot be empty")
	}
	if c.Completion.Model == "" {
		return errors.New("PCODCARE_MODEL cannot be empty")
	}
	if c.Completion.MaxTokens <= 0 {
		return errors.New("PCODCARE_MAX_TOKENS must be > 0")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return errors.New("PCODCARE_TEMPERATURE must be within [0, 2]")
	}
	if c.Completion.Timeout < 0 {
		return errors.New("PCODCARE_TIMEOUT cannot be negative")
	}
	if c.Voice.Enabled {
		if c.Voice.WhisperModel == "" {
			return errors.New("PCODCARE_VOICE_WHISPER_MODEL cannot be empty")
		}
		if c.Voice.DuckFactor < 0 || c.Voice.DuckFactor > 1 {
			return errors.New("PCODCARE_VOICE_DUCK_FACTOR must be within [0, 1]")
		}
		if c.Socket == "" {
			return errors.New("PCODCARE_SOCKET cannot be empty")
		}
	}
	return nil
}

func (c *Config) CompletionConfig() completion.Config {
	return completion.Config{
		BaseURL:         c.Completion.BaseURL,
		APIKey:          c.APIKey,
		Model:           c.Completion.Model,
		MaxTokens:       c.Completion.MaxTokens,
		Temperature:     c.Completion.Temperature,
		ZeroTemperature: c.Completion.Temperature == 0, // an explicit 0 from the env
		SystemPrompt:    c.Completion.SystemPrompt,
	}
}

func (c *Config) DeviceConfig() device.Config {
	return device.Config{
		WhisperModel: c.Voice.WhisperModel,
		Language:     c.Voice.Language,
		Threads:      c.Voice.Threads,
		MaxCapture:   c.Voice.MaxCapture,
		CueSound:     c.Voice.CueSound,
		TTSVoice:     c.Voice.TTSVoice,
		TTSRate:      c.Voice.TTSRate,
		DuckFactor:   c.Voice.DuckFactor,
	}
}

func (c *Config) SocketPath() string {
	if c.Socket == "" {
		return ipc.DefaultSocketPath
	}
	return c.Socket
}
