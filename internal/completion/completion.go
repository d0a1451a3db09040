// Package completion sends a single utterance to an OpenAI-compatible chat
// completion endpoint and returns the reply text.
//
// Every call is stateless: the request carries the fixed system instruction
// and the one utterance, never earlier turns of the conversation.
package completion

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultBaseURL      = "https://openrouter.ai/api/v1"
	DefaultModel        = "openai/gpt-3.5-turbo"
	DefaultMaxTokens    = 1000
	DefaultTemperature  = 0.7
	DefaultSystemPrompt = "You are a helpful assistant providing information about PCOD and women's health."
)

// Config zero values select the defaults above. A zero Temperature means
// DefaultTemperature unless ZeroTemperature asks for a literal 0.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	MaxTokens       int64
	Temperature     float64
	ZeroTemperature bool
	SystemPrompt    string
	HTTPClient      *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 && !c.ZeroTemperature {
		c.Temperature = DefaultTemperature
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	return c
}

// Error is returned for every failed completion: transport failure, non-2xx
// status, undecodable payload or a reply without content.
type Error struct {
	Status int // HTTP status if the service answered, 0 otherwise
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	errNoChoices    = errors.New("no choices in response")
	errEmptyContent = errors.New("empty message content")
)

type Client struct {
	api openai.Client
	cfg Config
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		// one attempt per utterance
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api: openai.NewClient(opts...),
		cfg: cfg,
	}
}

func (c *Client) Complete(ctx context.Context, utterance string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.cfg.SystemPrompt),
			openai.UserMessage(utterance),
		},
		MaxTokens:   openai.Int(c.cfg.MaxTokens),
		Temperature: openai.Float(c.cfg.Temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &Error{Status: apiErr.StatusCode, Err: err}
		}
		return "", &Error{Err: fmt.Errorf("chat completion: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Status: http.StatusOK, Err: errNoChoices}
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &Error{Status: http.StatusOK, Err: errEmptyContent}
	}

	log.Debug("Completion ready", "model", c.cfg.Model, "chars", len(content))

	return content, nil
}
