package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/Kotoba/common/redact"
	"github.com/bdobrica/Kotoba/common/version"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultTimeout = 60 * time.Second
	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 64 << 10
)

// ErrEmptyReply is returned when the provider answers with no choices.
var ErrEmptyReply = errors.New("nlp: provider returned no reply")

// Config configures the OpenAI-compatible gateway.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Any OpenAI-compatible server works
	// (Groq, OpenAI, Ollama). Defaults to the Groq endpoint.
	BaseURL string

	// Timeout is the HTTP client timeout. Defaults to 60 s. Per-generation
	// deadlines are set through the context instead.
	Timeout time.Duration

	// HTTPClient replaces the default client, mainly for tests.
	HTTPClient *http.Client
}

// openAIGateway implements Gateway using the chat completions API.
type openAIGateway struct {
	cfg    Config
	client *http.Client
}

// NewOpenAI returns a Gateway backed by an OpenAI-compatible chat API.
func NewOpenAI(cfg Config) Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &openAIGateway{cfg: cfg, client: client}
}

// --- minimal OpenAI wire types ---

type oaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

type oaiResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *oaiError `json:"error,omitempty"`
}

type oaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete posts messages and returns the first choice's content.
func (g *openAIGateway) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	reply, err := g.complete(ctx, messages, params)
	return reply, redact.Error(err, g.cfg.APIKey)
}

func (g *openAIGateway) complete(ctx context.Context, messages []Message, params Params) (string, error) {
	body := oaiRequest{
		Model:       params.Model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("nlp: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("nlp: create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("nlp: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp)
	}

	var decoded oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("nlp: decode API response: %w", err)
	}
	if decoded.Error != nil {
		return "", &StatusError{StatusCode: resp.StatusCode, Message: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return decoded.Choices[0].Message.Content, nil
}

// statusError builds a StatusError from a non-2xx response, using the
// provider's error message when the body carries one.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error *oaiError `json:"error"`
	}
	msg := ""
	if json.Unmarshal(raw, &body) == nil && body.Error != nil {
		msg = body.Error.Message
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
