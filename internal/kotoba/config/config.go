// Package config loads Kotoba's runtime configuration from an optional YAML
// file and then from environment variables, which take precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/Kotoba/common/crypto"
	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
)

// Config is the full runtime configuration.
type Config struct {
	// DatabasePath is the SQLite file. ":memory:" keeps nothing on disk.
	DatabasePath string `yaml:"database_path"`
	// MasterKey, when set, is a 64-char hex key used to seal stored
	// documents at rest.
	MasterKey string `yaml:"master_key"`
	// HTTPAddr enables the health server when non-empty (e.g. ":8080").
	HTTPAddr string `yaml:"http_addr"`

	Log        LogConfig        `yaml:"log"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Generation GenerationConfig `yaml:"generation"`
	Retention  RetentionConfig  `yaml:"retention"`
	Identity   IdentityConfig   `yaml:"identity"`
	Matrix     MatrixConfig     `yaml:"matrix"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// GatewayConfig configures the OpenAI-compatible completion endpoint.
type GatewayConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	TopP        float64       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
}

// GenerationConfig tunes the generation controller.
type GenerationConfig struct {
	// Timeout bounds one generation. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
	// SubmitsPerMinute throttles each identity. Zero disables throttling.
	SubmitsPerMinute int `yaml:"submits_per_minute"`
}

// RetentionConfig controls the conversation retention sweep.
type RetentionConfig struct {
	Schedule         string `yaml:"schedule"`
	MaxConversations int    `yaml:"max_conversations"`
}

// IdentityConfig is the fixed identity used by the terminal binding.
type IdentityConfig struct {
	UserID   string `yaml:"user_id"`
	Enhanced bool   `yaml:"enhanced"`
}

// MatrixConfig configures the Matrix binding used by `kotoba serve`.
type MatrixConfig struct {
	Homeserver  string   `yaml:"homeserver"`
	UserID      string   `yaml:"user_id"`
	AccessToken string   `yaml:"access_token"`
	Rooms       []string `yaml:"rooms"`
	// EnhancedUsers get the enhanced prompt.
	EnhancedUsers []string `yaml:"enhanced_users"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	p := nlp.DefaultParams()
	return &Config{
		DatabasePath: "./kotoba.db",
		Log:          LogConfig{Level: "info", Format: "text"},
		Gateway: GatewayConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       p.Model,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			TopP:        p.TopP,
			Timeout:     60 * time.Second,
		},
		Retention: RetentionConfig{
			Schedule:         chat.DefaultRetentionSchedule,
			MaxConversations: chat.DefaultMaxConversations,
		},
	}
}

// Load reads path (if non-empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML merges data over cfg, rejecting unknown keys.
func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("config: database_path is required")
	}
	if c.MasterKey != "" {
		if _, err := crypto.ParseKey(c.MasterKey); err != nil {
			return fmt.Errorf("config: master_key: %w", err)
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Gateway.BaseURL == "" {
		return errors.New("config: gateway.base_url is required")
	}
	if c.Gateway.Model == "" {
		return errors.New("config: gateway.model is required")
	}
	if c.Generation.Timeout < 0 {
		return errors.New("config: generation.timeout must not be negative")
	}
	if c.Retention.MaxConversations < 1 {
		return fmt.Errorf("config: retention.max_conversations must be at least 1, got %d", c.Retention.MaxConversations)
	}
	return nil
}

// ValidateMatrix checks the settings `kotoba serve` needs.
func (c *Config) ValidateMatrix() error {
	switch {
	case c.Matrix.Homeserver == "":
		return errors.New("config: MATRIX_HOMESERVER is required")
	case c.Matrix.UserID == "":
		return errors.New("config: MATRIX_USER_ID is required")
	case c.Matrix.AccessToken == "":
		return errors.New("config: MATRIX_ACCESS_TOKEN is required")
	case len(c.Matrix.Rooms) == 0:
		return errors.New("config: MATRIX_ROOMS is required")
	}
	return nil
}

// MasterKeyBytes decodes MasterKey, returning nil when unset.
func (c *Config) MasterKeyBytes() ([]byte, error) {
	if c.MasterKey == "" {
		return nil, nil
	}
	return crypto.ParseKey(c.MasterKey)
}

// Params returns the sampling parameters for the gateway.
func (c *Config) Params() nlp.Params {
	return nlp.Params{
		Model:       c.Gateway.Model,
		Temperature: c.Gateway.Temperature,
		MaxTokens:   c.Gateway.MaxTokens,
		TopP:        c.Gateway.TopP,
	}
}
