// Package config loads the tiptranslate configuration file.
//
// The file is YAML, by default ~/.tiptranslate/config.yaml. A missing file
// yields the defaults; a .env file next to it is loaded into the environment
// so the API key can live outside the YAML. TIPTRANSLATE_* variables override
// the file.
package config

import (
	"fmt"
	"time"

	"github.com/entrhq/tiptranslate/pkg/llm/openai"
	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/page"
	"github.com/entrhq/tiptranslate/pkg/transport/pubsubbus"
)

// Config is the complete configuration of the host and the page agent.
type Config struct {
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Reconnect ReconnectConfig `yaml:"reconnect" json:"reconnect"`
	Page      PageConfig      `yaml:"page" json:"page"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// LLMConfig configures the translation gateway.
type LLMConfig struct {
	Model        string   `yaml:"model" json:"model" env:"TIPTRANSLATE_MODEL"`
	BaseURL      string   `yaml:"base_url" json:"base_url" env:"TIPTRANSLATE_BASE_URL"`
	APIKey       string   `yaml:"api_key" json:"api_key" env:"TIPTRANSLATE_API_KEY"`
	MaxTokens    int      `yaml:"max_tokens" json:"max_tokens" env:"TIPTRANSLATE_MAX_TOKENS"`
	SystemPrompt string   `yaml:"system_prompt" json:"system_prompt"`
	Timeout      Duration `yaml:"timeout" json:"timeout" env:"TIPTRANSLATE_LLM_TIMEOUT"` // Timeout bounds one gateway call
}

// ReconnectConfig configures how page agents recover a lost port.
type ReconnectConfig struct {
	Delay       Duration `yaml:"delay" json:"delay" env:"TIPTRANSLATE_RECONNECT_DELAY"`
	MaxAttempts int      `yaml:"max_attempts" json:"max_attempts" env:"TIPTRANSLATE_RECONNECT_MAX_ATTEMPTS"` // 0 retries forever
}

// Policy converts the section into a page reconnect policy.
func (r ReconnectConfig) Policy() page.ReconnectPolicy {
	return page.ReconnectPolicy{
		Delay:       r.Delay.Std(),
		MaxAttempts: r.MaxAttempts,
	}
}

// PageConfig selects the pages that get an overlay.
type PageConfig struct {
	AllowedURLs []string `yaml:"allowed_urls" json:"allowed_urls" env:"TIPTRANSLATE_ALLOWED_URLS" envSeparator:","`
	DeniedURLs  []string `yaml:"denied_urls,omitempty" json:"denied_urls,omitempty" env:"TIPTRANSLATE_DENIED_URLS" envSeparator:","`
}

// Matcher compiles the URL rules.
func (p PageConfig) Matcher() (*page.Matcher, error) {
	return page.NewMatcher(p.AllowedURLs, p.DeniedURLs)
}

// TransportConfig configures the persistent and broadcast transports.
type TransportConfig struct {
	// Listen is the address the host serves websocket ports on. Empty
	// disables the websocket listener.
	Listen string `yaml:"listen" json:"listen" env:"TIPTRANSLATE_LISTEN"`

	// ServerURL is where page agents dial the host.
	ServerURL string `yaml:"server_url" json:"server_url" env:"TIPTRANSLATE_SERVER_URL"`

	// BroadcastURL is a gocloud.dev/pubsub topic URL.
	BroadcastURL string `yaml:"broadcast_url" json:"broadcast_url" env:"TIPTRANSLATE_BROADCAST_URL"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level" json:"level" env:"TIPTRANSLATE_LOG_LEVEL"`
}

const (
	DefaultListen    = "127.0.0.1:7531"
	DefaultServerURL = "http://127.0.0.1:7531"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:        openai.DefaultModel,
			MaxTokens:    openai.DefaultMaxTokens,
			SystemPrompt: openai.DefaultSystemPrompt,
			Timeout:      Duration(30 * time.Second),
		},
		Reconnect: ReconnectConfig{
			Delay: Duration(page.DefaultReconnectPolicy().Delay),
		},
		Page: PageConfig{
			AllowedURLs: []string{page.AllURLs},
		},
		Transport: TransportConfig{
			Listen:       DefaultListen,
			ServerURL:    DefaultServerURL,
			BroadcastURL: pubsubbus.DefaultURL,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens cannot be negative")
	}

	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout cannot be negative")
	}

	if c.Reconnect.Delay <= 0 {
		return fmt.Errorf("reconnect.delay must be positive")
	}

	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts cannot be negative")
	}

	if _, err := c.Page.Matcher(); err != nil {
		return fmt.Errorf("page: %w", err)
	}

	if c.Transport.BroadcastURL == "" {
		return fmt.Errorf("transport.broadcast_url is required")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}

	return nil
}

// LogLevel returns the configured logging level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}
