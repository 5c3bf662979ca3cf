// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultSystemPrompt is prepended to the first message of every conversation
// served by the reference backend.
const DefaultSystemPrompt = "You are a helpful AI assistant. Provide clear, concise, and accurate responses."

// Config is the top-level Parley configuration.
type Config struct {
	Client ClientConfig `mapstructure:"client"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Search SearchConfig `mapstructure:"search"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
}

// ClientConfig controls how the client reaches the backend.
type ClientConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	Timeout               time.Duration `mapstructure:"timeout"`
	RefreshOnUnauthorized bool          `mapstructure:"refresh_on_unauthorized"`
	RateLimit             float64       `mapstructure:"rate_limit"`
	Burst                 int           `mapstructure:"burst"`
	UserAgent             string        `mapstructure:"user_agent"`
}

// AuthConfig selects where session tokens are persisted.
type AuthConfig struct {
	TokenStore string `mapstructure:"token_store"`
	TokenFile  string `mapstructure:"token_file"`
	Service    string `mapstructure:"service"`
}

type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig controls the reference backend started by `parley serve`.
type ServerConfig struct {
	Listen      string        `mapstructure:"listen"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	AccessTTL   time.Duration `mapstructure:"access_ttl"`
	RefreshTTL  time.Duration `mapstructure:"refresh_ttl"`
	DataDir     string        `mapstructure:"data_dir"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	Burst       int           `mapstructure:"burst"`
}

// LLMConfig selects the model the reference backend proxies to.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	SystemPrompt   string  `mapstructure:"system_prompt"`
}

// SetDefaults registers every default on v. Keys must be registered for
// AutomaticEnv to reach them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("client.base_url", "http://127.0.0.1:8000")
	v.SetDefault("client.timeout", 10*time.Second)
	v.SetDefault("client.refresh_on_unauthorized", false)
	v.SetDefault("client.rate_limit", 0.0)
	v.SetDefault("client.burst", 1)
	v.SetDefault("client.user_agent", "parley")

	v.SetDefault("auth.token_store", "keyring")
	v.SetDefault("auth.token_file", "")
	v.SetDefault("auth.service", "parley")

	v.SetDefault("search.debounce", 300*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.listen", "127.0.0.1:8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.access_ttl", 60*time.Minute)
	v.SetDefault("server.refresh_ttl", 24*time.Hour)
	v.SetDefault("server.data_dir", "data")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.burst", 20)

	v.SetDefault("llm.provider", "echo")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.embedding_model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix PARLEY_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, parleyerr.Errorf(parleyerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// SetupEnv makes every registered key overridable with a PARLEY_ variable,
// e.g. PARLEY_CLIENT_BASE_URL for client.base_url.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, parleyerr.Errorf(parleyerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, parleyerr.Errorf(parleyerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from each existing file into the process
// environment. Variables already set are left untouched.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return parleyerr.Errorf(parleyerr.CodeConfigParseInvalidFormat, "loading env file %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateClient()...)
	errs = append(errs, c.validateAuth()...)
	errs = append(errs, c.validateLog()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLLM()...)

	if c.Search.Debounce < 0 {
		errs = append(errs, invalid("search.debounce must not be negative, got %s", c.Search.Debounce))
	}

	return errs
}

func (c *Config) validateClient() []error {
	var errs []error

	u, err := url.Parse(c.Client.BaseURL)
	switch {
	case c.Client.BaseURL == "":
		errs = append(errs, invalid("client.base_url must not be empty"))
	case err != nil:
		errs = append(errs, invalid("client.base_url must be a valid URL, got %q: %v", c.Client.BaseURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, invalid("client.base_url must use http or https, got %q", c.Client.BaseURL))
	case u.Host == "":
		errs = append(errs, invalid("client.base_url must include a host, got %q", c.Client.BaseURL))
	}

	if c.Client.Timeout <= 0 {
		errs = append(errs, invalid("client.timeout must be greater than 0, got %s", c.Client.Timeout))
	}
	if c.Client.RateLimit < 0 {
		errs = append(errs, invalid("client.rate_limit must not be negative, got %g", c.Client.RateLimit))
	}
	if c.Client.RateLimit > 0 && c.Client.Burst < 1 {
		errs = append(errs, invalid("client.burst must be at least 1 when rate limiting, got %d", c.Client.Burst))
	}

	return errs
}

func (c *Config) validateAuth() []error {
	var errs []error

	validStores := map[string]bool{"keyring": true, "file": true, "memory": true}
	if !validStores[c.Auth.TokenStore] {
		errs = append(errs, invalid("auth.token_store must be one of [keyring, file, memory], got %q", c.Auth.TokenStore))
	}
	if c.Auth.Service == "" {
		errs = append(errs, invalid("auth.service must not be empty"))
	}

	return errs
}

func (c *Config) validateLog() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, invalid("log.level must be one of [debug, info, warn, error], got %q", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true, "logfmt": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, invalid("log.format must be one of [text, json, logfmt], got %q", c.Log.Format))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, invalid("server.listen must be a valid host:port address, got %q: %v", c.Server.Listen, err))
	} else if port, err := strconv.Atoi(portStr); err != nil || port < 0 || port > 65535 {
		errs = append(errs, invalid("server.listen port must be between 0 and 65535, got %q", portStr))
	}

	if c.Server.AccessTTL <= 0 {
		errs = append(errs, invalid("server.access_ttl must be greater than 0, got %s", c.Server.AccessTTL))
	}
	if c.Server.RefreshTTL < c.Server.AccessTTL {
		errs = append(errs, invalid("server.refresh_ttl must not be shorter than server.access_ttl, got %s", c.Server.RefreshTTL))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, invalid("server.rate_limit must not be negative, got %g", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, invalid("server.burst must be at least 1 when rate limiting, got %d", c.Server.Burst))
	}

	return errs
}

func (c *Config) validateLLM() []error {
	var errs []error

	validProviders := map[string]bool{"echo": true, "openai": true, "openrouter": true, "anthropic": true, "google": true}
	if !validProviders[c.LLM.Provider] {
		errs = append(errs, invalid("llm.provider must be one of [echo, openai, openrouter, anthropic, google], got %q", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, invalid("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, invalid("llm.max_tokens must be greater than 0, got %d", c.LLM.MaxTokens))
	}

	return errs
}

// ValidateServe checks the settings only `parley serve` needs.
func (c *Config) ValidateServe() []error {
	var errs []error
	if len(c.Server.JWTSecret) < 32 {
		errs = append(errs, invalid("server.jwt_secret must be at least 32 characters"))
	}
	if c.Server.DataDir == "" {
		errs = append(errs, invalid("server.data_dir must not be empty"))
	}
	return errs
}

func invalid(format string, args ...any) error {
	return parleyerr.Errorf(parleyerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}
