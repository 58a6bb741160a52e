// Package config loads the chatbot configuration from an optional TOML or YAML
// file, a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Model backends.
const (
	BackendOllama = "ollama"
	BackendLorem  = "lorem"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey       = "CHAT_BOT_API_KEY"
	EnvFrontendURLs = "FRONTEND_URLS"
	EnvListen       = "CHATBOT_LISTEN"
	EnvBackend      = "CHATBOT_MODEL_BACKEND"
	EnvModelName    = "CHATBOT_MODEL_NAME"
	EnvUpstreamURL  = "CHATBOT_UPSTREAM_URL"
)

// Config is the complete service configuration.
type Config struct {
	Server ServerConfig `toml:"server" yaml:"server"`
	Auth   AuthConfig   `toml:"auth" yaml:"auth"`
	Model  ModelConfig  `toml:"model" yaml:"model"`
}

// ServerConfig defines the HTTP listener and request shaping.
type ServerConfig struct {
	// Address to listen on (e.g., ":8000")
	Listen string `toml:"listen" yaml:"listen"`

	// SystemPrompt is injected when a conversation has none.
	SystemPrompt string `toml:"system_prompt" yaml:"system_prompt"`
}

// AuthConfig defines who may call the chat endpoint.
type AuthConfig struct {
	// APIKey is the bearer secret. Empty leaves the endpoint open.
	APIKey string `toml:"api_key" yaml:"api_key"`

	// AllowedOrigins skip the bearer check.
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins"`
}

// ModelConfig selects and tunes the model backend.
type ModelConfig struct {
	// Backend is "ollama" or "lorem".
	Backend string `toml:"backend" yaml:"backend"`

	// Name is the backend's model tag.
	Name string `toml:"name" yaml:"name"`

	// ServedID is the id advertised by the model listing.
	ServedID string `toml:"served_id" yaml:"served_id"`

	// UpstreamURL of the Ollama daemon.
	UpstreamURL string `toml:"upstream_url" yaml:"upstream_url"`

	// KeepAlive is passed to Ollama so the model stays resident: seconds
	// ("-1" for forever) or a duration with a unit ("24h").
	KeepAlive string `toml:"keep_alive" yaml:"keep_alive"`

	LoadTimeout    time.Duration `toml:"load_timeout" yaml:"load_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout" yaml:"request_timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:       ":8000",
			SystemPrompt: "You are a helpful AI assistant.",
		},
		Model: ModelConfig{
			Backend:        BackendOllama,
			Name:           "qwen3:1.7b",
			ServedID:       "Qwen3-1.7B_quantized",
			UpstreamURL:    "http://localhost:11434",
			KeepAlive:      "-1",
			LoadTimeout:    10 * time.Minute,
			RequestTimeout: 5 * time.Minute,
		},
	}
}

// Load builds the configuration: defaults, then the file at path (if non-empty),
// then the environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file without overriding the environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func decodeFile(path string, cfg *Config) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", absPath, err)
	}

	switch ext := strings.ToLower(filepath.Ext(absPath)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	default:
		return fmt.Errorf("config file %q: unsupported extension %q (want .toml, .yaml or .yml)", absPath, ext)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok {
		c.Auth.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvFrontendURLs); ok {
		c.Auth.AllowedOrigins = SplitList(v)
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Server.Listen = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Model.Backend = v
	}
	if v, ok := lookup(EnvModelName); ok && v != "" {
		c.Model.Name = v
	}
	if v, ok := lookup(EnvUpstreamURL); ok && v != "" {
		c.Model.UpstreamURL = v
	}
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("server.listen must not be empty")
	}
	if strings.TrimSpace(c.Server.SystemPrompt) == "" {
		return errors.New("server.system_prompt must not be empty")
	}

	switch c.Model.Backend {
	case BackendOllama:
		if strings.TrimSpace(c.Model.Name) == "" {
			return errors.New("model.name must be provided for the ollama backend")
		}
		u, err := url.Parse(c.Model.UpstreamURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("model.upstream_url %q must be an http(s) URL", c.Model.UpstreamURL)
		}
		if !validKeepAlive(c.Model.KeepAlive) {
			return fmt.Errorf("model.keep_alive %q must be a number of seconds or a duration with a unit (e.g. 30m)", c.Model.KeepAlive)
		}
	case BackendLorem:
	default:
		return fmt.Errorf("model.backend %q must be one of %q or %q", c.Model.Backend, BackendOllama, BackendLorem)
	}

	if c.Model.LoadTimeout <= 0 {
		return fmt.Errorf("model.load_timeout must be positive, got %s", c.Model.LoadTimeout)
	}
	if c.Model.RequestTimeout <= 0 {
		return fmt.Errorf("model.request_timeout must be positive, got %s", c.Model.RequestTimeout)
	}

	for _, origin := range c.Auth.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return errors.New("auth.allowed_origins must not contain empty entries")
		}
	}
	return nil
}

// validKeepAlive accepts what Ollama accepts: empty, a number of seconds or a duration.
func validKeepAlive(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return true
	}
	_, err := time.ParseDuration(v)
	return err == nil
}

// SplitList splits a comma-separated list, trimming entries and dropping blanks.
func SplitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
