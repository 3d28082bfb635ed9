package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	AgentAuto     = "auto"
	AgentBackend  = "backend"
	AgentFrontend = "frontend"
	AgentDevOps   = "devops"
	AgentWriter   = "writer"
)

const (
	DefaultAPIBase        = "http://127.0.0.1:8000"
	DefaultLanguage       = "français"
	DefaultMaxTokens      = 512
	DefaultBuildMaxTokens = 900
	DefaultRequestTimeout = 120 * time.Second
)

// Agents lists the responders the backend accepts for orchestrate and build.
var Agents = []string{AgentAuto, AgentBackend, AgentFrontend, AgentDevOps, AgentWriter}

// ValidAgent reports whether name is one of Agents.
func ValidAgent(name string) bool {
	for _, a := range Agents {
		if a == name {
			return true
		}
	}
	return false
}

// Config holds application configuration
type Config struct {
	APIBase        string
	Language       string
	MaxTokens      int
	BuildMaxTokens int
	Agent          string // default agent for orchestrate/build
	StatePath      string
	LogDir         string
	RequestTimeout time.Duration // 0 disables the client timeout
	Telemetry      bool
	Debug          bool
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() Config {
	dir := defaultDataDir()
	return Config{
		APIBase:        DefaultAPIBase,
		Language:       DefaultLanguage,
		MaxTokens:      DefaultMaxTokens,
		BuildMaxTokens: DefaultBuildMaxTokens,
		Agent:          AgentAuto,
		StatePath:      filepath.Join(dir, "state.db"),
		LogDir:         filepath.Join(dir, "logs"),
		RequestTimeout: DefaultRequestTimeout,
		Telemetry:      true,
	}
}

// DefaultPath is where Load looks when no explicit config file is given.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".agentconsole", "config.yaml")
	}
	return filepath.Join(base, "agentconsole", "config.yaml")
}

func defaultDataDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "agentconsole")
	}
	return ".agentconsole"
}

// Load builds the configuration from defaults, the config file at path and the
// environment, in that order. A missing file at the default path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := loadFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// fileConfig mirrors Config with a string timeout so both YAML and JSON files
// can spell durations as "90s".
type fileConfig struct {
	APIBase        *string `yaml:"api_base" json:"api_base"`
	Language       *string `yaml:"language" json:"language"`
	MaxTokens      *int    `yaml:"max_tokens" json:"max_tokens"`
	BuildMaxTokens *int    `yaml:"build_max_tokens" json:"build_max_tokens"`
	Agent          *string `yaml:"agent" json:"agent"`
	StatePath      *string `yaml:"state_path" json:"state_path"`
	LogDir         *string `yaml:"log_dir" json:"log_dir"`
	RequestTimeout *string `yaml:"request_timeout" json:"request_timeout"`
	Telemetry      *bool   `yaml:"telemetry" json:"telemetry"`
	Debug          *bool   `yaml:"debug" json:"debug"`
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if fc.APIBase != nil {
		cfg.APIBase = *fc.APIBase
	}
	if fc.Language != nil {
		cfg.Language = *fc.Language
	}
	if fc.MaxTokens != nil {
		cfg.MaxTokens = *fc.MaxTokens
	}
	if fc.BuildMaxTokens != nil {
		cfg.BuildMaxTokens = *fc.BuildMaxTokens
	}
	if fc.Agent != nil {
		cfg.Agent = *fc.Agent
	}
	if fc.StatePath != nil {
		cfg.StatePath = *fc.StatePath
	}
	if fc.LogDir != nil {
		cfg.LogDir = *fc.LogDir
	}
	if fc.RequestTimeout != nil {
		d, err := time.ParseDuration(*fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", *fc.RequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if fc.Telemetry != nil {
		cfg.Telemetry = *fc.Telemetry
	}
	if fc.Debug != nil {
		cfg.Debug = *fc.Debug
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("AGENT_API_BASE"); v != "" {
		cfg.APIBase = v
	}
	if v := os.Getenv("AGENTCONSOLE_STATE"); v != "" {
		cfg.StatePath = v
	}
	if v := os.Getenv("AGENTCONSOLE_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("AGENTCONSOLE_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AGENTCONSOLE_DEBUG %q: %w", v, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Validate checks the values the client depends on.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base must be an absolute http(s) URL, got %q", c.APIBase)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.BuildMaxTokens <= 0 {
		return fmt.Errorf("build_max_tokens must be positive, got %d", c.BuildMaxTokens)
	}
	if !ValidAgent(c.Agent) {
		return fmt.Errorf("unknown agent %q (%s)", c.Agent, strings.Join(Agents, "|"))
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path must be set")
	}
	return nil
}
