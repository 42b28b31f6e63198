package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const appName = "devcopilot"

// Config holds application configuration.
type Config struct {
	Addr   string `json:"addr"`
	APIURL string `json:"apiUrl"`
	RepoID string `json:"repoId"`

	GeminiAPIKey     string  `json:"geminiApiKey,omitempty"`
	GeminiModel      string  `json:"geminiModel"`
	GeminiBaseURL    string  `json:"geminiBaseUrl,omitempty"`
	GeminiTimeout    int     `json:"geminiTimeoutMs"`
	GeminiRatePerSec float64 `json:"geminiRatePerSec"`
	// DisableDemo turns off the offline analyzer used when no key is set.
	DisableDemo       bool `json:"disableDemo,omitempty"`
	AnalysisCacheSize int  `json:"analysisCacheSize"`

	PollInterval         int     `json:"pollIntervalMs"`
	WorkflowStepScale    float64 `json:"workflowStepScale"`
	DisableNotifications bool    `json:"disableNotifications,omitempty"`
	// CollapseThreshold is the terminal width below which the agent panel starts hidden.
	CollapseThreshold int    `json:"collapseThreshold"`
	LogFile           string `json:"logFile,omitempty"`
}

// Defaults
const (
	DefaultAddr              = ":8080"
	DefaultAPIURL            = "http://localhost:8080/api"
	DefaultRepoID            = "repo-unicorn"
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTimeoutMs   = 60000
	DefaultGeminiRatePerSec  = 1.0
	DefaultAnalysisCacheSize = 64
	DefaultPollIntervalMs    = 2000
	DefaultWorkflowStepScale = 1.0
	DefaultCollapseThreshold = 120
)

// Environment overrides.
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvAddr         = "DEVCOPILOT_ADDR"
	EnvAPIURL       = "DEVCOPILOT_API_URL"
)

// DefaultConfigDir returns the platform-appropriate config directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, ".config", appName)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(home, ".config", appName)
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultPath is the config file inside DefaultConfigDir.
func DefaultPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the default config file, then applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the config file at path, returning defaults for missing
// fields and a missing file, then applies environment overrides.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaults()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// Save writes the config to the default path.
func Save(cfg *Config) error {
	return SaveTo(DefaultPath(), cfg)
}

// SaveTo writes the config to path atomically.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename config: %w", err)
	}

	return nil
}

// AnalysesCacheDir returns the path to the analysis cache directory.
func AnalysesCacheDir() string {
	return filepath.Join(DefaultConfigDir(), "analyses")
}

// GeminiTimeoutDuration returns the configured Gemini timeout as a time.Duration.
func (c *Config) GeminiTimeoutDuration() time.Duration {
	return time.Duration(c.GeminiTimeout) * time.Millisecond
}

// PollIntervalDuration returns the dashboard poll interval as a time.Duration.
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

func defaults() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.RepoID == "" {
		cfg.RepoID = DefaultRepoID
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = DefaultGeminiModel
	}
	if cfg.GeminiTimeout == 0 {
		cfg.GeminiTimeout = DefaultGeminiTimeoutMs
	}
	if cfg.GeminiRatePerSec == 0 {
		cfg.GeminiRatePerSec = DefaultGeminiRatePerSec
	}
	if cfg.AnalysisCacheSize == 0 {
		cfg.AnalysisCacheSize = DefaultAnalysisCacheSize
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollIntervalMs
	}
	if cfg.WorkflowStepScale == 0 {
		cfg.WorkflowStepScale = DefaultWorkflowStepScale
	}
	if cfg.CollapseThreshold == 0 {
		cfg.CollapseThreshold = DefaultCollapseThreshold
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.APIURL = v
	}
}
