// Package config builds the run configuration once at process start.
//
// Precedence, lowest first: Defaults, the YAML config file, environment
// variables, then command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName is the directory name used under the XDG config home.
const AppName = "feature-matrix"

const (
	BackendCSE    = "cse"
	BackendGemini = "gemini"
)

type Config struct {
	Input         string `yaml:"input"`
	Output        string `yaml:"output"`
	Competitor    string `yaml:"competitor"`
	FeatureColumn string `yaml:"feature_column"`

	Search SearchConfig `yaml:"search"`
	Model  ModelConfig  `yaml:"model"`

	Workers        int           `yaml:"workers"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type SearchConfig struct {
	// Backend selects the web search implementation: "cse" or "gemini".
	Backend    string `yaml:"backend"`
	APIKey     string `yaml:"api_key,omitempty"`
	EngineID   string `yaml:"engine_id,omitempty"`
	NumResults int    `yaml:"num_results"`
	BaseURL    string `yaml:"base_url,omitempty"`
}

type ModelConfig struct {
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float32 `yaml:"temperature"`
	Strict      bool    `yaml:"strict"`
}

func Defaults() Config {
	return Config{
		Input:         "input.csv",
		Output:        "output.csv",
		FeatureColumn: "Features",
		Search: SearchConfig{
			Backend:    BackendCSE,
			NumResults: 10,
		},
		Model: ModelConfig{
			Name:        "gemini-2.5-flash",
			Temperature: 0.7,
		},
		Workers: 1,
	}
}

// Load returns Defaults overlaid with the config file at path (if non-empty)
// and then with the environment read through getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FindConfigFile returns explicit if set, otherwise the first
// feature-matrix/config.yaml found in the XDG config directories, or "".
func FindConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	p, err := xdg.SearchConfigFile(filepath.Join(AppName, "config.yaml"))
	if err != nil {
		return ""
	}
	return p
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	e := env(getenv)
	var err error

	cfg.Competitor = e.str("COMPETITOR", cfg.Competitor)
	cfg.FeatureColumn = e.str("FEATURE_COLUMN", cfg.FeatureColumn)

	cfg.Search.Backend = strings.ToLower(e.str("SEARCH_BACKEND", cfg.Search.Backend))
	cfg.Search.APIKey = e.str("GOOGLE_API_KEY", cfg.Search.APIKey)
	cfg.Search.EngineID = e.str("GOOGLE_CSE_ID", cfg.Search.EngineID)
	cfg.Search.BaseURL = e.str("SEARCH_BASE_URL", cfg.Search.BaseURL)
	if cfg.Search.NumResults, err = e.int("SEARCH_NUM_RESULTS", cfg.Search.NumResults); err != nil {
		return err
	}

	cfg.Model.Name = e.str("GEMINI_MODEL", cfg.Model.Name)
	cfg.Model.APIKey = e.str("GEMINI_API_KEY", cfg.Model.APIKey)
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = e.str("GOOGLE_API_KEY", "")
	}
	cfg.Model.BaseURL = e.str("GEMINI_BASE_URL", cfg.Model.BaseURL)
	temp, err := e.float("GEMINI_TEMPERATURE", float64(cfg.Model.Temperature))
	if err != nil {
		return err
	}
	cfg.Model.Temperature = float32(temp)
	if cfg.Model.Strict, err = e.bool("GEMINI_STRICT", cfg.Model.Strict); err != nil {
		return err
	}

	if cfg.Workers, err = e.int("WORKERS", cfg.Workers); err != nil {
		return err
	}
	if cfg.RateLimitRPS, err = e.float("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return err
	}
	if cfg.RequestTimeout, err = e.duration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings a run cannot start without. Credentials are
// deliberately not checked: a missing key degrades each row instead.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Input) == "":
		return ErrNoInput
	case strings.TrimSpace(c.Output) == "":
		return ErrNoOutput
	case filepath.Clean(c.Input) == filepath.Clean(c.Output):
		return ErrSameInputOutput
	case strings.TrimSpace(c.Competitor) == "":
		return ErrNoCompetitor
	case c.Search.Backend != BackendCSE && c.Search.Backend != BackendGemini:
		return ErrInvalidBackend
	case strings.TrimSpace(c.Model.Name) == "":
		return ErrNoModel
	case c.Model.Temperature < 0 || c.Model.Temperature > 2:
		return ErrInvalidTemp
	case c.Workers <= 0:
		return ErrInvalidWorkers
	case c.RateLimitRPS < 0:
		return ErrInvalidRateLimit
	case c.RequestTimeout < 0:
		return ErrInvalidTimeout
	}
	return nil
}

// Redacted returns a copy with credentials masked, safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "<redacted>"
	}
	c.Search.APIKey = mask(c.Search.APIKey)
	c.Model.APIKey = mask(c.Model.APIKey)
	return c
}

// YAML renders the redacted config.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

type env func(string) string

func (e env) str(name, fallback string) string {
	v := strings.TrimSpace(e(name))
	if v == "" {
		return fallback
	}
	return v
}

func (e env) int(name string, fallback int) (int, error) {
	v := strings.TrimSpace(e(name))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}

func (e env) float(name string, fallback float64) (float64, error) {
	v := strings.TrimSpace(e(name))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}

func (e env) duration(name string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(e(name))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}

func (e env) bool(name string, fallback bool) (bool, error) {
	v := strings.TrimSpace(e(name))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}
