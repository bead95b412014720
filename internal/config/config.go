package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment overrides; "__" nests keys, so
// PULSEBOT_TELEMETRY__CLIENT_SECRET maps to telemetry.client_secret.
const envPrefix = "PULSEBOT_"

type Config struct {
	LogLevel string `koanf:"log_level"`
	DataDir  string `koanf:"data_dir"`
	Telegram struct {
		Token string `koanf:"token"`
	} `koanf:"telegram"`
	HTTP struct {
		Enabled bool   `koanf:"enabled"`
		Listen  string `koanf:"listen"`
	} `koanf:"http"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// TelemetryConfig is the export pipeline's configuration surface, read
// once at startup. An empty TokenEndpoint selects no-auth mode.
type TelemetryConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Endpoint        string `koanf:"endpoint"`
	TokenEndpoint   string `koanf:"token_endpoint"`
	ClientID        string `koanf:"client_id"`
	ClientSecret    string `koanf:"client_secret"`
	BatchSize       int    `koanf:"batch_size"`
	QueueCapacity   int    `koanf:"queue_capacity"`
	FlushInterval   string `koanf:"flush_interval"`
	ConsumeInterval string `koanf:"consume_interval"`
}

// FlushEvery parses the flush interval, falling back to 30s.
func (t TelemetryConfig) FlushEvery() time.Duration {
	return parseInterval(t.FlushInterval, 30*time.Second)
}

// ConsumeEvery parses the consumer tick interval, falling back to 1s.
func (t TelemetryConfig) ConsumeEvery() time.Duration {
	return parseInterval(t.ConsumeInterval, time.Second)
}

func parseInterval(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func defaults() map[string]any {
	return map[string]any{
		"log_level":                  "info",
		"data_dir":                   filepath.Join(os.Getenv("HOME"), ".pulsebot"),
		"http.enabled":               true,
		"http.listen":                "127.0.0.1:8090",
		"telemetry.enabled":          false,
		"telemetry.batch_size":       100,
		"telemetry.queue_capacity":   1000,
		"telemetry.flush_interval":   "30s",
		"telemetry.consume_interval": "1s",
	}
}

// LoadK loads defaults, then the optional YAML file at path, then
// PULSEBOT_-prefixed environment overrides, and returns the merged tree.
func LoadK(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		k.Set(key, val)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing file is fine; defaults plus env apply.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	return k, nil
}

// Load reads the configuration into a Config struct.
func Load(path string) (*Config, error) {
	k, err := LoadK(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the tree back to path as YAML, atomically.
func Save(path string, k *koanf.Koanf) error {
	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// secretKeys lists the dot-separated keys whose values are masked by
// "config list".
var secretKeys = map[string]bool{
	"telegram.token":          true,
	"telemetry.client_secret": true,
}

// IsSecretKey returns true if the given dot-separated key holds a secret.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// ParseValue converts a "config set" argument into a typed value so the
// stored YAML stays usable by Load: bools and numbers are recognized,
// anything else stays a string.
func ParseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
