package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// ModelID is the Google Drive file ID of the ONNX model.
	// The default names the published classifier artifact; an ONNX export of it,
	// plus its metadata JSON (MetadataID or MetadataPath), must be supplied.
	ModelID string `json:"model_id" yaml:"model_id"`

	// ModelPath is where the model is cached locally. Downloaded only when missing.
	ModelPath string `json:"model_path" yaml:"model_path" validate:"required"`

	// MetadataID is the Drive file ID of the model metadata JSON.
	// Empty means the metadata must already exist at MetadataPath.
	MetadataID string `json:"metadata_id,omitempty" yaml:"metadata_id,omitempty"`

	// MetadataPath is where the model metadata (classes, input shape) lives.
	MetadataPath string `json:"metadata_path" yaml:"metadata_path" validate:"required"`

	// RuntimeLibrary is the path to the ONNX Runtime shared library.
	// Empty uses the library's platform default.
	RuntimeLibrary string `json:"onnxruntime_library,omitempty" yaml:"onnxruntime_library,omitempty"`

	// Bind is the interface the web UI listens on.
	Bind string `json:"bind" yaml:"bind" validate:"required"`

	// Port is the web UI port.
	Port int `json:"port" yaml:"port" validate:"min=1,max=65535"`

	// MaxUploadBytes caps the size of one uploaded or captured image.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" validate:"min=1024"`

	// SessionTTLMinutes ends sessions idle for longer than this.
	SessionTTLMinutes int `json:"session_ttl_minutes" yaml:"session_ttl_minutes" validate:"min=1"`

	// DownloadTimeoutSeconds bounds one model artifact download.
	DownloadTimeoutSeconds int `json:"download_timeout_seconds" yaml:"download_timeout_seconds" validate:"min=1"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
}

// DefaultConfig returns the default configuration. MetadataID is empty, so
// model acquisition fails with a MODEL_ACQUISITION_ERROR naming metadata_id
// until the metadata file is placed at MetadataPath or an ID is configured.
func DefaultConfig() *Config {
	return &Config{
		ModelID:                "19dS6rAzHlGekODz1l2F020D9XMlhNDYS",
		ModelPath:              "model.onnx",
		MetadataPath:           "model_metadata.json",
		Bind:                   "127.0.0.1",
		Port:                   8080,
		MaxUploadBytes:         10 << 20,
		SessionTTLMinutes:      60,
		DownloadTimeoutSeconds: 300,
		LogLevel:               "info",
	}
}

// configFiles are tried in order inside the base directory; the first one found wins.
var configFiles = []string{"config.json", "config.yaml", "config.yml"}

// envVars maps environment variables onto config fields. Earlier names win.
var envVars = []struct {
	names []string
	apply func(c *Config, v string) error
}{
	{[]string{"SNAPLABEL_MODEL_ID", "GDRIVE_FILE_ID"}, func(c *Config, v string) error { c.ModelID = v; return nil }},
	{[]string{"SNAPLABEL_MODEL_PATH", "MODEL_PATH"}, func(c *Config, v string) error { c.ModelPath = v; return nil }},
	{[]string{"SNAPLABEL_METADATA_ID"}, func(c *Config, v string) error { c.MetadataID = v; return nil }},
	{[]string{"SNAPLABEL_METADATA_PATH"}, func(c *Config, v string) error { c.MetadataPath = v; return nil }},
	{[]string{"SNAPLABEL_ONNXRUNTIME_LIBRARY"}, func(c *Config, v string) error { c.RuntimeLibrary = v; return nil }},
	{[]string{"SNAPLABEL_BIND"}, func(c *Config, v string) error { c.Bind = v; return nil }},
	{[]string{"SNAPLABEL_PORT", "PORT"}, func(c *Config, v string) error {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port %q", v)
		}
		c.Port = p
		return nil
	}},
	{[]string{"SNAPLABEL_LOG_LEVEL"}, func(c *Config, v string) error { c.LogLevel = strings.ToLower(v); return nil }},
}

var validate = validator.New()

// Load loads configuration from baseDir (config.json, config.yaml or config.yml),
// then applies environment overrides and validates the result.
// Returns default config if no file exists.
// The baseDir parameter allows tests to use t.TempDir().
func Load(baseDir string) (*Config, error) {
	return LoadWithEnv(baseDir, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(baseDir string, lookup func(string) (string, bool)) (*Config, error) {
	fileCfg := &Config{}
	for _, name := range configFiles {
		cfg, err := loadFileRaw(filepath.Join(baseDir, name))
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			fileCfg = cfg
			break
		}
	}

	cfg := Merge(DefaultConfig(), fileCfg)
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns nil (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		for _, name := range ev.names {
			v, ok := lookup(name)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			if err := ev.apply(cfg, strings.TrimSpace(v)); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			break
		}
	}
	return nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence when non-zero.
func Merge(base, overlay *Config) *Config {
	result := *base

	if overlay.ModelID != "" {
		result.ModelID = overlay.ModelID
	}
	if overlay.ModelPath != "" {
		result.ModelPath = overlay.ModelPath
	}
	if overlay.MetadataID != "" {
		result.MetadataID = overlay.MetadataID
	}
	if overlay.MetadataPath != "" {
		result.MetadataPath = overlay.MetadataPath
	}
	if overlay.RuntimeLibrary != "" {
		result.RuntimeLibrary = overlay.RuntimeLibrary
	}
	if overlay.Bind != "" {
		result.Bind = overlay.Bind
	}
	if overlay.Port != 0 {
		result.Port = overlay.Port
	}
	if overlay.MaxUploadBytes != 0 {
		result.MaxUploadBytes = overlay.MaxUploadBytes
	}
	if overlay.SessionTTLMinutes != 0 {
		result.SessionTTLMinutes = overlay.SessionTTLMinutes
	}
	if overlay.DownloadTimeoutSeconds != 0 {
		result.DownloadTimeoutSeconds = overlay.DownloadTimeoutSeconds
	}
	if overlay.LogLevel != "" {
		result.LogLevel = strings.ToLower(overlay.LogLevel)
	}

	return &result
}
